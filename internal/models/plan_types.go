package models

// Plan is an entry of the fixed plan catalog. Plans are not stored in the
// database; a Subscription only records the plan key it was created from.
type Plan struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	PriceCents   int64  `json:"priceCents"`
	DurationDays int    `json:"durationDays"`

	// GigAllowance is meaningless when Unlimited is set.
	GigAllowance int  `json:"gigAllowance"`
	Unlimited    bool `json:"unlimited"`
}
