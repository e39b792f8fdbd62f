package models

import "time"

// Subscription defines the model for the 'subscriptions' table.
// A client has at most one row (unique key on client_id).
type Subscription struct {
	ID       int64  `json:"id" db:"id"`
	ClientID int64  `json:"clientId" db:"client_id"`
	PlanKey  string `json:"plan" db:"plan_key"`

	// Unlimited plans ignore GigPostsLeft entirely.
	Unlimited    bool `json:"unlimited" db:"unlimited"`
	GigPostsLeft int  `json:"gigPostsLeft" db:"gig_posts_left"`

	// StripeSubscriptionID is set when the plan was bought through Stripe;
	// nil for plans assigned by an admin.
	StripeSubscriptionID *string `json:"-" db:"stripe_subscription_id"`

	ActivatedAt time.Time `json:"activatedAt" db:"activated_at"`
	ExpiresAt   time.Time `json:"expiresAt" db:"expires_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Expired reports whether the subscription's expiry is in the past at now.
func (s *Subscription) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
