package quota

import "github.com/01moynul/basegigs-golang/internal/models"

// PlanDurationDays is the life of every subscription from activation.
const PlanDurationDays = 30

// Predefined plans.
var (
	PlanBasic = models.Plan{
		Key:          "basic",
		Name:         "Basic",
		Description:  "Post a single gig",
		PriceCents:   900,
		DurationDays: PlanDurationDays,
		GigAllowance: 1,
	}

	PlanStarter = models.Plan{
		Key:          "starter",
		Name:         "Starter",
		Description:  "Up to 5 gig posts a month",
		PriceCents:   2900,
		DurationDays: PlanDurationDays,
		GigAllowance: 5,
	}

	PlanPro = models.Plan{
		Key:          "pro",
		Name:         "Pro",
		Description:  "Up to 20 gig posts a month",
		PriceCents:   7900,
		DurationDays: PlanDurationDays,
		GigAllowance: 20,
	}

	PlanUnlimited = models.Plan{
		Key:          "unlimited",
		Name:         "Unlimited",
		Description:  "Post as many gigs as you need",
		PriceCents:   14900,
		DurationDays: PlanDurationDays,
		Unlimited:    true,
	}

	// AllPlans is the ordered list of available plans, cheapest first.
	AllPlans = []models.Plan{PlanBasic, PlanStarter, PlanPro, PlanUnlimited}
)

// PlanByKey looks up a plan by its key. Returns nil if not found.
func PlanByKey(key string) *models.Plan {
	for i := range AllPlans {
		if AllPlans[i].Key == key {
			p := AllPlans[i]
			return &p
		}
	}
	return nil
}
