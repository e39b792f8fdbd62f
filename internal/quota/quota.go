// Package quota decides whether a client may post a gig and accounts for
// each post against the client's subscription.
package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/models"
	"github.com/01moynul/basegigs-golang/internal/store"
)

// ErrQuotaExceeded is returned when a client has no usable allowance left.
var ErrQuotaExceeded = apperr.New(apperr.KindQuotaExceeded,
	"Your plan does not allow more gig posts. Renew or upgrade your subscription to continue")

// CheckCanPost applies the posting rule to the client's current subscription:
// none or expired denies, unlimited allows, otherwise at least one post must remain.
func CheckCanPost(sub *models.Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}
	if sub.Expired(now) {
		return false
	}
	if sub.Unlimited {
		return true
	}
	return sub.GigPostsLeft > 0
}

// Manager owns subscription reads and writes.
type Manager struct {
	subs   store.Subscriptions
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(subs store.Subscriptions, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{subs: subs, logger: logger, now: time.Now}
}

// WithClock replaces the time source; tests use it to pin "now".
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Current returns the client's subscription, or nil when there is none.
func (m *Manager) Current(ctx context.Context, clientID int64) (*models.Subscription, error) {
	sub, err := m.subs.GetSubscription(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Storage(err, "load subscription")
	}
	return sub, nil
}

// CanPost loads the subscription and checks it. The subscription is returned
// so the caller can pass it to ConsumePost after the gig is stored.
func (m *Manager) CanPost(ctx context.Context, clientID int64) (*models.Subscription, error) {
	sub, err := m.Current(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !CheckCanPost(sub, m.now()) {
		return sub, ErrQuotaExceeded
	}
	return sub, nil
}

// ConsumePost takes one post from a finite allowance. Call it only after
// the gig insert succeeded. The decrement is a guarded in-place update; if
// it matches nothing (a concurrent post drained the allowance first) the
// gig still stands and the miss is logged.
func (m *Manager) ConsumePost(ctx context.Context, sub *models.Subscription) error {
	if sub == nil || sub.Unlimited {
		return nil
	}
	ok, err := m.subs.DecrementGigPosts(ctx, sub.ClientID, m.now())
	if err != nil {
		return apperr.Storage(err, "consume gig post")
	}
	if !ok {
		m.logger.Warn("gig post not charged to subscription",
			"client_id", sub.ClientID, "plan", sub.PlanKey)
		return nil
	}
	sub.GigPostsLeft--
	m.logger.Info("gig post consumed",
		"client_id", sub.ClientID, "plan", sub.PlanKey, "gig_posts_left", sub.GigPostsLeft)
	return nil
}

// SetPlan replaces the client's subscription with a fresh one on planKey.
// Unused allowance from a previous plan is discarded.
func (m *Manager) SetPlan(ctx context.Context, clientID int64, planKey string) (*models.Subscription, error) {
	return m.setPlan(ctx, clientID, planKey, nil)
}

// SetStripePlan is SetPlan for a plan bought through Stripe. The row remembers
// the Stripe subscription so later renewals and cancellations can be matched.
func (m *Manager) SetStripePlan(ctx context.Context, clientID int64, planKey, stripeSubscriptionID string) (*models.Subscription, error) {
	return m.setPlan(ctx, clientID, planKey, &stripeSubscriptionID)
}

// RenewStripePlan starts a new period for a Stripe-backed plan. It reports
// false, and changes nothing, when the client's current row belongs to a
// different subscription (or none).
func (m *Manager) RenewStripePlan(ctx context.Context, clientID int64, planKey, stripeSubscriptionID string) (bool, error) {
	sub, err := m.Current(ctx, clientID)
	if err != nil {
		return false, err
	}
	if sub == nil || sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID != stripeSubscriptionID {
		return false, nil
	}
	if _, err := m.setPlan(ctx, clientID, planKey, &stripeSubscriptionID); err != nil {
		return false, err
	}
	return true, nil
}

// ClearStripePlan removes the client's subscription only while it is still
// backed by stripeSubscriptionID. It reports whether a row was removed.
func (m *Manager) ClearStripePlan(ctx context.Context, clientID int64, stripeSubscriptionID string) (bool, error) {
	if err := m.subs.DeleteStripeSubscription(ctx, clientID, stripeSubscriptionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, apperr.Storage(err, "delete subscription")
	}
	m.logger.Info("subscription cleared", "client_id", clientID, "stripe_subscription", stripeSubscriptionID)
	return true, nil
}

func (m *Manager) setPlan(ctx context.Context, clientID int64, planKey string, stripeSubscriptionID *string) (*models.Subscription, error) {
	plan := PlanByKey(planKey)
	if plan == nil {
		return nil, apperr.Validation("Unknown plan %q", planKey)
	}

	now := m.now()
	sub := &models.Subscription{
		ClientID:             clientID,
		PlanKey:              plan.Key,
		Unlimited:            plan.Unlimited,
		StripeSubscriptionID: stripeSubscriptionID,
		ActivatedAt:          now,
		ExpiresAt:            now.AddDate(0, 0, plan.DurationDays),
		UpdatedAt:            now,
	}
	if !plan.Unlimited {
		sub.GigPostsLeft = plan.GigAllowance
	}

	if err := m.subs.UpsertSubscription(ctx, sub); err != nil {
		return nil, apperr.Storage(err, "save subscription")
	}
	m.logger.Info("subscription plan set",
		"client_id", clientID, "plan", plan.Key, "expires_at", sub.ExpiresAt)
	return sub, nil
}

// ClearPlan removes the client's subscription; posting is denied afterwards.
func (m *Manager) ClearPlan(ctx context.Context, clientID int64) error {
	if err := m.subs.DeleteSubscription(ctx, clientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Client %d has no subscription", clientID)
		}
		return apperr.Storage(err, "delete subscription")
	}
	m.logger.Info("subscription cleared", "client_id", clientID)
	return nil
}

// Plans lists the catalog.
func (m *Manager) Plans() []models.Plan {
	return append([]models.Plan(nil), AllPlans...)
}
