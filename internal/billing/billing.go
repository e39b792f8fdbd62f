// Package billing sells subscription plans through Stripe Checkout and
// applies the result to the client's quota when Stripe calls back.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/quota"
	"github.com/01moynul/basegigs-golang/internal/store"
)

// Metadata keys attached to checkout sessions and subscriptions.
const (
	metaClientID = "client_id"
	metaPlan     = "plan"
)

// Config holds the Stripe account settings.
type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
}

// Service creates checkout sessions and consumes webhook events.
type Service struct {
	cfg    Config
	quota  *quota.Manager
	events store.WebhookEvents
	logger *slog.Logger
	now    func() time.Time

	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewService configures the Stripe client. events records applied webhook
// event ids so a redelivered event is not applied twice.
func NewService(cfg Config, q *quota.Manager, events store.WebhookEvents, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	stripe.Key = cfg.SecretKey
	return &Service{cfg: cfg, quota: q, events: events, logger: logger, now: time.Now, newSession: session.New}
}

// Enabled reports whether a Stripe key is configured.
func (s *Service) Enabled() bool {
	return s.cfg.SecretKey != ""
}

// Checkout opens a monthly subscription checkout for planKey and returns the
// URL the client should be redirected to.
func (s *Service) Checkout(_ context.Context, clientID int64, planKey string) (string, error) {
	plan := quota.PlanByKey(planKey)
	if plan == nil {
		return "", apperr.Validation("Unknown plan %q", planKey)
	}

	client := strconv.FormatInt(clientID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(client),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.cfg.Currency),
					UnitAmount: stripe.Int64(plan.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("BaseGigs " + plan.Name),
						Description: stripe.String(plan.Description),
					},
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{metaClientID: client, metaPlan: plan.Key},
		},
	}
	params.AddMetadata(metaClientID, client)
	params.AddMetadata(metaPlan, plan.Key)

	sess, err := s.newSession(params)
	if err != nil {
		return "", apperr.Storage(err, "create checkout session")
	}
	s.logger.Info("checkout session created", "client_id", clientID, "plan", plan.Key, "session_id", sess.ID)
	return sess.URL, nil
}

// HandleWebhook verifies the Stripe signature and applies the event once.
// Unknown event types and redeliveries are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return apperr.Validation("Webhook signature verification failed")
	}

	var apply func(context.Context, stripe.Event) error
	switch event.Type {
	case "checkout.session.completed":
		apply = s.checkoutCompleted
	case "invoice.paid":
		apply = s.invoicePaid
	case "customer.subscription.deleted":
		apply = s.subscriptionDeleted
	default:
		s.logger.Debug("stripe event ignored", "type", event.Type, "event_id", event.ID)
		return nil
	}

	// 1. Claim the event id; a redelivery stops here
	if err := s.events.RecordWebhookEvent(ctx, event.ID, s.now()); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.logger.Info("stripe event already applied", "type", event.Type, "event_id", event.ID)
			return nil
		}
		return apperr.Storage(err, "record webhook event")
	}

	// 2. Apply it, releasing the claim on failure so Stripe's retry runs again
	if err := apply(ctx, event); err != nil {
		if fErr := s.events.ForgetWebhookEvent(ctx, event.ID); fErr != nil {
			s.logger.Warn("could not release webhook event", "event_id", event.ID, "error", fErr)
		}
		return err
	}
	return nil
}

func (s *Service) checkoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return apperr.Validation("Malformed checkout session")
	}
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		s.logger.Info("checkout completed without payment, ignoring", "session_id", sess.ID)
		return nil
	}
	clientID, planKey, err := fromMetadata(sess.Metadata)
	if err != nil {
		return err
	}
	if sess.Subscription == nil || sess.Subscription.ID == "" {
		return apperr.Validation("Checkout session has no subscription")
	}
	if _, err := s.quota.SetStripePlan(ctx, clientID, planKey, sess.Subscription.ID); err != nil {
		return err
	}
	s.logger.Info("plan purchased", "client_id", clientID, "plan", planKey,
		"stripe_subscription", sess.Subscription.ID, "event_id", event.ID)
	return nil
}

// invoicePaid starts a new allowance period when Stripe charges a renewal.
// The first invoice of a subscription is covered by checkout.session.completed.
func (s *Service) invoicePaid(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return apperr.Validation("Malformed invoice")
	}
	if inv.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle {
		return nil
	}
	if inv.Parent == nil || inv.Parent.SubscriptionDetails == nil || inv.Parent.SubscriptionDetails.Subscription == nil {
		return apperr.Validation("Renewal invoice has no subscription")
	}
	details := inv.Parent.SubscriptionDetails
	clientID, planKey, err := fromMetadata(details.Metadata)
	if err != nil {
		return err
	}
	renewed, err := s.quota.RenewStripePlan(ctx, clientID, planKey, details.Subscription.ID)
	if err != nil {
		return err
	}
	if !renewed {
		s.logger.Warn("renewal for a subscription the client no longer holds",
			"client_id", clientID, "stripe_subscription", details.Subscription.ID, "event_id", event.ID)
		return nil
	}
	s.logger.Info("plan renewed", "client_id", clientID, "plan", planKey, "event_id", event.ID)
	return nil
}

func (s *Service) subscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return apperr.Validation("Malformed subscription")
	}
	clientID, _, err := fromMetadata(sub.Metadata)
	if err != nil {
		return err
	}
	cleared, err := s.quota.ClearStripePlan(ctx, clientID, sub.ID)
	if err != nil {
		return err
	}
	s.logger.Info("stripe subscription ended", "client_id", clientID,
		"stripe_subscription", sub.ID, "plan_removed", cleared, "event_id", event.ID)
	return nil
}

func fromMetadata(md map[string]string) (int64, string, error) {
	clientID, err := strconv.ParseInt(md[metaClientID], 10, 64)
	if err != nil || clientID <= 0 {
		return 0, "", apperr.Validation("Stripe object has no client_id metadata")
	}
	return clientID, md[metaPlan], nil
}
