package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/quota"
	"github.com/01moynul/basegigs-golang/internal/store"
)

const testSecret = "whsec_test_secret"

func newTestService(t *testing.T) (*Service, *quota.Manager) {
	t.Helper()
	mem := store.NewMemory()
	q := quota.NewManager(mem, nil)
	svc := NewService(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: testSecret,
		SuccessURL:    "https://basegigs.test/billing/success",
		CancelURL:     "https://basegigs.test/billing/cancel",
	}, q, mem, nil)
	return svc, q
}

var eventSeq int

// signed builds a signed delivery of a fresh event.
func signed(t *testing.T, eventType, object string) ([]byte, string) {
	t.Helper()
	eventSeq++
	return signedEvent(t, fmt.Sprintf("evt_test_%d", eventSeq), eventType, object)
}

func signedEvent(t *testing.T, eventID, eventType, object string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(
		`{"id":%q,"object":"event","api_version":%q,"type":%q,"data":{"object":%s}}`,
		eventID, stripe.APIVersion, eventType, object))
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return sp.Payload, sp.Header
}

func TestCheckoutBuildsSession(t *testing.T) {
	svc, _ := newTestService(t)

	var got *stripe.CheckoutSessionParams
	svc.newSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = p
		return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
	}

	url, err := svc.Checkout(context.Background(), 42, "pro")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", url)

	require.NotNil(t, got)
	assert.Equal(t, "42", got.Metadata[metaClientID])
	assert.Equal(t, "pro", got.Metadata[metaPlan])
	assert.Equal(t, "42", got.SubscriptionData.Metadata[metaClientID])
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, quota.PlanPro.PriceCents, *got.LineItems[0].PriceData.UnitAmount)
}

func TestCheckoutUnknownPlan(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Checkout(context.Background(), 42, "platinum")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCheckoutStripeFailure(t *testing.T) {
	svc, _ := newTestService(t)
	svc.newSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("stripe unavailable")
	}

	_, err := svc.Checkout(context.Background(), 42, "basic")
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))
}

func checkoutObject(clientID int64, plan, subscriptionID string) string {
	return fmt.Sprintf(`{"id":"cs_%s","object":"checkout.session","payment_status":"paid","subscription":%q,"metadata":{"client_id":"%d","plan":%q}}`,
		subscriptionID, subscriptionID, clientID, plan)
}

func subscriptionObject(clientID int64, plan, subscriptionID string) string {
	return fmt.Sprintf(`{"id":%q,"object":"subscription","metadata":{"client_id":"%d","plan":%q}}`,
		subscriptionID, clientID, plan)
}

func renewalObject(clientID int64, plan, subscriptionID, reason string) string {
	return fmt.Sprintf(`{"id":"in_test","object":"invoice","billing_reason":%q,"parent":{"type":"subscription_details","subscription_details":{"subscription":%q,"metadata":{"client_id":"%d","plan":%q}}}}`,
		reason, subscriptionID, clientID, plan)
}

func TestWebhookCheckoutCompletedSetsPlan(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()

	payload, header := signed(t, "checkout.session.completed", checkoutObject(42, "starter", "sub_1"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))

	sub, err := q.Current(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "starter", sub.PlanKey)
	assert.Equal(t, 5, sub.GigPostsLeft)
	require.NotNil(t, sub.StripeSubscriptionID)
	assert.Equal(t, "sub_1", *sub.StripeSubscriptionID)
}

func TestWebhookRedeliveryDoesNotRefill(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()

	payload, header := signedEvent(t, "evt_checkout_1", "checkout.session.completed", checkoutObject(42, "starter", "sub_1"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))

	sub, err := q.Current(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, q.ConsumePost(ctx, sub))

	payload, header = signedEvent(t, "evt_checkout_1", "checkout.session.completed", checkoutObject(42, "starter", "sub_1"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))

	sub, err = q.Current(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 4, sub.GigPostsLeft)
}

func TestWebhookFailedEventIsRetried(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()

	payload, header := signedEvent(t, "evt_checkout_2", "checkout.session.completed", checkoutObject(42, "platinum", "sub_1"))
	assert.True(t, apperr.IsKind(svc.HandleWebhook(ctx, payload, header), apperr.KindValidation))

	// The failed attempt released its claim, so a corrected retry of the id applies.
	payload, header = signedEvent(t, "evt_checkout_2", "checkout.session.completed", checkoutObject(42, "pro", "sub_1"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))

	sub, err := q.Current(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "pro", sub.PlanKey)
}

func TestWebhookSubscriptionDeletedClearsPlan(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()
	_, err := q.SetStripePlan(ctx, 42, "pro", "sub_pro")
	require.NoError(t, err)

	payload, header := signed(t, "customer.subscription.deleted", subscriptionObject(42, "pro", "sub_pro"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))

	sub, err := q.Current(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, sub)

	// A second deletion finds nothing to remove.
	payload, header = signed(t, "customer.subscription.deleted", subscriptionObject(42, "pro", "sub_pro"))
	assert.NoError(t, svc.HandleWebhook(ctx, payload, header))
}

func TestWebhookOldSubscriptionDeletedKeepsUpgrade(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()

	payload, header := signed(t, "checkout.session.completed", checkoutObject(42, "starter", "sub_starter"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))
	payload, header = signed(t, "checkout.session.completed", checkoutObject(42, "pro", "sub_pro"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))

	payload, header = signed(t, "customer.subscription.deleted", subscriptionObject(42, "starter", "sub_starter"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))

	sub, err := q.Current(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "pro", sub.PlanKey)
}

func TestWebhookAdminPlanSurvivesStripeDeletion(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()
	_, err := q.SetPlan(ctx, 42, "pro")
	require.NoError(t, err)

	payload, header := signed(t, "customer.subscription.deleted", subscriptionObject(42, "starter", "sub_starter"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))

	sub, err := q.Current(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "pro", sub.PlanKey)
}

func TestWebhookInvoicePaidRenews(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()

	payload, header := signed(t, "checkout.session.completed", checkoutObject(42, "basic", "sub_1"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))
	sub, err := q.Current(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, q.ConsumePost(ctx, sub))

	// The first invoice is already covered by checkout.
	payload, header = signed(t, "invoice.paid", renewalObject(42, "basic", "sub_1", "subscription_create"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))
	sub, err = q.Current(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, sub.GigPostsLeft)

	payload, header = signed(t, "invoice.paid", renewalObject(42, "basic", "sub_1", "subscription_cycle"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))
	sub, err = q.Current(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.GigPostsLeft)
}

func TestWebhookInvoicePaidForReplacedSubscription(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()
	_, err := q.SetStripePlan(ctx, 42, "pro", "sub_pro")
	require.NoError(t, err)

	payload, header := signed(t, "invoice.paid", renewalObject(42, "starter", "sub_starter", "subscription_cycle"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, header))

	sub, err := q.Current(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "pro", sub.PlanKey)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()

	payload, _ := signed(t, "checkout.session.completed",
		`{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","metadata":{"client_id":"42","plan":"pro"}}`)
	err := svc.HandleWebhook(ctx, payload, "t=1,v1=deadbeef")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	sub, err := q.Current(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	svc, _ := newTestService(t)

	payload, header := signed(t, "invoice.created", `{"id":"in_test_1","object":"invoice"}`)
	assert.NoError(t, svc.HandleWebhook(context.Background(), payload, header))
}

func TestWebhookRequiresClientMetadata(t *testing.T) {
	svc, _ := newTestService(t)

	payload, header := signed(t, "checkout.session.completed",
		`{"id":"cs_test_2","object":"checkout.session","payment_status":"paid","subscription":"sub_1","metadata":{}}`)
	err := svc.HandleWebhook(context.Background(), payload, header)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
