package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/01moynul/basegigs-golang/internal/auth"
	"github.com/01moynul/basegigs-golang/internal/billing"
	"github.com/01moynul/basegigs-golang/internal/contract"
	"github.com/01moynul/basegigs-golang/internal/handlers"
	"github.com/01moynul/basegigs-golang/internal/marketplace"
	"github.com/01moynul/basegigs-golang/internal/messaging"
	"github.com/01moynul/basegigs-golang/internal/notify"
	"github.com/01moynul/basegigs-golang/internal/quota"
	"github.com/01moynul/basegigs-golang/internal/storage"
	"github.com/01moynul/basegigs-golang/internal/store"
)

const webhookSecret = "whsec_routes_test"

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	mem    *store.Memory
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	notifier := notify.NewService(mem, nil, nil)
	q := quota.NewManager(mem, nil)
	engine := contract.NewEngine(mem, mem, notifier, nil)
	h := &handlers.Handlers{
		Store:       mem,
		Tokens:      auth.NewTokens("routes-test-secret", time.Hour),
		Quota:       q,
		Contracts:   engine,
		Marketplace: marketplace.NewService(mem, q, engine, notifier, nil),
		Messaging:   messaging.NewService(mem, mem, notifier, nil),
		Notify:      notifier,
		Blobs:       storage.NewLocal(t.TempDir(), "http://localhost:8080"),
		Billing:     billing.NewService(billing.Config{SecretKey: "sk_test", WebhookSecret: webhookSecret}, q, mem, nil),
	}
	return &testAPI{t: t, router: SetupRouter(h, Options{CORSOrigin: "http://localhost:3000"}), mem: mem}
}

func (a *testAPI) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

// signup registers an account and returns its id and a bearer token.
func (a *testAPI) signup(name, role string) (int64, string) {
	a.t.Helper()
	email := fmt.Sprintf("%s@basegigs.test", name)
	code, body := a.do(http.MethodPost, "/v1/register", "", gin.H{
		"fullName": name, "email": email, "password": "correct-horse", "role": role,
	})
	require.Equal(a.t, http.StatusCreated, code, body)

	code, body = a.do(http.MethodPost, "/v1/login", "", gin.H{"email": email, "password": "correct-horse"})
	require.Equal(a.t, http.StatusOK, code, body)
	user := body["user"].(map[string]any)
	return int64(user["id"].(float64)), body["token"].(string)
}

func (a *testAPI) makeAdmin(userID int64) {
	a.t.Helper()
	require.NoError(a.t, a.mem.SetAdmin(context.Background(), userID, true))
}

func idOf(body map[string]any, key string) int64 {
	return int64(body[key].(map[string]any)["id"].(float64))
}

func gigInput() gin.H {
	return gin.H{
		"title":         "Assemble Flat-Pack Wardrobe",
		"category":      "home",
		"location":      "Bristol",
		"description":   "Two-door wardrobe, tools provided.",
		"paymentAmount": 60,
	}
}

func TestPing(t *testing.T) {
	a := newTestAPI(t)

	code, body := a.do(http.MethodGet, "/v1/ping", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong!", body["message"])
}

func TestCORSPreflight(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/gigs", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)

	code, _ := a.do(http.MethodGet, "/v1/profile/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(http.MethodGet, "/v1/profile/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	a := newTestAPI(t)
	a.signup("dana", "client")

	code, body := a.do(http.MethodPost, "/v1/register", "", gin.H{
		"fullName": "Dana Again", "email": "DANA@basegigs.test", "password": "correct-horse", "role": "seeker",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body["code"])

	code, _ = a.do(http.MethodPost, "/v1/login", "", gin.H{"email": "dana@basegigs.test", "password": "wrong-horse"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRoleGuards(t *testing.T) {
	a := newTestAPI(t)
	_, seeker := a.signup("sam", "seeker")
	_, client := a.signup("cleo", "client")

	code, body := a.do(http.MethodPost, "/v1/client/gigs", seeker, gigInput())
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "unauthorized", body["code"])

	code, _ = a.do(http.MethodGet, "/v1/seeker/applications", client, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(http.MethodPut, "/v1/admin/clients/1/subscription", client, gin.H{"plan": "pro"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestPostGigNeedsPlan(t *testing.T) {
	a := newTestAPI(t)
	clientID, client := a.signup("cleo", "client")
	adminID, admin := a.signup("ada", "seeker")
	a.makeAdmin(adminID)

	code, body := a.do(http.MethodPost, "/v1/client/gigs", client, gigInput())
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "quota_exceeded", body["code"])

	code, body = a.do(http.MethodPut, fmt.Sprintf("/v1/admin/clients/%d/subscription", clientID), admin, gin.H{"plan": "basic"})
	require.Equal(t, http.StatusOK, code, body)

	code, body = a.do(http.MethodPost, "/v1/client/gigs", client, gigInput())
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "assemble-flat-pack-wardrobe", body["gig"].(map[string]any)["slug"])

	code, body = a.do(http.MethodGet, "/v1/client/subscription", client, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["canPost"])

	code, _ = a.do(http.MethodPost, "/v1/client/gigs", client, gigInput())
	assert.Equal(t, http.StatusPaymentRequired, code)
}

func TestAdminAssignRejectsSeekers(t *testing.T) {
	a := newTestAPI(t)
	seekerID, _ := a.signup("sam", "seeker")
	adminID, admin := a.signup("ada", "client")
	a.makeAdmin(adminID)

	code, _ := a.do(http.MethodPut, fmt.Sprintf("/v1/admin/clients/%d/subscription", seekerID), admin, gin.H{"plan": "pro"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(http.MethodPut, fmt.Sprintf("/v1/admin/clients/%d/subscription", adminID), admin, gin.H{"plan": "platinum"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHireAndSignFlow(t *testing.T) {
	a := newTestAPI(t)
	clientID, client := a.signup("cleo", "client")
	_, seeker := a.signup("sam", "seeker")
	_, outsider := a.signup("olly", "both")
	adminID, admin := a.signup("ada", "client")
	a.makeAdmin(adminID)

	code, _ := a.do(http.MethodPut, fmt.Sprintf("/v1/admin/clients/%d/subscription", clientID), admin, gin.H{"plan": "starter"})
	require.Equal(t, http.StatusOK, code)

	// Post and browse.
	code, body := a.do(http.MethodPost, "/v1/client/gigs", client, gigInput())
	require.Equal(t, http.StatusCreated, code, body)
	gigID := idOf(body, "gig")

	code, body = a.do(http.MethodGet, "/v1/gigs?category=home", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["gigs"], 1)

	// Apply.
	code, body = a.do(http.MethodPost, fmt.Sprintf("/v1/seeker/gigs/%d/apply", gigID), seeker, gin.H{"coverNote": "I own a drill"})
	require.Equal(t, http.StatusCreated, code, body)
	appID := idOf(body, "application")

	code, body = a.do(http.MethodPost, fmt.Sprintf("/v1/seeker/gigs/%d/apply", gigID), seeker, nil)
	assert.Equal(t, http.StatusConflict, code, body)

	// Message thread is limited to the pair.
	code, _ = a.do(http.MethodPost, fmt.Sprintf("/v1/applications/%d/messages", appID), seeker, gin.H{"body": "When can I start?"})
	require.Equal(t, http.StatusCreated, code)
	code, body = a.do(http.MethodGet, fmt.Sprintf("/v1/applications/%d/messages", appID), client, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["messages"], 1)
	code, _ = a.do(http.MethodGet, fmt.Sprintf("/v1/applications/%d/messages", appID), outsider, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = a.do(http.MethodGet, "/v1/client/dashboard-stats", client, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["openGigs"])
	assert.Equal(t, float64(1), body["pendingApplications"])
	assert.Equal(t, float64(4), body["gigPostsLeft"])

	// Accept opens the contract.
	code, body = a.do(http.MethodPatch, fmt.Sprintf("/v1/client/applications/%d/accept", appID), client, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(contract.StateDraft), body["state"])
	contractID := idOf(body, "contract")
	signPath := fmt.Sprintf("/v1/contracts/%d/sign", contractID)

	code, body = a.do(http.MethodGet, fmt.Sprintf("/v1/applications/%d/contract", appID), seeker, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(contractID), body["contract"].(map[string]any)["id"])

	code, body = a.do(http.MethodGet, fmt.Sprintf("/v1/contracts/%d", contractID), outsider, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "unauthorized", body["code"])

	// A pending change blocks signing for both parties.
	code, _ = a.do(http.MethodPost, fmt.Sprintf("/v1/contracts/%d/changes", contractID), seeker, gin.H{"changes": "Start on Saturday"})
	require.Equal(t, http.StatusOK, code)

	code, body = a.do(http.MethodPost, signPath, client, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "blocked", body["code"])

	code, body = a.do(http.MethodPost, fmt.Sprintf("/v1/contracts/%d/changes/approve", contractID), seeker, nil)
	assert.Equal(t, http.StatusForbidden, code, body)

	code, body = a.do(http.MethodPost, fmt.Sprintf("/v1/contracts/%d/changes/approve", contractID), client, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(2), body["contract"].(map[string]any)["version"])

	// Sign twice, then the counterparty.
	code, body = a.do(http.MethodPost, signPath, client, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(contract.StatePartiallySigned), body["state"])

	code, body = a.do(http.MethodPost, signPath, client, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_signed", body["code"])

	code, body = a.do(http.MethodPost, signPath, seeker, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(contract.StateFullyExecuted), body["state"])

	code, body = a.do(http.MethodGet, "/v1/seeker/dashboard-stats", seeker, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["acceptedApplications"])
	assert.Equal(t, float64(0), body["awaitingMySignature"])

	code, body = a.do(http.MethodGet, "/v1/contracts", seeker, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["contracts"], 1)

	// The seeker heard about the acceptance, the approval and the client's signature.
	code, body = a.do(http.MethodGet, "/v1/notifications", seeker, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["notifications"])
}

func TestNotificationStreamUnavailable(t *testing.T) {
	a := newTestAPI(t)
	_, token := a.signup("sam", "seeker")

	code, _ := a.do(http.MethodGet, "/v1/notifications/stream", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestStripeWebhook(t *testing.T) {
	a := newTestAPI(t)
	clientID, client := a.signup("cleo", "client")

	object := fmt.Sprintf(`{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","subscription":"sub_test_1","metadata":{"client_id":"%d","plan":"pro"}}`, clientID)
	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":%q,"type":"checkout.session.completed","data":{"object":%s}}`,
		stripe.APIVersion, object))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	code, body := a.do(http.MethodGet, "/v1/client/subscription", client, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["canPost"])
	assert.Equal(t, "pro", body["subscription"].(map[string]any)["plan"])

	req = httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
