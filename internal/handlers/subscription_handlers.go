package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/quota"
)

//
// --- Public Subscription Handlers ---
//

// GetSubscriptionPlans is the handler for GET /v1/plans
func (h *Handlers) GetSubscriptionPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"plans": h.Quota.Plans(),
	})
}

//
// --- Client Subscription Handlers ---
//

// GetMySubscription is the handler for GET /v1/client/subscription
// A client without a subscription gets "subscription": null.
func (h *Handlers) GetMySubscription(c *gin.Context) {
	sub, err := h.Quota.Current(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscription": sub,
		"canPost":      quota.CheckCanPost(sub, time.Now()),
	})
}

type CheckoutInput struct {
	Plan string `json:"plan" binding:"required"`
}

// CreateCheckout is the handler for POST /v1/client/subscription/checkout
func (h *Handlers) CreateCheckout(c *gin.Context) {
	if h.Billing == nil || !h.Billing.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Online payments are not enabled"})
		return
	}
	var input CheckoutInput
	if !bindJSON(c, &input) {
		return
	}
	url, err := h.Billing.Checkout(c.Request.Context(), currentUser(c).ID, input.Plan)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkoutUrl": url})
}

// maxWebhookBytes matches the largest event payload Stripe sends.
const maxWebhookBytes = 65536

// StripeWebhook is the handler for POST /v1/webhooks/stripe
func (h *Handlers) StripeWebhook(c *gin.Context) {
	if h.Billing == nil {
		c.Status(http.StatusNotFound)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read request body"})
		return
	}
	if err := h.Billing.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
