package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/store"
)

//
// --- Admin: Subscription Handlers ---
//

// AssignSubscriptionInput names the plan to put a client on.
type AssignSubscriptionInput struct {
	Plan string `json:"plan" binding:"required"`
}

// AssignSubscription is the handler for PUT /v1/admin/clients/:id/subscription
// The client's allowance is reset to the plan's, never added to.
func (h *Handlers) AssignSubscription(c *gin.Context) {
	// 1. --- Get Client ID from URL ---
	clientID, ok := paramID(c, "id")
	if !ok {
		return
	}

	// 2. --- Bind & Validate JSON ---
	var input AssignSubscriptionInput
	if !bindJSON(c, &input) {
		return
	}

	// 3. --- The target must be able to post ---
	if !h.requireClient(c, clientID) {
		return
	}

	// 4. --- Replace the subscription ---
	sub, err := h.Quota.SetPlan(c.Request.Context(), clientID, input.Plan)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger().Info("admin assigned plan", "admin_id", currentUser(c).ID, "client_id", clientID, "plan", sub.PlanKey)
	c.JSON(http.StatusOK, gin.H{
		"message":      "Subscription assigned",
		"subscription": sub,
	})
}

// ClearSubscription is the handler for DELETE /v1/admin/clients/:id/subscription
func (h *Handlers) ClearSubscription(c *gin.Context) {
	clientID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Quota.ClearPlan(c.Request.Context(), clientID); err != nil {
		h.respondError(c, err)
		return
	}

	h.logger().Info("admin cleared plan", "admin_id", currentUser(c).ID, "client_id", clientID)
	c.JSON(http.StatusOK, gin.H{"message": "Subscription removed"})
}

func (h *Handlers) requireClient(c *gin.Context, userID int64) bool {
	user, err := h.Store.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondError(c, apperr.NotFound("User %d does not exist", userID))
			return false
		}
		h.respondError(c, apperr.Storage(err, "load user"))
		return false
	}
	if !user.CanPost() {
		h.respondError(c, apperr.Validation("User %d is not registered as a client", userID))
		return false
	}
	return true
}
