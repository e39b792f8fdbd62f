package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

//
// --- Notification Handlers ---
//

// GetMyNotifications is the handler for GET /v1/notifications
// Unread first, newest first.
func (h *Handlers) GetMyNotifications(c *gin.Context) {
	notifications, err := h.Notify.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
	})
}

// MarkNotificationAsRead is the handler for PATCH /v1/notifications/:id/read
func (h *Handlers) MarkNotificationAsRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Notify.MarkRead(c.Request.Context(), id, currentUser(c).ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Notification marked as read",
	})
}

// StreamNotifications is the handler for GET /v1/notifications/stream
// It pushes each new notification as a server-sent event until the client
// disconnects.
func (h *Handlers) StreamNotifications(c *gin.Context) {
	if h.Stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Live notifications are not enabled"})
		return
	}

	userID := currentUser(c).ID
	events, err := h.Stream.Subscribe(c.Request.Context(), userID)
	if err != nil {
		h.logger().Warn("notification stream failed", "user_id", userID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Live notifications are unavailable"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		n, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent("notification", n)
		return true
	})
}
