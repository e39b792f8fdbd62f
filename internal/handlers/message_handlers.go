package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetMessages is the handler for GET /v1/applications/:id/messages
func (h *Handlers) GetMessages(c *gin.Context) {
	appID, ok := paramID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.Messaging.List(c.Request.Context(), currentUser(c).ID, appID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type SendMessageInput struct {
	Body string `json:"body" binding:"required"`
}

// SendMessage is the handler for POST /v1/applications/:id/messages
func (h *Handlers) SendMessage(c *gin.Context) {
	appID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input SendMessageInput
	if !bindJSON(c, &input) {
		return
	}
	msg, err := h.Messaging.Send(c.Request.Context(), currentUser(c).ID, appID, input.Body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
