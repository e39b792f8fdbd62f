package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AskInput defines the structure of the JSON request body.
type AskInput struct {
	Message string `json:"message" binding:"required,max=2000"`
}

// AskAssistant is the handler for POST /v1/assistant/ask
func (h *Handlers) AskAssistant(c *gin.Context) {
	// 1. Is the assistant configured at all
	if h.Assistant == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "The assistant is not enabled"})
		return
	}

	// 2. Parse Input
	var input AskInput
	if !bindJSON(c, &input) {
		return
	}

	// 3. Ask, telling the model which side of the marketplace the user is on
	user := currentUser(c)
	answer, tokens, err := h.Assistant.Ask(c.Request.Context(), input.Message, user.Role)
	if err != nil {
		h.logger().Warn("assistant failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "The assistant is unavailable right now"})
		return
	}

	h.logger().Info("assistant answered", "user_id", user.ID, "tokens", tokens)
	c.JSON(http.StatusOK, gin.H{
		"response": answer,
		"tokens":   tokens,
	})
}
