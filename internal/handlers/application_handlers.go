package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/contract"
)

//
// --- Seeker Applications ---
//

type ApplyInput struct {
	CoverNote string `json:"coverNote" binding:"max=2000"`
}

// ApplyToGig is the handler for POST /v1/seeker/gigs/:id/apply
func (h *Handlers) ApplyToGig(c *gin.Context) {
	gigID, ok := paramID(c, "id")
	if !ok {
		return
	}
	// The cover note is optional, so an empty body is fine.
	var input ApplyInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperr.KindValidation.String()})
		return
	}

	app, err := h.Marketplace.Apply(c.Request.Context(), currentUser(c).ID, gigID, input.CoverNote)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Application submitted",
		"application": app,
	})
}

// GetMyApplications is the handler for GET /v1/seeker/applications
func (h *Handlers) GetMyApplications(c *gin.Context) {
	apps, err := h.Marketplace.ListMyApplications(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

//
// --- Client Review ---
//

// GetGigApplications is the handler for GET /v1/client/gigs/:id/applications
func (h *Handlers) GetGigApplications(c *gin.Context) {
	gigID, ok := paramID(c, "id")
	if !ok {
		return
	}
	apps, err := h.Marketplace.ListApplicationsForGig(c.Request.Context(), currentUser(c).ID, gigID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

// AcceptApplication is the handler for PATCH /v1/client/applications/:id/accept
// The contract for the pair is opened in the same request.
func (h *Handlers) AcceptApplication(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	app, ctr, err := h.Marketplace.Accept(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{
		"message":     "Application accepted",
		"application": app,
	}
	if ctr != nil {
		body["contract"] = ctr
		body["state"] = contract.StateOf(ctr)
	}
	c.JSON(http.StatusOK, body)
}

// DeclineApplication is the handler for PATCH /v1/client/applications/:id/decline
func (h *Handlers) DeclineApplication(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	app, err := h.Marketplace.Decline(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Application declined",
		"application": app,
	})
}
