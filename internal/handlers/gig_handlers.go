package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/marketplace"
	"github.com/01moynul/basegigs-golang/internal/models"
)

//
// --- Public Gig Board ---
//

// ListGigs is the handler for GET /v1/gigs
// Query params: q, category, location, paymentType, limit, offset.
func (h *Handlers) ListGigs(c *gin.Context) {
	filter := models.GigFilter{
		Query:       c.Query("q"),
		Category:    c.Query("category"),
		Location:    c.Query("location"),
		PaymentType: c.Query("paymentType"),
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(marketplace.DefaultPageSize)))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	gigs, err := h.Marketplace.BrowseGigs(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"gigs":   gigs,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetGig is the handler for GET /v1/gigs/:id
func (h *Handlers) GetGig(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	gig, err := h.Marketplace.GetGig(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gig": gig})
}

//
// --- Client Gig Management ---
//

// PostGig is the handler for POST /v1/client/gigs
func (h *Handlers) PostGig(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input marketplace.PostGigInput
	if !bindJSON(c, &input) {
		return
	}

	// 2. --- Quota check, insert, charge ---
	gig, err := h.Marketplace.PostGig(c.Request.Context(), currentUser(c).ID, input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 3. --- Send Success Response ---
	c.JSON(http.StatusCreated, gin.H{
		"message": "Gig posted successfully",
		"gig":     gig,
	})
}

// GetMyGigs is the handler for GET /v1/client/gigs
func (h *Handlers) GetMyGigs(c *gin.Context) {
	gigs, err := h.Marketplace.ListClientGigs(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gigs": gigs})
}

// CloseGig is the handler for PATCH /v1/client/gigs/:id/close
func (h *Handlers) CloseGig(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Marketplace.CloseGig(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Gig closed"})
}

// DeleteGig is the handler for DELETE /v1/client/gigs/:id
func (h *Handlers) DeleteGig(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Marketplace.DeleteGig(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Gig deleted"})
}
