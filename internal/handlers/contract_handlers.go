package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/basegigs-golang/internal/contract"
	"github.com/01moynul/basegigs-golang/internal/models"
)

//
// --- Contract Handlers ---
//

// contractBody adds the derived lifecycle state next to the contract.
func contractBody(c *models.Contract, message string) gin.H {
	body := gin.H{
		"contract": c,
		"state":    contract.StateOf(c),
	}
	if message != "" {
		body["message"] = message
	}
	return body
}

// GetMyContracts is the handler for GET /v1/contracts
func (h *Handlers) GetMyContracts(c *gin.Context) {
	contracts, err := h.Contracts.ListForUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

// GetApplicationContract is the handler for GET /v1/applications/:id/contract
// The first visit by either party creates version 1.
func (h *Handlers) GetApplicationContract(c *gin.Context) {
	appID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctr, err := h.Contracts.GetOrCreate(c.Request.Context(), appID, currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contractBody(ctr, ""))
}

// GetContract is the handler for GET /v1/contracts/:id
func (h *Handlers) GetContract(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctr, err := h.Contracts.Get(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contractBody(ctr, ""))
}

// SignContract is the handler for POST /v1/contracts/:id/sign
func (h *Handlers) SignContract(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctr, err := h.Contracts.Sign(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	message := "Signed. Waiting for the other party to sign"
	if ctr.FullyExecutedAt != nil {
		message = "Signed. The contract is now fully executed"
	}
	c.JSON(http.StatusOK, contractBody(ctr, message))
}

type ChangeRequestInput struct {
	Changes string `json:"changes" binding:"required,max=5000"`
}

// RequestContractChange is the handler for POST /v1/contracts/:id/changes
func (h *Handlers) RequestContractChange(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input ChangeRequestInput
	if !bindJSON(c, &input) {
		return
	}
	ctr, err := h.Contracts.RequestChange(c.Request.Context(), id, currentUser(c).ID, input.Changes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contractBody(ctr, "Change requested. Signing is paused until it is approved or rejected"))
}

// ApproveContractChange is the handler for POST /v1/contracts/:id/changes/approve
func (h *Handlers) ApproveContractChange(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctr, err := h.Contracts.ApproveChange(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contractBody(ctr, "Change approved. Both parties must sign the new version"))
}

// RejectContractChange is the handler for POST /v1/contracts/:id/changes/reject
func (h *Handlers) RejectContractChange(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctr, err := h.Contracts.RejectChange(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contractBody(ctr, "Change rejected"))
}
