// Package contract runs the service-agreement lifecycle for accepted
// applications: dual signature, versioned amendments, full execution.
//
// The transition functions in this file are pure: they validate and mutate
// a *models.Contract in memory. Engine persists the result.
package contract

import (
	"strings"
	"time"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/models"
)

// Role is the side of the contract a caller is on.
type Role int

const (
	RoleClient Role = iota + 1
	RoleSeeker
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleSeeker:
		return "seeker"
	}
	return "unknown"
}

// State is derived from the contract's fields, never stored.
type State string

const (
	StateDraft           State = "DRAFT"
	StatePartiallySigned State = "PARTIALLY_SIGNED"
	StateFullyExecuted   State = "FULLY_EXECUTED"
	StateChangePending   State = "CHANGE_PENDING"
)

// Failures specific to the contract lifecycle.
var (
	ErrBlocked = apperr.New(apperr.KindBlocked,
		"This contract has a pending change request. It must be approved or rejected before anyone can sign")
	ErrAlreadySigned = apperr.New(apperr.KindAlreadySigned,
		"You have already signed this version of the contract")
	ErrNoPendingChange = apperr.New(apperr.KindConflict,
		"There is no pending change request on this contract")
	ErrOwnChange = apperr.New(apperr.KindAuthorization,
		"You cannot approve your own change request")
	ErrExecuted = apperr.New(apperr.KindConflict,
		"This contract is fully executed and can no longer be amended")
	ErrNotParty = apperr.New(apperr.KindAuthorization,
		"You are not a party to this contract")
)

// New builds a version 1 contract for an accepted application.
func New(app *models.Application, now time.Time) *models.Contract {
	return &models.Contract{
		ApplicationID: app.ID,
		ClientID:      app.ClientID,
		SeekerID:      app.ApplicantID,
		Version:       1,
		ChangeHistory: []models.ContractChange{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// StateOf derives the lifecycle state.
func StateOf(c *models.Contract) State {
	switch {
	case c.PendingChanges != nil:
		return StateChangePending
	case c.FullyExecutedAt != nil:
		return StateFullyExecuted
	case c.ClientSignedAt != nil || c.SeekerSignedAt != nil:
		return StatePartiallySigned
	}
	return StateDraft
}

// PartyRole resolves which side userID is on.
func PartyRole(c *models.Contract, userID int64) (Role, bool) {
	switch userID {
	case c.ClientID:
		return RoleClient, true
	case c.SeekerID:
		return RoleSeeker, true
	}
	return 0, false
}

// Counterparty returns the id of the other side.
func Counterparty(c *models.Contract, role Role) int64 {
	if role == RoleClient {
		return c.SeekerID
	}
	return c.ClientID
}

// Sign records role's signature on the current version. The contract is
// fully executed once the other side has already signed.
func Sign(c *models.Contract, role Role, now time.Time) error {
	if c.PendingChanges != nil {
		return ErrBlocked
	}

	own, other := &c.ClientSignedAt, c.SeekerSignedAt
	if role == RoleSeeker {
		own, other = &c.SeekerSignedAt, c.ClientSignedAt
	}
	if *own != nil {
		return ErrAlreadySigned
	}

	signedAt := now
	*own = &signedAt
	if other != nil {
		executedAt := now
		c.FullyExecutedAt = &executedAt
	}
	c.UpdatedAt = now
	return nil
}

// RequestChange records a proposed amendment. A newer request replaces any
// pending one. Signatures stay until the change is approved.
func RequestChange(c *models.Contract, requesterID int64, description string, now time.Time) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return apperr.Validation("Describe the change you are requesting")
	}
	if c.FullyExecutedAt != nil {
		return ErrExecuted
	}

	requestedBy := requesterID
	requestedAt := now
	c.PendingChanges = &description
	c.PendingChangesBy = &requestedBy
	c.PendingChangesAt = &requestedAt
	c.UpdatedAt = now
	return nil
}

// ApproveChange accepts the pending amendment: the version is bumped, the
// change is appended to history and every signature is cleared so both
// sides sign the new version from scratch.
func ApproveChange(c *models.Contract, approverID int64, now time.Time) error {
	if c.PendingChanges == nil {
		return ErrNoPendingChange
	}
	if c.PendingChangesBy != nil && *c.PendingChangesBy == approverID {
		return ErrOwnChange
	}

	var requestedBy int64
	if c.PendingChangesBy != nil {
		requestedBy = *c.PendingChangesBy
	}
	c.ChangeHistory = append(c.ChangeHistory, models.ContractChange{
		Version:     c.Version + 1,
		Changes:     *c.PendingChanges,
		RequestedBy: requestedBy,
		ApprovedAt:  now,
	})
	c.Version++

	clearPending(c)
	c.ClientSignedAt = nil
	c.SeekerSignedAt = nil
	c.FullyExecutedAt = nil
	c.UpdatedAt = now
	return nil
}

// RejectChange drops the pending amendment. Signatures, version and history
// are left as they were. Either party may reject; when the requester does
// it, it withdraws the request.
func RejectChange(c *models.Contract, now time.Time) error {
	if c.PendingChanges == nil {
		return ErrNoPendingChange
	}
	clearPending(c)
	c.UpdatedAt = now
	return nil
}

func clearPending(c *models.Contract) {
	c.PendingChanges = nil
	c.PendingChangesBy = nil
	c.PendingChangesAt = nil
}
