package models

import "time"

// ContractChange is one approved amendment in a contract's history.
type ContractChange struct {
	Version     int       `json:"version"`
	Changes     string    `json:"changes"`
	RequestedBy int64     `json:"requestedBy"`
	ApprovedAt  time.Time `json:"approvedAt"`
}

// Contract is the model for the 'contracts' table. One row per application.
type Contract struct {
	ID            int64 `json:"id" db:"id"`
	ApplicationID int64 `json:"applicationId" db:"application_id"`
	ClientID      int64 `json:"clientId" db:"client_id"`
	SeekerID      int64 `json:"seekerId" db:"seeker_id"`

	ClientSignedAt  *time.Time `json:"clientSignedAt" db:"client_signed_at"`
	SeekerSignedAt  *time.Time `json:"seekerSignedAt" db:"seeker_signed_at"`
	FullyExecutedAt *time.Time `json:"fullyExecutedAt" db:"fully_executed_at"`

	Version int `json:"version" db:"version"`

	PendingChanges   *string    `json:"pendingChanges" db:"pending_changes"`
	PendingChangesBy *int64     `json:"pendingChangesBy" db:"pending_changes_by"`
	PendingChangesAt *time.Time `json:"pendingChangesAt" db:"pending_changes_at"`

	ChangeHistory []ContractChange `json:"changeHistory" db:"change_history"`

	// Revision is the optimistic concurrency token, bumped on every write.
	Revision int64 `json:"-" db:"revision"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
