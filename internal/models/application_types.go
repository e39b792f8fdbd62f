package models

import "time"

// ApplicationStatus moves one way only: pending -> accepted | declined.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationDeclined ApplicationStatus = "declined"
)

// Application is the model for the 'applications' table.
// (gig_id, applicant_id) is a unique key.
type Application struct {
	ID          int64             `json:"id" db:"id"`
	GigID       int64             `json:"gigId" db:"gig_id"`
	ApplicantID int64             `json:"applicantId" db:"applicant_id"`
	ClientID    int64             `json:"clientId" db:"client_id"`
	Status      ApplicationStatus `json:"status" db:"status"`
	CoverNote   string            `json:"coverNote,omitempty" db:"cover_note"`
	AppliedAt   time.Time         `json:"appliedAt" db:"applied_at"`
	UpdatedAt   time.Time         `json:"updatedAt" db:"updated_at"`

	// Populated by joins for list views.
	GigTitle string `json:"gigTitle,omitempty" db:"-"`
}

// HasParty reports whether userID is the client or the applicant.
func (a *Application) HasParty(userID int64) bool {
	return a.ClientID == userID || a.ApplicantID == userID
}
