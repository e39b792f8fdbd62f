package models

import "time"

// GigStatus is the lifecycle state of a gig. Deletion is a state, not a
// missing row, because applications and contracts keep referencing it.
type GigStatus string

const (
	GigOpen    GigStatus = "open"
	GigFull    GigStatus = "full"
	GigClosed  GigStatus = "closed"
	GigDeleted GigStatus = "deleted"
)

// GigApplicantCap is the applicant count at which a gig flips to full.
const GigApplicantCap = 10

// Payment types accepted for a gig.
const (
	PaymentFixed  = "fixed"
	PaymentHourly = "hourly"
)

// Gig is the model for the 'gigs' table.
type Gig struct {
	ID            int64      `json:"id" db:"id"`
	ClientID      int64      `json:"clientId" db:"client_id"`
	Title         string     `json:"title" db:"title"`
	Slug          string     `json:"slug" db:"slug"`
	Category      string     `json:"category" db:"category"`
	Location      string     `json:"location" db:"location"`
	Description   string     `json:"description" db:"description"`
	Requirements  string     `json:"requirements" db:"requirements"`
	PaymentAmount float64    `json:"paymentAmount" db:"payment_amount"`
	PaymentType   string     `json:"paymentType" db:"payment_type"`
	Skills        []string   `json:"skills" db:"skills"`
	Deadline      *time.Time `json:"deadline,omitempty" db:"deadline"`
	ExpiresAt     time.Time  `json:"expiresAt" db:"expires_at"`

	Status         GigStatus  `json:"status" db:"status"`
	ApplicantCount int        `json:"applicantCount" db:"applicant_count"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// AcceptsApplications reports whether new applications may be filed.
func (g *Gig) AcceptsApplications(now time.Time) bool {
	return g.Status == GigOpen && g.DeletedAt == nil && !g.ExpiresAt.Before(now)
}

// GigFilter narrows a gig browse query. Zero values mean "any".
type GigFilter struct {
	Query       string
	Category    string
	Location    string
	PaymentType string
	ClientID    int64
	Limit       int
	Offset      int
}
