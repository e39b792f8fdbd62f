// Package marketplace implements gig posting and browsing and the
// application workflow that leads to a contract.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/contract"
	"github.com/01moynul/basegigs-golang/internal/models"
	"github.com/01moynul/basegigs-golang/internal/quota"
	"github.com/01moynul/basegigs-golang/internal/store"
)

const (
	DefaultGigLifetimeDays = 30
	MaxGigLifetimeDays     = 90

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store is the slice of persistence the marketplace needs.
type Store interface {
	store.Gigs
	store.Applications
}

// Service coordinates gigs, applications, the quota manager and the
// contract engine.
type Service struct {
	store     Store
	quota     *quota.Manager
	contracts *contract.Engine
	notifier  contract.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(s Store, q *quota.Manager, contracts *contract.Engine, notifier contract.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     s,
		quota:     q,
		contracts: contracts,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PostGigInput is what a client submits to post a gig.
type PostGigInput struct {
	Title         string     `json:"title" binding:"required"`
	Category      string     `json:"category" binding:"required"`
	Location      string     `json:"location"`
	Description   string     `json:"description" binding:"required"`
	Requirements  string     `json:"requirements"`
	PaymentAmount float64    `json:"paymentAmount" binding:"gte=0"`
	PaymentType   string     `json:"paymentType" binding:"omitempty,oneof=fixed hourly"`
	Skills        []string   `json:"skills"`
	Deadline      *time.Time `json:"deadline"`
	ExpiresInDays int        `json:"expiresInDays" binding:"omitempty,gte=1"`
}

func (in *PostGigInput) validate(now time.Time) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return apperr.Validation("Title is required")
	}
	if in.Description == "" {
		return apperr.Validation("Description is required")
	}
	if in.PaymentAmount < 0 {
		return apperr.Validation("Payment amount cannot be negative")
	}
	switch in.PaymentType {
	case "":
		in.PaymentType = models.PaymentFixed
	case models.PaymentFixed, models.PaymentHourly:
	default:
		return apperr.Validation("Payment type must be %q or %q", models.PaymentFixed, models.PaymentHourly)
	}
	if in.Deadline != nil && in.Deadline.Before(now) {
		return apperr.Validation("Deadline must be in the future")
	}
	if in.ExpiresInDays == 0 {
		in.ExpiresInDays = DefaultGigLifetimeDays
	}
	if in.ExpiresInDays < 1 || in.ExpiresInDays > MaxGigLifetimeDays {
		return apperr.Validation("A gig can stay listed between 1 and %d days", MaxGigLifetimeDays)
	}
	return nil
}

// PostGig creates a gig for clientID if their subscription allows it and
// charges one post to it afterwards.
func (s *Service) PostGig(ctx context.Context, clientID int64, in PostGigInput) (*models.Gig, error) {
	now := s.now()

	// 1. --- Validate ---
	if err := in.validate(now); err != nil {
		return nil, err
	}

	// 2. --- Gate on the subscription ---
	sub, err := s.quota.CanPost(ctx, clientID)
	if err != nil {
		return nil, err
	}

	// 3. --- Insert ---
	gig := &models.Gig{
		ClientID:      clientID,
		Title:         in.Title,
		Slug:          slug.Make(in.Title),
		Category:      strings.TrimSpace(in.Category),
		Location:      strings.TrimSpace(in.Location),
		Description:   in.Description,
		Requirements:  strings.TrimSpace(in.Requirements),
		PaymentAmount: in.PaymentAmount,
		PaymentType:   in.PaymentType,
		Skills:        normalizeSkills(in.Skills),
		Deadline:      in.Deadline,
		ExpiresAt:     now.AddDate(0, 0, in.ExpiresInDays),
		Status:        models.GigOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateGig(ctx, gig); err != nil {
		return nil, apperr.Storage(err, "create gig")
	}

	// 4. --- Charge the post ---
	// The gig exists now; a failed charge is logged, not rolled back.
	if err := s.quota.ConsumePost(ctx, sub); err != nil {
		s.logger.Error("gig posted but quota not charged", "gig_id", gig.ID, "client_id", clientID, "error", err)
	}

	s.logger.Info("gig posted", "gig_id", gig.ID, "client_id", clientID, "slug", gig.Slug)
	return gig, nil
}

// GetGig returns a gig that has not been deleted.
func (s *Service) GetGig(ctx context.Context, gigID int64) (*models.Gig, error) {
	gig, err := s.store.GetGig(ctx, gigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Gig %d does not exist", gigID)
		}
		return nil, apperr.Storage(err, "load gig")
	}
	if gig.DeletedAt != nil {
		return nil, apperr.NotFound("Gig %d does not exist", gigID)
	}
	return gig, nil
}

// BrowseGigs lists open and full gigs matching f.
func (s *Service) BrowseGigs(ctx context.Context, f models.GigFilter) ([]*models.Gig, error) {
	f.Query = strings.TrimSpace(f.Query)
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	gigs, err := s.store.ListGigs(ctx, f, s.now())
	if err != nil {
		return nil, apperr.Storage(err, "browse gigs")
	}
	return gigs, nil
}

// ListClientGigs lists every non-deleted gig clientID posted.
func (s *Service) ListClientGigs(ctx context.Context, clientID int64) ([]*models.Gig, error) {
	gigs, err := s.store.ListClientGigs(ctx, clientID)
	if err != nil {
		return nil, apperr.Storage(err, "list client gigs")
	}
	return gigs, nil
}

// CloseGig stops a client's gig from taking applications.
func (s *Service) CloseGig(ctx context.Context, clientID, gigID int64) error {
	if err := s.store.CloseGig(ctx, gigID, clientID, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Gig not found, not yours, or already closed")
		}
		return apperr.Storage(err, "close gig")
	}
	s.logger.Info("gig closed", "gig_id", gigID, "client_id", clientID)
	return nil
}

// DeleteGig soft deletes a client's gig. The row stays for the applications
// and contracts that reference it.
func (s *Service) DeleteGig(ctx context.Context, clientID, gigID int64) error {
	if err := s.store.SoftDeleteGig(ctx, gigID, clientID, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Gig not found or you do not have permission to delete it")
		}
		return apperr.Storage(err, "delete gig")
	}
	s.logger.Info("gig deleted", "gig_id", gigID, "client_id", clientID)
	return nil
}

// ExpireGigs closes gigs whose listing period has ended.
func (s *Service) ExpireGigs(ctx context.Context) (int64, error) {
	n, err := s.store.CloseExpiredGigs(ctx, s.now())
	if err != nil {
		return 0, apperr.Storage(err, "close expired gigs")
	}
	if n > 0 {
		s.logger.Info("expired gigs closed", "count", n)
	}
	return n, nil
}

// Apply files seekerID's application to gigID.
func (s *Service) Apply(ctx context.Context, seekerID, gigID int64, coverNote string) (*models.Application, error) {
	now := s.now()

	// 1. --- Check the gig ---
	gig, err := s.GetGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if gig.ClientID == seekerID {
		return nil, apperr.Validation("You cannot apply to your own gig")
	}
	if !gig.AcceptsApplications(now) {
		return nil, apperr.Conflict("This gig is no longer accepting applications")
	}

	// 2. --- Insert and count in one guarded step ---
	app := &models.Application{
		GigID:       gig.ID,
		ApplicantID: seekerID,
		ClientID:    gig.ClientID,
		Status:      models.ApplicationPending,
		CoverNote:   strings.TrimSpace(coverNote),
		AppliedAt:   now,
		UpdatedAt:   now,
		GigTitle:    gig.Title,
	}
	err = s.store.CreateApplication(ctx, app, models.GigApplicantCap, now)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicate):
		return nil, apperr.Conflict("You have already applied to this gig")
	case errors.Is(err, store.ErrConflict):
		return nil, apperr.Conflict("This gig is no longer accepting applications")
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound("Gig %d does not exist", gigID)
	default:
		return nil, apperr.Storage(err, "create application")
	}

	s.logger.Info("application filed", "application_id", app.ID, "gig_id", gig.ID, "applicant_id", seekerID)
	s.notify(ctx, gig.ClientID, fmt.Sprintf("New application for %q.", gig.Title), fmt.Sprintf("/gigs/%d/applications", gig.ID))
	return app, nil
}

// ListApplicationsForGig lists the applications on a gig clientID owns.
func (s *Service) ListApplicationsForGig(ctx context.Context, clientID, gigID int64) ([]*models.Application, error) {
	gig, err := s.GetGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if gig.ClientID != clientID {
		return nil, apperr.Unauthorized("You do not own this gig")
	}
	apps, err := s.store.ListApplicationsForGig(ctx, gigID)
	if err != nil {
		return nil, apperr.Storage(err, "list applications")
	}
	return apps, nil
}

// ListMyApplications lists seekerID's applications.
func (s *Service) ListMyApplications(ctx context.Context, seekerID int64) ([]*models.Application, error) {
	apps, err := s.store.ListApplicationsByApplicant(ctx, seekerID)
	if err != nil {
		return nil, apperr.Storage(err, "list applications")
	}
	return apps, nil
}

// Accept moves a pending application to accepted and opens its contract.
func (s *Service) Accept(ctx context.Context, clientID, applicationID int64) (*models.Application, *models.Contract, error) {
	app, err := s.decide(ctx, clientID, applicationID, models.ApplicationAccepted)
	if err != nil {
		return nil, nil, err
	}

	c, err := s.contracts.GetOrCreate(ctx, app.ID, clientID)
	if err != nil {
		// The acceptance stands; the contract is created on first visit instead.
		s.logger.Warn("contract not created on acceptance", "application_id", app.ID, "error", err)
		c = nil
	}

	s.notify(ctx, app.ApplicantID, fmt.Sprintf("Your application for %q was accepted.", app.GigTitle),
		fmt.Sprintf("/applications/%d/contract", app.ID))
	return app, c, nil
}

// Decline moves a pending application to declined.
func (s *Service) Decline(ctx context.Context, clientID, applicationID int64) (*models.Application, error) {
	app, err := s.decide(ctx, clientID, applicationID, models.ApplicationDeclined)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, app.ApplicantID, fmt.Sprintf("Your application for %q was declined.", app.GigTitle), "")
	return app, nil
}

func (s *Service) decide(ctx context.Context, clientID, applicationID int64, status models.ApplicationStatus) (*models.Application, error) {
	app, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.ClientID != clientID {
		return nil, apperr.Unauthorized("Only the gig owner can decide on this application")
	}
	if app.Status != models.ApplicationPending {
		return nil, apperr.Conflict("This application was already %s", app.Status)
	}

	now := s.now()
	if err := s.store.UpdateApplicationStatus(ctx, app.ID, status, now); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict("This application was already decided")
		}
		return nil, apperr.Storage(err, "update application")
	}
	app.Status = status
	app.UpdatedAt = now

	s.logger.Info("application decided", "application_id", app.ID, "status", status, "client_id", clientID)
	return app, nil
}

// GetApplication loads an application by id.
func (s *Service) GetApplication(ctx context.Context, applicationID int64) (*models.Application, error) {
	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Application %d does not exist", applicationID)
		}
		return nil, apperr.Storage(err, "load application")
	}
	return app, nil
}

func (s *Service) notify(ctx context.Context, userID int64, message, link string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, message, link); err != nil {
		s.logger.Warn("marketplace notification failed", "user_id", userID, "error", err)
	}
}

func normalizeSkills(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill == "" || seen[skill] {
			continue
		}
		seen[skill] = true
		out = append(out, skill)
	}
	return out
}
