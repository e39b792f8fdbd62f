// Package store is the persistence collaborator. Every guarded write is a
// single conditional statement so concurrent callers cannot lose updates.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/01moynul/basegigs-golang/internal/models"
)

// Sentinel errors for store operations.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
	ErrConflict  = errors.New("conflict")
)

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, u *models.User) error
	SetAdmin(ctx context.Context, id int64, admin bool) error
}

type Subscriptions interface {
	GetSubscription(ctx context.Context, clientID int64) (*models.Subscription, error)
	// UpsertSubscription inserts or fully replaces the client's row.
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	DeleteSubscription(ctx context.Context, clientID int64) error
	// DeleteStripeSubscription removes the client's row only while it is
	// still backed by stripeSubscriptionID. ErrNotFound otherwise.
	DeleteStripeSubscription(ctx context.Context, clientID int64, stripeSubscriptionID string) error
	// DecrementGigPosts takes one post from a finite, non-empty allowance.
	// It reports false when the guard did not match.
	DecrementGigPosts(ctx context.Context, clientID int64, now time.Time) (bool, error)
}

type Gigs interface {
	CreateGig(ctx context.Context, g *models.Gig) error
	GetGig(ctx context.Context, id int64) (*models.Gig, error)
	// ListGigs returns browsable gigs: open or full, not deleted, not expired.
	ListGigs(ctx context.Context, f models.GigFilter, now time.Time) ([]*models.Gig, error)
	ListClientGigs(ctx context.Context, clientID int64) ([]*models.Gig, error)
	// CloseGig moves an open or full gig owned by clientID to closed.
	CloseGig(ctx context.Context, id, clientID int64, now time.Time) error
	SoftDeleteGig(ctx context.Context, id, clientID int64, now time.Time) error
	CloseExpiredGigs(ctx context.Context, now time.Time) (int64, error)
}

type Applications interface {
	// CreateApplication inserts app and bumps the gig's applicant count in
	// one step. The gig flips to full when the count reaches capacity.
	// ErrConflict means the gig no longer accepts applications; ErrDuplicate
	// means the applicant already applied.
	CreateApplication(ctx context.Context, app *models.Application, capacity int, now time.Time) error
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	ListApplicationsForGig(ctx context.Context, gigID int64) ([]*models.Application, error)
	ListApplicationsByApplicant(ctx context.Context, applicantID int64) ([]*models.Application, error)
	// UpdateApplicationStatus moves a pending application to status.
	// ErrConflict means it was no longer pending.
	UpdateApplicationStatus(ctx context.Context, id int64, status models.ApplicationStatus, now time.Time) error
}

type Contracts interface {
	// CreateContract returns ErrDuplicate if the application already has one.
	CreateContract(ctx context.Context, c *models.Contract) error
	GetContract(ctx context.Context, id int64) (*models.Contract, error)
	GetContractByApplication(ctx context.Context, applicationID int64) (*models.Contract, error)
	// UpdateContract writes c if its Revision still matches the stored one
	// and bumps c.Revision. ErrConflict otherwise.
	UpdateContract(ctx context.Context, c *models.Contract) error
	ListContractsForUser(ctx context.Context, userID int64) ([]*models.Contract, error)
}

type Notifications interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID int64, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int64) error
}

type Messages interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, applicationID int64) ([]*models.Message, error)
}

type WebhookEvents interface {
	// RecordWebhookEvent claims an event id. ErrDuplicate means it was
	// already claimed.
	RecordWebhookEvent(ctx context.Context, eventID string, now time.Time) error
	// ForgetWebhookEvent releases a claim so a redelivery is applied again.
	ForgetWebhookEvent(ctx context.Context, eventID string) error
}

// Store is the full persistence surface.
type Store interface {
	Users
	Subscriptions
	Gigs
	Applications
	Contracts
	Notifications
	Messages
	WebhookEvents
	Close() error
}

var (
	_ Store = (*MySQL)(nil)
	_ Store = (*Memory)(nil)
)
