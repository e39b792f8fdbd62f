// Package messaging carries the conversation between a client and an
// applicant on one application.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/contract"
	"github.com/01moynul/basegigs-golang/internal/models"
	"github.com/01moynul/basegigs-golang/internal/store"
)

// MaxBodyLength caps a single message, in characters.
const MaxBodyLength = 4000

type Service struct {
	applications store.Applications
	messages     store.Messages
	notifier     contract.Notifier
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(applications store.Applications, messages store.Messages, notifier contract.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		applications: applications,
		messages:     messages,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Send posts body to the application thread and tells the other party.
func (s *Service) Send(ctx context.Context, senderID, applicationID int64, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validation("Message body cannot be empty")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return nil, apperr.Validation("Messages are limited to %d characters", MaxBodyLength)
	}

	app, err := s.authorize(ctx, senderID, applicationID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ApplicationID: app.ID,
		SenderID:      senderID,
		Body:          body,
		CreatedAt:     s.now(),
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, apperr.Storage(err, "create message")
	}

	recipient := app.ClientID
	if senderID == app.ClientID {
		recipient = app.ApplicantID
	}
	if s.notifier != nil {
		text := fmt.Sprintf("New message about %q.", app.GigTitle)
		if err := s.notifier.Notify(ctx, recipient, text, fmt.Sprintf("/applications/%d/messages", app.ID)); err != nil {
			s.logger.Warn("message notification failed", "user_id", recipient, "error", err)
		}
	}
	return msg, nil
}

// List returns the thread oldest first.
func (s *Service) List(ctx context.Context, callerID, applicationID int64) ([]*models.Message, error) {
	if _, err := s.authorize(ctx, callerID, applicationID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListMessages(ctx, applicationID)
	if err != nil {
		return nil, apperr.Storage(err, "list messages")
	}
	return msgs, nil
}

func (s *Service) authorize(ctx context.Context, userID, applicationID int64) (*models.Application, error) {
	app, err := s.applications.GetApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Application %d does not exist", applicationID)
		}
		return nil, apperr.Storage(err, "load application")
	}
	if !app.HasParty(userID) {
		return nil, apperr.Unauthorized("You are not part of this conversation")
	}
	return app, nil
}
