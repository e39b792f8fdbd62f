// Package notify keeps each user's notification feed and pushes new entries
// to connected clients over Redis pub/sub.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/01moynul/basegigs-golang/internal/apperr"
	"github.com/01moynul/basegigs-golang/internal/models"
	"github.com/01moynul/basegigs-golang/internal/store"
)

// DefaultFeedLimit caps how many notifications a feed request returns.
const DefaultFeedLimit = 50

// Publisher fans a stored notification out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

// Service persists notifications and publishes them when a Publisher is set.
type Service struct {
	store     store.Notifications
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(s store.Notifications, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, publisher: publisher, logger: logger, now: time.Now}
}

// Notify stores a feed entry for userID. A failed realtime publish is only
// logged: the entry is still in the feed.
func (s *Service) Notify(ctx context.Context, userID int64, message, link string) error {
	n := &models.Notification{
		UserID:    userID,
		Message:   message,
		CreatedAt: s.now(),
	}
	if link != "" {
		n.Link = &link
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return apperr.Storage(err, "add notification")
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, n); err != nil {
			s.logger.Warn("realtime publish failed", "user_id", userID, "notification_id", n.ID, "error", err)
		}
	}
	return nil
}

// List returns userID's feed, unread first.
func (s *Service) List(ctx context.Context, userID int64) ([]*models.Notification, error) {
	notifications, err := s.store.ListNotifications(ctx, userID, DefaultFeedLimit)
	if err != nil {
		return nil, apperr.Storage(err, "list notifications")
	}
	return notifications, nil
}

// MarkRead marks one of userID's notifications as read.
func (s *Service) MarkRead(ctx context.Context, id, userID int64) error {
	if err := s.store.MarkNotificationRead(ctx, id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Notification not found or you do not have permission to update it")
		}
		return apperr.Storage(err, "update notification")
	}
	return nil
}
