// Package notifications owns notification records: the allowed-type guard,
// persistence through the repository, and the best-effort live push.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/repositories"
)

var ErrInvalidNotificationType = errors.New("invalid notification type")

// Pusher delivers a freshly stored notification to the recipient's live connections.
// It must not block and has nothing to report: an offline recipient is not an error.
type Pusher interface {
	PushNotification(n *models.Notification)
}

type Service struct {
	repo   repositories.NotificationRepository
	pusher Pusher
	logger *slog.Logger
}

func NewService(repo repositories.NotificationRepository, pusher Pusher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pusher: pusher, logger: logger.With("component", "notifications")}
}

// Create validates and stores a notification, then pushes it to the
// recipient if they are online.
func (s *Service) Create(ctx context.Context, in models.NotificationInput) (*models.Notification, error) {
	if !models.NotificationTypes[in.Type] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNotificationType, in.Type)
	}
	if in.UserID == 0 {
		return nil, errors.New("notification recipient is required")
	}

	n := &models.Notification{
		UserID:      in.UserID,
		ActorID:     in.ActorID,
		Type:        in.Type,
		Title:       in.Title,
		Message:     in.Message,
		RelatedID:   in.RelatedID,
		RelatedType: in.RelatedType,
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}

	s.push(n)
	return n, nil
}

// Notify is Create for callers whose own work must not fail because a
// notification could not be written. Errors are logged and dropped.
func (s *Service) Notify(ctx context.Context, in models.NotificationInput) {
	if _, err := s.Create(ctx, in); err != nil {
		s.logger.Warn("notification dropped",
			"recipient", in.UserID, "type", in.Type, "error", err)
	}
}

func (s *Service) push(n *models.Notification) {
	if s.pusher == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notification push panicked", "notification_id", n.ID, "panic", r)
		}
	}()
	s.pusher.PushNotification(n)
}

func (s *Service) List(ctx context.Context, userID uint, page, limit int) ([]models.Notification, int64, error) {
	return s.repo.GetByRecipientID(ctx, userID, page, limit)
}

func (s *Service) Grouped(ctx context.Context, userID uint) (today, yesterday, thisWeek, older []models.Notification, err error) {
	return s.repo.GetGrouped(ctx, userID)
}

func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, id, userID uint) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, id, userID uint) error {
	return s.repo.Delete(ctx, id, userID)
}

// DeleteForRelated removes notifications that deep-link to removed content.
// Best-effort: the content is already gone, so failures are only logged.
func (s *Service) DeleteForRelated(ctx context.Context, relatedType, relatedID string) {
	n, err := s.repo.DeleteByRelated(ctx, relatedType, relatedID)
	if err != nil {
		s.logger.Warn("notification cleanup failed",
			"related_type", relatedType, "related_id", relatedID, "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("notifications cleaned up",
			"related_type", relatedType, "related_id", relatedID, "count", n)
	}
}
