package notification

import (
	"context"
	"fmt"

	"github.com/thrifthaven-api/internal/domain"
)

// Service exposes each user's notification ledger. All reads and writes are
// scoped to the calling user; touching another user's notification is a 403.
type Service interface {
	List(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, callerID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type notificationStore interface {
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	ListUnreadByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type service struct {
	repo notificationStore
}

func NewService(repo notificationStore) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	if unreadOnly {
		return s.repo.ListUnreadByUser(ctx, userID)
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) MarkRead(ctx context.Context, notificationID, callerID string) (*domain.Notification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != callerID {
		return nil, fmt.Errorf("not the notification recipient: %w", domain.ErrForbidden)
	}
	if n.IsRead {
		return n, nil
	}
	return s.repo.MarkRead(ctx, notificationID)
}

// MarkAllRead flips every unread notification for the user and returns how
// many were updated.
func (s *service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
