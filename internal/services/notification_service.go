package services

import (
	"context"
	"log"

	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

type notificationStore interface {
	Create(ctx context.Context, userID int64, notificationType, title, message string) (*models.Notification, error)
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, notificationID, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) error
}

// notifier is what state-changing services see: emission only, no reads.
type notifier interface {
	Notify(ctx context.Context, userID int64, notificationType, title, message string)
}

type NotificationService struct {
	store notificationStore
}

func NewNotificationService(store notificationStore) *NotificationService {
	return &NotificationService{store: store}
}

// Notify records a notification row. Failures are logged and swallowed: a
// notification must never abort or roll back the state change it announces.
func (s *NotificationService) Notify(
	ctx context.Context,
	userID int64,
	notificationType string,
	title string,
	message string,
) {
	if _, err := s.store.Create(ctx, userID, notificationType, title, message); err != nil {
		log.Printf("create %s notification for user %d: %v", notificationType, userID, err)
	}
}

func (s *NotificationService) List(
	ctx context.Context,
	userID int64,
	limit int,
	offset int,
) ([]models.Notification, int, int, error) {
	notifications, total, err := s.store.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, 0, err
	}
	unread, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	return notifications, total, unread, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	return s.store.MarkRead(ctx, notificationID, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) error {
	return s.store.MarkAllRead(ctx, userID)
}
