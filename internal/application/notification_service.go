package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// NotificationStore captures the persistence interactions for notifications
// and the dispatch outbox.
type NotificationStore interface {
	CreateNotification(ctx context.Context, notification Notification) (Notification, error)
	GetNotification(ctx context.Context, id string) (Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	ListUndispatched(ctx context.Context, limit int) ([]Notification, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
}

// NotificationService creates, lists, and read-marks per-user notifications,
// pushing new ones over the notification live channel.
type NotificationService struct {
	notifications NotificationStore
	directory     UserDirectory
	publisher     Publisher
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewNotificationService wires dependencies for the notification service.
func NewNotificationService(notifications NotificationStore, directory UserDirectory, publisher Publisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *NotificationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &NotificationService{
		notifications: notifications,
		directory:     directory,
		publisher:     publisher,
		idGenerator:   idGenerator,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

func (s *NotificationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "NotificationService", operation, attrs...)
}

// Notify validates, persists, and pushes one notification. A failed push is
// logged and swallowed: the stored row is the durable truth and the outbox
// dispatcher retries delivery.
func (s *NotificationService) Notify(ctx context.Context, userID, message string, kind NotificationType) (Notification, error) {
	if s == nil || s.notifications == nil {
		return Notification{}, fmt.Errorf("notification service not configured")
	}

	vErr := &ValidationError{}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		vErr.add("user_id", "user is required")
	}
	if strings.TrimSpace(message) == "" {
		vErr.add("message", "message is required")
	}
	if !ValidNotificationType(kind) {
		vErr.add("type", "unknown notification type")
	}
	if vErr.HasErrors() {
		return Notification{}, vErr
	}

	if s.directory != nil {
		if _, err := s.directory.GetUser(ctx, userID); err != nil {
			if errors.Is(err, ErrNotFound) {
				vErr.add("user_id", "user does not exist")
				return Notification{}, vErr
			}
			return Notification{}, err
		}
	}

	notification := Notification{
		ID:        s.idGenerator(),
		UserID:    userID,
		Message:   strings.TrimSpace(message),
		Type:      kind,
		CreatedAt: s.now(),
	}

	persisted, err := s.notifications.CreateNotification(ctx, notification)
	if err != nil {
		return Notification{}, err
	}

	s.push(ctx, persisted)
	return persisted, nil
}

// ListNotifications returns the user's notifications newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, principal Principal, userID string) ([]Notification, error) {
	if s == nil || s.notifications == nil {
		return nil, fmt.Errorf("notification service not configured")
	}
	if userID == "" {
		userID = principal.UserID
	}
	if userID != principal.UserID && !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	return s.notifications.ListNotifications(ctx, userID)
}

// MarkRead flags one notification as read. Repeating the call is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, principal Principal, notificationID string) error {
	if s == nil || s.notifications == nil {
		return fmt.Errorf("notification service not configured")
	}

	notification, err := s.notifications.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.UserID != principal.UserID && !principal.IsAdmin {
		return ErrUnauthorized
	}
	return s.notifications.MarkRead(ctx, notificationID)
}

// MarkAllRead flags every unread notification of the caller as read.
// Applying it twice leaves the same result as applying it once.
func (s *NotificationService) MarkAllRead(ctx context.Context, principal Principal) error {
	if s == nil || s.notifications == nil {
		return fmt.Errorf("notification service not configured")
	}
	return s.notifications.MarkAllRead(ctx, principal.UserID)
}

// push emits the notification over the live channel and records successful
// dispatch. Emission is best-effort by contract.
func (s *NotificationService) push(ctx context.Context, notification Notification) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishNotification(NotificationEvent{
		UserID:  notification.UserID,
		Message: notification.Message,
		Type:    notification.Type,
	})
	if err := s.notifications.MarkDispatched(ctx, notification.ID, s.now()); err != nil && !errors.Is(err, ErrNotFound) {
		s.loggerWith(ctx, "push", "notification_id", notification.ID).
			WarnContext(ctx, "failed to record dispatch", "error", err)
	}
}
