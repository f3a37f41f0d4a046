package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

type notificationStoreStub struct {
	byID       map[string]Notification
	order      []string
	dispatched map[string]time.Time

	createErr error
	markErr   error
}

func newNotificationStoreStub() *notificationStoreStub {
	return &notificationStoreStub{
		byID:       make(map[string]Notification),
		dispatched: make(map[string]time.Time),
	}
}

func (s *notificationStoreStub) CreateNotification(ctx context.Context, notification Notification) (Notification, error) {
	if s.createErr != nil {
		return Notification{}, s.createErr
	}
	s.byID[notification.ID] = notification
	s.order = append(s.order, notification.ID)
	return notification, nil
}

func (s *notificationStoreStub) GetNotification(ctx context.Context, id string) (Notification, error) {
	notification, ok := s.byID[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return notification, nil
}

func (s *notificationStoreStub) ListNotifications(ctx context.Context, userID string) ([]Notification, error) {
	var out []Notification
	for i := len(s.order) - 1; i >= 0; i-- {
		if notification := s.byID[s.order[i]]; notification.UserID == userID {
			out = append(out, notification)
		}
	}
	return out, nil
}

func (s *notificationStoreStub) MarkRead(ctx context.Context, id string) error {
	if s.markErr != nil {
		return s.markErr
	}
	notification, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	notification.Read = true
	s.byID[id] = notification
	return nil
}

func (s *notificationStoreStub) MarkAllRead(ctx context.Context, userID string) error {
	for id, notification := range s.byID {
		if notification.UserID == userID {
			notification.Read = true
			s.byID[id] = notification
		}
	}
	return nil
}

func (s *notificationStoreStub) ListUndispatched(ctx context.Context, limit int) ([]Notification, error) {
	var out []Notification
	for _, id := range s.order {
		if _, ok := s.dispatched[id]; ok {
			continue
		}
		out = append(out, s.byID[id])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *notificationStoreStub) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	s.dispatched[id] = at
	return nil
}

func newNotificationServiceForTest(store *notificationStoreStub, publisher *publisherRecorder) *NotificationService {
	directory := newDirectoryStub(
		User{ID: "alice", Name: "Alice"},
		User{ID: "bob", Name: "Bob"},
	)
	var pub Publisher
	if publisher != nil {
		pub = publisher
	}
	return NewNotificationService(store, directory, pub, sequenceIDs("n"), fixedClock(testTime), nil)
}

func TestNotificationService_Notify(t *testing.T) {
	t.Run("validates inputs", func(t *testing.T) {
		svc := newNotificationServiceForTest(newNotificationStoreStub(), nil)

		_, err := svc.Notify(context.Background(), "  ", "", NotificationType("bogus"))

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"user_id", "message", "type"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("requires an existing user", func(t *testing.T) {
		svc := newNotificationServiceForTest(newNotificationStoreStub(), nil)

		_, err := svc.Notify(context.Background(), "ghost", "hello", NotificationReminder)

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["user_id"]; !ok {
			t.Fatalf("expected user_id error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("persists then pushes and records dispatch", func(t *testing.T) {
		store := newNotificationStoreStub()
		publisher := &publisherRecorder{}
		svc := newNotificationServiceForTest(store, publisher)

		notification, err := svc.Notify(context.Background(), "alice", "You have a new session request.", NotificationSessionRequest)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, ok := store.byID[notification.ID]; !ok {
			t.Fatal("expected notification persisted")
		}
		if len(publisher.notifications) != 1 {
			t.Fatalf("expected 1 pushed event, got %d", len(publisher.notifications))
		}
		if _, ok := store.dispatched[notification.ID]; !ok {
			t.Fatal("expected dispatch recorded")
		}
	})

	t.Run("a missing publisher leaves the row for the dispatcher", func(t *testing.T) {
		store := newNotificationStoreStub()
		svc := newNotificationServiceForTest(store, nil)

		notification, err := svc.Notify(context.Background(), "alice", "hello", NotificationReminder)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := store.dispatched[notification.ID]; ok {
			t.Fatal("expected row to stay undispatched")
		}
	})
}

func TestNotificationService_ListNotifications(t *testing.T) {
	store := newNotificationStoreStub()
	svc := newNotificationServiceForTest(store, nil)
	if _, err := svc.Notify(context.Background(), "alice", "first", NotificationReminder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Notify(context.Background(), "alice", "second", NotificationReminder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Notify(context.Background(), "bob", "other", NotificationReminder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("returns the caller's rows newest first", func(t *testing.T) {
		notifications, err := svc.ListNotifications(context.Background(), Principal{UserID: "alice"}, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(notifications) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(notifications))
		}
		if notifications[0].Message != "second" {
			t.Fatalf("expected newest first, got %q", notifications[0].Message)
		}
	})

	t.Run("non-admins cannot read other users", func(t *testing.T) {
		if _, err := svc.ListNotifications(context.Background(), Principal{UserID: "alice"}, "bob"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("admins may read any user", func(t *testing.T) {
		notifications, err := svc.ListNotifications(context.Background(), Principal{UserID: "root", IsAdmin: true}, "bob")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(notifications) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(notifications))
		}
	})
}

func TestNotificationService_MarkRead(t *testing.T) {
	store := newNotificationStoreStub()
	svc := newNotificationServiceForTest(store, nil)
	notification, err := svc.Notify(context.Background(), "alice", "hello", NotificationReminder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("owners mark their rows read, repeatably", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if err := svc.MarkRead(context.Background(), Principal{UserID: "alice"}, notification.ID); err != nil {
				t.Fatalf("pass %d: unexpected error: %v", i, err)
			}
		}
		if !store.byID[notification.ID].Read {
			t.Fatal("expected notification read")
		}
	})

	t.Run("others are rejected", func(t *testing.T) {
		if err := svc.MarkRead(context.Background(), Principal{UserID: "bob"}, notification.ID); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("missing rows yield not found", func(t *testing.T) {
		if err := svc.MarkRead(context.Background(), Principal{UserID: "alice"}, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	store := newNotificationStoreStub()
	svc := newNotificationServiceForTest(store, nil)
	for _, message := range []string{"one", "two", "three"} {
		if _, err := svc.Notify(context.Background(), "alice", message, NotificationReminder); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Applying twice leaves the same state as applying once.
	for i := 0; i < 2; i++ {
		if err := svc.MarkAllRead(context.Background(), Principal{UserID: "alice"}); err != nil {
			t.Fatalf("pass %d: unexpected error: %v", i, err)
		}
	}
	for id, notification := range store.byID {
		if !notification.Read {
			t.Fatalf("expected %s read", id)
		}
	}
}
