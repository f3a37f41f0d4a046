package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sessionStoreStub struct {
	sessions map[string]Session

	createErr error
	updateErr error
	listErr   error

	// notifications records the outbox rows handed to each write.
	notifications []Notification

	due []Session
}

func newSessionStoreStub() *sessionStoreStub {
	return &sessionStoreStub{sessions: make(map[string]Session)}
}

func (s *sessionStoreStub) CreateSession(ctx context.Context, session Session, notifications []Notification) (Session, error) {
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.sessions[session.ID] = session
	s.notifications = append(s.notifications, notifications...)
	return session, nil
}

func (s *sessionStoreStub) GetSession(ctx context.Context, id string) (Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (s *sessionStoreStub) UpdateSession(ctx context.Context, session Session, notifications []Notification) (Session, error) {
	if s.updateErr != nil {
		return Session{}, s.updateErr
	}
	if _, ok := s.sessions[session.ID]; !ok {
		return Session{}, ErrNotFound
	}
	s.sessions[session.ID] = session
	s.notifications = append(s.notifications, notifications...)
	return session, nil
}

func (s *sessionStoreStub) ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	matches := func(session Session) bool {
		if filter.ParticipantID != "" && !session.HasParticipant(filter.ParticipantID) {
			return false
		}
		if filter.AddressedTo != "" && session.PartnerID != filter.AddressedTo {
			return false
		}
		if len(filter.Statuses) > 0 {
			found := false
			for _, status := range filter.Statuses {
				if session.Status == status {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	var out []Session
	for _, session := range s.sessions {
		if matches(session) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *sessionStoreStub) ListDueReminders(ctx context.Context, now time.Time, window time.Duration) ([]Session, error) {
	var out []Session
	for _, session := range s.due {
		if updated, ok := s.sessions[session.ID]; ok {
			session = updated
		}
		if session.ReminderSentAt == nil {
			out = append(out, session)
		}
	}
	return out, nil
}

type directoryStub struct {
	users map[string]User
}

func newDirectoryStub(users ...User) *directoryStub {
	stub := &directoryStub{users: make(map[string]User)}
	for _, user := range users {
		stub.users[user.ID] = user
	}
	return stub
}

func (d *directoryStub) GetUser(ctx context.Context, id string) (User, error) {
	user, ok := d.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (d *directoryStub) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(d.users))
	for _, user := range d.users {
		out = append(out, user)
	}
	return out, nil
}

func (d *directoryStub) UpdateUser(ctx context.Context, user User) (User, error) {
	if _, ok := d.users[user.ID]; !ok {
		return User{}, ErrNotFound
	}
	d.users[user.ID] = user
	return user, nil
}

func (d *directoryStub) DeleteUser(ctx context.Context, id string) error {
	if _, ok := d.users[id]; !ok {
		return ErrNotFound
	}
	delete(d.users, id)
	return nil
}

func (d *directoryStub) SetBlocked(ctx context.Context, id string, blocked bool) error {
	user, ok := d.users[id]
	if !ok {
		return ErrNotFound
	}
	user.Blocked = blocked
	d.users[id] = user
	return nil
}

type nameResolverStub struct {
	names map[string]string
}

func (n *nameResolverStub) DisplayName(ctx context.Context, userID string) (string, error) {
	name, ok := n.names[userID]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceIDs(prefix string) func() string {
	counter := 0
	return func() string {
		counter++
		return prefix + "-" + string(rune('0'+counter))
	}
}

var testTime = time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

func newSessionServiceForTest(store *sessionStoreStub) *SessionService {
	directory := newDirectoryStub(
		User{ID: "alice", Name: "Alice"},
		User{ID: "bob", Name: "Bob"},
	)
	names := &nameResolverStub{names: map[string]string{"alice": "Alice", "bob": "Bob"}}
	return NewSessionService(store, directory, names, sequenceIDs("id"), fixedClock(testTime), nil)
}

func TestSessionService_RequestSession(t *testing.T) {
	t.Run("validates required attributes", func(t *testing.T) {
		svc := newSessionServiceForTest(newSessionStoreStub())

		_, err := svc.RequestSession(context.Background(), Principal{UserID: "alice"}, RequestSessionInput{})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"partner_id", "session_at", "skill"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s validation error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("rejects requesting yourself", func(t *testing.T) {
		svc := newSessionServiceForTest(newSessionStoreStub())

		_, err := svc.RequestSession(context.Background(), Principal{UserID: "alice"}, RequestSessionInput{
			PartnerID: "alice",
			SessionAt: testTime.Add(24 * time.Hour),
			Skill:     "Go",
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["partner_id"]; !ok {
			t.Fatalf("expected partner_id error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("rejects unknown partners", func(t *testing.T) {
		svc := newSessionServiceForTest(newSessionStoreStub())

		_, err := svc.RequestSession(context.Background(), Principal{UserID: "alice"}, RequestSessionInput{
			PartnerID: "ghost",
			SessionAt: testTime.Add(24 * time.Hour),
			Skill:     "Go",
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["partner_id"]; !ok {
			t.Fatalf("expected partner_id error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("creates a pending session and notifies the partner", func(t *testing.T) {
		store := newSessionStoreStub()
		svc := newSessionServiceForTest(store)

		view, err := svc.RequestSession(context.Background(), Principal{UserID: "alice"}, RequestSessionInput{
			PartnerID: "bob",
			SessionAt: testTime.Add(24 * time.Hour),
			Skill:     "Go",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if view.Status != SessionStatusPending {
			t.Fatalf("expected pending status, got %s", view.Status)
		}
		if view.RequesterName != "Alice" || view.PartnerName != "Bob" {
			t.Fatalf("unexpected names: %q / %q", view.RequesterName, view.PartnerName)
		}
		if len(store.notifications) != 1 {
			t.Fatalf("expected 1 outbox notification, got %d", len(store.notifications))
		}
		notification := store.notifications[0]
		if notification.UserID != "bob" || notification.Type != NotificationSessionRequest {
			t.Fatalf("unexpected notification: %+v", notification)
		}
	})
}

func TestSessionService_AcceptSession(t *testing.T) {
	newPending := func() (*sessionStoreStub, Session) {
		store := newSessionStoreStub()
		session := Session{
			ID:          "s1",
			RequesterID: "alice",
			PartnerID:   "bob",
			SessionAt:   testTime.Add(24 * time.Hour),
			Status:      SessionStatusPending,
			Skill:       "Go",
		}
		store.sessions[session.ID] = session
		return store, session
	}

	t.Run("only the invited partner may accept", func(t *testing.T) {
		store, session := newPending()
		svc := newSessionServiceForTest(store)

		if _, err := svc.AcceptSession(context.Background(), Principal{UserID: "alice"}, session.ID); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("accepts a pending session", func(t *testing.T) {
		store, session := newPending()
		svc := newSessionServiceForTest(store)

		view, err := svc.AcceptSession(context.Background(), Principal{UserID: "bob"}, session.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if view.Status != SessionStatusAccepted {
			t.Fatalf("expected accepted, got %s", view.Status)
		}
	})

	t.Run("rejects non-pending sessions", func(t *testing.T) {
		store, session := newPending()
		session.Status = SessionStatusAccepted
		store.sessions[session.ID] = session
		svc := newSessionServiceForTest(store)

		_, err := svc.AcceptSession(context.Background(), Principal{UserID: "bob"}, session.ID)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("unknown session yields not found", func(t *testing.T) {
		svc := newSessionServiceForTest(newSessionStoreStub())

		if _, err := svc.AcceptSession(context.Background(), Principal{UserID: "bob"}, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSessionService_ScheduleMeeting(t *testing.T) {
	newAccepted := func() (*sessionStoreStub, Session) {
		store := newSessionStoreStub()
		session := Session{
			ID:          "s1",
			RequesterID: "alice",
			PartnerID:   "bob",
			SessionAt:   testTime.Add(24 * time.Hour),
			Status:      SessionStatusAccepted,
			Skill:       "Go",
		}
		store.sessions[session.ID] = session
		return store, session
	}

	t.Run("notifies both participants in the same write", func(t *testing.T) {
		store, session := newAccepted()
		svc := newSessionServiceForTest(store)
		meetingAt := testTime.Add(48 * time.Hour)

		view, err := svc.ScheduleMeeting(context.Background(), Principal{UserID: "alice"}, session.ID, meetingAt)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if view.MeetingAt == nil || !view.MeetingAt.Equal(meetingAt) {
			t.Fatalf("expected meeting time %v, got %v", meetingAt, view.MeetingAt)
		}
		if len(store.notifications) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(store.notifications))
		}
		recipients := map[string]bool{}
		for _, notification := range store.notifications {
			if notification.Type != NotificationNewMeetingScheduled {
				t.Fatalf("unexpected notification type: %s", notification.Type)
			}
			recipients[notification.UserID] = true
		}
		if !recipients["alice"] || !recipients["bob"] {
			t.Fatalf("expected both participants notified, got %v", recipients)
		}
	})

	t.Run("rejects non-participants", func(t *testing.T) {
		store, session := newAccepted()
		svc := newSessionServiceForTest(store)

		_, err := svc.ScheduleMeeting(context.Background(), Principal{UserID: "mallory"}, session.ID, testTime.Add(time.Hour))
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestSessionService_CloseSession(t *testing.T) {
	newAccepted := func() (*sessionStoreStub, Session) {
		store := newSessionStoreStub()
		session := Session{
			ID:          "s1",
			RequesterID: "alice",
			PartnerID:   "bob",
			SessionAt:   testTime.Add(24 * time.Hour),
			Status:      SessionStatusAccepted,
			Skill:       "Go",
		}
		store.sessions[session.ID] = session
		return store, session
	}

	t.Run("validates status and rating", func(t *testing.T) {
		svc := newSessionServiceForTest(newSessionStoreStub())

		_, err := svc.CloseSession(context.Background(), Principal{UserID: "alice"}, CloseSessionInput{
			SessionID: "s1",
			Status:    SessionStatusAccepted,
			Rating:    9,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["status"]; !ok {
			t.Fatalf("expected status error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["rating"]; !ok {
			t.Fatalf("expected rating error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("first completion asks only the other participant for feedback", func(t *testing.T) {
		store, session := newAccepted()
		svc := newSessionServiceForTest(store)

		view, err := svc.CloseSession(context.Background(), Principal{UserID: "alice"}, CloseSessionInput{
			SessionID: session.ID,
			Status:    SessionStatusCompleted,
			Rating:    5,
			Feedback:  "great exchange",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if view.Closed {
			t.Fatal("session must stay open until both sides fed back")
		}
		if view.RatingByRequester == nil || *view.RatingByRequester != 5 {
			t.Fatalf("expected requester rating 5, got %v", view.RatingByRequester)
		}
		if len(store.notifications) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(store.notifications))
		}
		notification := store.notifications[0]
		if notification.UserID != "bob" || notification.Type != NotificationFeedbackRequest {
			t.Fatalf("feedback request must go to the other participant only, got %+v", notification)
		}
	})

	t.Run("second completion closes the session without further prompts", func(t *testing.T) {
		store, session := newAccepted()
		session.Status = SessionStatusCompleted
		rating := 4
		session.RatingByRequester = &rating
		session.RequesterFeedbackIn = true
		store.sessions[session.ID] = session
		svc := newSessionServiceForTest(store)

		view, err := svc.CloseSession(context.Background(), Principal{UserID: "bob"}, CloseSessionInput{
			SessionID: session.ID,
			Status:    SessionStatusCompleted,
			Rating:    3,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !view.Closed {
			t.Fatal("expected session closed after both feedbacks")
		}
		if len(store.notifications) != 0 {
			t.Fatalf("expected no notifications, got %d", len(store.notifications))
		}
	})

	t.Run("cancellation closes immediately and notifies both sides", func(t *testing.T) {
		store, session := newAccepted()
		svc := newSessionServiceForTest(store)

		view, err := svc.CloseSession(context.Background(), Principal{UserID: "bob"}, CloseSessionInput{
			SessionID: session.ID,
			Status:    SessionStatusCanceled,
			Rating:    1,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !view.Closed {
			t.Fatal("expected canceled session to be closed")
		}
		if len(store.notifications) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(store.notifications))
		}
		for _, notification := range store.notifications {
			if notification.Type != NotificationSessionCanceled {
				t.Fatalf("unexpected notification type: %s", notification.Type)
			}
		}
	})

	t.Run("a closed session never reopens", func(t *testing.T) {
		store, session := newAccepted()
		session.Closed = true
		store.sessions[session.ID] = session
		svc := newSessionServiceForTest(store)

		_, err := svc.CloseSession(context.Background(), Principal{UserID: "alice"}, CloseSessionInput{
			SessionID: session.ID,
			Status:    SessionStatusCompleted,
			Rating:    5,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("rejects non-participants", func(t *testing.T) {
		store, session := newAccepted()
		svc := newSessionServiceForTest(store)

		_, err := svc.CloseSession(context.Background(), Principal{UserID: "mallory"}, CloseSessionInput{
			SessionID: session.ID,
			Status:    SessionStatusCompleted,
			Rating:    5,
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestSessionService_ListSessions(t *testing.T) {
	store := newSessionStoreStub()
	store.sessions["p1"] = Session{ID: "p1", RequesterID: "bob", PartnerID: "alice", Status: SessionStatusPending}
	store.sessions["p2"] = Session{ID: "p2", RequesterID: "alice", PartnerID: "bob", Status: SessionStatusPending}
	store.sessions["a1"] = Session{ID: "a1", RequesterID: "alice", PartnerID: "bob", Status: SessionStatusAccepted}
	store.sessions["c1"] = Session{ID: "c1", RequesterID: "bob", PartnerID: "alice", Status: SessionStatusCompleted}
	svc := newSessionServiceForTest(store)

	t.Run("pending lists only requests addressed to the caller", func(t *testing.T) {
		views, err := svc.ListSessions(context.Background(), Principal{UserID: "alice"}, "pending")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(views) != 1 || views[0].ID != "p1" {
			t.Fatalf("expected only p1, got %v", views)
		}
	})

	t.Run("active covers everything past pending", func(t *testing.T) {
		views, err := svc.ListSessions(context.Background(), Principal{UserID: "alice"}, "active")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(views) != 2 {
			t.Fatalf("expected 2 active sessions, got %d", len(views))
		}
	})

	t.Run("unknown presets are rejected", func(t *testing.T) {
		_, err := svc.ListSessions(context.Background(), Principal{UserID: "alice"}, "bogus")
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestSessionService_AverageRating(t *testing.T) {
	store := newSessionStoreStub()
	four, five := 4, 5
	store.sessions["s1"] = Session{ID: "s1", RequesterID: "alice", PartnerID: "bob", Status: SessionStatusCompleted, RatingByPartner: &four}
	store.sessions["s2"] = Session{ID: "s2", RequesterID: "bob", PartnerID: "alice", Status: SessionStatusCompleted, RatingByRequester: &five}
	store.sessions["s3"] = Session{ID: "s3", RequesterID: "alice", PartnerID: "bob", Status: SessionStatusAccepted}
	svc := newSessionServiceForTest(store)

	average, count, err := svc.AverageRating(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rated sessions, got %d", count)
	}
	if average != 4.5 {
		t.Fatalf("expected average 4.5, got %v", average)
	}
}
