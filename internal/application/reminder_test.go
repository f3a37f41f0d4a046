package application

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestReminderSweeper_Sweep(t *testing.T) {
	dueSession := func() Session {
		meetingAt := testTime.Add(30 * time.Minute)
		return Session{
			ID:          "s1",
			RequesterID: "alice",
			PartnerID:   "bob",
			Skill:       "Go",
			Status:      SessionStatusAccepted,
			SessionAt:   testTime.Add(-24 * time.Hour),
			MeetingAt:   &meetingAt,
		}
	}

	t.Run("marks the session and queues one reminder per participant atomically", func(t *testing.T) {
		store := newSessionStoreStub()
		session := dueSession()
		store.sessions[session.ID] = session
		store.due = []Session{session}
		sweeper := NewReminderSweeper(store, time.Minute, sequenceIDs("n"), fixedClock(testTime), nil)

		sweeper.Sweep(context.Background())

		updated := store.sessions["s1"]
		if updated.ReminderSentAt == nil || !updated.ReminderSentAt.Equal(testTime) {
			t.Fatalf("expected reminder marker at %v, got %v", testTime, updated.ReminderSentAt)
		}
		if len(store.notifications) != 2 {
			t.Fatalf("expected 2 reminder notifications, got %d", len(store.notifications))
		}
		recipients := map[string]bool{}
		for _, notification := range store.notifications {
			if notification.Type != NotificationReminder {
				t.Fatalf("expected reminder type, got %q", notification.Type)
			}
			if !strings.Contains(notification.Message, "Go") {
				t.Fatalf("expected skill in message, got %q", notification.Message)
			}
			recipients[notification.UserID] = true
		}
		if !recipients["alice"] || !recipients["bob"] {
			t.Fatalf("expected both participants notified, got %v", recipients)
		}
	})

	t.Run("a second sweep does not resend", func(t *testing.T) {
		store := newSessionStoreStub()
		session := dueSession()
		store.sessions[session.ID] = session
		store.due = []Session{session}
		sweeper := NewReminderSweeper(store, time.Minute, sequenceIDs("n"), fixedClock(testTime), nil)

		sweeper.Sweep(context.Background())
		sweeper.Sweep(context.Background())

		if len(store.notifications) != 2 {
			t.Fatalf("expected 2 notifications after repeated sweeps, got %d", len(store.notifications))
		}
	})

	t.Run("a failed update leaves the session due", func(t *testing.T) {
		store := newSessionStoreStub()
		session := dueSession()
		store.due = []Session{session} // absent from the store: UpdateSession fails
		sweeper := NewReminderSweeper(store, time.Minute, sequenceIDs("n"), fixedClock(testTime), nil)

		sweeper.Sweep(context.Background())

		if len(store.notifications) != 0 {
			t.Fatalf("expected no notifications, got %d", len(store.notifications))
		}
		due, err := store.ListDueReminders(context.Background(), testTime, time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(due) != 1 {
			t.Fatalf("expected session still due, got %d", len(due))
		}
	})
}
