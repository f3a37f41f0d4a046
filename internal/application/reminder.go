package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultSweepInterval = time.Minute
	reminderWindow       = time.Hour
)

// ReminderSweeper finds accepted sessions whose meeting time falls within the
// next hour and sends both participants a reminder exactly once. The
// reminder-sent marker on the session keeps repeated sweeps from re-sending.
type ReminderSweeper struct {
	sessions    SessionStore
	interval    time.Duration
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewReminderSweeper wires a sweeper ticking at the given interval.
func NewReminderSweeper(sessions SessionStore, interval time.Duration, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReminderSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReminderSweeper{
		sessions:    sessions,
		interval:    interval,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Run sweeps for due reminders until the context is canceled.
func (s *ReminderSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass. Each due session is updated with its reminder
// marker and the two reminder notifications in a single transaction, so a
// crash mid-sweep never duplicates nor drops a reminder.
func (s *ReminderSweeper) Sweep(ctx context.Context) {
	now := s.now()
	due, err := s.sessions.ListDueReminders(ctx, now, reminderWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list due reminders", "error", err)
		return
	}

	for _, session := range due {
		if ctx.Err() != nil {
			return
		}
		if err := s.remind(ctx, session, now); err != nil {
			s.logger.WarnContext(ctx, "failed to send session reminder",
				"session_id", session.ID, "error", err)
		}
	}
}

func (s *ReminderSweeper) remind(ctx context.Context, session Session, now time.Time) error {
	sentAt := now
	session.ReminderSentAt = &sentAt

	message := fmt.Sprintf("Reminder: your session on %s starts at %s.",
		session.Skill, session.EffectiveMeetingTime().Format(time.RFC1123))

	notifications := make([]Notification, 0, 2)
	for _, userID := range session.Participants() {
		notifications = append(notifications, Notification{
			ID:        s.idGenerator(),
			UserID:    userID,
			Message:   message,
			Type:      NotificationReminder,
			CreatedAt: now,
		})
	}

	_, err := s.sessions.UpdateSession(ctx, session, notifications)
	return err
}
