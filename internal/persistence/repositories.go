package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for directory accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
	SetBlocked(ctx context.Context, id string, blocked bool) error
}

// SessionFilter narrows session queries.
type SessionFilter struct {
	// ParticipantID matches sessions where the user is on either side.
	ParticipantID string
	// AddressedTo matches sessions where the user is the invited partner.
	AddressedTo string
	// Statuses restricts results to the given status values when non-empty.
	Statuses []string
}

// SessionRepository stores skill-exchange bookings. Create and update accept
// derived notification rows that are written in the same transaction as the
// session itself, so a crash cannot separate a state change from its
// notifications. The rows land undispatched; the outbox dispatcher delivers
// them afterwards.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session, notifications []Notification) error
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, session Session, notifications []Notification) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	// ListDueReminders returns accepted sessions whose effective meeting time
	// falls inside (now, now+window] and which have not been reminded yet.
	ListDueReminders(ctx context.Context, now time.Time, window time.Duration) ([]Session, error)
}

// MessageRepository stores the append-only per-session chat history.
type MessageRepository interface {
	CreateMessage(ctx context.Context, message Message) error
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
}

// NotificationRepository stores per-user notification records and drives the
// dispatch outbox.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification Notification) error
	GetNotification(ctx context.Context, id string) (Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	ListUndispatched(ctx context.Context, limit int) ([]Notification, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
}

// ReportRepository stores moderation reports.
type ReportRepository interface {
	CreateReport(ctx context.Context, report Report) error
	ListReports(ctx context.Context) ([]Report, error)
	DeleteReport(ctx context.Context, id string) error
}
