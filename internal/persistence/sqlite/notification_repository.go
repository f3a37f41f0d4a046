package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/skillsetu/skillsetu/internal/persistence"
)

// NotificationRepository implements persistence.NotificationRepository using
// SQLite. Rows double as the dispatch outbox: dispatched_at stays NULL until
// the live push succeeds.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a SQLite-backed notification repository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, message, type, is_read, created_at, dispatched_at`

const notificationInsertQuery = `
	INSERT INTO notifications (` + notificationColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

func notificationArgs(n persistence.Notification) []any {
	return []any{
		n.ID,
		n.UserID,
		n.Message,
		n.Type,
		n.Read,
		formatTime(n.CreatedAt),
		nullTime(n.DispatchedAt),
	}
}

// CreateNotification stores a new notification record.
func (r *NotificationRepository) CreateNotification(ctx context.Context, notification persistence.Notification) error {
	_, err := r.db.db.ExecContext(ctx, notificationInsertQuery, notificationArgs(notification)...)
	if isUniqueViolation(err) {
		return persistence.ErrDuplicate
	}
	return err
}

// GetNotification retrieves a notification by ID.
func (r *NotificationRepository) GetNotification(ctx context.Context, id string) (persistence.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`
	return scanNotification(r.db.db.QueryRowContext(ctx, query, id))
}

// ListNotifications returns a user's notifications newest first.
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID string) ([]persistence.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`
	return r.queryNotifications(ctx, query, userID)
}

// MarkRead flags a notification as read. Marking an already-read notification
// again is a no-op rather than an error.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	result, err := r.db.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(result)
}

// MarkAllRead flags every unread notification for a user as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	return err
}

// ListUndispatched returns pending outbox rows oldest first.
func (r *NotificationRepository) ListUndispatched(ctx context.Context, limit int) ([]persistence.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE dispatched_at IS NULL
		ORDER BY created_at, id
		LIMIT ?
	`
	return r.queryNotifications(ctx, query, limit)
}

// MarkDispatched records that a notification was pushed over the live channel.
func (r *NotificationRepository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.db.ExecContext(ctx,
		`UPDATE notifications SET dispatched_at = ? WHERE id = ? AND dispatched_at IS NULL`,
		formatTime(at), id,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result)
}

func (r *NotificationRepository) queryNotifications(ctx context.Context, query string, args ...any) ([]persistence.Notification, error) {
	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []persistence.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	return notifications, rows.Err()
}

func scanNotification(row rowScanner) (persistence.Notification, error) {
	var (
		notification persistence.Notification
		createdAt    string
		dispatchedAt sql.NullString
	)
	err := row.Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Message,
		&notification.Type,
		&notification.Read,
		&createdAt,
		&dispatchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Notification{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Notification{}, err
	}

	if notification.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Notification{}, err
	}
	if notification.DispatchedAt, err = timePtr(dispatchedAt); err != nil {
		return persistence.Notification{}, err
	}
	return notification, nil
}
