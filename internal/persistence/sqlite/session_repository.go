package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skillsetu/skillsetu/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a SQLite-backed session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, requester_id, partner_id, session_at, meeting_at, status, skill,
	rating_by_requester, feedback_by_requester, rating_by_partner, feedback_by_partner,
	requester_feedback_in, partner_feedback_in, closed, reminder_sent_at, created_at, updated_at`

const sessionInsertQuery = `
	INSERT INTO sessions (` + sessionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateSession stores a new booking together with any derived notification
// rows in a single transaction.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session, notifications []persistence.Notification) error {
	if len(notifications) == 0 {
		_, err := r.db.db.ExecContext(ctx, sessionInsertQuery, sessionArgs(session)...)
		if isUniqueViolation(err) {
			return persistence.ErrDuplicate
		}
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sessionInsertQuery, sessionArgs(session)...); err != nil {
			if isUniqueViolation(err) {
				return persistence.ErrDuplicate
			}
			return err
		}
		return insertNotifications(ctx, tx, notifications)
	})
}

// GetSession retrieves a session by ID.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	return scanSession(r.db.db.QueryRowContext(ctx, query, id))
}

// UpdateSession rewrites the mutable attributes of an existing session and
// writes any derived notification rows in the same transaction. The
// notification rows land with a NULL dispatched_at so the outbox dispatcher
// picks them up afterwards.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session, notifications []persistence.Notification) error {
	if len(notifications) == 0 {
		result, err := r.db.db.ExecContext(ctx, sessionUpdateQuery, sessionUpdateArgs(session)...)
		if err != nil {
			return err
		}
		return requireRowAffected(result)
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, sessionUpdateQuery, sessionUpdateArgs(session)...)
		if err != nil {
			return err
		}
		if err := requireRowAffected(result); err != nil {
			return err
		}
		return insertNotifications(ctx, tx, notifications)
	})
}

func (r *SessionRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit transaction: %w", err)
	}
	return nil
}

func insertNotifications(ctx context.Context, tx *sql.Tx, notifications []persistence.Notification) error {
	for _, notification := range notifications {
		if _, err := tx.ExecContext(ctx, notificationInsertQuery, notificationArgs(notification)...); err != nil {
			return err
		}
	}
	return nil
}

// ListSessions returns sessions matching the filter ordered by creation time.
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ParticipantID != "" {
		conditions = append(conditions, "(requester_id = ? OR partner_id = ?)")
		args = append(args, filter.ParticipantID, filter.ParticipantID)
	}
	if filter.AddressedTo != "" {
		conditions = append(conditions, "partner_id = ?")
		args = append(args, filter.AddressedTo)
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		conditions = append(conditions, "status IN ("+placeholders+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []persistence.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ListDueReminders returns accepted sessions whose effective meeting time is
// inside (now, now+window] and which have not been reminded yet. The meeting
// time takes precedence over the originally proposed session time.
func (r *SessionRepository) ListDueReminders(ctx context.Context, now time.Time, window time.Duration) ([]persistence.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'accepted'
		  AND reminder_sent_at IS NULL
		  AND COALESCE(meeting_at, session_at) > ?
		  AND COALESCE(meeting_at, session_at) <= ?
		ORDER BY COALESCE(meeting_at, session_at), id
	`
	rows, err := r.db.db.QueryContext(ctx, query, formatTime(now), formatTime(now.Add(window)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []persistence.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

const sessionUpdateQuery = `
	UPDATE sessions
	SET session_at = ?, meeting_at = ?, status = ?, skill = ?,
	    rating_by_requester = ?, feedback_by_requester = ?,
	    rating_by_partner = ?, feedback_by_partner = ?,
	    requester_feedback_in = ?, partner_feedback_in = ?,
	    closed = ?, reminder_sent_at = ?, updated_at = ?
	WHERE id = ?
`

func sessionArgs(s persistence.Session) []any {
	return []any{
		s.ID,
		s.RequesterID,
		s.PartnerID,
		formatTime(s.SessionAt),
		nullTime(s.MeetingAt),
		s.Status,
		s.Skill,
		nullInt(s.RatingByRequester),
		s.FeedbackByRequester,
		nullInt(s.RatingByPartner),
		s.FeedbackByPartner,
		s.RequesterFeedbackIn,
		s.PartnerFeedbackIn,
		s.Closed,
		nullTime(s.ReminderSentAt),
		formatTime(s.CreatedAt),
		formatTime(s.UpdatedAt),
	}
}

func sessionUpdateArgs(s persistence.Session) []any {
	return []any{
		formatTime(s.SessionAt),
		nullTime(s.MeetingAt),
		s.Status,
		s.Skill,
		nullInt(s.RatingByRequester),
		s.FeedbackByRequester,
		nullInt(s.RatingByPartner),
		s.FeedbackByPartner,
		s.RequesterFeedbackIn,
		s.PartnerFeedbackIn,
		s.Closed,
		nullTime(s.ReminderSentAt),
		formatTime(s.UpdatedAt),
		s.ID,
	}
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session              persistence.Session
		sessionAt            string
		meetingAt            sql.NullString
		ratingByRequester    sql.NullInt64
		ratingByPartner      sql.NullInt64
		reminderSentAt       sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&session.ID,
		&session.RequesterID,
		&session.PartnerID,
		&sessionAt,
		&meetingAt,
		&session.Status,
		&session.Skill,
		&ratingByRequester,
		&session.FeedbackByRequester,
		&ratingByPartner,
		&session.FeedbackByPartner,
		&session.RequesterFeedbackIn,
		&session.PartnerFeedbackIn,
		&session.Closed,
		&reminderSentAt,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Session{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Session{}, err
	}

	session.RatingByRequester = intPtr(ratingByRequester)
	session.RatingByPartner = intPtr(ratingByPartner)
	if session.SessionAt, err = parseTime(sessionAt); err != nil {
		return persistence.Session{}, err
	}
	if session.MeetingAt, err = timePtr(meetingAt); err != nil {
		return persistence.Session{}, err
	}
	if session.ReminderSentAt, err = timePtr(reminderSentAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}
