package sqlite

import (
	"context"

	"github.com/skillsetu/skillsetu/internal/persistence"
)

// MessageRepository implements persistence.MessageRepository using SQLite.
// Messages are append-only; there is deliberately no update or delete path.
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a SQLite-backed message repository.
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// CreateMessage appends one message to a session's history.
func (r *MessageRepository) CreateMessage(ctx context.Context, message persistence.Message) error {
	query := `
		INSERT INTO messages (id, session_id, sender_id, receiver_id, content, media_url, media_type, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.db.ExecContext(ctx, query,
		message.ID,
		message.SessionID,
		message.SenderID,
		message.ReceiverID,
		message.Content,
		message.MediaURL,
		message.MediaType,
		formatTime(message.SentAt),
	)
	if isUniqueViolation(err) {
		return persistence.ErrDuplicate
	}
	return err
}

// ListMessages returns a session's messages oldest first. Ties on the sent
// timestamp break on the message ID so the ordering stays deterministic.
func (r *MessageRepository) ListMessages(ctx context.Context, sessionID string) ([]persistence.Message, error) {
	query := `
		SELECT id, session_id, sender_id, receiver_id, content, media_url, media_type, sent_at
		FROM messages
		WHERE session_id = ?
		ORDER BY sent_at, id
	`
	rows, err := r.db.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []persistence.Message
	for rows.Next() {
		var (
			message persistence.Message
			sentAt  string
		)
		if err := rows.Scan(
			&message.ID,
			&message.SessionID,
			&message.SenderID,
			&message.ReceiverID,
			&message.Content,
			&message.MediaURL,
			&message.MediaType,
			&sentAt,
		); err != nil {
			return nil, err
		}
		if message.SentAt, err = parseTime(sentAt); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}
