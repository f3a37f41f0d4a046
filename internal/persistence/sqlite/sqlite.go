// Package sqlite implements the persistence repositories on top of a SQLite
// database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the underlying database handle shared by all repositories.
type DB struct {
	db *sql.DB
}

// Open connects to the SQLite database identified by dsn.
func Open(dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: empty dsn")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	// modernc's driver serialises writes per connection; a single connection
	// avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	return &DB{db: db}, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Ping verifies the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	email           TEXT NOT NULL COLLATE NOCASE UNIQUE,
	password_hash   TEXT NOT NULL,
	role            TEXT NOT NULL DEFAULT 'user',
	blocked         INTEGER NOT NULL DEFAULT 0,
	skills_to_teach TEXT NOT NULL DEFAULT '[]',
	skills_to_learn TEXT NOT NULL DEFAULT '[]',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id                    TEXT PRIMARY KEY,
	requester_id          TEXT NOT NULL REFERENCES users(id),
	partner_id            TEXT NOT NULL REFERENCES users(id),
	session_at            TEXT NOT NULL,
	meeting_at            TEXT,
	status                TEXT NOT NULL DEFAULT 'pending',
	skill                 TEXT NOT NULL,
	rating_by_requester   INTEGER,
	feedback_by_requester TEXT NOT NULL DEFAULT '',
	rating_by_partner     INTEGER,
	feedback_by_partner   TEXT NOT NULL DEFAULT '',
	requester_feedback_in INTEGER NOT NULL DEFAULT 0,
	partner_feedback_in   INTEGER NOT NULL DEFAULT 0,
	closed                INTEGER NOT NULL DEFAULT 0,
	reminder_sent_at      TEXT,
	created_at            TEXT NOT NULL,
	updated_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	sender_id   TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	content     TEXT NOT NULL DEFAULT '',
	media_url   TEXT NOT NULL DEFAULT '',
	media_type  TEXT NOT NULL DEFAULT '',
	sent_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session_sent ON messages(session_id, sent_at);

CREATE TABLE IF NOT EXISTS notifications (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	message       TEXT NOT NULL,
	type          TEXT NOT NULL,
	is_read       INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	dispatched_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_outbox ON notifications(dispatched_at) WHERE dispatched_at IS NULL;

CREATE TABLE IF NOT EXISTS reports (
	id             TEXT PRIMARY KEY,
	reporter_id    TEXT NOT NULL,
	target_user_id TEXT NOT NULL,
	session_id     TEXT NOT NULL REFERENCES sessions(id),
	reason         TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);
`

// Migrate creates the schema when it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

// --- shared column helpers ---

// Timestamps are stored as UTC text with a fixed-width fractional part so
// lexicographic ordering in SQL matches chronological ordering down to
// nanosecond precision. RFC3339Nano is unsuitable here because it trims
// trailing zeros.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode string list: %w", err)
	}
	return string(raw), nil
}

func decodeStrings(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("sqlite: decode string list: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
