package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/skillsetu/skillsetu/internal/persistence"
	"github.com/skillsetu/skillsetu/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Users         persistence.UserRepository
	Sessions      persistence.SessionRepository
	Messages      persistence.MessageRepository
	Notifications persistence.NotificationRepository
	Reports       persistence.ReportRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness over a temporary file that is
// migrated automatically. A cleanup callback is registered with the provided
// testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "skillsetu.db")

	db, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		_ = db.Close()
		tb.Fatalf("failed to migrate database: %v", err)
	}

	harness := &SQLiteHarness{
		Users:         sqlite.NewUserRepository(db),
		Sessions:      sqlite.NewSessionRepository(db),
		Messages:      sqlite.NewMessageRepository(db),
		Notifications: sqlite.NewNotificationRepository(db),
		Reports:       sqlite.NewReportRepository(db),
		cleanup: func() {
			_ = db.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
