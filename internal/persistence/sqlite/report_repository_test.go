package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/skillsetu/skillsetu/internal/persistence"
	"github.com/skillsetu/skillsetu/internal/testfixtures"
)

func TestReportRepository(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	requester, partner := seedParticipants(t, harness)

	session := testfixtures.NewSession(requester.ID, partner.ID, testfixtures.WithSessionStatus("accepted"))
	if err := harness.Sessions.CreateSession(ctx, session, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	earlier := testfixtures.NewReport(requester.ID, partner.ID, session.ID)
	later := testfixtures.NewReport(partner.ID, requester.ID, session.ID)
	for _, report := range []persistence.Report{later, earlier} {
		if err := harness.Reports.CreateReport(ctx, report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	t.Run("lists oldest first", func(t *testing.T) {
		reports, err := harness.Reports.ListReports(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reports) != 2 {
			t.Fatalf("expected 2 reports, got %d", len(reports))
		}
		if reports[0].ID != earlier.ID || reports[1].ID != later.ID {
			t.Fatalf("unexpected order %s, %s", reports[0].ID, reports[1].ID)
		}
	})

	t.Run("duplicate IDs are rejected", func(t *testing.T) {
		if err := harness.Reports.CreateReport(ctx, earlier); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("resolution deletes the report", func(t *testing.T) {
		if err := harness.Reports.DeleteReport(ctx, earlier.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		reports, err := harness.Reports.ListReports(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reports) != 1 {
			t.Fatalf("expected 1 report, got %d", len(reports))
		}
		if err := harness.Reports.DeleteReport(ctx, earlier.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
