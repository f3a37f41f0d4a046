package application

import (
	"context"
	"errors"
	"testing"
)

type reportStoreStub struct {
	reports   []Report
	createErr error
}

func (s *reportStoreStub) CreateReport(ctx context.Context, report Report) (Report, error) {
	if s.createErr != nil {
		return Report{}, s.createErr
	}
	s.reports = append(s.reports, report)
	return report, nil
}

func (s *reportStoreStub) ListReports(ctx context.Context) ([]Report, error) {
	return s.reports, nil
}

func (s *reportStoreStub) DeleteReport(ctx context.Context, id string) error {
	for i, report := range s.reports {
		if report.ID == id {
			s.reports = append(s.reports[:i], s.reports[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func newReportServiceForTest(reports *reportStoreStub, sessions *sessionStoreStub) *ReportService {
	directory := newDirectoryStub(
		User{ID: "alice", Name: "Alice"},
		User{ID: "bob", Name: "Bob"},
	)
	return NewReportService(reports, sessions, directory, sequenceIDs("r"), fixedClock(testTime), nil)
}

func TestReportService_CreateReport(t *testing.T) {
	validInput := CreateReportInput{
		TargetUserID: "bob",
		SessionID:    "s1",
		Reason:       "no-show",
		Description:  "  Did not join the meeting.  ",
	}

	t.Run("validates inputs", func(t *testing.T) {
		svc := newReportServiceForTest(&reportStoreStub{}, acceptedSessionStore())

		_, err := svc.CreateReport(context.Background(), Principal{UserID: "alice"}, CreateReportInput{TargetUserID: "alice"})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"target_user_id", "session_id", "reason"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("the session must exist", func(t *testing.T) {
		svc := newReportServiceForTest(&reportStoreStub{}, newSessionStoreStub())

		_, err := svc.CreateReport(context.Background(), Principal{UserID: "alice"}, validInput)

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["session_id"]; !ok {
			t.Fatalf("expected session_id error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("outsiders cannot report a session", func(t *testing.T) {
		svc := newReportServiceForTest(&reportStoreStub{}, acceptedSessionStore())

		if _, err := svc.CreateReport(context.Background(), Principal{UserID: "mallory"}, validInput); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("the target must be the session partner", func(t *testing.T) {
		svc := newReportServiceForTest(&reportStoreStub{}, acceptedSessionStore())
		input := validInput
		input.TargetUserID = "carol"

		_, err := svc.CreateReport(context.Background(), Principal{UserID: "alice"}, input)

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["target_user_id"]; !ok {
			t.Fatalf("expected target_user_id error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("files the report", func(t *testing.T) {
		store := &reportStoreStub{}
		svc := newReportServiceForTest(store, acceptedSessionStore())

		report, err := svc.CreateReport(context.Background(), Principal{UserID: "alice"}, validInput)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.ReporterID != "alice" || report.TargetUserID != "bob" {
			t.Fatalf("unexpected report %+v", report)
		}
		if report.Description != "Did not join the meeting." {
			t.Fatalf("expected trimmed description, got %q", report.Description)
		}
		if len(store.reports) != 1 {
			t.Fatalf("expected 1 stored report, got %d", len(store.reports))
		}
	})
}
