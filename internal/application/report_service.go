package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ReportStore captures the persistence interactions for moderation reports.
type ReportStore interface {
	CreateReport(ctx context.Context, report Report) (Report, error)
	ListReports(ctx context.Context) ([]Report, error)
	DeleteReport(ctx context.Context, id string) error
}

// ReportService lets participants file moderation reports against each other.
type ReportService struct {
	reports     ReportStore
	sessions    SessionReader
	directory   UserDirectory
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewReportService wires dependencies for the report service.
func NewReportService(reports ReportStore, sessions SessionReader, directory UserDirectory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReportService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReportService{
		reports:     reports,
		sessions:    sessions,
		directory:   directory,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateReport files a report. The reported user must be the caller's partner
// in the referenced session.
func (s *ReportService) CreateReport(ctx context.Context, principal Principal, input CreateReportInput) (Report, error) {
	if s == nil || s.reports == nil {
		return Report{}, fmt.Errorf("report service not configured")
	}

	vErr := &ValidationError{}
	targetID := strings.TrimSpace(input.TargetUserID)
	sessionID := strings.TrimSpace(input.SessionID)
	reason := strings.TrimSpace(input.Reason)
	if targetID == "" {
		vErr.add("target_user_id", "reported user is required")
	} else if targetID == principal.UserID {
		vErr.add("target_user_id", "cannot report yourself")
	}
	if sessionID == "" {
		vErr.add("session_id", "session is required")
	}
	if reason == "" {
		vErr.add("reason", "reason is required")
	}
	if vErr.HasErrors() {
		return Report{}, vErr
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			vErr.add("session_id", "session does not exist")
			return Report{}, vErr
		}
		return Report{}, err
	}
	if !session.HasParticipant(principal.UserID) {
		return Report{}, ErrUnauthorized
	}
	if !session.HasParticipant(targetID) {
		vErr.add("target_user_id", "reported user is not part of this session")
		return Report{}, vErr
	}

	report := Report{
		ID:           s.idGenerator(),
		ReporterID:   principal.UserID,
		TargetUserID: targetID,
		SessionID:    sessionID,
		Reason:       reason,
		Description:  strings.TrimSpace(input.Description),
		CreatedAt:    s.now(),
	}

	persisted, err := s.reports.CreateReport(ctx, report)
	if err != nil {
		return Report{}, err
	}

	serviceLogger(ctx, s.logger, "ReportService", "CreateReport",
		"report_id", persisted.ID, "session_id", sessionID).
		InfoContext(ctx, "report filed")
	return persisted, nil
}
