package sqlite

import (
	"context"

	"github.com/skillsetu/skillsetu/internal/persistence"
)

// ReportRepository implements persistence.ReportRepository using SQLite.
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a SQLite-backed report repository.
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// CreateReport stores a new moderation report.
func (r *ReportRepository) CreateReport(ctx context.Context, report persistence.Report) error {
	query := `
		INSERT INTO reports (id, reporter_id, target_user_id, session_id, reason, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.db.ExecContext(ctx, query,
		report.ID,
		report.ReporterID,
		report.TargetUserID,
		report.SessionID,
		report.Reason,
		report.Description,
		formatTime(report.CreatedAt),
	)
	if isUniqueViolation(err) {
		return persistence.ErrDuplicate
	}
	return err
}

// ListReports returns all reports, oldest first.
func (r *ReportRepository) ListReports(ctx context.Context) ([]persistence.Report, error) {
	query := `
		SELECT id, reporter_id, target_user_id, session_id, reason, description, created_at
		FROM reports
		ORDER BY created_at, id
	`
	rows, err := r.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []persistence.Report
	for rows.Next() {
		var (
			report    persistence.Report
			createdAt string
		)
		if err := rows.Scan(
			&report.ID,
			&report.ReporterID,
			&report.TargetUserID,
			&report.SessionID,
			&report.Reason,
			&report.Description,
			&createdAt,
		); err != nil {
			return nil, err
		}
		if report.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// DeleteReport removes a report, which is how resolution is recorded.
func (r *ReportRepository) DeleteReport(ctx context.Context, id string) error {
	result, err := r.db.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(result)
}
