package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/skillsetu/skillsetu/internal/application"
)

type reportService interface {
	CreateReport(ctx context.Context, principal application.Principal, input application.CreateReportInput) (application.Report, error)
}

type ReportHandler struct {
	service   reportService
	responder responder
	logger    *slog.Logger
}

func NewReportHandler(service reportService, logger *slog.Logger) *ReportHandler {
	base := defaultLogger(logger)
	return &ReportHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReportHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReportHandler", operation, attrs...)
}

// Create files a moderation report against a session partner.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingBearerToken)
		return
	}

	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode report request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	report, err := h.service.CreateReport(r.Context(), principal, application.CreateReportInput{
		TargetUserID: req.TargetUserID,
		SessionID:    req.SessionID,
		Reason:       req.Reason,
		Description:  req.Description,
	})
	if err != nil {
		h.log(r.Context(), "Create", "session_id", req.SessionID).ErrorContext(r.Context(), "failed to file report", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "report_id", report.ID).InfoContext(r.Context(), "report filed")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newReportDTO(report))
}

type createReportRequest struct {
	TargetUserID string `json:"target_user_id"`
	SessionID    string `json:"session_id"`
	Reason       string `json:"reason"`
	Description  string `json:"description"`
}

type reportDTO struct {
	ID           string `json:"id"`
	ReporterID   string `json:"reporter_id"`
	TargetUserID string `json:"target_user_id"`
	SessionID    string `json:"session_id"`
	Reason       string `json:"reason"`
	Description  string `json:"description,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func newReportDTO(report application.Report) reportDTO {
	return reportDTO{
		ID:           report.ID,
		ReporterID:   report.ReporterID,
		TargetUserID: report.TargetUserID,
		SessionID:    report.SessionID,
		Reason:       report.Reason,
		Description:  report.Description,
		CreatedAt:    report.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
