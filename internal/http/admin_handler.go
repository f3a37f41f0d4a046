package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/skillsetu/skillsetu/internal/application"
)

type adminService interface {
	ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error)
	CreateUser(ctx context.Context, principal application.Principal, input application.CreateUserInput) (application.User, error)
	DeleteUser(ctx context.Context, principal application.Principal, userID string) error
	SetBlocked(ctx context.Context, principal application.Principal, userID string, blocked bool) error
	ListReports(ctx context.Context, principal application.Principal) ([]application.Report, error)
	ResolveReport(ctx context.Context, principal application.Principal, reportID string) error
}

// AdminHandler serves the moderation surface. Admin checks live in the
// application layer; the handler only shapes requests and responses.
type AdminHandler struct {
	service   adminService
	relay     messageRelay
	responder responder
	logger    *slog.Logger
}

func NewAdminHandler(service adminService, relay messageRelay, logger *slog.Logger) *AdminHandler {
	base := defaultLogger(logger)
	return &AdminHandler{service: service, relay: relay, responder: newResponder(base), logger: base}
}

func (h *AdminHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AdminHandler", operation, attrs...)
}

func (h *AdminHandler) principal(w http.ResponseWriter, r *http.Request) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingBearerToken)
	}
	return principal, ok
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	users, err := h.service.ListUsers(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "ListUsers").ErrorContext(r.Context(), "failed to list users", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]userDTO, 0, len(users))
	for _, user := range users {
		dtos = append(dtos, newUserDTO(user))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateUser", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode user request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.service.CreateUser(r.Context(), principal, application.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		h.log(r.Context(), "CreateUser").ErrorContext(r.Context(), "failed to create user", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "CreateUser", "user_id", user.ID).InfoContext(r.Context(), "account provisioned")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newUserDTO(user))
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	userID, ok := UserIDFromContext(r.Context())
	if !ok || userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	if err := h.service.DeleteUser(r.Context(), principal, userID); err != nil {
		h.log(r.Context(), "DeleteUser", "user_id", userID).ErrorContext(r.Context(), "failed to delete user", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "DeleteUser", "user_id", userID).InfoContext(r.Context(), "account deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AdminHandler) SetBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	userID, ok := UserIDFromContext(r.Context())
	if !ok || userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	if err := h.service.SetBlocked(r.Context(), principal, userID, blocked); err != nil {
		h.log(r.Context(), "SetBlocked", "user_id", userID).ErrorContext(r.Context(), "failed to change block state", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "SetBlocked", "user_id", userID).InfoContext(r.Context(), "account block state changed", "blocked", blocked)
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AdminHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	reports, err := h.service.ListReports(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "ListReports").ErrorContext(r.Context(), "failed to list reports", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]reportDTO, 0, len(reports))
	for _, report := range reports {
		dtos = append(dtos, newReportDTO(report))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

func (h *AdminHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	reportID, ok := ReportIDFromContext(r.Context())
	if !ok || reportID == "" {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, nil)
		return
	}

	if err := h.service.ResolveReport(r.Context(), principal, reportID); err != nil {
		h.log(r.Context(), "ResolveReport", "report_id", reportID).ErrorContext(r.Context(), "failed to resolve report", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "ResolveReport", "report_id", reportID).InfoContext(r.Context(), "report resolved")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// SessionMessages returns a session's full transcript for moderation review.
func (h *AdminHandler) SessionMessages(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.relay == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	if !principal.IsAdmin {
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthorized)
		return
	}

	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok || sessionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	views, err := h.relay.ListMessages(r.Context(), principal, sessionID)
	if err != nil {
		h.log(r.Context(), "SessionMessages", "session_id", sessionID).ErrorContext(r.Context(), "failed to load transcript", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]messageDTO, 0, len(views))
	for _, view := range views {
		dtos = append(dtos, newMessageDTO(view))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}
