package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/skillsetu/skillsetu/internal/application"
)

type sessionService interface {
	RequestSession(ctx context.Context, principal application.Principal, input application.RequestSessionInput) (application.SessionView, error)
	AcceptSession(ctx context.Context, principal application.Principal, sessionID string) (application.SessionView, error)
	ScheduleMeeting(ctx context.Context, principal application.Principal, sessionID string, meetingAt time.Time) (application.SessionView, error)
	CloseSession(ctx context.Context, principal application.Principal, input application.CloseSessionInput) (application.SessionView, error)
	ListSessions(ctx context.Context, principal application.Principal, status string) ([]application.SessionView, error)
	AverageRating(ctx context.Context, userID string) (float64, int, error)
}

type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

func (h *SessionHandler) principal(w http.ResponseWriter, r *http.Request) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingBearerToken)
	}
	return principal, ok
}

// List returns the caller's sessions for the requested status preset.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	views, err := h.service.ListSessions(r.Context(), principal, status)
	if err != nil {
		h.log(r.Context(), "List", "status", status).ErrorContext(r.Context(), "failed to list sessions", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]sessionDTO, 0, len(views))
	for _, view := range views {
		dtos = append(dtos, newSessionDTO(view))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

// Request creates a pending session addressed to the partner.
func (h *SessionHandler) Request(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req requestSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Request", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode session request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	sessionAt, vErr := parseTimestamp("session_at", req.SessionAt)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	view, err := h.service.RequestSession(r.Context(), principal, application.RequestSessionInput{
		PartnerID: req.PartnerID,
		SessionAt: sessionAt,
		Skill:     req.Skill,
	})
	if err != nil {
		h.log(r.Context(), "Request", "partner_id", req.PartnerID).ErrorContext(r.Context(), "failed to request session", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Request", "session_id", view.ID).InfoContext(r.Context(), "session requested")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newSessionDTO(view))
}

// Accept moves a pending session to accepted.
func (h *SessionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req sessionIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Accept", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode accept request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	view, err := h.service.AcceptSession(r.Context(), principal, req.SessionID)
	if err != nil {
		h.log(r.Context(), "Accept", "session_id", req.SessionID).ErrorContext(r.Context(), "failed to accept session", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Accept", "session_id", view.ID).InfoContext(r.Context(), "session accepted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newSessionDTO(view))
}

// Schedule sets the agreed meeting time on an accepted session.
func (h *SessionHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req scheduleMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Schedule", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode schedule request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	meetingAt, vErr := parseTimestamp("meeting_at", req.MeetingAt)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	view, err := h.service.ScheduleMeeting(r.Context(), principal, req.SessionID, meetingAt)
	if err != nil {
		h.log(r.Context(), "Schedule", "session_id", req.SessionID).ErrorContext(r.Context(), "failed to schedule meeting", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Schedule", "session_id", view.ID).InfoContext(r.Context(), "meeting scheduled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newSessionDTO(view))
}

// Close marks a session completed or canceled with the caller's rating.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req closeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Close", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode close request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	view, err := h.service.CloseSession(r.Context(), principal, application.CloseSessionInput{
		SessionID: req.SessionID,
		Status:    application.SessionStatus(req.Status),
		Rating:    req.Rating,
		Feedback:  req.Feedback,
	})
	if err != nil {
		h.log(r.Context(), "Close", "session_id", req.SessionID).ErrorContext(r.Context(), "failed to close session", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Close", "session_id", view.ID).InfoContext(r.Context(), "session closed", "status", req.Status)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newSessionDTO(view))
}

// Ratings returns the average rating the user has received.
func (h *SessionHandler) Ratings(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID, ok := UserIDFromContext(r.Context())
	if !ok || userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	average, count, err := h.service.AverageRating(r.Context(), userID)
	if err != nil {
		h.log(r.Context(), "Ratings", "user_id", userID).ErrorContext(r.Context(), "failed to compute average rating", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, ratingResponse{
		UserID:        userID,
		AverageRating: average,
		RatedSessions: count,
	})
}

type requestSessionRequest struct {
	PartnerID string `json:"partner_id"`
	SessionAt string `json:"session_at"`
	Skill     string `json:"skill"`
}

type sessionIDRequest struct {
	SessionID string `json:"session_id"`
}

type scheduleMeetingRequest struct {
	SessionID string `json:"session_id"`
	MeetingAt string `json:"meeting_at"`
}

type closeSessionRequest struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Rating    int    `json:"rating"`
	Feedback  string `json:"feedback"`
}

type ratingResponse struct {
	UserID        string  `json:"user_id"`
	AverageRating float64 `json:"average_rating"`
	RatedSessions int     `json:"rated_sessions"`
}

type sessionDTO struct {
	ID                  string `json:"id"`
	RequesterID         string `json:"requester_id"`
	RequesterName       string `json:"requester_name"`
	PartnerID           string `json:"partner_id"`
	PartnerName         string `json:"partner_name"`
	SessionAt           string `json:"session_at"`
	MeetingAt           string `json:"meeting_at,omitempty"`
	Status              string `json:"status"`
	Skill               string `json:"skill"`
	RatingByRequester   *int   `json:"rating_by_requester,omitempty"`
	FeedbackByRequester string `json:"feedback_by_requester,omitempty"`
	RatingByPartner     *int   `json:"rating_by_partner,omitempty"`
	FeedbackByPartner   string `json:"feedback_by_partner,omitempty"`
	Closed              bool   `json:"closed"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

func newSessionDTO(view application.SessionView) sessionDTO {
	dto := sessionDTO{
		ID:                  view.ID,
		RequesterID:         view.RequesterID,
		RequesterName:       view.RequesterName,
		PartnerID:           view.PartnerID,
		PartnerName:         view.PartnerName,
		SessionAt:           view.SessionAt.UTC().Format(time.RFC3339Nano),
		Status:              string(view.Status),
		Skill:               view.Skill,
		RatingByRequester:   view.RatingByRequester,
		FeedbackByRequester: view.FeedbackByRequester,
		RatingByPartner:     view.RatingByPartner,
		FeedbackByPartner:   view.FeedbackByPartner,
		Closed:              view.Closed,
		CreatedAt:           view.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:           view.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if view.MeetingAt != nil {
		dto.MeetingAt = view.MeetingAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

// parseTimestamp converts an RFC 3339 request field into a time, reporting a
// field level validation error on failure.
func parseTimestamp(field, value string) (time.Time, *application.ValidationError) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		vErr := &application.ValidationError{FieldErrors: map[string]string{
			field: "must be an RFC 3339 timestamp",
		}}
		return time.Time{}, vErr
	}
	return parsed, nil
}
