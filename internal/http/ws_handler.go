package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/skillsetu/skillsetu/internal/application"
)

// channelHub attaches websocket connections to session and notification
// channels and serves them until they close.
type channelHub interface {
	ServeSession(ctx context.Context, sessionID string, conn *websocket.Conn)
	ServeNotifications(ctx context.Context, userID string, conn *websocket.Conn)
}

type WSHandler struct {
	hub       channelHub
	sessions  application.SessionReader
	upgrader  websocket.Upgrader
	responder responder
	logger    *slog.Logger
}

func NewWSHandler(hub channelHub, sessions application.SessionReader, logger *slog.Logger) *WSHandler {
	base := defaultLogger(logger)
	return &WSHandler{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The token already authenticates the subscriber; the origin
			// header carries no additional trust.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *WSHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "WSHandler", operation, attrs...)
}

// Session subscribes the caller to a session's live message channel. Only the
// two participants and admins may attach.
func (h *WSHandler) Session(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.hub == nil || h.sessions == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingBearerToken)
		return
	}

	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok || sessionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		h.log(r.Context(), "Session", "session_id", sessionID).ErrorContext(r.Context(), "failed to load session for subscription", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !session.HasParticipant(principal.UserID) && !principal.IsAdmin {
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log(r.Context(), "Session", "session_id", sessionID).ErrorContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	h.log(r.Context(), "Session", "session_id", sessionID, "user_id", principal.UserID).InfoContext(r.Context(), "session channel attached")
	h.hub.ServeSession(r.Context(), sessionID, conn)
}

// Notifications subscribes the caller to their own notification channel.
func (h *WSHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.hub == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingBearerToken)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log(r.Context(), "Notifications", "user_id", principal.UserID).ErrorContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	h.log(r.Context(), "Notifications", "user_id", principal.UserID).InfoContext(r.Context(), "notification channel attached")
	h.hub.ServeNotifications(r.Context(), principal.UserID, conn)
}
