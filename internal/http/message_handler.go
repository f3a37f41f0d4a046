package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/skillsetu/skillsetu/internal/application"
)

// maxMessageMemory bounds how much of a multipart submission is buffered in
// memory before spilling to temporary files.
const maxMessageMemory = 4 << 20

type messageRelay interface {
	SubmitMessage(ctx context.Context, principal application.Principal, input application.SubmitMessageInput) (application.MessageView, error)
	ListMessages(ctx context.Context, principal application.Principal, sessionID string) ([]application.MessageView, error)
}

type MessageHandler struct {
	relay     messageRelay
	responder responder
	logger    *slog.Logger
}

func NewMessageHandler(relay messageRelay, logger *slog.Logger) *MessageHandler {
	base := defaultLogger(logger)
	return &MessageHandler{relay: relay, responder: newResponder(base), logger: base}
}

func (h *MessageHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MessageHandler", operation, attrs...)
}

// Submit accepts a multipart form with a session id, optional text content,
// and an optional file attachment, and relays the message to the session.
func (h *MessageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.relay == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingBearerToken)
		return
	}

	if err := r.ParseMultipartForm(maxMessageMemory); err != nil {
		h.log(r.Context(), "Submit", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to parse multipart form", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input := application.SubmitMessageInput{
		SessionID: r.FormValue("session_id"),
		Content:   r.FormValue("content"),
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		input.Media = &application.MediaUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        file,
		}
	} else if err != http.ErrMissingFile {
		h.log(r.Context(), "Submit", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to read attachment", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	view, err := h.relay.SubmitMessage(r.Context(), principal, input)
	if err != nil {
		h.log(r.Context(), "Submit", "session_id", input.SessionID).ErrorContext(r.Context(), "failed to submit message", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Submit", "session_id", input.SessionID, "message_id", view.ID).InfoContext(r.Context(), "message submitted")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newMessageDTO(view))
}

// List returns a session's messages, oldest first.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.relay == nil {
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

	views, err := h.relay.ListMessages(r.Context(), principal, sessionID)
	if err != nil {
		h.log(r.Context(), "List", "session_id", sessionID).ErrorContext(r.Context(), "failed to list messages", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]messageDTO, 0, len(views))
	for _, view := range views {
		dtos = append(dtos, newMessageDTO(view))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

type messageDTO struct {
	ID           string `json:"id"`
	SessionID    string `json:"session_id"`
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name"`
	ReceiverID   string `json:"receiver_id"`
	ReceiverName string `json:"receiver_name"`
	Content      string `json:"content,omitempty"`
	MediaURL     string `json:"media_url,omitempty"`
	MediaType    string `json:"media_type,omitempty"`
	SentAt       string `json:"sent_at"`
}

func newMessageDTO(view application.MessageView) messageDTO {
	return messageDTO{
		ID:           view.ID,
		SessionID:    view.SessionID,
		SenderID:     view.SenderID,
		SenderName:   view.SenderName,
		ReceiverID:   view.ReceiverID,
		ReceiverName: view.ReceiverName,
		Content:      view.Content,
		MediaURL:     view.MediaURL,
		MediaType:    string(view.MediaType),
		SentAt:       view.SentAt.UTC().Format(time.RFC3339Nano),
	}
}
