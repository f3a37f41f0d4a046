package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// MessageStore captures the persistence interactions for chat messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, message Message) (Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
}

// MediaStore persists uploaded message media and returns a reference URL.
// Only the reference and classified kind end up in the message record.
type MediaStore interface {
	Save(ctx context.Context, upload MediaUpload) (url string, err error)
}

// SessionReader is the slice of the session store the relay needs.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (Session, error)
}

// MessageRelay persists chat messages scoped to one session and fans them out
// over the session live channel. Fan-out is fire-and-forget: persistence
// succeeds independently of whether anyone is subscribed, and delivery is
// at-most-once with no acknowledgement.
type MessageRelay struct {
	messages    MessageStore
	sessions    SessionReader
	media       MediaStore
	names       NameResolver
	publisher   Publisher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewMessageRelay wires dependencies for the relay. The publisher is injected
// at construction; there is deliberately no package-level socket handle.
func NewMessageRelay(messages MessageStore, sessions SessionReader, media MediaStore, names NameResolver, publisher Publisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *MessageRelay {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &MessageRelay{
		messages:    messages,
		sessions:    sessions,
		media:       media,
		names:       names,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (r *MessageRelay) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, r.logger, "MessageRelay", operation, attrs...)
}

// ClassifyMediaType derives the media kind from a MIME content type. Anything
// that is not image, video, or audio is rejected with false.
func ClassifyMediaType(contentType string) (MediaType, bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MediaTypeImage, true
	case strings.HasPrefix(contentType, "video/"):
		return MediaTypeVideo, true
	case strings.HasPrefix(contentType, "audio/"):
		return MediaTypeAudio, true
	}
	return "", false
}

// SubmitMessage validates, persists, and fans out one chat message.
//
// The caller must be one of the session's two participants; the receiver is
// derived as the other participant, never taken from the client. At least one
// of content and media must be present.
func (r *MessageRelay) SubmitMessage(ctx context.Context, principal Principal, input SubmitMessageInput) (MessageView, error) {
	if r == nil || r.messages == nil || r.sessions == nil {
		return MessageView{}, fmt.Errorf("message relay not configured")
	}

	logger := r.loggerWith(ctx, "SubmitMessage", "session_id", input.SessionID)

	vErr := &ValidationError{}
	if strings.TrimSpace(input.SessionID) == "" {
		vErr.add("session_id", "session is required")
	}
	if strings.TrimSpace(input.Content) == "" && input.Media == nil {
		vErr.add("content", "a message needs text content or a media file")
	}
	if vErr.HasErrors() {
		return MessageView{}, vErr
	}

	session, err := r.sessions.GetSession(ctx, input.SessionID)
	if err != nil {
		return MessageView{}, err
	}

	receiverID, ok := session.OtherParticipant(principal.UserID)
	if !ok {
		return MessageView{}, ErrUnauthorized
	}

	var (
		mediaURL  string
		mediaType MediaType
	)
	if input.Media != nil {
		kind, ok := ClassifyMediaType(input.Media.ContentType)
		if !ok {
			vErr.add("file", "media must be an image, video, or audio file")
			return MessageView{}, vErr
		}
		if r.media == nil {
			return MessageView{}, fmt.Errorf("media store not configured")
		}
		mediaURL, err = r.media.Save(ctx, *input.Media)
		if err != nil {
			return MessageView{}, err
		}
		mediaType = kind
	}

	message := Message{
		ID:         r.idGenerator(),
		SessionID:  session.ID,
		SenderID:   principal.UserID,
		ReceiverID: receiverID,
		Content:    strings.TrimSpace(input.Content),
		MediaURL:   mediaURL,
		MediaType:  mediaType,
		SentAt:     r.now(),
	}

	persisted, err := r.messages.CreateMessage(ctx, message)
	if err != nil {
		return MessageView{}, err
	}

	view, err := r.view(ctx, persisted)
	if err != nil {
		return MessageView{}, err
	}

	// Best-effort push to whoever is subscribed; the stored row is the
	// durable source of truth.
	if r.publisher != nil {
		r.publisher.PublishMessage(MessageEvent{
			SessionID:    view.SessionID,
			Content:      view.Content,
			SenderID:     view.SenderID,
			SenderName:   view.SenderName,
			ReceiverID:   view.ReceiverID,
			ReceiverName: view.ReceiverName,
			MediaURL:     view.MediaURL,
			MediaType:    view.MediaType,
		})
	}

	logger.InfoContext(ctx, "message relayed", "message_id", persisted.ID, "media_type", string(mediaType))
	return view, nil
}

// ListMessages returns a session's history oldest first with display names
// resolved. Participants and administrators may read it.
func (r *MessageRelay) ListMessages(ctx context.Context, principal Principal, sessionID string) ([]MessageView, error) {
	if r == nil || r.messages == nil || r.sessions == nil {
		return nil, fmt.Errorf("message relay not configured")
	}

	session, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(principal.UserID) && !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	messages, err := r.messages.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(messages))
	for _, message := range messages {
		view, err := r.view(ctx, message)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (r *MessageRelay) view(ctx context.Context, message Message) (MessageView, error) {
	view := MessageView{Message: message}
	if r.names == nil {
		return view, nil
	}

	var err error
	if view.SenderName, err = r.resolveName(ctx, message.SenderID); err != nil {
		return MessageView{}, err
	}
	if view.ReceiverName, err = r.resolveName(ctx, message.ReceiverID); err != nil {
		return MessageView{}, err
	}
	return view, nil
}

// resolveName tolerates deleted accounts: history stays readable with the
// name blank.
func (r *MessageRelay) resolveName(ctx context.Context, userID string) (string, error) {
	name, err := r.names.DisplayName(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	return name, nil
}
