// Package realtime fans persisted chat messages and notifications out to
// websocket subscribers. Delivery is best-effort: the stored rows are the
// durable record, the sockets are a live view.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skillsetu/skillsetu/internal/application"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

// messageEnvelope is the wire shape pushed over a session channel.
type messageEnvelope struct {
	Event     string          `json:"event"`
	SessionID string          `json:"sessionId"`
	Content   string          `json:"content"`
	Sender    participantJSON `json:"sender"`
	Receiver  participantJSON `json:"receiver"`
	MediaURL  string          `json:"mediaUrl,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
}

type participantJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// notificationEnvelope is the wire shape pushed over a notification channel.
type notificationEnvelope struct {
	Event   string `json:"event"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Hub tracks websocket subscribers keyed by session and by user and
// implements application.Publisher against them.
type Hub struct {
	mu            sync.RWMutex
	sessions      map[string]map[*subscriber]struct{}
	notifications map[string]map[*subscriber]struct{}
	logger        *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions:      make(map[string]map[*subscriber]struct{}),
		notifications: make(map[string]map[*subscriber]struct{}),
		logger:        logger,
	}
}

// PublishMessage delivers a chat message to every subscriber of its session
// channel. Publishing with no subscribers attached is a no-op.
func (h *Hub) PublishMessage(event application.MessageEvent) {
	payload, err := json.Marshal(messageEnvelope{
		Event:     "receive_message",
		SessionID: event.SessionID,
		Content:   event.Content,
		Sender:    participantJSON{ID: event.SenderID, Name: event.SenderName},
		Receiver:  participantJSON{ID: event.ReceiverID, Name: event.ReceiverName},
		MediaURL:  event.MediaURL,
		MediaType: string(event.MediaType),
	})
	if err != nil {
		h.logger.Warn("failed to encode message event", "error", err)
		return
	}
	h.broadcast(h.sessions, event.SessionID, payload)
}

// PublishNotification delivers a notification to every subscriber of the
// user's notification channel.
func (h *Hub) PublishNotification(event application.NotificationEvent) {
	payload, err := json.Marshal(notificationEnvelope{
		Event:   "new_notification",
		UserID:  event.UserID,
		Message: event.Message,
		Type:    string(event.Type),
	})
	if err != nil {
		h.logger.Warn("failed to encode notification event", "error", err)
		return
	}
	h.broadcast(h.notifications, event.UserID, payload)
}

func (h *Hub) broadcast(registry map[string]map[*subscriber]struct{}, key string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range registry[key] {
		select {
		case sub.send <- payload:
		default:
			// Subscriber is not draining; drop the event rather than block.
			h.logger.Warn("dropping event for slow subscriber", "key", key)
		}
	}
}

// ServeSession attaches the connection to the session channel and blocks
// until the connection closes or the context is canceled.
func (h *Hub) ServeSession(ctx context.Context, sessionID string, conn *websocket.Conn) {
	h.serve(ctx, h.sessions, sessionID, conn)
}

// ServeNotifications attaches the connection to the user's notification
// channel and blocks until the connection closes or the context is canceled.
func (h *Hub) ServeNotifications(ctx context.Context, userID string, conn *websocket.Conn) {
	h.serve(ctx, h.notifications, userID, conn)
}

// SessionSubscribers reports how many connections are attached to the given
// session channel.
func (h *Hub) SessionSubscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

func (h *Hub) serve(ctx context.Context, registry map[string]map[*subscriber]struct{}, key string, conn *websocket.Conn) {
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	if registry[key] == nil {
		registry[key] = make(map[*subscriber]struct{})
	}
	registry[key][sub] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(registry[key], sub)
		if len(registry[key]) == 0 {
			delete(registry, key)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	done := make(chan struct{})
	go sub.readPump(done)
	sub.writePump(ctx, done)
}

// subscriber is one attached websocket connection with its outbound queue.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// readPump discards inbound frames; clients only listen on these channels.
// It exists to service control frames and to notice the peer going away.
func (s *subscriber) readPump(done chan<- struct{}) {
	defer close(done)
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case <-done:
			return
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
