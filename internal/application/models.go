package application

import (
	"io"
	"time"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// SessionStatus enumerates the lifecycle states of a booking.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusAccepted  SessionStatus = "accepted"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCanceled  SessionStatus = "canceled"
)

// NotificationType enumerates the notification kinds produced by the system.
type NotificationType string

const (
	NotificationSessionRequest      NotificationType = "session_request"
	NotificationReminder            NotificationType = "reminder"
	NotificationNewMeetingScheduled NotificationType = "new_meeting_scheduled"
	NotificationFeedbackRequest     NotificationType = "feedback_request"
	NotificationSessionCanceled     NotificationType = "session_canceled"
)

// ValidNotificationType reports whether the value is one of the known kinds.
func ValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationSessionRequest, NotificationReminder, NotificationNewMeetingScheduled,
		NotificationFeedbackRequest, NotificationSessionCanceled:
		return true
	}
	return false
}

// MediaType enumerates the media kinds a message may carry.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// User represents a directory account exposed by the application services.
type User struct {
	ID            string
	Name          string
	Email         string
	Role          string
	Blocked       bool
	SkillsToTeach []string
	SkillsToLearn []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAdmin reports whether the account carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == "admin"
}

// Session represents a two-party skill-exchange booking.
type Session struct {
	ID                  string
	RequesterID         string
	PartnerID           string
	SessionAt           time.Time
	MeetingAt           *time.Time
	Status              SessionStatus
	Skill               string
	RatingByRequester   *int
	FeedbackByRequester string
	RatingByPartner     *int
	FeedbackByPartner   string
	RequesterFeedbackIn bool
	PartnerFeedbackIn   bool
	Closed              bool
	ReminderSentAt      *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Participants returns both participant IDs.
func (s Session) Participants() []string {
	return []string{s.RequesterID, s.PartnerID}
}

// HasParticipant reports whether the user is one of the two participants.
func (s Session) HasParticipant(userID string) bool {
	return userID != "" && (s.RequesterID == userID || s.PartnerID == userID)
}

// OtherParticipant returns the participant opposite the given user. The second
// return value is false when the user is not a participant at all.
func (s Session) OtherParticipant(userID string) (string, bool) {
	switch userID {
	case s.RequesterID:
		return s.PartnerID, true
	case s.PartnerID:
		return s.RequesterID, true
	}
	return "", false
}

// EffectiveMeetingTime returns the rescheduled meeting time when set, falling
// back to the originally proposed session time.
func (s Session) EffectiveMeetingTime() time.Time {
	if s.MeetingAt != nil {
		return *s.MeetingAt
	}
	return s.SessionAt
}

// SessionView pairs a session with resolved participant display names.
type SessionView struct {
	Session
	RequesterName string
	PartnerName   string
}

// Message represents one chat message within a session.
type Message struct {
	ID         string
	SessionID  string
	SenderID   string
	ReceiverID string
	Content    string
	MediaURL   string
	MediaType  MediaType
	SentAt     time.Time
}

// MessageView pairs a message with resolved display names.
type MessageView struct {
	Message
	SenderName   string
	ReceiverName string
}

// Notification represents a typed per-user notification.
type Notification struct {
	ID        string
	UserID    string
	Message   string
	Type      NotificationType
	Read      bool
	CreatedAt time.Time
}

// Report represents a moderation report filed against a session participant.
type Report struct {
	ID           string
	ReporterID   string
	TargetUserID string
	SessionID    string
	Reason       string
	Description  string
	CreatedAt    time.Time
}

// RequestSessionInput captures caller provided fields for a session request.
type RequestSessionInput struct {
	PartnerID string
	SessionAt time.Time
	Skill     string
}

// CloseSessionInput captures the rating and feedback submitted when marking a
// session completed or canceled.
type CloseSessionInput struct {
	SessionID string
	Status    SessionStatus
	Rating    int
	Feedback  string
}

// SubmitMessageInput captures caller provided fields for a chat message.
type SubmitMessageInput struct {
	SessionID string
	Content   string
	Media     *MediaUpload
}

// MediaUpload describes an uploaded file accompanying a message. The relay
// hands the reader to the media store and records only the resulting
// reference, never the bytes.
type MediaUpload struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

// RegisterInput captures caller provided fields for account registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult captures the outcome of registration or login.
type AuthResult struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// UpdateProfileInput captures the mutable profile fields.
type UpdateProfileInput struct {
	Name          string
	SkillsToTeach []string
	SkillsToLearn []string
}

// CreateReportInput captures caller provided fields for a moderation report.
type CreateReportInput struct {
	TargetUserID string
	SessionID    string
	Reason       string
	Description  string
}

// MessageEvent is the payload pushed over the session live channel.
type MessageEvent struct {
	SessionID    string
	Content      string
	SenderID     string
	SenderName   string
	ReceiverID   string
	ReceiverName string
	MediaURL     string
	MediaType    MediaType
}

// NotificationEvent is the payload pushed over the notification live channel.
type NotificationEvent struct {
	UserID  string
	Message string
	Type    NotificationType
}

// Publisher fans events out to live-channel subscribers. Implementations are
// best-effort: publishing with no subscribers attached succeeds silently, and
// delivery is at-most-once with no acknowledgement.
type Publisher interface {
	PublishMessage(event MessageEvent)
	PublishNotification(event NotificationEvent)
}
