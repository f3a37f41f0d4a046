package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/skillsetu/skillsetu/internal/persistence"
)

var (
	userCounter         uint64
	sessionCounter      uint64
	messageCounter      uint64
	notificationCounter uint64
	reportCounter       uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures a generated user record.
type UserOption func(*persistence.User)

// NewUser returns a deterministic user record with optional overrides.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	user := persistence.User{
		ID:           id,
		Name:         fmt.Sprintf("User %03d", idx),
		Email:        fmt.Sprintf("%s@example.com", id),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Role:         "user",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) {
		u.ID = id
	}
}

// WithUserName overrides the generated display name.
func WithUserName(name string) UserOption {
	return func(u *persistence.User) {
		u.Name = name
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(u *persistence.User) {
		u.Email = email
	}
}

// WithUserRole overrides the generated role.
func WithUserRole(role string) UserOption {
	return func(u *persistence.User) {
		u.Role = role
	}
}

// WithUserBlocked sets the blocked flag on the generated record.
func WithUserBlocked(blocked bool) UserOption {
	return func(u *persistence.User) {
		u.Blocked = blocked
	}
}

// WithUserSkills overrides the generated skill lists.
func WithUserSkills(teach, learn []string) UserOption {
	return func(u *persistence.User) {
		u.SkillsToTeach = teach
		u.SkillsToLearn = learn
	}
}

// ---------------------------- Session fixtures ----------------------------

// SessionOption configures a generated session record.
type SessionOption func(*persistence.Session)

// NewSession returns a deterministic session record between the given
// participants with optional overrides.
func NewSession(requesterID, partnerID string, opts ...SessionOption) persistence.Session {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	session := persistence.Session{
		ID:          fmt.Sprintf("session-%03d", idx),
		RequesterID: requesterID,
		PartnerID:   partnerID,
		SessionAt:   created.Add(24 * time.Hour),
		Status:      "pending",
		Skill:       fmt.Sprintf("Skill %03d", idx),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&session)
	}
	return session
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(s *persistence.Session) {
		s.ID = id
	}
}

// WithSessionStatus overrides the lifecycle status.
func WithSessionStatus(status string) SessionOption {
	return func(s *persistence.Session) {
		s.Status = status
	}
}

// WithSessionAt overrides the proposed session time.
func WithSessionAt(at time.Time) SessionOption {
	return func(s *persistence.Session) {
		s.SessionAt = at
	}
}

// WithMeetingAt sets the agreed meeting time.
func WithMeetingAt(at time.Time) SessionOption {
	return func(s *persistence.Session) {
		s.MeetingAt = &at
	}
}

// WithSessionSkill overrides the exchanged skill.
func WithSessionSkill(skill string) SessionOption {
	return func(s *persistence.Session) {
		s.Skill = skill
	}
}

// WithSessionClosed sets the closed flag.
func WithSessionClosed(closed bool) SessionOption {
	return func(s *persistence.Session) {
		s.Closed = closed
	}
}

// WithReminderSentAt sets the reminder marker.
func WithReminderSentAt(at time.Time) SessionOption {
	return func(s *persistence.Session) {
		s.ReminderSentAt = &at
	}
}

// ---------------------------- Message fixtures ----------------------------

// MessageOption configures a generated message record.
type MessageOption func(*persistence.Message)

// NewMessage returns a deterministic chat message within the given session.
func NewMessage(sessionID, senderID, receiverID string, opts ...MessageOption) persistence.Message {
	idx := atomic.AddUint64(&messageCounter, 1)
	message := persistence.Message{
		ID:         fmt.Sprintf("message-%03d", idx),
		SessionID:  sessionID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    fmt.Sprintf("Message %03d", idx),
		SentAt:     referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&message)
	}
	return message
}

// WithMessageContent overrides the generated text content.
func WithMessageContent(content string) MessageOption {
	return func(m *persistence.Message) {
		m.Content = content
	}
}

// WithMessageMedia sets a media reference on the generated record.
func WithMessageMedia(url, mediaType string) MessageOption {
	return func(m *persistence.Message) {
		m.MediaURL = url
		m.MediaType = mediaType
	}
}

// WithMessageSentAt overrides the send time.
func WithMessageSentAt(at time.Time) MessageOption {
	return func(m *persistence.Message) {
		m.SentAt = at
	}
}

// ------------------------- Notification fixtures --------------------------

// NotificationOption configures a generated notification record.
type NotificationOption func(*persistence.Notification)

// NewNotification returns a deterministic notification for the given user.
func NewNotification(userID string, opts ...NotificationOption) persistence.Notification {
	idx := atomic.AddUint64(&notificationCounter, 1)
	notification := persistence.Notification{
		ID:        fmt.Sprintf("notification-%03d", idx),
		UserID:    userID,
		Message:   fmt.Sprintf("Notification %03d", idx),
		Type:      "session_request",
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&notification)
	}
	return notification
}

// WithNotificationType overrides the notification kind.
func WithNotificationType(kind string) NotificationOption {
	return func(n *persistence.Notification) {
		n.Type = kind
	}
}

// WithNotificationRead sets the read flag.
func WithNotificationRead(read bool) NotificationOption {
	return func(n *persistence.Notification) {
		n.Read = read
	}
}

// WithNotificationDispatchedAt marks the notification as already delivered.
func WithNotificationDispatchedAt(at time.Time) NotificationOption {
	return func(n *persistence.Notification) {
		n.DispatchedAt = &at
	}
}

// ---------------------------- Report fixtures -----------------------------

// ReportOption configures a generated report record.
type ReportOption func(*persistence.Report)

// NewReport returns a deterministic moderation report.
func NewReport(reporterID, targetUserID, sessionID string, opts ...ReportOption) persistence.Report {
	idx := atomic.AddUint64(&reportCounter, 1)
	report := persistence.Report{
		ID:           fmt.Sprintf("report-%03d", idx),
		ReporterID:   reporterID,
		TargetUserID: targetUserID,
		SessionID:    sessionID,
		Reason:       "inappropriate behaviour",
		CreatedAt:    referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&report)
	}
	return report
}
