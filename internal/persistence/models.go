package persistence

import "time"

// User represents a member account in the skill-exchange directory.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Role          string
	Blocked       bool
	SkillsToTeach []string
	SkillsToLearn []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Session represents a two-party skill-exchange booking stored in persistence.
//
// RequesterID is the user who initiated the request; PartnerID is the invited
// participant. MeetingAt carries the rescheduled meeting time once one has been
// agreed, independent of the originally proposed SessionAt.
type Session struct {
	ID                  string
	RequesterID         string
	PartnerID           string
	SessionAt           time.Time
	MeetingAt           *time.Time
	Status              string
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

// Message represents one chat message scoped to a session. Messages are
// append-only; rows are never updated or deleted.
type Message struct {
	ID         string
	SessionID  string
	SenderID   string
	ReceiverID string
	Content    string
	MediaURL   string
	MediaType  string
	SentAt     time.Time
}

// Notification represents a typed per-user notification record. DispatchedAt
// is nil while the row is still waiting in the outbox for live delivery.
type Notification struct {
	ID           string
	UserID       string
	Message      string
	Type         string
	Read         bool
	CreatedAt    time.Time
	DispatchedAt *time.Time
}

// Report represents a moderation report filed by one participant against the
// other for a given session.
type Report struct {
	ID           string
	ReporterID   string
	TargetUserID string
	SessionID    string
	Reason       string
	Description  string
	CreatedAt    time.Time
}
