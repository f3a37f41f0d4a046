package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SessionFilter narrows session listings.
type SessionFilter struct {
	// ParticipantID matches sessions where the user is on either side.
	ParticipantID string
	// AddressedTo matches sessions where the user is the invited partner.
	AddressedTo string
	// Statuses restricts results to the given statuses when non-empty.
	Statuses []SessionStatus
}

// SessionStore captures the persistence interactions for bookings. Writes
// accept derived notifications that must land in the same transaction as the
// session itself.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session, notifications []Notification) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, session Session, notifications []Notification) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	ListDueReminders(ctx context.Context, now time.Time, window time.Duration) ([]Session, error)
}

// SessionService orchestrates the booking lifecycle: request, accept,
// schedule, and close, together with the derived notifications each
// transition owes the participants.
type SessionService struct {
	sessions    SessionStore
	directory   UserDirectory
	names       NameResolver
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSessionService wires dependencies for the session service.
func NewSessionService(sessions SessionStore, directory UserDirectory, names NameResolver, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		sessions:    sessions,
		directory:   directory,
		names:       names,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// RequestSession creates a pending booking addressed to the partner and
// notifies them of the request.
func (s *SessionService) RequestSession(ctx context.Context, principal Principal, input RequestSessionInput) (SessionView, error) {
	if s == nil || s.sessions == nil {
		return SessionView{}, fmt.Errorf("session service not configured")
	}

	vErr := &ValidationError{}
	partnerID := strings.TrimSpace(input.PartnerID)
	if partnerID == "" {
		vErr.add("partner_id", "partner is required")
	} else if partnerID == principal.UserID {
		vErr.add("partner_id", "cannot request a session with yourself")
	}
	if input.SessionAt.IsZero() {
		vErr.add("session_at", "session time is required")
	}
	if strings.TrimSpace(input.Skill) == "" {
		vErr.add("skill", "skill is required")
	}
	if vErr.HasErrors() {
		return SessionView{}, vErr
	}

	if s.directory != nil {
		if _, err := s.directory.GetUser(ctx, partnerID); err != nil {
			if errors.Is(err, ErrNotFound) {
				vErr.add("partner_id", "partner does not exist")
				return SessionView{}, vErr
			}
			return SessionView{}, err
		}
	}

	now := s.now()
	session := Session{
		ID:          s.idGenerator(),
		RequesterID: principal.UserID,
		PartnerID:   partnerID,
		SessionAt:   input.SessionAt,
		Status:      SessionStatusPending,
		Skill:       strings.TrimSpace(input.Skill),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	requesterName, err := s.displayName(ctx, principal.UserID)
	if err != nil {
		return SessionView{}, err
	}

	request := s.newNotification(partnerID,
		fmt.Sprintf("%s requested a session to exchange the skill: %s.", requesterName, session.Skill),
		NotificationSessionRequest)

	persisted, err := s.sessions.CreateSession(ctx, session, []Notification{request})
	if err != nil {
		return SessionView{}, err
	}

	s.loggerWith(ctx, "RequestSession", "session_id", persisted.ID, "partner_id", partnerID).
		InfoContext(ctx, "session requested")
	return s.view(ctx, persisted)
}

// AcceptSession moves a pending booking to accepted. Only the invited
// participant may accept.
func (s *SessionService) AcceptSession(ctx context.Context, principal Principal, sessionID string) (SessionView, error) {
	if s == nil || s.sessions == nil {
		return SessionView{}, fmt.Errorf("session service not configured")
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if session.PartnerID != principal.UserID {
		return SessionView{}, ErrUnauthorized
	}
	if session.Status != SessionStatusPending {
		vErr := &ValidationError{}
		vErr.add("status", "only pending sessions can be accepted")
		return SessionView{}, vErr
	}

	session.Status = SessionStatusAccepted
	session.UpdatedAt = s.now()

	persisted, err := s.sessions.UpdateSession(ctx, session, nil)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(ctx, persisted)
}

// ScheduleMeeting sets the agreed meeting time on an accepted booking and
// notifies both participants. The session write and the notification rows
// commit together.
func (s *SessionService) ScheduleMeeting(ctx context.Context, principal Principal, sessionID string, meetingAt time.Time) (SessionView, error) {
	if s == nil || s.sessions == nil {
		return SessionView{}, fmt.Errorf("session service not configured")
	}
	if meetingAt.IsZero() {
		vErr := &ValidationError{}
		vErr.add("meeting_at", "meeting time is required")
		return SessionView{}, vErr
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if !session.HasParticipant(principal.UserID) {
		return SessionView{}, ErrUnauthorized
	}

	session.MeetingAt = &meetingAt
	session.UpdatedAt = s.now()

	message := fmt.Sprintf("You have a new meeting scheduled for %s regarding the skill: %s.",
		meetingAt.Format(time.RFC1123), session.Skill)
	notifications := []Notification{
		s.newNotification(session.RequesterID, message, NotificationNewMeetingScheduled),
		s.newNotification(session.PartnerID, message, NotificationNewMeetingScheduled),
	}

	persisted, err := s.sessions.UpdateSession(ctx, session, notifications)
	if err != nil {
		return SessionView{}, err
	}

	s.loggerWith(ctx, "ScheduleMeeting", "session_id", session.ID).
		InfoContext(ctx, "meeting scheduled", "meeting_at", meetingAt)
	return s.view(ctx, persisted)
}

// CloseSession marks a booking completed or canceled, recording the caller's
// rating and feedback. Completion asks the other participant for feedback if
// they have not given it yet; cancellation closes the session immediately and
// notifies both sides. Once both participants have fed back the session is
// closed for good; a closed session never reopens.
func (s *SessionService) CloseSession(ctx context.Context, principal Principal, input CloseSessionInput) (SessionView, error) {
	if s == nil || s.sessions == nil {
		return SessionView{}, fmt.Errorf("session service not configured")
	}

	vErr := &ValidationError{}
	if input.Status != SessionStatusCompleted && input.Status != SessionStatusCanceled {
		vErr.add("status", "status must be completed or canceled")
	}
	if input.Rating < 1 || input.Rating > 5 {
		vErr.add("rating", "rating must be between 1 and 5")
	}
	if vErr.HasErrors() {
		return SessionView{}, vErr
	}

	session, err := s.sessions.GetSession(ctx, input.SessionID)
	if err != nil {
		return SessionView{}, err
	}
	if !session.HasParticipant(principal.UserID) {
		return SessionView{}, ErrUnauthorized
	}
	if session.Closed {
		vErr.add("session_id", "session is already closed")
		return SessionView{}, vErr
	}

	rating := input.Rating
	feedback := strings.TrimSpace(input.Feedback)
	if session.RequesterID == principal.UserID {
		session.RatingByRequester = &rating
		session.FeedbackByRequester = feedback
		session.RequesterFeedbackIn = true
	} else {
		session.RatingByPartner = &rating
		session.FeedbackByPartner = feedback
		session.PartnerFeedbackIn = true
	}

	session.Status = input.Status
	session.UpdatedAt = s.now()

	var notifications []Notification
	if input.Status == SessionStatusCompleted {
		if session.RequesterFeedbackIn && session.PartnerFeedbackIn {
			session.Closed = true
		} else {
			// Exactly one side is still owed feedback; ask only them.
			other, _ := session.OtherParticipant(principal.UserID)
			notifications = append(notifications, s.newNotification(other,
				"Please provide feedback for your completed session.",
				NotificationFeedbackRequest))
		}
	} else {
		session.Closed = true
		message := "Your session has been canceled."
		notifications = append(notifications,
			s.newNotification(session.RequesterID, message, NotificationSessionCanceled),
			s.newNotification(session.PartnerID, message, NotificationSessionCanceled),
		)
	}

	persisted, err := s.sessions.UpdateSession(ctx, session, notifications)
	if err != nil {
		return SessionView{}, err
	}

	s.loggerWith(ctx, "CloseSession", "session_id", session.ID).
		InfoContext(ctx, "session closed", "status", string(input.Status), "closed", persisted.Closed)
	return s.view(ctx, persisted)
}

// ListSessions returns the caller's sessions for the given status preset.
// "pending" lists requests awaiting the caller's acceptance; "active" covers
// everything past pending; an empty preset lists all of the caller's sessions.
func (s *SessionService) ListSessions(ctx context.Context, principal Principal, status string) ([]SessionView, error) {
	if s == nil || s.sessions == nil {
		return nil, fmt.Errorf("session service not configured")
	}

	filter := SessionFilter{ParticipantID: principal.UserID}
	switch status {
	case "":
	case "pending":
		filter = SessionFilter{AddressedTo: principal.UserID, Statuses: []SessionStatus{SessionStatusPending}}
	case "accepted":
		filter.Statuses = []SessionStatus{SessionStatusAccepted}
	case "completed":
		filter.Statuses = []SessionStatus{SessionStatusCompleted}
	case "canceled":
		filter.Statuses = []SessionStatus{SessionStatusCanceled}
	case "active":
		filter.Statuses = []SessionStatus{SessionStatusAccepted, SessionStatusCompleted, SessionStatusCanceled}
	default:
		vErr := &ValidationError{}
		vErr.add("status", "unknown status filter")
		return nil, vErr
	}

	sessions, err := s.sessions.ListSessions(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		view, err := s.view(ctx, session)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// AverageRating returns the mean rating the user has received from their
// session partners, along with the number of rated sessions.
func (s *SessionService) AverageRating(ctx context.Context, userID string) (float64, int, error) {
	if s == nil || s.sessions == nil {
		return 0, 0, fmt.Errorf("session service not configured")
	}

	sessions, err := s.sessions.ListSessions(ctx, SessionFilter{ParticipantID: userID})
	if err != nil {
		return 0, 0, err
	}

	total, count := 0, 0
	for _, session := range sessions {
		// The rating a user receives is the one recorded by the other side.
		var rating *int
		switch userID {
		case session.RequesterID:
			rating = session.RatingByPartner
		case session.PartnerID:
			rating = session.RatingByRequester
		}
		if rating != nil {
			total += *rating
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(total) / float64(count), count, nil
}

func (s *SessionService) newNotification(userID, message string, kind NotificationType) Notification {
	return Notification{
		ID:        s.idGenerator(),
		UserID:    userID,
		Message:   message,
		Type:      kind,
		CreatedAt: s.now(),
	}
}

func (s *SessionService) displayName(ctx context.Context, userID string) (string, error) {
	if s.names == nil {
		return "", nil
	}
	name, err := s.names.DisplayName(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	return name, nil
}

func (s *SessionService) view(ctx context.Context, session Session) (SessionView, error) {
	requesterName, err := s.displayName(ctx, session.RequesterID)
	if err != nil {
		return SessionView{}, err
	}
	partnerName, err := s.displayName(ctx, session.PartnerID)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{Session: session, RequesterName: requesterName, PartnerName: partnerName}, nil
}
