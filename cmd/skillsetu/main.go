package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/skillsetu/skillsetu/internal/application"
	"github.com/skillsetu/skillsetu/internal/config"
	httptransport "github.com/skillsetu/skillsetu/internal/http"
	"github.com/skillsetu/skillsetu/internal/media"
	"github.com/skillsetu/skillsetu/internal/persistence"
	"github.com/skillsetu/skillsetu/internal/persistence/sqlite"
	"github.com/skillsetu/skillsetu/internal/realtime"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	userRepo := sqlite.NewUserRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)
	messageRepo := sqlite.NewMessageRepository(db)
	notificationRepo := sqlite.NewNotificationRepository(db)
	reportRepo := sqlite.NewReportRepository(db)

	directory := newUserDirectoryAdapter(userRepo)
	credentials := newCredentialStoreAdapter(userRepo)
	sessionStore := newSessionStoreAdapter(sessionRepo)
	messageStore := newMessageStoreAdapter(messageRepo)
	notificationStore := newNotificationStoreAdapter(notificationRepo)
	reportStore := newReportStoreAdapter(reportRepo)

	names, err := application.NewCachedNames(directory, 1024)
	if err != nil {
		logger.Error("failed to build name cache", "error", err)
		os.Exit(1)
	}

	tokens, err := application.NewJWTIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("failed to configure token issuer", "error", err)
		os.Exit(1)
	}

	mediaStore, err := media.NewDiskStore(cfg.MediaDir, now)
	if err != nil {
		logger.Error("failed to prepare media directory", "error", err)
		os.Exit(1)
	}

	hub := realtime.NewHub(logger)
	hashPassword := func(password string) (string, error) {
		return application.CreatePasswordHash(password, application.DefaultArgon2idParams)
	}

	authService := application.NewAuthService(credentials, tokens, idGenerator, now, logger)
	userService := application.NewUserService(directory, names, now, logger)
	sessionService := application.NewSessionService(sessionStore, directory, names, idGenerator, now, logger)
	relay := application.NewMessageRelay(messageStore, sessionStore, mediaStore, names, hub, idGenerator, now, logger)
	notificationService := application.NewNotificationService(notificationStore, directory, hub, idGenerator, now, logger)
	reportService := application.NewReportService(reportStore, sessionStore, directory, idGenerator, now, logger)
	adminService := application.NewAdminService(directory, credentials, reportStore, names, hashPassword, idGenerator, now, logger)

	dispatcher := application.NewDispatcher(notificationStore, hub, time.Second, now, logger)
	go dispatcher.Run(ctx)

	sweeper := application.NewReminderSweeper(sessionStore, cfg.ReminderInterval, idGenerator, now, logger)
	go sweeper.Run(ctx)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:          httptransport.NewAuthHandler(authService, logger),
		Users:         httptransport.NewUserHandler(userService, logger),
		Sessions:      httptransport.NewSessionHandler(sessionService, logger),
		Messages:      httptransport.NewMessageHandler(relay, logger),
		Notifications: httptransport.NewNotificationHandler(notificationService, logger),
		Reports:       httptransport.NewReportHandler(reportService, logger),
		Admin:         httptransport.NewAdminHandler(adminService, relay, logger),
		WS:            httptransport.NewWSHandler(hub, sessionStore, logger),
		MediaDir:      mediaStore.Root(),
		RequireAuth:   httptransport.RequireAuth(authService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Websocket channels outlive the write timeout; it applies only to
		// plain HTTP responses because Upgrade hijacks the connection.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("skillsetu API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// mapPersistenceError translates storage sentinels into application sentinels
// so services never import the persistence package.
func mapPersistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return application.ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return application.ErrAlreadyExists
	default:
		return err
	}
}

type userDirectoryAdapter struct {
	repo persistence.UserRepository
}

func newUserDirectoryAdapter(repo persistence.UserRepository) *userDirectoryAdapter {
	return &userDirectoryAdapter{repo: repo}
}

func (a *userDirectoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userDirectoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

func (a *userDirectoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, current.PasswordHash)); err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userDirectoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return mapPersistenceError(a.repo.DeleteUser(ctx, id))
}

func (a *userDirectoryAdapter) SetBlocked(ctx context.Context, id string, blocked bool) error {
	return mapPersistenceError(a.repo.SetBlocked(ctx, id, blocked))
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *credentialStoreAdapter) GetCredentialsByEmail(ctx context.Context, email string) (application.User, string, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, "", mapPersistenceError(err)
	}
	return toApplicationUser(stored), stored.PasswordHash, nil
}

type sessionStoreAdapter struct {
	repo persistence.SessionRepository
}

func newSessionStoreAdapter(repo persistence.SessionRepository) *sessionStoreAdapter {
	return &sessionStoreAdapter{repo: repo}
}

func (a *sessionStoreAdapter) CreateSession(ctx context.Context, session application.Session, notifications []application.Notification) (application.Session, error) {
	if err := a.repo.CreateSession(ctx, toPersistenceSession(session), toPersistenceNotifications(notifications)); err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	stored, err := a.repo.GetSession(ctx, session.ID)
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) GetSession(ctx context.Context, id string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) UpdateSession(ctx context.Context, session application.Session, notifications []application.Notification) (application.Session, error) {
	if err := a.repo.UpdateSession(ctx, toPersistenceSession(session), toPersistenceNotifications(notifications)); err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	stored, err := a.repo.GetSession(ctx, session.ID)
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) ListSessions(ctx context.Context, filter application.SessionFilter) ([]application.Session, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	models, err := a.repo.ListSessions(ctx, persistence.SessionFilter{
		ParticipantID: filter.ParticipantID,
		AddressedTo:   filter.AddressedTo,
		Statuses:      statuses,
	})
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	return toApplicationSessions(models), nil
}

func (a *sessionStoreAdapter) ListDueReminders(ctx context.Context, now time.Time, window time.Duration) ([]application.Session, error) {
	models, err := a.repo.ListDueReminders(ctx, now, window)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	return toApplicationSessions(models), nil
}

type messageStoreAdapter struct {
	repo persistence.MessageRepository
}

func newMessageStoreAdapter(repo persistence.MessageRepository) *messageStoreAdapter {
	return &messageStoreAdapter{repo: repo}
}

func (a *messageStoreAdapter) CreateMessage(ctx context.Context, message application.Message) (application.Message, error) {
	if err := a.repo.CreateMessage(ctx, toPersistenceMessage(message)); err != nil {
		return application.Message{}, mapPersistenceError(err)
	}
	return message, nil
}

func (a *messageStoreAdapter) ListMessages(ctx context.Context, sessionID string) ([]application.Message, error) {
	models, err := a.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	messages := make([]application.Message, 0, len(models))
	for _, model := range models {
		messages = append(messages, toApplicationMessage(model))
	}
	return messages, nil
}

type notificationStoreAdapter struct {
	repo persistence.NotificationRepository
}

func newNotificationStoreAdapter(repo persistence.NotificationRepository) *notificationStoreAdapter {
	return &notificationStoreAdapter{repo: repo}
}

func (a *notificationStoreAdapter) CreateNotification(ctx context.Context, notification application.Notification) (application.Notification, error) {
	if err := a.repo.CreateNotification(ctx, toPersistenceNotification(notification)); err != nil {
		return application.Notification{}, mapPersistenceError(err)
	}
	return notification, nil
}

func (a *notificationStoreAdapter) GetNotification(ctx context.Context, id string) (application.Notification, error) {
	stored, err := a.repo.GetNotification(ctx, id)
	if err != nil {
		return application.Notification{}, mapPersistenceError(err)
	}
	return toApplicationNotification(stored), nil
}

func (a *notificationStoreAdapter) ListNotifications(ctx context.Context, userID string) ([]application.Notification, error) {
	models, err := a.repo.ListNotifications(ctx, userID)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	notifications := make([]application.Notification, 0, len(models))
	for _, model := range models {
		notifications = append(notifications, toApplicationNotification(model))
	}
	return notifications, nil
}

func (a *notificationStoreAdapter) MarkRead(ctx context.Context, id string) error {
	return mapPersistenceError(a.repo.MarkRead(ctx, id))
}

func (a *notificationStoreAdapter) MarkAllRead(ctx context.Context, userID string) error {
	return mapPersistenceError(a.repo.MarkAllRead(ctx, userID))
}

func (a *notificationStoreAdapter) ListUndispatched(ctx context.Context, limit int) ([]application.Notification, error) {
	models, err := a.repo.ListUndispatched(ctx, limit)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	notifications := make([]application.Notification, 0, len(models))
	for _, model := range models {
		notifications = append(notifications, toApplicationNotification(model))
	}
	return notifications, nil
}

func (a *notificationStoreAdapter) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	return mapPersistenceError(a.repo.MarkDispatched(ctx, id, at))
}

type reportStoreAdapter struct {
	repo persistence.ReportRepository
}

func newReportStoreAdapter(repo persistence.ReportRepository) *reportStoreAdapter {
	return &reportStoreAdapter{repo: repo}
}

func (a *reportStoreAdapter) CreateReport(ctx context.Context, report application.Report) (application.Report, error) {
	if err := a.repo.CreateReport(ctx, toPersistenceReport(report)); err != nil {
		return application.Report{}, mapPersistenceError(err)
	}
	return report, nil
}

func (a *reportStoreAdapter) ListReports(ctx context.Context) ([]application.Report, error) {
	models, err := a.repo.ListReports(ctx)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	reports := make([]application.Report, 0, len(models))
	for _, model := range models {
		reports = append(reports, toApplicationReport(model))
	}
	return reports, nil
}

func (a *reportStoreAdapter) DeleteReport(ctx context.Context, id string) error {
	return mapPersistenceError(a.repo.DeleteReport(ctx, id))
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:            model.ID,
		Name:          model.Name,
		Email:         model.Email,
		Role:          model.Role,
		Blocked:       model.Blocked,
		SkillsToTeach: append([]string(nil), model.SkillsToTeach...),
		SkillsToLearn: append([]string(nil), model.SkillsToLearn...),
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		PasswordHash:  passwordHash,
		Role:          user.Role,
		Blocked:       user.Blocked,
		SkillsToTeach: append([]string(nil), user.SkillsToTeach...),
		SkillsToLearn: append([]string(nil), user.SkillsToLearn...),
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:                  model.ID,
		RequesterID:         model.RequesterID,
		PartnerID:           model.PartnerID,
		SessionAt:           model.SessionAt,
		MeetingAt:           cloneTime(model.MeetingAt),
		Status:              application.SessionStatus(model.Status),
		Skill:               model.Skill,
		RatingByRequester:   cloneInt(model.RatingByRequester),
		FeedbackByRequester: model.FeedbackByRequester,
		RatingByPartner:     cloneInt(model.RatingByPartner),
		FeedbackByPartner:   model.FeedbackByPartner,
		RequesterFeedbackIn: model.RequesterFeedbackIn,
		PartnerFeedbackIn:   model.PartnerFeedbackIn,
		Closed:              model.Closed,
		ReminderSentAt:      cloneTime(model.ReminderSentAt),
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
}

func toApplicationSessions(models []persistence.Session) []application.Session {
	if len(models) == 0 {
		return nil
	}
	sessions := make([]application.Session, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, toApplicationSession(model))
	}
	return sessions
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:                  session.ID,
		RequesterID:         session.RequesterID,
		PartnerID:           session.PartnerID,
		SessionAt:           session.SessionAt,
		MeetingAt:           cloneTime(session.MeetingAt),
		Status:              string(session.Status),
		Skill:               session.Skill,
		RatingByRequester:   cloneInt(session.RatingByRequester),
		FeedbackByRequester: session.FeedbackByRequester,
		RatingByPartner:     cloneInt(session.RatingByPartner),
		FeedbackByPartner:   session.FeedbackByPartner,
		RequesterFeedbackIn: session.RequesterFeedbackIn,
		PartnerFeedbackIn:   session.PartnerFeedbackIn,
		Closed:              session.Closed,
		ReminderSentAt:      cloneTime(session.ReminderSentAt),
		CreatedAt:           session.CreatedAt,
		UpdatedAt:           session.UpdatedAt,
	}
}

func toApplicationMessage(model persistence.Message) application.Message {
	return application.Message{
		ID:         model.ID,
		SessionID:  model.SessionID,
		SenderID:   model.SenderID,
		ReceiverID: model.ReceiverID,
		Content:    model.Content,
		MediaURL:   model.MediaURL,
		MediaType:  application.MediaType(model.MediaType),
		SentAt:     model.SentAt,
	}
}

func toPersistenceMessage(message application.Message) persistence.Message {
	return persistence.Message{
		ID:         message.ID,
		SessionID:  message.SessionID,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		Content:    message.Content,
		MediaURL:   message.MediaURL,
		MediaType:  string(message.MediaType),
		SentAt:     message.SentAt,
	}
}

func toApplicationNotification(model persistence.Notification) application.Notification {
	return application.Notification{
		ID:        model.ID,
		UserID:    model.UserID,
		Message:   model.Message,
		Type:      application.NotificationType(model.Type),
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

func toPersistenceNotification(notification application.Notification) persistence.Notification {
	return persistence.Notification{
		ID:        notification.ID,
		UserID:    notification.UserID,
		Message:   notification.Message,
		Type:      string(notification.Type),
		Read:      notification.Read,
		CreatedAt: notification.CreatedAt,
	}
}

func toPersistenceNotifications(notifications []application.Notification) []persistence.Notification {
	if len(notifications) == 0 {
		return nil
	}
	models := make([]persistence.Notification, 0, len(notifications))
	for _, notification := range notifications {
		models = append(models, toPersistenceNotification(notification))
	}
	return models
}

func toApplicationReport(model persistence.Report) application.Report {
	return application.Report{
		ID:           model.ID,
		ReporterID:   model.ReporterID,
		TargetUserID: model.TargetUserID,
		SessionID:    model.SessionID,
		Reason:       model.Reason,
		Description:  model.Description,
		CreatedAt:    model.CreatedAt,
	}
}

func toPersistenceReport(report application.Report) persistence.Report {
	return persistence.Report{
		ID:           report.ID,
		ReporterID:   report.ReporterID,
		TargetUserID: report.TargetUserID,
		SessionID:    report.SessionID,
		Reason:       report.Reason,
		Description:  report.Description,
		CreatedAt:    report.CreatedAt,
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
