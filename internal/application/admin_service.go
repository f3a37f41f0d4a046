package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

// AdminService exposes the moderation surface: account management, report
// triage, and read access to session transcripts. Every method requires an
// admin principal.
type AdminService struct {
	directory    UserDirectory
	credentials  CredentialStore
	reports      ReportStore
	names        *CachedNames
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewAdminService wires dependencies for the admin service.
func NewAdminService(directory UserDirectory, credentials CredentialStore, reports ReportStore, names *CachedNames, hashPassword PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AdminService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AdminService{
		directory:    directory,
		credentials:  credentials,
		reports:      reports,
		names:        names,
		hashPassword: hashPassword,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *AdminService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AdminService", operation, attrs...)
}

func (s *AdminService) requireAdmin(principal Principal) error {
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	return nil
}

// ListUsers returns every registered account.
func (s *AdminService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil || s.directory == nil {
		return nil, fmt.Errorf("admin service not configured")
	}
	if err := s.requireAdmin(principal); err != nil {
		return nil, err
	}
	return s.directory.ListUsers(ctx)
}

// CreateUserInput captures the fields an admin supplies when provisioning an
// account directly.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// CreateUser provisions an account without going through registration.
func (s *AdminService) CreateUser(ctx context.Context, principal Principal, input CreateUserInput) (User, error) {
	if s == nil || s.credentials == nil || s.hashPassword == nil {
		return User{}, fmt.Errorf("admin service not configured")
	}
	if err := s.requireAdmin(principal); err != nil {
		return User{}, err
	}

	vErr := &ValidationError{}
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	role := strings.TrimSpace(input.Role)
	if name == "" {
		vErr.add("name", "name is required")
	}
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "email is not a valid address")
	}
	if len(input.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	if role == "" {
		role = "user"
	} else if role != "user" && role != "admin" {
		vErr.add("role", "role must be user or admin")
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := User{
		ID:        s.idGenerator(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.credentials.CreateUser(ctx, user, hash)
	if err != nil {
		return User{}, err
	}

	s.loggerWith(ctx, "CreateUser", "user_id", created.ID).InfoContext(ctx, "account provisioned")
	return created, nil
}

// DeleteUser removes an account. Sessions and messages referencing the
// account remain; their display names resolve to blank.
func (s *AdminService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil || s.directory == nil {
		return fmt.Errorf("admin service not configured")
	}
	if err := s.requireAdmin(principal); err != nil {
		return err
	}
	if userID == principal.UserID {
		vErr := &ValidationError{}
		vErr.add("user_id", "cannot delete your own account")
		return vErr
	}
	if err := s.directory.DeleteUser(ctx, userID); err != nil {
		return err
	}
	if s.names != nil {
		s.names.Invalidate(userID)
	}
	s.loggerWith(ctx, "DeleteUser", "user_id", userID).InfoContext(ctx, "account deleted")
	return nil
}

// SetBlocked blocks or unblocks an account. Blocked accounts fail token
// validation on their next request.
func (s *AdminService) SetBlocked(ctx context.Context, principal Principal, userID string, blocked bool) error {
	if s == nil || s.directory == nil {
		return fmt.Errorf("admin service not configured")
	}
	if err := s.requireAdmin(principal); err != nil {
		return err
	}
	if userID == principal.UserID {
		vErr := &ValidationError{}
		vErr.add("user_id", "cannot block your own account")
		return vErr
	}
	if err := s.directory.SetBlocked(ctx, userID, blocked); err != nil {
		return err
	}
	s.loggerWith(ctx, "SetBlocked", "user_id", userID).
		InfoContext(ctx, "account block state changed", "blocked", blocked)
	return nil
}

// ListReports returns every open moderation report, oldest first.
func (s *AdminService) ListReports(ctx context.Context, principal Principal) ([]Report, error) {
	if s == nil || s.reports == nil {
		return nil, fmt.Errorf("admin service not configured")
	}
	if err := s.requireAdmin(principal); err != nil {
		return nil, err
	}
	return s.reports.ListReports(ctx)
}

// ResolveReport closes a report. Resolution is deletion; the report carries
// no further state.
func (s *AdminService) ResolveReport(ctx context.Context, principal Principal, reportID string) error {
	if s == nil || s.reports == nil {
		return fmt.Errorf("admin service not configured")
	}
	if err := s.requireAdmin(principal); err != nil {
		return err
	}
	if err := s.reports.DeleteReport(ctx, reportID); err != nil {
		return err
	}
	s.loggerWith(ctx, "ResolveReport", "report_id", reportID).InfoContext(ctx, "report resolved")
	return nil
}
