package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

// CredentialStore exposes the account operations required by the auth service.
type CredentialStore interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetCredentialsByEmail(ctx context.Context, email string) (User, string, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher func(password string) (string, error)

// AuthService coordinates registration, login, and bearer-token validation.
type AuthService struct {
	credentials    CredentialStore
	tokens         TokenIssuer
	verifyPassword PasswordVerifier
	hashPassword   PasswordHasher
	idGenerator    func() string
	now            func() time.Time
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, tokens TokenIssuer, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuthService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		credentials:    credentials,
		tokens:         tokens,
		verifyPassword: VerifyPassword,
		hashPassword: func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		},
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Register creates a new account and issues a bearer token for it.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (result AuthResult, err error) {
	if s == nil || s.credentials == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(input.Email))
	logger := s.loggerWith(ctx, "Register", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "account registered")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, mailErr := mail.ParseAddress(email); mailErr != nil {
		vErr.add("email", "email is invalid")
	}
	if len(input.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return
	}

	now := s.now()
	user := User{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(input.Name),
		Email:     email,
		Role:      "user",
		CreatedAt: now,
		UpdatedAt: now,
	}

	persisted, err := s.credentials.CreateUser(ctx, user, hash)
	if err != nil {
		return
	}

	return s.issueToken(persisted)
}

// Login validates credentials and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (result AuthResult, err error) {
	if s == nil || s.credentials == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	email = strings.TrimSpace(strings.ToLower(email))
	logger := s.loggerWith(ctx, "Login", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "login succeeded")
	}()

	if email == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	user, hash, err := s.credentials.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if user.Blocked {
		err = ErrAccountBlocked
		return
	}
	if err = s.verifyPassword(hash, password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	return s.issueToken(user)
}

// ValidateToken resolves a bearer token to a principal, rejecting blocked
// accounts before any business logic runs. The block status is re-read from
// the directory on every call so a moderator's block takes effect immediately
// instead of waiting for token expiry.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (Principal, error) {
	if s == nil || s.tokens == nil {
		return Principal{}, fmt.Errorf("auth service not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrInvalidCredentials
	}

	claims, err := s.tokens.Verify(token, s.now())
	if err != nil {
		return Principal{}, err
	}

	user, err := s.credentials.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}
	if user.Blocked {
		return Principal{}, ErrAccountBlocked
	}

	return Principal{UserID: user.ID, IsAdmin: user.IsAdmin()}, nil
}

func (s *AuthService) issueToken(user User) (AuthResult, error) {
	if s.tokens == nil {
		return AuthResult{User: user}, nil
	}
	token, expiresAt, err := s.tokens.Issue(user, s.now())
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
