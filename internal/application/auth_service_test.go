package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

type credentialStoreStub struct {
	users  map[string]User
	hashes map[string]string // keyed by email

	createErr error
}

func newCredentialStoreStub() *credentialStoreStub {
	return &credentialStoreStub{
		users:  make(map[string]User),
		hashes: make(map[string]string),
	}
}

func (s *credentialStoreStub) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	if s.createErr != nil {
		return User{}, s.createErr
	}
	if _, ok := s.hashes[user.Email]; ok {
		return User{}, ErrAlreadyExists
	}
	s.users[user.ID] = user
	s.hashes[user.Email] = passwordHash
	return user, nil
}

func (s *credentialStoreStub) GetUser(ctx context.Context, id string) (User, error) {
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *credentialStoreStub) GetCredentialsByEmail(ctx context.Context, email string) (User, string, error) {
	hash, ok := s.hashes[email]
	if !ok {
		return User{}, "", ErrNotFound
	}
	for _, user := range s.users {
		if user.Email == email {
			return user, hash, nil
		}
	}
	return User{}, "", ErrNotFound
}

func newAuthServiceForTest(store *credentialStoreStub) *AuthService {
	tokens, err := NewJWTIssuer("test-secret", time.Hour)
	if err != nil {
		panic(err)
	}
	return NewAuthService(store, tokens, sequenceIDs("u"), fixedClock(testTime), nil)
}

func TestAuthService_Register(t *testing.T) {
	t.Run("validates inputs", func(t *testing.T) {
		svc := newAuthServiceForTest(newCredentialStoreStub())

		_, err := svc.Register(context.Background(), RegisterInput{
			Name:     "  ",
			Email:    "not-an-email",
			Password: "short",
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"name", "email", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("creates the account and issues a token", func(t *testing.T) {
		store := newCredentialStoreStub()
		svc := newAuthServiceForTest(store)

		result, err := svc.Register(context.Background(), RegisterInput{
			Name:     "Alice",
			Email:    "Alice@Example.com",
			Password: "correct horse battery",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.User.Email != "alice@example.com" {
			t.Fatalf("expected lowercased email, got %q", result.User.Email)
		}
		if result.User.Role != "user" {
			t.Fatalf("expected default role, got %q", result.User.Role)
		}
		if result.Token == "" {
			t.Fatal("expected a token")
		}
		if !result.ExpiresAt.Equal(testTime.Add(time.Hour)) {
			t.Fatalf("unexpected expiry %v", result.ExpiresAt)
		}
		if hash := store.hashes["alice@example.com"]; hash == "" || hash == "correct horse battery" {
			t.Fatalf("expected a derived hash, got %q", hash)
		}
	})

	t.Run("duplicate emails are rejected", func(t *testing.T) {
		store := newCredentialStoreStub()
		svc := newAuthServiceForTest(store)
		input := RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "correct horse battery"}

		if _, err := svc.Register(context.Background(), input); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := svc.Register(context.Background(), input); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestAuthService_Login(t *testing.T) {
	store := newCredentialStoreStub()
	svc := newAuthServiceForTest(store)
	registered, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("valid credentials yield a token", func(t *testing.T) {
		result, err := svc.Login(context.Background(), "Alice@Example.com", "correct horse battery")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Token == "" {
			t.Fatal("expected a token")
		}
	})

	t.Run("a wrong password is invalid credentials", func(t *testing.T) {
		if _, err := svc.Login(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("an unknown email is invalid credentials", func(t *testing.T) {
		if _, err := svc.Login(context.Background(), "nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("a blocked account cannot log in", func(t *testing.T) {
		user := store.users[registered.User.ID]
		user.Blocked = true
		store.users[user.ID] = user
		defer func() {
			user.Blocked = false
			store.users[user.ID] = user
		}()

		if _, err := svc.Login(context.Background(), "alice@example.com", "correct horse battery"); !errors.Is(err, ErrAccountBlocked) {
			t.Fatalf("expected ErrAccountBlocked, got %v", err)
		}
	})
}

func TestAuthService_ValidateToken(t *testing.T) {
	store := newCredentialStoreStub()
	svc := newAuthServiceForTest(store)
	result, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("round-trips the principal", func(t *testing.T) {
		principal, err := svc.ValidateToken(context.Background(), result.Token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if principal.UserID != result.User.ID {
			t.Fatalf("expected user %q, got %q", result.User.ID, principal.UserID)
		}
		if principal.IsAdmin {
			t.Fatal("expected a non-admin principal")
		}
	})

	t.Run("rejects empty and garbage tokens", func(t *testing.T) {
		for _, token := range []string{"", "  ", "not.a.token"} {
			if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("token %q: expected ErrInvalidCredentials, got %v", token, err)
			}
		}
	})

	t.Run("a block takes effect before token expiry", func(t *testing.T) {
		user := store.users[result.User.ID]
		user.Blocked = true
		store.users[user.ID] = user

		if _, err := svc.ValidateToken(context.Background(), result.Token); !errors.Is(err, ErrAccountBlocked) {
			t.Fatalf("expected ErrAccountBlocked, got %v", err)
		}
	})
}
