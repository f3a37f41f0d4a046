package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// UserService exposes profile reads and updates for regular accounts.
type UserService struct {
	directory UserDirectory
	names     *CachedNames
	now       func() time.Time
	logger    *slog.Logger
}

// NewUserService wires dependencies for the user service. The names cache may
// be nil when display-name caching is not in play.
func NewUserService(directory UserDirectory, names *CachedNames, now func() time.Time, logger *slog.Logger) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{
		directory: directory,
		names:     names,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

// GetProfile returns the given user's public profile.
func (s *UserService) GetProfile(ctx context.Context, userID string) (User, error) {
	if s == nil || s.directory == nil {
		return User{}, fmt.Errorf("user service not configured")
	}
	return s.directory.GetUser(ctx, userID)
}

// ListUsers returns every registered account. Used by the partner picker.
func (s *UserService) ListUsers(ctx context.Context) ([]User, error) {
	if s == nil || s.directory == nil {
		return nil, fmt.Errorf("user service not configured")
	}
	return s.directory.ListUsers(ctx)
}

// UpdateProfile replaces the caller's mutable profile fields and returns the
// stored result.
func (s *UserService) UpdateProfile(ctx context.Context, principal Principal, input UpdateProfileInput) (User, error) {
	if s == nil || s.directory == nil {
		return User{}, fmt.Errorf("user service not configured")
	}

	vErr := &ValidationError{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	user, err := s.directory.GetUser(ctx, principal.UserID)
	if err != nil {
		return User{}, err
	}

	user.Name = name
	user.SkillsToTeach = normalizeSkills(input.SkillsToTeach)
	user.SkillsToLearn = normalizeSkills(input.SkillsToLearn)
	user.UpdatedAt = s.now()

	updated, err := s.directory.UpdateUser(ctx, user)
	if err != nil {
		return User{}, err
	}
	if s.names != nil {
		s.names.Invalidate(updated.ID)
	}

	serviceLogger(ctx, s.logger, "UserService", "UpdateProfile", "user_id", updated.ID).
		InfoContext(ctx, "profile updated")
	return updated, nil
}

// normalizeSkills trims entries and drops blanks and duplicates, keeping the
// original order.
func normalizeSkills(skills []string) []string {
	if len(skills) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		key := strings.ToLower(skill)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}
	return out
}
