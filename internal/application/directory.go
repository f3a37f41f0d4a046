package application

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// UserDirectory exposes the account lookups required across services: message
// attribution, block checks, and partner validation.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	DeleteUser(ctx context.Context, id string) error
	SetBlocked(ctx context.Context, id string, blocked bool) error
}

// NameResolver resolves a user ID to a display name.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// CachedNames resolves display names through an LRU cache in front of the
// directory. Chat fan-out resolves both participant names on every message,
// so the cache keeps the hot pair out of the database.
//
// Renames are rare and only affect presentation, so cached entries are kept
// until evicted by capacity.
type CachedNames struct {
	directory UserDirectory
	cache     *lru.Cache[string, string]
}

// NewCachedNames constructs a resolver holding at most capacity entries.
func NewCachedNames(directory UserDirectory, capacity int) (*CachedNames, error) {
	if capacity <= 0 {
		capacity = 1024
	}
	cache, err := lru.New[string, string](capacity)
	if err != nil {
		return nil, err
	}
	return &CachedNames{directory: directory, cache: cache}, nil
}

// DisplayName returns the user's display name, consulting the cache first.
func (c *CachedNames) DisplayName(ctx context.Context, userID string) (string, error) {
	if name, ok := c.cache.Get(userID); ok {
		return name, nil
	}
	user, err := c.directory.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	c.cache.Add(userID, user.Name)
	return user.Name, nil
}

// Invalidate drops a user's cached name, used after profile updates.
func (c *CachedNames) Invalidate(userID string) {
	c.cache.Remove(userID)
}
