// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/careermate/internal/domain"
)

// Scope identifies one browser tab (or CLI profile) of one anonymous user.
type Scope struct {
	UserID    string
	SessionID string
}

// KV is key/value storage partitioned by Scope. It backs the per-session
// interview snapshot and résumé text.
type KV interface {
	// GetValue returns the value for key, and false when it is absent.
	GetValue(ctx context.Context, scope Scope, key string) (string, bool, error)

	// SetValue creates or overwrites the value for key.
	SetValue(ctx context.Context, scope Scope, key, value string) error

	// DeleteValue removes key. Deleting an absent key is not an error.
	DeleteValue(ctx context.Context, scope Scope, key string) error
}

// Repository defines the interface for persisting users and session values.
type Repository interface {
	KV

	// GetUser retrieves a user by their user ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// ClearScope removes every value stored under scope.
	ClearScope(ctx context.Context, scope Scope) (int64, error)

	// CleanupExpiredValues removes values not written within ttl.
	CleanupExpiredValues(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// ScopedStorage binds a KV to a single scope.
type ScopedStorage struct {
	kv    KV
	scope Scope
}

// Scoped returns a view of kv restricted to one user and session.
func Scoped(kv KV, userID, sessionID string) *ScopedStorage {
	return &ScopedStorage{kv: kv, scope: Scope{UserID: userID, SessionID: sessionID}}
}

// Get returns the value for key within the bound scope.
func (s *ScopedStorage) Get(ctx context.Context, key string) (string, bool, error) {
	return s.kv.GetValue(ctx, s.scope, key)
}

// Set writes the value for key within the bound scope.
func (s *ScopedStorage) Set(ctx context.Context, key, value string) error {
	return s.kv.SetValue(ctx, s.scope, key, value)
}

// Delete removes key within the bound scope.
func (s *ScopedStorage) Delete(ctx context.Context, key string) error {
	return s.kv.DeleteValue(ctx, s.scope, key)
}

// Scope returns the bound scope.
func (s *ScopedStorage) Scope() Scope {
	return s.scope
}
