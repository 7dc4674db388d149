package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/careermate/internal/domain"
	"github.com/ashureev/careermate/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeRetries   = 3
	writeRetryBase = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_last_seen ON users(last_seen_at);

	CREATE TABLE IF NOT EXISTS session_values (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id, key)
	);
	CREATE INDEX IF NOT EXISTS idx_session_values_updated ON session_values(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	err := shared.RetryOnConflict(ctx, writeRetries, writeRetryBase, func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.Username, user.LastSeenAt.Unix(),
			user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// GetValue returns a session value.
func (s *SQLiteStore) GetValue(ctx context.Context, scope Scope, key string) (string, bool, error) {
	query := `SELECT value FROM session_values WHERE user_id = ? AND session_id = ? AND key = ?`

	var value string
	err := s.db.QueryRowContext(ctx, query, scope.UserID, scope.SessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get session value %q: %w", key, err)
	}
	return value, true, nil
}

// SetValue creates or overwrites a session value.
// Retries with exponential backoff while SQLite reports a busy database.
func (s *SQLiteStore) SetValue(ctx context.Context, scope Scope, key, value string) error {
	query := `
		INSERT INTO session_values (user_id, session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`

	err := shared.RetryOnConflict(ctx, writeRetries, writeRetryBase, func() error {
		_, err := s.db.ExecContext(ctx, query, scope.UserID, scope.SessionID, key, value, time.Now().Unix())
		return err
	})
	if err != nil {
		return fmt.Errorf("set session value %q: %w", key, err)
	}
	return nil
}

// DeleteValue removes a session value.
func (s *SQLiteStore) DeleteValue(ctx context.Context, scope Scope, key string) error {
	query := `DELETE FROM session_values WHERE user_id = ? AND session_id = ? AND key = ?`

	err := shared.RetryOnConflict(ctx, writeRetries, writeRetryBase, func() error {
		_, err := s.db.ExecContext(ctx, query, scope.UserID, scope.SessionID, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete session value %q: %w", key, err)
	}
	return nil
}

// ClearScope removes every value stored for a user and session.
func (s *SQLiteStore) ClearScope(ctx context.Context, scope Scope) (int64, error) {
	query := `DELETE FROM session_values WHERE user_id = ? AND session_id = ?`
	result, err := s.db.ExecContext(ctx, query, scope.UserID, scope.SessionID)
	if err != nil {
		return 0, fmt.Errorf("clear session scope: %w", err)
	}
	return result.RowsAffected()
}

// CleanupExpiredValues removes values older than TTL.
func (s *SQLiteStore) CleanupExpiredValues(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `DELETE FROM session_values WHERE updated_at < ?`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired session values: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
