// Package identity tracks the players known to the server and resolves their
// display names. Users are upserted whenever a connection authenticates, so
// the table lazily accumulates everyone who ever joined a session.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/gridmatch/gridmatch/storage"
)

// ErrUserNotFound is returned when a player ID has never been seen.
var ErrUserNotFound = errors.New("identity: user not found")

// User is one known player.
type User struct {
	PlayerID    string `json:"player_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// Resolver looks up display names for leaderboard rendering. Lookup failures
// degrade to placeholders at the call site, never to query failures.
type Resolver interface {
	ResolveDisplayName(ctx context.Context, playerID string) (string, error)
}

// Store records users and resolves their names.
type Store interface {
	Resolver
	Upsert(ctx context.Context, user User) error
}

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	player_id    TEXT PRIMARY KEY,
	username     TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore is the durable identity store.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the identity database at path, creating the schema if
// needed.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", storage.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open identity database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(usersSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create identity schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Upsert records or refreshes a user.
func (s *SQLiteStore) Upsert(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (player_id, username, display_name)
		VALUES (?, ?, ?)
		ON CONFLICT (player_id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			updated_at = CURRENT_TIMESTAMP`,
		user.PlayerID, user.Username, user.DisplayName)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", user.PlayerID, err)
	}
	return nil
}

// ResolveDisplayName returns the user's display name, falling back to the
// username when no display name was set.
func (s *SQLiteStore) ResolveDisplayName(ctx context.Context, playerID string) (string, error) {
	var username, displayName string
	err := s.db.QueryRowContext(ctx,
		`SELECT username, display_name FROM users WHERE player_id = ?`,
		playerID).Scan(&username, &displayName)
	if err == sql.ErrNoRows {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve user %s: %w", playerID, err)
	}
	if displayName != "" {
		return displayName, nil
	}
	return username, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// MemoryStore is an in-memory identity store for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

// Upsert implements Store.
func (m *MemoryStore) Upsert(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.PlayerID] = user
	return nil
}

// ResolveDisplayName implements Resolver.
func (m *MemoryStore) ResolveDisplayName(ctx context.Context, playerID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[playerID]
	if !ok {
		return "", ErrUserNotFound
	}
	if user.DisplayName != "" {
		return user.DisplayName, nil
	}
	return user.Username, nil
}
