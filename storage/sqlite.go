package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schema keeps one row per object. insertion_seq preserves scan order for
// stable leaderboard ties.
const schema = `
CREATE TABLE IF NOT EXISTS objects (
	collection       TEXT NOT NULL,
	key              TEXT NOT NULL,
	owner            TEXT NOT NULL,
	value            BLOB NOT NULL,
	permission_read  INTEGER NOT NULL DEFAULT 1,
	permission_write INTEGER NOT NULL DEFAULT 1,
	insertion_seq    INTEGER PRIMARY KEY AUTOINCREMENT,
	updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (collection, key, owner)
);
CREATE INDEX IF NOT EXISTS idx_objects_collection ON objects (collection, insertion_seq);
`

// SQLiteKV is the durable KV implementation backed by an embedded SQLite
// database.
type SQLiteKV struct {
	db *sql.DB
}

// DSN builds a connection string with a busy timeout so that the storage and
// identity handles can share one database file without SQLITE_BUSY errors.
func DSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)"
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite handles one writer at a time; serialize at the pool level to
	// avoid SQLITE_BUSY under concurrent session completions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create storage schema: %w", err)
	}
	return &SQLiteKV{db: db}, nil
}

// Read implements KV.
func (s *SQLiteKV) Read(ctx context.Context, collection, key, owner string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM objects WHERE collection = ? AND key = ? AND owner = ?`,
		collection, key, owner).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", collection, key, err)
	}
	return value, nil
}

// Write implements KV.
func (s *SQLiteKV) Write(ctx context.Context, obj Object) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (collection, key, owner, value, permission_read, permission_write)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, key, owner) DO UPDATE SET
			value = excluded.value,
			permission_read = excluded.permission_read,
			permission_write = excluded.permission_write,
			updated_at = CURRENT_TIMESTAMP`,
		obj.Collection, obj.Key, obj.Owner, obj.Value, obj.PermissionRead, obj.PermissionWrite)
	if err != nil {
		return fmt.Errorf("failed to write object %s/%s: %w", obj.Collection, obj.Key, err)
	}
	return nil
}

// List implements KV.
func (s *SQLiteKV) List(ctx context.Context, collection string, limit int) ([]Object, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, key, owner, value, permission_read, permission_write
		FROM objects WHERE collection = ?
		ORDER BY insertion_seq ASC
		LIMIT ?`, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var obj Object
		if err := rows.Scan(&obj.Collection, &obj.Key, &obj.Owner, &obj.Value,
			&obj.PermissionRead, &obj.PermissionWrite); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// Close implements KV.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
