// Package storage provides the durable key-value blob store the game server
// persists through. Objects are JSON blobs keyed by (collection, key, owner)
// with read/write permission markers. No multi-key transactional guarantee is
// offered or assumed by callers.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("storage: object not found")

// Permission markers stored alongside each object, mirroring the visibility
// levels of the hosting runtime's storage engine.
const (
	PermissionNoRead     = 0
	PermissionOwnerRead  = 1
	PermissionPublicRead = 2

	PermissionNoWrite    = 0
	PermissionOwnerWrite = 1
)

// Object is one stored blob with its addressing and permissions.
type Object struct {
	Collection      string
	Key             string
	Owner           string
	Value           []byte
	PermissionRead  int
	PermissionWrite int
}

// KV is the narrow store contract the rest of the server depends on.
type KV interface {
	// Read returns the blob stored under (collection, key, owner), or
	// ErrNotFound.
	Read(ctx context.Context, collection, key, owner string) ([]byte, error)

	// Write upserts a blob under (collection, key, owner).
	Write(ctx context.Context, obj Object) error

	// List returns up to limit objects in a collection across all owners,
	// in stable insertion order. A limit <= 0 applies a server default.
	List(ctx context.Context, collection string, limit int) ([]Object, error)

	// Close releases the underlying store.
	Close() error
}

// defaultListLimit bounds unbounded collection scans.
const defaultListLimit = 100
