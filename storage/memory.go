package storage

import (
	"context"
	"sync"
)

// MemoryKV is an in-memory KV used by tests and ephemeral deployments. It
// preserves insertion order for List, matching the SQLite implementation.
type MemoryKV struct {
	mu      sync.RWMutex
	objects map[memoryKey]*Object
	order   []memoryKey
}

type memoryKey struct {
	collection string
	key        string
	owner      string
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{objects: make(map[memoryKey]*Object)}
}

// Read implements KV.
func (m *MemoryKV) Read(ctx context.Context, collection, key, owner string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[memoryKey{collection, key, owner}]
	if !ok {
		return nil, ErrNotFound
	}
	value := make([]byte, len(obj.Value))
	copy(value, obj.Value)
	return value, nil
}

// Write implements KV.
func (m *MemoryKV) Write(ctx context.Context, obj Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKey{obj.Collection, obj.Key, obj.Owner}
	stored := obj
	stored.Value = make([]byte, len(obj.Value))
	copy(stored.Value, obj.Value)
	if _, exists := m.objects[k]; !exists {
		m.order = append(m.order, k)
	}
	m.objects[k] = &stored
	return nil
}

// List implements KV.
func (m *MemoryKV) List(ctx context.Context, collection string, limit int) ([]Object, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var objects []Object
	for _, k := range m.order {
		if k.collection != collection {
			continue
		}
		objects = append(objects, *m.objects[k])
		if len(objects) >= limit {
			break
		}
	}
	return objects, nil
}

// Close implements KV.
func (m *MemoryKV) Close() error { return nil }
