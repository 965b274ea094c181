// Package directory implements the queryable index of live sessions. Each
// session registers a small label describing whether it accepts joiners and
// which mode it plays; the find-session RPC filters on those fields.
package directory

import (
	"sync"

	"github.com/gridmatch/gridmatch/game/match"
)

// Entry pairs a session ID with its current label.
type Entry struct {
	SessionID string      `json:"session_id"`
	Label     match.Label `json:"label"`
}

// Index is the in-memory session directory. It holds no game state, only
// labels, and is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries map[string]match.Label
}

// NewIndex creates an empty directory.
func NewIndex() *Index {
	return &Index{entries: make(map[string]match.Label)}
}

// Register adds a session with its initial label.
func (i *Index) Register(sessionID string, label match.Label) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[sessionID] = label
}

// Update replaces a session's label. Updating an unknown session registers it;
// label updates can race session registration during actor startup.
func (i *Index) Update(sessionID string, label match.Label) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[sessionID] = label
}

// Remove drops a session from the index.
func (i *Index) Remove(sessionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.entries, sessionID)
}

// List returns every known session with its label.
func (i *Index) List() []Entry {
	i.mu.RLock()
	defer i.mu.RUnlock()
	entries := make([]Entry, 0, len(i.entries))
	for id, label := range i.entries {
		entries = append(entries, Entry{SessionID: id, Label: label})
	}
	return entries
}

// FindOpen returns the ID of one open session playing mode, if any exists.
func (i *Index) FindOpen(mode string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for id, label := range i.entries {
		if label.Open && label.Mode == mode {
			return id, true
		}
	}
	return "", false
}
