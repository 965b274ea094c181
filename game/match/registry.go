package match

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
)

// Transport delivers encoded frames to connected presences. Delivery to a
// presence that disconnected in the meantime is silently dropped.
type Transport interface {
	Send(op OpCode, payload []byte, to []Presence)
}

// Directory is the queryable session index the registry keeps in sync.
type Directory interface {
	Register(sessionID string, label Label)
	Update(sessionID string, label Label)
	Remove(sessionID string)
}

// Registry owns the set of live session actors.
type Registry struct {
	transport    Transport
	directory    Directory
	recorder     Recorder
	tickInterval time.Duration

	mu     sync.RWMutex
	actors map[string]*Actor
}

// NewRegistry creates an empty registry. Every session it creates shares the
// given transport, directory, and recorder.
func NewRegistry(transport Transport, directory Directory, recorder Recorder, tickInterval time.Duration) *Registry {
	return &Registry{
		transport:    transport,
		directory:    directory,
		recorder:     recorder,
		tickInterval: tickInterval,
		actors:       make(map[string]*Actor),
	}
}

// dispatcher binds one session to the shared transport and directory.
type dispatcher struct {
	sessionID string
	transport Transport
	directory Directory
}

func (d *dispatcher) Send(op OpCode, payload []byte, to []Presence) {
	d.transport.Send(op, payload, to)
}

func (d *dispatcher) UpdateLabel(label Label) {
	d.directory.Update(d.sessionID, label)
}

// Create starts a new session actor and registers its label with the
// directory. An empty params.ID gets a generated identifier.
func (r *Registry) Create(params Params) (*Actor, error) {
	if params.ID == "" {
		params.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actors[params.ID]; exists {
		return nil, ErrSessionAlreadyExists
	}

	state := NewState(params)
	d := &dispatcher{sessionID: params.ID, transport: r.transport, directory: r.directory}
	actor := newActor(state, d, r.recorder, r.tickInterval, r.remove)

	r.actors[params.ID] = actor
	r.directory.Register(params.ID, state.Label())
	return actor, nil
}

// Get retrieves a live session actor by ID.
func (r *Registry) Get(id string) (*Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actor, exists := r.actors[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return actor, nil
}

// List returns all live session actors.
func (r *Registry) List() []*Actor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Actor, 0, len(r.actors))
	for _, actor := range r.actors {
		result = append(result, actor)
	}
	return result
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}

// remove drops a stopped actor and its directory entry. Called by the actor
// itself on termination.
func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.actors, id)
	r.mu.Unlock()
	r.directory.Remove(id)
}

// Shutdown terminates every live session and waits for the actors to stop.
func (r *Registry) Shutdown() {
	for _, actor := range r.List() {
		actor.Terminate()
	}
	for _, actor := range r.List() {
		<-actor.Done()
	}
}
