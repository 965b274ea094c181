// Package pairing forms sessions from a pool of waiting players. The pool is
// an explicitly owned, mutex-protected queue: players enqueue for a mode and
// receive a ticket, a background sweeper evicts waiters that outstay the
// configured TTL, and every successful pairing hands the full matched batch to
// a single Matched handler that creates exactly one session.
package pairing

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTicketNotFound = errors.New("pairing: ticket not found")
	ErrAlreadyWaiting = errors.New("pairing: player already waiting")
)

// Ticket states reported to pollers.
const (
	StatusWaiting = "waiting"
	StatusMatched = "matched"
	StatusExpired = "expired"
	StatusFailed  = "failed"
)

// Entry is one waiting player as handed to the Matched handler.
type Entry struct {
	Ticket     string
	PlayerID   string
	Username   string
	Properties map[string]string
	EnqueuedAt time.Time
}

// Mode returns the declared game mode, defaulting to "classic".
func (e Entry) Mode() string {
	if m := e.Properties["mode"]; m != "" {
		return m
	}
	return "classic"
}

// TicketStatus is the poll result for one ticket.
type TicketStatus struct {
	Ticket    string `json:"ticket"`
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
}

// MatchedFunc consumes one batch of matched players and returns the created
// session's ID. A failure is surfaced to the affected tickets, not retried.
type MatchedFunc func(entries []Entry) (sessionID string, err error)

// Pool is the waiting queue. All mutation happens under one mutex; the
// sweeper is the only background owner of evictions.
type Pool struct {
	onMatched MatchedFunc
	ttl       time.Duration

	mu       sync.Mutex
	waiting  map[string]*Entry        // ticket -> waiting entry
	order    []string                 // FIFO ticket order
	byPlayer map[string]string        // playerID -> ticket
	settled  map[string]*TicketStatus // terminal tickets kept for polling
	settleAt map[string]time.Time

	stop chan struct{}
	done chan struct{}
}

// NewPool creates a pool that pairs same-mode waiters through onMatched.
// Waiters older than ttl are evicted by Sweep.
func NewPool(onMatched MatchedFunc, ttl time.Duration) *Pool {
	return &Pool{
		onMatched: onMatched,
		ttl:       ttl,
		waiting:   make(map[string]*Entry),
		byPlayer:  make(map[string]string),
		settled:   make(map[string]*TicketStatus),
		settleAt:  make(map[string]time.Time),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run drives periodic eviction until Close is called.
func (p *Pool) Run(sweepInterval time.Duration) {
	defer close(p.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.Sweep(time.Now())
		case <-p.stop:
			return
		}
	}
}

// Close stops the sweeper.
func (p *Pool) Close() {
	close(p.stop)
	<-p.done
}

// Enqueue adds a player to the pool and immediately attempts a pairing.
// The returned ticket is the handle for polling and cancellation.
func (p *Pool) Enqueue(playerID, username string, properties map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, waiting := p.byPlayer[playerID]; waiting {
		return "", ErrAlreadyWaiting
	}

	ticket := uuid.NewString()
	entry := &Entry{
		Ticket:     ticket,
		PlayerID:   playerID,
		Username:   username,
		Properties: properties,
		EnqueuedAt: time.Now(),
	}
	p.waiting[ticket] = entry
	p.order = append(p.order, ticket)
	p.byPlayer[playerID] = ticket

	p.tryMatchLocked(entry.Mode())
	return ticket, nil
}

// Cancel removes a waiting ticket. Matched or settled tickets cannot be
// cancelled.
func (p *Pool) Cancel(ticket string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.waiting[ticket]
	if !ok {
		return ErrTicketNotFound
	}
	p.removeLocked(entry)
	return nil
}

// Status reports the current state of a ticket.
func (p *Pool) Status(ticket string) (TicketStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.waiting[ticket]; ok {
		return TicketStatus{Ticket: ticket, Status: StatusWaiting}, nil
	}
	if st, ok := p.settled[ticket]; ok {
		return *st, nil
	}
	return TicketStatus{}, ErrTicketNotFound
}

// WaitingCount returns the number of players currently in the pool.
func (p *Pool) WaitingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting)
}

// Sweep evicts waiters older than the TTL and drops settled tickets that have
// been pollable for another TTL window.
func (p *Pool) Sweep(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	evicted := 0
	for _, ticket := range append([]string(nil), p.order...) {
		entry, ok := p.waiting[ticket]
		if !ok {
			continue
		}
		if now.Sub(entry.EnqueuedAt) > p.ttl {
			p.removeLocked(entry)
			p.settleLocked(ticket, &TicketStatus{Ticket: ticket, Status: StatusExpired}, now)
			evicted++
			log.Printf("pairing: evicted stale waiter %s (ticket %s)", entry.PlayerID, ticket)
		}
	}

	for ticket, settledAt := range p.settleAt {
		if now.Sub(settledAt) > p.ttl {
			delete(p.settled, ticket)
			delete(p.settleAt, ticket)
		}
	}
	return evicted
}

// tryMatchLocked pairs the two oldest waiters declaring mode, if present.
// Caller holds p.mu.
func (p *Pool) tryMatchLocked(mode string) {
	var batch []*Entry
	for _, ticket := range p.order {
		entry, ok := p.waiting[ticket]
		if !ok || entry.Mode() != mode {
			continue
		}
		batch = append(batch, entry)
		if len(batch) == 2 {
			break
		}
	}
	if len(batch) < 2 {
		return
	}

	entries := make([]Entry, 0, len(batch))
	for _, entry := range batch {
		p.removeLocked(entry)
		entries = append(entries, *entry)
	}

	sessionID, err := p.onMatched(entries)
	now := time.Now()
	if err != nil {
		log.Printf("pairing: failed to create session for matched players: %v", err)
		for _, entry := range entries {
			p.settleLocked(entry.Ticket, &TicketStatus{Ticket: entry.Ticket, Status: StatusFailed}, now)
		}
		return
	}

	log.Printf("pairing: matched %d players into session %s (mode %s)", len(entries), sessionID, mode)
	for _, entry := range entries {
		p.settleLocked(entry.Ticket, &TicketStatus{
			Ticket:    entry.Ticket,
			Status:    StatusMatched,
			SessionID: sessionID,
		}, now)
	}
}

func (p *Pool) removeLocked(entry *Entry) {
	delete(p.waiting, entry.Ticket)
	delete(p.byPlayer, entry.PlayerID)
	for i, t := range p.order {
		if t == entry.Ticket {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *Pool) settleLocked(ticket string, st *TicketStatus, at time.Time) {
	p.settled[ticket] = st
	p.settleAt[ticket] = at
}
