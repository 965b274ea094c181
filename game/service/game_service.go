// Package service exposes the server's request/response operations: session
// directory RPCs, player record queries, and matchmaker entry points. It holds
// no game state of its own; sessions are reached only through the registry and
// the directory index.
package service

import (
	"context"

	"github.com/gridmatch/gridmatch/directory"
	"github.com/gridmatch/gridmatch/game/match"
	"github.com/gridmatch/gridmatch/game/pairing"
	"github.com/gridmatch/gridmatch/game/records"
)

// GameService defines all RPC-style operations served over HTTP and MCP.
type GameService interface {
	// Session directory
	CreateSession(ctx context.Context, mode string) (*SessionInfo, error)
	FindSession(ctx context.Context, mode string) (*FindResult, error)
	ListSessions(ctx context.Context) ([]SessionInfo, error)

	// Player records
	PlayerRecord(ctx context.Context, playerID string) (records.Record, error)
	Leaderboard(ctx context.Context, limit int) ([]records.Entry, error)
	RecordResult(ctx context.Context, playerID, outcome string) error

	// Matchmaker
	EnqueueMatchmaker(ctx context.Context, playerID, username string, properties map[string]string) (string, error)
	CancelMatchmaker(ctx context.Context, ticket string) error
	MatchmakerStatus(ctx context.Context, ticket string) (pairing.TicketStatus, error)
}

// SessionInfo describes one session for directory responses.
type SessionInfo struct {
	SessionID string      `json:"session_id"`
	Label     match.Label `json:"label"`
	Status    string      `json:"status,omitempty"`
	Players   int         `json:"players"`
	Connected int         `json:"connected,omitempty"`
}

// FindResult is the find-or-create response: an existing open session or a
// freshly created one.
type FindResult struct {
	SessionID string `json:"session_id"`
	Created   bool   `json:"created"`
}

// SessionRegistry is the slice of the match registry the service needs.
type SessionRegistry interface {
	Create(params match.Params) (*match.Actor, error)
	Get(id string) (*match.Actor, error)
}

// SessionIndex is the slice of the directory the service queries.
type SessionIndex interface {
	List() []directory.Entry
	FindOpen(mode string) (string, bool)
}

// RecordStore is the slice of the record store the service serves from.
type RecordStore interface {
	PlayerRecord(ctx context.Context, playerID string) (records.Record, error)
	Leaderboard(ctx context.Context, limit int) ([]records.Entry, error)
	RecordResult(playerID string, outcome string)
}

// Matchmaker is the waiting-pool surface exposed through the service.
type Matchmaker interface {
	Enqueue(playerID, username string, properties map[string]string) (string, error)
	Cancel(ticket string) error
	Status(ticket string) (pairing.TicketStatus, error)
}
