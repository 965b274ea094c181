package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gridmatch/gridmatch/game/match"
	"github.com/gridmatch/gridmatch/game/pairing"
	"github.com/gridmatch/gridmatch/game/records"
)

// ErrInvalidOutcome is returned by the manual record-result RPC for outcomes
// outside win/loss/draw.
var ErrInvalidOutcome = errors.New("outcome must be one of win, loss, draw")

// gameServiceImpl implements the GameService interface.
type gameServiceImpl struct {
	sessions SessionRegistry
	index    SessionIndex
	records  RecordStore
	pool     Matchmaker
}

// NewGameService creates a new game service instance.
func NewGameService(sessions SessionRegistry, index SessionIndex, recordStore RecordStore, pool Matchmaker) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		index:    index,
		records:  recordStore,
		pool:     pool,
	}
}

// CreateSession creates a new open session for the given mode.
func (s *gameServiceImpl) CreateSession(ctx context.Context, mode string) (*SessionInfo, error) {
	actor, err := s.sessions.Create(match.Params{Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	info := actor.Info()
	return &SessionInfo{
		SessionID: info.ID,
		Label:     match.Label{Open: true, Mode: info.Mode},
		Status:    info.Status,
		Players:   info.Players,
	}, nil
}

// FindSession returns one open session for the mode, creating a new one when
// the directory has none.
func (s *gameServiceImpl) FindSession(ctx context.Context, mode string) (*FindResult, error) {
	if mode == "" {
		mode = "classic"
	}
	if id, found := s.index.FindOpen(mode); found {
		return &FindResult{SessionID: id}, nil
	}
	created, err := s.CreateSession(ctx, mode)
	if err != nil {
		return nil, err
	}
	return &FindResult{SessionID: created.SessionID, Created: true}, nil
}

// ListSessions returns every session the directory knows, enriched with live
// state where the session is still running locally.
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	entries := s.index.List()
	result := make([]SessionInfo, 0, len(entries))
	for _, entry := range entries {
		info := SessionInfo{
			SessionID: entry.SessionID,
			Label:     entry.Label,
			Players:   entry.Label.Players,
		}
		if actor, err := s.sessions.Get(entry.SessionID); err == nil {
			live := actor.Info()
			info.Status = live.Status
			info.Players = live.Players
			info.Connected = live.Connected
		}
		result = append(result, info)
	}
	return result, nil
}

// PlayerRecord returns a player's stored statistics.
func (s *gameServiceImpl) PlayerRecord(ctx context.Context, playerID string) (records.Record, error) {
	return s.records.PlayerRecord(ctx, playerID)
}

// Leaderboard returns ranked player records.
func (s *gameServiceImpl) Leaderboard(ctx context.Context, limit int) ([]records.Entry, error) {
	return s.records.Leaderboard(ctx, limit)
}

// RecordResult applies a manually reported outcome to the caller's record.
func (s *gameServiceImpl) RecordResult(ctx context.Context, playerID, outcome string) error {
	switch outcome {
	case records.OutcomeWin, records.OutcomeLoss, records.OutcomeDraw:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidOutcome, outcome)
	}
	s.records.RecordResult(playerID, outcome)
	return nil
}

// EnqueueMatchmaker adds the player to the waiting pool.
func (s *gameServiceImpl) EnqueueMatchmaker(ctx context.Context, playerID, username string, properties map[string]string) (string, error) {
	return s.pool.Enqueue(playerID, username, properties)
}

// CancelMatchmaker withdraws a waiting ticket.
func (s *gameServiceImpl) CancelMatchmaker(ctx context.Context, ticket string) error {
	return s.pool.Cancel(ticket)
}

// MatchmakerStatus reports a ticket's state, including the session ID once
// matched.
func (s *gameServiceImpl) MatchmakerStatus(ctx context.Context, ticket string) (pairing.TicketStatus, error) {
	return s.pool.Status(ticket)
}
