// Package records maintains durable per-player game statistics and serves
// leaderboard queries. Updates are best-effort: a storage failure is logged
// and swallowed so a stats hiccup can never stall a running game.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/gridmatch/gridmatch/identity"
	"github.com/gridmatch/gridmatch/storage"
)

const (
	// statsCollection and statsKey address one record per player in the KV
	// store, owned by that player.
	statsCollection = "player_stats"
	statsKey        = "stats"

	initialRating = 1200
	winRating     = 25
	lossRating    = 20
	drawRating    = 5
)

// Outcome values accepted by RecordResult.
const (
	OutcomeWin  = "win"
	OutcomeLoss = "loss"
	OutcomeDraw = "draw"
)

// ErrInvalidOutcome is returned for outcomes outside win/loss/draw.
var ErrInvalidOutcome = errors.New("records: invalid outcome")

// Record is one player's persisted statistics.
type Record struct {
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`
	Draws         int `json:"draws"`
	TotalGames    int `json:"totalGames"`
	WinStreak     int `json:"winStreak"`
	CurrentStreak int `json:"currentStreak"`
	Rating        int `json:"rating"`
}

// newRecord returns the default record a player starts from.
func newRecord() Record {
	return Record{Rating: initialRating}
}

// apply mutates the record for one game outcome.
func (r *Record) apply(outcome string) error {
	r.TotalGames++
	switch outcome {
	case OutcomeWin:
		r.Wins++
		r.CurrentStreak++
		if r.CurrentStreak > r.WinStreak {
			r.WinStreak = r.CurrentStreak
		}
		r.Rating += winRating
	case OutcomeLoss:
		r.Losses++
		r.CurrentStreak = 0
		r.Rating -= lossRating
		if r.Rating < 0 {
			r.Rating = 0
		}
	case OutcomeDraw:
		r.Draws++
		r.Rating += drawRating
	default:
		r.TotalGames--
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	return nil
}

// Entry is one leaderboard row.
type Entry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Record
}

// Store reads and writes player records through the durable KV store.
type Store struct {
	kv    storage.KV
	names identity.Resolver

	// mu serializes the read-modify-write cycle. The KV store offers no
	// atomic update, so two sessions concluding for the same player in the
	// same instant would otherwise lose one update.
	mu sync.Mutex
}

// NewStore creates a record store over the given KV and name resolver.
func NewStore(kv storage.KV, names identity.Resolver) *Store {
	return &Store{kv: kv, names: names}
}

// RecordResult applies one game outcome to a player's record. Failures are
// logged and swallowed; game sessions must never block on stats.
func (s *Store) RecordResult(playerID string, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	record, err := s.load(ctx, playerID)
	if err != nil {
		log.Printf("records: failed to read stats for %s: %v", playerID, err)
		return
	}

	if err := record.apply(outcome); err != nil {
		log.Printf("records: dropping result for %s: %v", playerID, err)
		return
	}

	if err := s.save(ctx, playerID, record); err != nil {
		log.Printf("records: failed to write stats for %s: %v", playerID, err)
		return
	}
	log.Printf("records: %s recorded for %s (rating %d)", outcome, playerID, record.Rating)
}

// PlayerRecord returns the stored record for a player, or the default record
// when none exists yet.
func (s *Store) PlayerRecord(ctx context.Context, playerID string) (Record, error) {
	return s.load(ctx, playerID)
}

// Leaderboard scans up to limit records, resolves display names, and ranks
// players by rating descending. Ties keep scan order (stable sort); ranks are
// 1-based positions. A name lookup failure degrades to a placeholder.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	objects, err := s.kv.List(ctx, statsCollection, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list player stats: %w", err)
	}

	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		var record Record
		if err := json.Unmarshal(obj.Value, &record); err != nil {
			log.Printf("records: skipping corrupt stats for %s: %v", obj.Owner, err)
			continue
		}

		username, err := s.names.ResolveDisplayName(ctx, obj.Owner)
		if err != nil {
			log.Printf("records: could not resolve name for %s: %v", obj.Owner, err)
			username = "Unknown"
		}

		entries = append(entries, Entry{
			PlayerID: obj.Owner,
			Username: username,
			Record:   record,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Rating > entries[j].Rating
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (s *Store) load(ctx context.Context, playerID string) (Record, error) {
	value, err := s.kv.Read(ctx, statsCollection, statsKey, playerID)
	if errors.Is(err, storage.ErrNotFound) {
		return newRecord(), nil
	}
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(value, &record); err != nil {
		return Record{}, fmt.Errorf("failed to decode stats for %s: %w", playerID, err)
	}
	return record, nil
}

func (s *Store) save(ctx context.Context, playerID string, record Record) error {
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.kv.Write(ctx, storage.Object{
		Collection:      statsCollection,
		Key:             statsKey,
		Owner:           playerID,
		Value:           value,
		PermissionRead:  storage.PermissionPublicRead,
		PermissionWrite: storage.PermissionOwnerWrite,
	})
}
