package records

import (
	"context"
	"testing"

	"github.com/gridmatch/gridmatch/identity"
	"github.com/gridmatch/gridmatch/storage"
)

func newTestStore(t *testing.T) (*Store, *identity.MemoryStore) {
	t.Helper()
	users := identity.NewMemoryStore()
	return NewStore(storage.NewMemoryKV(), users), users
}

func TestPlayerRecord_DefaultsForUnknownPlayer(t *testing.T) {
	store, _ := newTestStore(t)

	record, err := store.PlayerRecord(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("PlayerRecord failed: %v", err)
	}
	if record.Rating != initialRating {
		t.Errorf("Default rating = %d, want %d", record.Rating, initialRating)
	}
	if record.TotalGames != 0 || record.Wins != 0 {
		t.Errorf("Default record not empty: %+v", record)
	}
}

func TestRecordResult_Win(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.RecordResult("alice", OutcomeWin)

	record, err := store.PlayerRecord(ctx, "alice")
	if err != nil {
		t.Fatalf("PlayerRecord failed: %v", err)
	}
	if record.Wins != 1 || record.TotalGames != 1 {
		t.Errorf("Record = %+v", record)
	}
	if record.Rating != initialRating+winRating {
		t.Errorf("Rating = %d, want %d", record.Rating, initialRating+winRating)
	}
	if record.CurrentStreak != 1 || record.WinStreak != 1 {
		t.Errorf("Streaks = %d/%d, want 1/1", record.CurrentStreak, record.WinStreak)
	}
}

func TestRecordResult_StreakTracking(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, outcome := range []string{OutcomeWin, OutcomeWin, OutcomeWin, OutcomeLoss, OutcomeWin} {
		store.RecordResult("alice", outcome)
	}

	record, _ := store.PlayerRecord(ctx, "alice")
	if record.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", record.CurrentStreak)
	}
	if record.WinStreak != 3 {
		t.Errorf("WinStreak = %d, want 3 (best run preserved)", record.WinStreak)
	}
	if record.Wins != 4 || record.Losses != 1 || record.TotalGames != 5 {
		t.Errorf("Record = %+v", record)
	}
}

func TestRecordResult_DrawKeepsStreak(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.RecordResult("alice", OutcomeWin)
	store.RecordResult("alice", OutcomeDraw)

	record, _ := store.PlayerRecord(ctx, "alice")
	if record.CurrentStreak != 1 {
		t.Errorf("Draw reset the streak: %d", record.CurrentStreak)
	}
	if record.Rating != initialRating+winRating+drawRating {
		t.Errorf("Rating = %d", record.Rating)
	}
	if record.Draws != 1 || record.TotalGames != 2 {
		t.Errorf("Record = %+v", record)
	}
}

func TestRecordResult_RatingFloorsAtZero(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// 1200 / 20 = 60 losses drain the rating; more must not go negative.
	for i := 0; i < 65; i++ {
		store.RecordResult("alice", OutcomeLoss)
	}

	record, _ := store.PlayerRecord(ctx, "alice")
	if record.Rating != 0 {
		t.Errorf("Rating = %d, want 0", record.Rating)
	}
	if record.TotalGames != 65 {
		t.Errorf("TotalGames = %d, want 65", record.TotalGames)
	}
}

func TestRecordResult_InvalidOutcomeDropped(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.RecordResult("alice", "victory")

	record, _ := store.PlayerRecord(ctx, "alice")
	if record.TotalGames != 0 {
		t.Errorf("Invalid outcome counted: %+v", record)
	}
}

func TestLeaderboard_RanksByRating(t *testing.T) {
	store, users := newTestStore(t)
	ctx := context.Background()

	users.Upsert(ctx, identity.User{PlayerID: "alice", Username: "Alice"})
	users.Upsert(ctx, identity.User{PlayerID: "bob", Username: "Bob"})
	users.Upsert(ctx, identity.User{PlayerID: "carol", Username: "Carol"})

	// alice: two wins (1250), carol: one draw (1205), bob: one loss (1180).
	store.RecordResult("alice", OutcomeWin)
	store.RecordResult("alice", OutcomeWin)
	store.RecordResult("bob", OutcomeLoss)
	store.RecordResult("carol", OutcomeDraw)

	entries, err := store.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	want := []struct {
		playerID string
		username string
		rating   int
	}{
		{"alice", "Alice", 1250},
		{"carol", "Carol", 1205},
		{"bob", "Bob", 1180},
	}
	for i, w := range want {
		e := entries[i]
		if e.Rank != i+1 {
			t.Errorf("Entry %d rank = %d", i, e.Rank)
		}
		if e.PlayerID != w.playerID || e.Username != w.username || e.Rating != w.rating {
			t.Errorf("Entry %d = %+v, want %+v", i, e, w)
		}
	}
}

func TestLeaderboard_TiesKeepInsertionOrder(t *testing.T) {
	store, users := newTestStore(t)
	ctx := context.Background()

	users.Upsert(ctx, identity.User{PlayerID: "alice", Username: "Alice"})
	users.Upsert(ctx, identity.User{PlayerID: "bob", Username: "Bob"})

	store.RecordResult("alice", OutcomeWin)
	store.RecordResult("bob", OutcomeWin)

	entries, err := store.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if entries[0].PlayerID != "alice" || entries[1].PlayerID != "bob" {
		t.Errorf("Tie order not stable: %+v", entries)
	}
}

func TestLeaderboard_UnknownNameFallsBack(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.RecordResult("ghost", OutcomeWin)

	entries, err := store.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "Unknown" {
		t.Errorf("Entries = %+v", entries)
	}
}
