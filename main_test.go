package main

import (
	"context"
	"testing"
	"time"

	"github.com/gridmatch/gridmatch/config"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName == "" {
		t.Error("AppName should not be empty")
	}
}

func TestInitializeServices(t *testing.T) {
	cfg := config.Config{
		DatabasePath:            ":memory:",
		TickInterval:            time.Second,
		MatchmakerTTL:           time.Minute,
		MatchmakerSweepInterval: time.Second,
	}

	svcs, err := initializeServices(cfg)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer func() {
		svcs.pool.Close()
		svcs.registry.Shutdown()
		svcs.users.Close()
		svcs.kv.Close()
	}()

	if svcs.game == nil || svcs.hub == nil {
		t.Fatal("Expected all services to be initialized")
	}

	// The wiring is live end to end: a created session is resolvable through
	// the registry the hub serves from.
	info, err := svcs.game.CreateSession(context.Background(), "classic")
	if err != nil {
		t.Fatalf("CreateSession through wired services failed: %v", err)
	}
	if _, err := svcs.registry.Get(info.SessionID); err != nil {
		t.Errorf("Created session not resolvable: %v", err)
	}
}
