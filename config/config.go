// Package config loads server configuration from the environment. Flags in
// main override the address fields for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the match server.
type Config struct {
	Host string `env:"GRIDMATCH_HOST" envDefault:"localhost"`
	Port int    `env:"GRIDMATCH_PORT" envDefault:"8080"`

	// DatabasePath is the SQLite file backing the KV store and identity
	// tables. ":memory:" runs fully ephemeral.
	DatabasePath string `env:"GRIDMATCH_DB" envDefault:"gridmatch.db"`

	// TickInterval drives the per-session scheduler.
	TickInterval time.Duration `env:"GRIDMATCH_TICK_INTERVAL" envDefault:"1s"`

	// MatchmakerTTL bounds how long a player may wait in the pairing pool
	// before being evicted.
	MatchmakerTTL time.Duration `env:"GRIDMATCH_MATCHMAKER_TTL" envDefault:"2m"`

	// MatchmakerSweepInterval is how often the pool evicts stale waiters.
	MatchmakerSweepInterval time.Duration `env:"GRIDMATCH_MATCHMAKER_SWEEP" envDefault:"10s"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
