// Package config holds the engine defaults, read from SKIRMISH_* variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const Prefix = "SKIRMISH_"

type Config struct {
	HistoryCapacity int           `env:"HISTORY_CAPACITY" envDefault:"100"`
	LogCapacity     int           `env:"LOG_CAPACITY" envDefault:"500"`
	LOSTTL          time.Duration `env:"LOS_TTL" envDefault:"500ms"`
	CritChance      float64       `env:"CRIT_CHANCE" envDefault:"0.05"`
	CritMultiplier  float64       `env:"CRIT_MULTIPLIER" envDefault:"1.5"`
	// UndoDepth 0 disables undo.
	UndoDepth int `env:"UNDO_DEPTH" envDefault:"10"`
	// Seed 0 picks a random seed per combat.
	Seed        uint64   `env:"SEED" envDefault:"0"`
	DataDirs    []string `env:"DATA_DIRS" envSeparator:","`
	StoreDriver string   `env:"STORE_DRIVER" envDefault:"file"`
	StorePath   string   `env:"STORE_PATH"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string   `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// FromMap parses vars as if they were the environment; keys carry the prefix.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath(cfg.StoreDriver)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the engine would silently clamp into nonsense.
func (c Config) Validate() error {
	switch {
	case c.HistoryCapacity < 1:
		return fmt.Errorf("history_capacity must be positive, got %d", c.HistoryCapacity)
	case c.LogCapacity < 1:
		return fmt.Errorf("log_capacity must be positive, got %d", c.LogCapacity)
	case c.LOSTTL < 0:
		return fmt.Errorf("los_ttl must not be negative, got %s", c.LOSTTL)
	case c.CritChance < 0 || c.CritChance > 1:
		return fmt.Errorf("crit_chance must be within [0,1], got %g", c.CritChance)
	case c.CritMultiplier < 1:
		return fmt.Errorf("crit_multiplier must be at least 1, got %g", c.CritMultiplier)
	case c.UndoDepth < 0:
		return fmt.Errorf("undo_depth must not be negative, got %d", c.UndoDepth)
	}
	switch c.StoreDriver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("store_driver must be file or sqlite, got %q", c.StoreDriver)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// DefaultStorePath is where snapshots go when no path is configured.
func DefaultStorePath(driver string) string {
	base := ".skirmish"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".skirmish")
	}
	if driver == "sqlite" {
		return filepath.Join(base, "skirmish.db")
	}
	return filepath.Join(base, "snapshots")
}

func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
