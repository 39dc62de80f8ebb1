package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/suderio/skirmish/internal/config"
	"github.com/suderio/skirmish/internal/data"
	"github.com/suderio/skirmish/internal/persistence"
	"github.com/suderio/skirmish/internal/session"
)

// app is what every command needs: settings, a logger, the data loader and
// a session engine, with its repository when persistence is on.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	loader *data.Loader
	engine *session.Engine
	repo   persistence.Repository
	close  func() error
}

// loadConfig starts from the SKIRMISH_* environment and lets the config
// file and flags override it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	pathSet := os.Getenv(config.Prefix+"STORE_PATH") != ""

	if viper.IsSet("history_capacity") {
		cfg.HistoryCapacity = viper.GetInt("history_capacity")
	}
	if viper.IsSet("log_capacity") {
		cfg.LogCapacity = viper.GetInt("log_capacity")
	}
	if viper.IsSet("los_ttl") {
		cfg.LOSTTL = viper.GetDuration("los_ttl")
	}
	if viper.IsSet("crit_chance") {
		cfg.CritChance = viper.GetFloat64("crit_chance")
	}
	if viper.IsSet("crit_multiplier") {
		cfg.CritMultiplier = viper.GetFloat64("crit_multiplier")
	}
	if viper.IsSet("undo_depth") {
		cfg.UndoDepth = viper.GetInt("undo_depth")
	}
	if s := viper.GetUint64("seed"); s != 0 {
		cfg.Seed = s
	}
	if dirs := viper.GetStringSlice("data_dirs"); len(dirs) > 0 {
		cfg.DataDirs = dirs
	}
	if s := viper.GetString("store_driver"); s != "" {
		cfg.StoreDriver = s
	}
	if s := viper.GetString("store_path"); s != "" {
		cfg.StorePath = s
		pathSet = true
	}
	if !pathSet {
		cfg.StorePath = config.DefaultStorePath(cfg.StoreDriver)
	}
	if s := viper.GetString("log_level"); s != "" {
		cfg.LogLevel = s
	}
	if s := viper.GetString("log_format"); s != "" {
		cfg.LogFormat = s
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newApp wires everything. With persist set, combats are saved to the
// configured store.
func newApp(persist bool, opts ...session.Option) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		loader: data.NewLoader(cfg.DataDirs),
		close:  func() error { return nil },
	}
	opts = append([]session.Option{session.WithConfig(cfg), session.WithLogger(logger)}, opts...)
	if persist {
		repo, closeFn, err := persistence.Open(cfg.StoreDriver, cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open %s store at %s: %w", cfg.StoreDriver, cfg.StorePath, err)
		}
		a.repo, a.close = repo, closeFn
		opts = append(opts, session.WithRepository(repo))
		logger.Debug("store opened", "driver", cfg.StoreDriver, "path", cfg.StorePath)
	}
	a.engine = session.NewEngine(opts...)
	return a, nil
}

// spec loads an encounter by name or path. A configured seed wins over the
// file's.
func (a *app) spec(ref string) (session.EncounterSpec, error) {
	enc, scoped, err := a.loader.LoadEncounter(ref)
	if err != nil {
		return session.EncounterSpec{}, err
	}
	spec, err := session.FromEncounter(scoped, enc)
	if err != nil {
		return spec, err
	}
	if a.cfg.Seed != 0 {
		spec.Seed = a.cfg.Seed
	}
	return spec, nil
}

// start creates the combat for ref and returns its id.
func (a *app) start(ctx context.Context, ref string) (string, error) {
	spec, err := a.spec(ref)
	if err != nil {
		return "", err
	}
	snap, err := a.engine.CreateEncounter(ctx, spec)
	if err != nil {
		return "", err
	}
	return snap.ID, nil
}
