package main

import (
	"fmt"
	"time"

	"github.com/newthinker/orb/internal/config"
	"github.com/newthinker/orb/internal/cost"
	"github.com/newthinker/orb/internal/instrument"
	"github.com/newthinker/orb/internal/logger"
	"github.com/newthinker/orb/internal/session"
	"go.uber.org/zap"
)

// env is everything a command needs, built once from the config file.
type env struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *instrument.Registry
	resolver *session.Resolver
	costs    *cost.Model
}

// setup loads and validates the config and builds the runtime objects.
// Callers must Sync the logger.
func setup() (*env, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log, err := logger.New(cfg.Log.Development || debug, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}

	e := &env{cfg: cfg, log: log}
	if e.registry, err = cfg.Registry(); err != nil {
		return nil, err
	}
	if e.resolver, err = cfg.Resolver(); err != nil {
		return nil, err
	}
	if e.costs, err = cfg.CostModel(e.registry); err != nil {
		return nil, err
	}
	return e, nil
}

// parseDay parses YYYY-MM-DD as a trading day in the session time zone.
func (e *env) parseDay(s, flag string) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, s, e.resolver.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date format (expected YYYY-MM-DD): %w", flag, err)
	}
	return d, nil
}
