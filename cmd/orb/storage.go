package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/newthinker/orb/internal/bars"
	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/storage/archive"
	"github.com/newthinker/orb/internal/storage/results"
	"go.uber.org/zap"
)

// openSource builds the configured bar source. csv maps symbols to files and
// overrides the config's csv section.
func (e *env) openSource(ctx context.Context, g core.Granularity, csv map[string]string) (bars.Source, func(), error) {
	noop := func() {}

	switch e.cfg.Storage.Bars.Backend {
	case "clickhouse":
		conn, err := bars.NewConn(ctx, e.cfg.Storage.Bars.DSN)
		if err != nil {
			return nil, noop, core.WrapError(core.ErrStorageFailed, err)
		}
		src := bars.NewClickHouseSource(conn, e.resolver.Location())
		if err := src.Migrate(ctx); err != nil {
			conn.Close()
			return nil, noop, err
		}
		e.log.Info("reading bars from clickhouse")
		return src, func() { conn.Close() }, nil

	case "yahoo":
		e.log.Info("reading bars from yahoo finance")
		return bars.NewYahooSource(e.resolver.Location()), noop, nil

	default:
		files := make(map[string]string)
		for sym, path := range e.cfg.Storage.Bars.CSV {
			files[e.registry.Canonical(sym)] = path
		}
		for sym, path := range csv {
			files[e.registry.Canonical(sym)] = path
		}
		if len(files) == 0 {
			return nil, noop, core.WrapError(core.ErrConfigMissing, fmt.Errorf("no csv files given (use --csv SYMBOL=path)"))
		}

		mem := bars.NewMemorySource()
		for sym, path := range files {
			if err := e.loadCSV(mem, sym, path, g); err != nil {
				return nil, noop, err
			}
			e.log.Info("loaded bars", zap.String("symbol", sym), zap.String("path", path), zap.Int("bars", mem.Len(sym, g)))
		}
		return mem, noop, nil
	}
}

// loadCSV reads one-minute bars from path and, for coarser granularities,
// stores the resampled series as well.
func (e *env) loadCSV(mem *bars.MemorySource, symbol, path string, g core.Granularity) error {
	f, err := os.Open(path)
	if err != nil {
		return core.WrapError(core.ErrNoData, err)
	}
	defer f.Close()

	data, err := bars.LoadCSV(f, e.resolver.Location())
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := mem.Add(symbol, core.Granularity1m, data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if g != core.Granularity1m {
		if err := mem.Add(symbol, g, bars.Resample(data, g.Duration())); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// openStore builds the configured result store.
func (e *env) openStore(ctx context.Context) (results.Store, func(), error) {
	switch strings.ToLower(e.cfg.Storage.Results.Backend) {
	case "postgres":
		pool, err := results.NewPool(ctx, e.cfg.Storage.Results.DSN)
		if err != nil {
			return nil, func() {}, core.WrapError(core.ErrStorageFailed, err)
		}
		if err := results.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, func() {}, core.WrapError(core.ErrStorageFailed, err)
		}
		e.log.Info("storing trades in postgres")
		return results.NewPostgresStore(pool), pool.Close, nil
	default:
		return results.NewMemoryStore(), func() {}, nil
	}
}

// openArchive returns nil when archiving is disabled.
func (e *env) openArchive() (archive.Storage, error) {
	if !e.cfg.Storage.Archive.Enabled {
		return nil, nil
	}
	return archive.Open(e.cfg.Archive())
}
