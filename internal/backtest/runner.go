// Package backtest runs the trade engine over a grid of days, slots and
// parameter sets and summarizes the outcome in R.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/engine"
	"github.com/newthinker/orb/internal/metrics"
	"github.com/newthinker/orb/internal/storage/archive"
	"github.com/newthinker/orb/internal/storage/results"
)

// Config bounds a batch.
type Config struct {
	Workers int           `mapstructure:"workers"`
	Budget  time.Duration `mapstructure:"budget"` // zero means no wall-clock limit
	// IncludeWeekends evaluates Saturday and Sunday trading days too.
	IncludeWeekends bool `mapstructure:"include_weekends"`
}

// DefaultConfig returns four workers without a budget.
func DefaultConfig() Config {
	return Config{Workers: 4}
}

// Request is the batch to run.
type Request struct {
	Symbols []string
	From    time.Time // first trading day, inclusive
	To      time.Time // last trading day, inclusive
	Slots   []string  // empty means every configured slot
	Grid    []engine.Params
}

// Runner evaluates batches.
type Runner struct {
	engine  *engine.Engine
	cfg     Config
	store   results.Store
	archive archive.Storage
	metrics *metrics.Registry
	logger  *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists per-trade rows.
func WithStore(s results.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithArchive files the JSON report.
func WithArchive(a archive.Storage) Option {
	return func(r *Runner) { r.archive = a }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *metrics.Registry) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Runner.
func New(e *engine.Engine, cfg Config, opts ...Option) (*Runner, error) {
	if e == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("engine is required"))
	}
	if cfg.Workers <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("workers must be positive, got %d", cfg.Workers))
	}
	if cfg.Budget < 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("budget cannot be negative"))
	}
	r := &Runner{engine: e, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Jobs expands a request into sessions, ordered by day, slot and symbol.
// Symbols are returned in canonical form.
func (r *Runner) Jobs(req Request) ([]Job, error) {
	if len(req.Symbols) == 0 {
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("no symbols"))
	}
	if req.To.Before(req.From) {
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("range ends before it starts"))
	}

	symbols, err := r.symbols(req.Symbols)
	if err != nil {
		return nil, err
	}

	slots := req.Slots
	if len(slots) == 0 {
		slots = r.engine.Resolver().Slots()
	}

	loc := r.engine.Resolver().Location()
	first := time.Date(req.From.Year(), req.From.Month(), req.From.Day(), 0, 0, 0, 0, loc)
	last := time.Date(req.To.Year(), req.To.Month(), req.To.Day(), 0, 0, 0, 0, loc)

	var jobs []Job
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if !r.cfg.IncludeWeekends && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
			continue
		}
		for _, slot := range slots {
			for _, sym := range symbols {
				jobs = append(jobs, Job{Symbol: sym, Day: day, Slot: slot})
			}
		}
	}
	return jobs, nil
}

// Run evaluates every job against every distinct parameter set. When the
// budget runs out the partial report is returned with StatusTimeout; any other
// failure aborts the batch.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	if len(req.Grid) == 0 {
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("empty parameter grid"))
	}
	for _, p := range req.Grid {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	if grid := engine.Unique(req.Grid); len(grid) < len(req.Grid) {
		r.logger.Warn("dropping repeated parameter sets", zap.Int("requested", len(req.Grid)), zap.Int("distinct", len(grid)))
		req.Grid = grid
	}
	jobs, err := r.Jobs(req)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		From:    req.From,
		To:      req.To,
		Slots:   req.Slots,
	}
	report.Symbols, _ = r.symbols(req.Symbols)
	if len(report.Slots) == 0 {
		report.Slots = r.engine.Resolver().Slots()
	}

	log := r.logger.With(zap.String("run_id", report.RunID))
	log.Info("batch started",
		zap.Strings("symbols", report.Symbols),
		zap.Int("sessions", len(jobs)),
		zap.Int("params", len(req.Grid)),
		zap.Int("workers", r.cfg.Workers),
	)

	runCtx := ctx
	if r.cfg.Budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Budget)
		defer cancel()
	}

	var (
		mu       sync.Mutex
		trades   []Trade
		sessions int
	)

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(r.cfg.Workers)
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := r.runJob(gctx, job, req.Grid)
			if err != nil {
				return err
			}
			mu.Lock()
			trades = append(trades, out...)
			sessions++
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	if err == nil && sessions < len(jobs) {
		err = runCtx.Err()
	}

	report.Status = StatusSuccess
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			report.Status = StatusTimeout
			log.Warn("batch budget exhausted", zap.Duration("budget", r.cfg.Budget), zap.Int("sessions_done", sessions))
		} else {
			report.Status = StatusFailed
			r.recordBatch(report)
			log.Error("batch failed", zap.Error(err))
			return nil, err
		}
	}

	sortTrades(trades)
	report.Trades = trades
	report.Sessions = sessions
	report.Groups, report.States = summarize(trades)
	report.Finished = time.Now()
	r.recordBatch(report)

	if err := r.persist(ctx, report); err != nil {
		log.Error("persist report", zap.Error(err))
		return report, err
	}

	log.Info("batch finished",
		zap.String("status", report.Status),
		zap.Int("trades", len(trades)),
		zap.Int("viable", report.States[engine.StateViable]),
		zap.Duration("duration", report.Finished.Sub(report.Started)),
	)
	return report, nil
}

// runJob loads one session and evaluates the whole grid against it.
func (r *Runner) runJob(ctx context.Context, job Job, grid []engine.Params) ([]Trade, error) {
	if r.metrics != nil {
		r.metrics.WorkerInc()
		defer r.metrics.WorkerDec()
	}
	start := time.Now()

	s, err := r.engine.Load(ctx, job.Symbol, job.Day, job.Slot)
	if err != nil {
		return nil, err
	}

	out := make([]Trade, 0, len(grid))
	for _, p := range grid {
		res, err := s.Evaluate(p)
		if err != nil {
			t, ok := tradeFromError(job, p, err)
			if !ok {
				return nil, fmt.Errorf("%s %s %s %s: %w", job.Symbol, job.Day.Format(time.DateOnly), job.Slot, p.Key(), err)
			}
			r.logger.Debug("trade rejected", zap.String("symbol", job.Symbol), zap.String("slot", job.Slot), zap.Error(err))
			out = append(out, t)
			r.recordTrade(t)
			continue
		}
		t := tradeFromResult(res)
		if t.State != engine.StateViable {
			r.logger.Debug("trade not counted",
				zap.String("symbol", t.Symbol),
				zap.Time("day", t.TradingDay),
				zap.String("slot", t.Slot),
				zap.String("params", t.ParamsKey),
				zap.String("state", string(t.State)),
			)
		}
		out = append(out, t)
		r.recordTrade(t)
	}

	if r.metrics != nil {
		r.metrics.RecordSimulation(time.Since(start).Seconds())
	}
	return out, nil
}

func (r *Runner) recordTrade(t Trade) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordTrade(string(t.State))
	if t.State == engine.StateRejected {
		r.metrics.RecordGateRejection(t.Symbol)
	}
}

func (r *Runner) recordBatch(rep *Report) {
	if r.metrics == nil {
		return
	}
	end := rep.Finished
	if end.IsZero() {
		end = time.Now()
	}
	r.metrics.RecordBatch(rep.Status, end.Sub(rep.Started).Seconds())
}

// persist stores trade rows and files the report. Both are optional.
func (r *Runner) persist(ctx context.Context, rep *Report) error {
	if r.store != nil && len(rep.Trades) > 0 {
		rows := make([]results.Record, len(rep.Trades))
		for i, t := range rep.Trades {
			rows[i] = t.Record(rep.RunID)
		}
		if err := r.store.InsertBulk(ctx, rows); err != nil {
			return core.WrapError(core.ErrStorageFailed, fmt.Errorf("store trades: %w", err))
		}
	}
	if r.archive != nil {
		if err := archive.SaveJSON(ctx, r.archive, archive.ReportKey(rep.RunID, rep.Started), rep); err != nil {
			return err
		}
	}
	return nil
}

// symbols runs the scope guard over every requested symbol and returns the
// sorted, deduplicated canonical names.
func (r *Runner) symbols(requested []string) ([]string, error) {
	seen := make(map[string]bool, len(requested))
	var out []string
	for _, s := range requested {
		spec, err := r.engine.Costs().InstrumentSpec(s)
		if err != nil {
			return nil, err
		}
		if !seen[spec.Symbol] {
			seen[spec.Symbol] = true
			out = append(out, spec.Symbol)
		}
	}
	sort.Strings(out)
	return out, nil
}
