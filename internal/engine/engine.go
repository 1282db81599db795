// Package engine runs one opening-range breakout trade end to end: scope
// guard, session window, bars, range, fill, outcome and cost.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/orb/internal/bars"
	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/cost"
	"github.com/newthinker/orb/internal/execution"
	"github.com/newthinker/orb/internal/instrument"
	"github.com/newthinker/orb/internal/orb"
	"github.com/newthinker/orb/internal/outcome"
	"github.com/newthinker/orb/internal/session"
)

// TradeRequest names one evaluation.
type TradeRequest struct {
	Symbol string
	Date   time.Time // trading day; only the calendar date is used
	Slot   string
	Params Params
}

// Engine wires the stages together. It holds only immutable dependencies and
// is safe for concurrent use.
type Engine struct {
	resolver    *session.Resolver
	source      bars.Source
	costs       *cost.Model
	granularity core.Granularity
	logger      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithGranularity sets the bar width requested from the source.
func WithGranularity(g core.Granularity) Option {
	return func(e *Engine) { e.granularity = g }
}

// New creates an Engine.
func New(resolver *session.Resolver, source bars.Source, costs *cost.Model, opts ...Option) (*Engine, error) {
	if resolver == nil || source == nil || costs == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("engine needs a resolver, a bar source and a cost model"))
	}
	e := &Engine{
		resolver:    resolver,
		source:      source,
		costs:       costs,
		granularity: core.Granularity1m,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.granularity.Duration() == 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unsupported granularity %q", e.granularity))
	}
	return e, nil
}

// Costs returns the engine's cost model.
func (e *Engine) Costs() *cost.Model {
	return e.costs
}

// Resolver returns the engine's session resolver.
func (e *Engine) Resolver() *session.Resolver {
	return e.resolver
}

// Session is the data for one (symbol, trading day, slot). Every parameter
// set evaluated against it sees the same bars.
type Session struct {
	Spec   instrument.Spec
	Window session.Window
	Bars   []core.Bar // [Window.Start, Window.ScanEnd)
	costs  *cost.Model
}

// Load guards the symbol, resolves the window and fetches its bars.
func (e *Engine) Load(ctx context.Context, symbol string, date time.Time, slot string) (*Session, error) {
	spec, err := e.costs.InstrumentSpec(symbol)
	if err != nil {
		return nil, err
	}
	w, err := e.resolver.Resolve(date, slot)
	if err != nil {
		return nil, err
	}
	data, err := e.source.Bars(ctx, spec.Symbol, e.granularity, w.Start, w.ScanEnd)
	if err != nil {
		return nil, fmt.Errorf("load %s %s %s: %w", spec.Symbol, w.TradingDay.Format(time.DateOnly), slot, err)
	}
	return &Session{Spec: spec, Window: w, Bars: data, costs: e.costs}, nil
}

// SimulateTrade evaluates one request. Skips and cost rejections come back as
// Result variants; InvalidRisk, scope guard failures, bad parameters and data
// errors come back as errors.
func (e *Engine) SimulateTrade(ctx context.Context, req TradeRequest) (Result, error) {
	if _, err := e.costs.InstrumentSpec(req.Symbol); err != nil {
		return nil, err
	}
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	s, err := e.Load(ctx, req.Symbol, req.Date, req.Slot)
	if err != nil {
		return nil, err
	}
	res, err := s.Evaluate(req.Params)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("trade evaluated",
		zap.String("symbol", s.Spec.Symbol),
		zap.Time("day", s.Window.TradingDay),
		zap.String("slot", req.Slot),
		zap.String("params", req.Params.Key()),
		zap.String("state", string(res.State())),
	)
	return res, nil
}

// Evaluate runs the pure part of the pipeline on the loaded bars.
func (s *Session) Evaluate(p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	t := Trade{Symbol: s.Spec.Symbol, Window: s.Window, Params: p, Path: []State{StatePending}}
	w := s.Window

	rng, err := orb.Build(s.Bars, w.Start, w.RangeEnd)
	if err != nil {
		if errors.Is(err, core.ErrNoRangeFormed) {
			t.Path = append(t.Path, StateNoRange)
			return NoRange{Trade: t, Reason: err}, nil
		}
		return nil, err
	}

	breakout := orb.After(s.Bars, w.RangeEnd, w.ScanEnd)
	fill, err := execution.Simulate(p.Policy, rng, breakout, s.Spec.TickSize)
	if err != nil {
		return nil, err
	}
	if !fill.Filled {
		t.Path = append(t.Path, StateNoEntry)
		return NoEntry{Trade: t, Range: rng}, nil
	}
	t.Path = append(t.Path, StateEntered)

	levels, err := outcome.NewLevels(fill, rng, p.StopMode, p.Anchor, p.RR)
	if err != nil {
		return nil, err
	}
	out := outcome.Resolve(levels, fill, breakout)
	entered := Entered{Range: rng, Fill: fill, Levels: levels, Outcome: out}

	switch out.Class {
	case outcome.ClassOpen:
		t.Path = append(t.Path, StateOpen)
		return Open{Trade: t, Entered: entered}, nil
	case outcome.ClassWin:
		t.Path = append(t.Path, StateWin)
	case outcome.ClassLoss:
		t.Path = append(t.Path, StateLoss)
	default:
		return nil, fmt.Errorf("unexpected outcome %s for a filled trade", out.Class)
	}

	costed, err := s.costs.Realize(s.Spec.Symbol, levels.Risk, levels.RR, out.Class, p.Stress)
	var gate *cost.GateError
	if errors.As(err, &gate) {
		t.Path = append(t.Path, StateRejected)
		return Rejected{Trade: t, Entered: entered, Costed: costed, Gate: gate}, nil
	}
	if err != nil {
		return nil, err
	}
	t.Path = append(t.Path, StateViable)
	return Viable{Trade: t, Entered: entered, Costed: costed}, nil
}
