package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/orb/internal/bars"
	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/cost"
	"github.com/newthinker/orb/internal/engine"
	"github.com/newthinker/orb/internal/execution"
	"github.com/newthinker/orb/internal/instrument"
	"github.com/newthinker/orb/internal/metrics"
	"github.com/newthinker/orb/internal/outcome"
	"github.com/newthinker/orb/internal/session"
	"github.com/newthinker/orb/internal/storage/archive"
	"github.com/newthinker/orb/internal/storage/results"
)

var aest = time.FixedZone("AEST", 10*3600)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, aest)
}

func bar(d, hh, mm int, o, h, l, c float64) core.Bar {
	return core.Bar{Time: time.Date(2024, 3, d, hh, mm, 0, 0, aest), Open: o, High: h, Low: l, Close: c, Volume: 1}
}

// openingRange is a 2650.00-2650.10 range for the 0900 slot of day d.
func openingRange(d int) []core.Bar {
	return []core.Bar{
		bar(d, 9, 0, 2650.05, 2650.08, 2650.02, 2650.06),
		bar(d, 9, 1, 2650.06, 2650.10, 2650.04, 2650.05),
		bar(d, 9, 2, 2650.05, 2650.07, 2650.00, 2650.03),
		bar(d, 9, 4, 2650.05, 2650.09, 2650.03, 2650.08),
	}
}

// winner reaches 1R but not 3R.
func winner(d int) []core.Bar {
	return append(openingRange(d),
		bar(d, 9, 5, 2650.08, 2650.16, 2650.06, 2650.15),
		bar(d, 9, 6, 2650.15, 2650.22, 2650.05, 2650.20),
		bar(d, 9, 7, 2650.20, 2650.31, 2650.18, 2650.28),
	)
}

// loser stops out on the bar after entry.
func loser(d int) []core.Bar {
	return append(openingRange(d),
		bar(d, 9, 5, 2650.08, 2650.16, 2650.06, 2650.15),
		bar(d, 9, 6, 2650.15, 2650.18, 2649.90, 2649.95),
	)
}

// fixture holds a week of FRX data: wins on the 4th and 11th, a loss on the
// 5th and nothing on the 6th to 8th.
func fixture(t *testing.T) bars.Source {
	t.Helper()
	mem := bars.NewMemorySource()
	var data []core.Bar
	data = append(data, winner(4)...)
	data = append(data, loser(5)...)
	data = append(data, winner(11)...)
	require.NoError(t, mem.Add("FRX", core.Granularity1m, data))
	return mem
}

func newEngine(t *testing.T, src bars.Source) *engine.Engine {
	t.Helper()
	reg, err := instrument.NewRegistry(append(instrument.DefaultSpecs(), instrument.Spec{
		Symbol: "FRX", TickSize: 0.10, TickValue: 1, PointValue: 10, Status: instrument.StatusProduction,
	}), instrument.DefaultBlocked())
	require.NoError(t, err)
	resolver, err := session.NewResolver(session.DefaultConfig(aest))
	require.NoError(t, err)
	costs, err := cost.NewModel(reg, cost.DefaultConfig())
	require.NoError(t, err)
	e, err := engine.New(resolver, src, costs)
	require.NoError(t, err)
	return e
}

func params(rr float64) engine.Params {
	return engine.Params{
		Policy:   execution.MarketOnConfirm{ConfirmBars: 1},
		RR:       rr,
		StopMode: outcome.StopFull,
		Anchor:   outcome.AnchorFill,
	}
}

func weekRequest() Request {
	return Request{
		Symbols: []string{"frx"},
		From:    day(4),
		To:      day(11),
		Slots:   []string{"0900"},
		Grid:    []engine.Params{params(1), params(3)},
	}
}

func newRunner(t *testing.T, src bars.Source, cfg Config, opts ...Option) *Runner {
	t.Helper()
	r, err := New(newEngine(t, src), cfg, opts...)
	require.NoError(t, err)
	return r
}

func TestRunner_Run(t *testing.T) {
	r := newRunner(t, fixture(t), DefaultConfig())

	rep, err := r.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	require.NotNil(t, rep)

	assert.True(t, rep.Complete())
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, []string{"FRX"}, rep.Symbols)
	assert.Equal(t, 6, rep.Sessions) // weekend skipped
	assert.Len(t, rep.Trades, 12)
	assert.Equal(t, map[engine.State]int{
		engine.StateViable:  4,
		engine.StateOpen:    2,
		engine.StateNoRange: 6,
	}, rep.States)

	first := rep.Trades[0]
	assert.Equal(t, day(4), first.TradingDay)
	assert.Equal(t, params(1).Key(), first.ParamsKey)
	assert.Equal(t, engine.StateViable, first.State)
	assert.Equal(t, "WIN", first.Class)
	assert.Equal(t, 1.0, first.RealizedR)
	assert.Equal(t, 2650.15, first.Entry)

	require.Len(t, rep.Groups, 2)
	one := rep.Groups[0]
	assert.Equal(t, params(1).Key(), one.ParamsKey)
	assert.Equal(t, 3, one.Realized.Trades)
	assert.Equal(t, 2, one.Realized.Wins)
	assert.InDelta(t, 1.0, one.Realized.TotalR, 1e-12)
	assert.InDelta(t, 2.0, one.Realized.ProfitFactor, 1e-12)
	assert.Equal(t, 1, one.Realized.MaxConsecutiveLosses)

	three := rep.Groups[1]
	assert.Equal(t, 1, three.Realized.Trades)
	assert.Equal(t, -1.0, three.Realized.TotalR)
	assert.Equal(t, 2, three.States[engine.StateOpen])
}

func TestRunner_DeterministicAcrossWorkers(t *testing.T) {
	serial, err := newRunner(t, fixture(t), Config{Workers: 1}).Run(context.Background(), weekRequest())
	require.NoError(t, err)
	parallel, err := newRunner(t, fixture(t), Config{Workers: 8}).Run(context.Background(), weekRequest())
	require.NoError(t, err)

	assert.NotEqual(t, serial.RunID, parallel.RunID)
	assert.Equal(t, serial.Trades, parallel.Trades)
	assert.Equal(t, serial.Groups, parallel.Groups)
}

func TestRunner_Jobs(t *testing.T) {
	req := Request{
		Symbols: []string{"mgc", "FRX", "MGC"},
		From:    day(8), // Friday
		To:      day(11),
		Slots:   []string{"0900", "1000"},
	}

	jobs, err := newRunner(t, fixture(t), DefaultConfig()).Jobs(req)
	require.NoError(t, err)
	require.Len(t, jobs, 8)
	assert.Equal(t, Job{Symbol: "FRX", Day: day(8), Slot: "0900"}, jobs[0])
	assert.Equal(t, Job{Symbol: "MGC", Day: day(8), Slot: "0900"}, jobs[1])
	assert.Equal(t, Job{Symbol: "FRX", Day: day(11), Slot: "0900"}, jobs[4])

	jobs, err = newRunner(t, fixture(t), Config{Workers: 1, IncludeWeekends: true}).Jobs(req)
	require.NoError(t, err)
	assert.Len(t, jobs, 16)

	req.Slots = nil
	jobs, err = newRunner(t, fixture(t), DefaultConfig()).Jobs(req)
	require.NoError(t, err)
	assert.Len(t, jobs, 2*2*6)
}

func TestRunner_RejectsBadRequests(t *testing.T) {
	src := &countingSource{Source: fixture(t)}
	r := newRunner(t, src, DefaultConfig())

	req := weekRequest()
	req.Symbols = []string{"FRX", "gold"}
	_, err := r.Run(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrBlockedInstrument)

	req = weekRequest()
	req.Grid = nil
	_, err = r.Run(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrInvalidParams)

	req = weekRequest()
	req.Grid = []engine.Params{params(0)}
	_, err = r.Run(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrInvalidParams)

	req = weekRequest()
	req.From, req.To = req.To, req.From
	_, err = r.Run(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrInvalidParams)

	assert.Zero(t, src.calls, "no session may be loaded for a rejected batch")
}

func TestRunner_SourceFailureAbortsBatch(t *testing.T) {
	boom := errors.New("connection reset")
	reg := metrics.NewRegistry()
	r := newRunner(t, failingSource{boom}, DefaultConfig(), WithMetrics(reg))

	rep, err := r.Run(context.Background(), weekRequest())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, rep)
	assert.Equal(t, 1.0, counter(t, reg, "orb_batches_total", "status", StatusFailed))
}

func TestRunner_BudgetReturnsPartialReport(t *testing.T) {
	r := newRunner(t, slowSource{delay: time.Second}, Config{Workers: 1, Budget: 20 * time.Millisecond})

	rep, err := r.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, StatusTimeout, rep.Status)
	assert.False(t, rep.Complete())
	assert.Less(t, rep.Sessions, 6)
}

func TestRunner_RepeatedGridPointRunsOnce(t *testing.T) {
	store := results.NewMemoryStore()
	r := newRunner(t, fixture(t), DefaultConfig(), WithStore(store))

	req := weekRequest()
	req.Grid = []engine.Params{params(1), params(1)}
	rep, err := r.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, rep.Trades, 6)
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, 3, rep.Groups[0].Realized.Trades)
	assert.InDelta(t, 1.0, rep.Groups[0].Realized.TotalR, 1e-12)

	rows, err := store.ListByRun(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Len(t, rows, 6)
}

func TestRunner_FailureAfterBudgetIsNotATimeout(t *testing.T) {
	boom := errors.New("connection reset")
	reg := metrics.NewRegistry()
	src := stubbornSource{delay: 100 * time.Millisecond, err: boom}
	r := newRunner(t, src, Config{Workers: 1, Budget: 20 * time.Millisecond}, WithMetrics(reg))

	rep, err := r.Run(context.Background(), weekRequest())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, rep)
	assert.Equal(t, 1.0, counter(t, reg, "orb_batches_total", "status", StatusFailed))
	assert.Equal(t, 0.0, counter(t, reg, "orb_batches_total", "status", StatusTimeout))
}

func TestRunner_CancelledParentIsAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(t, slowSource{delay: time.Second}, Config{Workers: 1, Budget: time.Minute})
	_, err := r.Run(ctx, weekRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_PersistsAndRecords(t *testing.T) {
	store := results.NewMemoryStore()
	files, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	reg := metrics.NewRegistry()

	r := newRunner(t, fixture(t), DefaultConfig(), WithStore(store), WithArchive(files), WithMetrics(reg))
	rep, err := r.Run(context.Background(), weekRequest())
	require.NoError(t, err)

	rows, err := store.ListByRun(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Len(t, rows, 12)
	viable := 0
	for _, row := range rows {
		assert.Equal(t, rep.RunID, row.RunID)
		if row.Viable {
			viable++
			require.NotNil(t, row.EntryTime)
			require.NotNil(t, row.ExitTime)
		}
	}
	assert.Equal(t, 4, viable)

	var saved Report
	require.NoError(t, archive.LoadJSON(context.Background(), files, archive.ReportKey(rep.RunID, rep.Started), &saved))
	assert.Equal(t, rep.RunID, saved.RunID)
	assert.Equal(t, StatusSuccess, saved.Status)
	assert.Len(t, saved.Trades, 12)
	assert.Equal(t, rep.States, saved.States)

	assert.Equal(t, 4.0, counter(t, reg, "orb_trades_total", "state", string(engine.StateViable)))
	assert.Equal(t, 6.0, counter(t, reg, "orb_trades_total", "state", string(engine.StateNoRange)))
	assert.Equal(t, 1.0, counter(t, reg, "orb_batches_total", "status", StatusSuccess))

	_, err = r.Run(context.Background(), weekRequest())
	require.NoError(t, err, "a new run gets a new id")
}

func TestTradeFromError(t *testing.T) {
	job := Job{Symbol: "MGC", Day: day(4), Slot: "0900"}

	tr, ok := tradeFromError(job, params(2), core.WrapError(core.ErrInvalidRisk, errors.New("stop equals entry")))
	require.True(t, ok)
	assert.Equal(t, StateInvalidRisk, tr.State)
	assert.Equal(t, 2.0, tr.RR)
	assert.False(t, tr.Counted())
	assert.Equal(t, "INVALID_RISK", tr.Record("run").State)

	_, ok = tradeFromError(job, params(2), core.ErrNoData)
	assert.False(t, ok)
}

func TestTrade_Record(t *testing.T) {
	entry := time.Date(2024, 3, 4, 9, 5, 0, 0, aest)
	tr := Trade{
		Symbol: "MGC", TradingDay: day(4), Slot: "0900", ParamsKey: "k",
		State: engine.StateViable, Class: "WIN", EntryTime: entry,
		RealizedR: 0.9, TheoreticalR: 1,
	}
	rec := tr.Record("run-1")
	assert.Equal(t, "run-1", rec.RunID)
	assert.True(t, rec.Viable)
	require.NotNil(t, rec.EntryTime)
	assert.Equal(t, entry, *rec.EntryTime)
	assert.Nil(t, rec.ExitTime)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	e := newEngine(t, fixture(t))
	_, err = New(e, Config{Workers: 0})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	_, err = New(e, Config{Workers: 1, Budget: -time.Second})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

type countingSource struct {
	bars.Source
	calls int
}

func (c *countingSource) Bars(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]core.Bar, error) {
	c.calls++
	return c.Source.Bars(ctx, symbol, g, start, end)
}

type failingSource struct{ err error }

func (f failingSource) Bars(context.Context, string, core.Granularity, time.Time, time.Time) ([]core.Bar, error) {
	return nil, f.err
}

// stubbornSource ignores cancellation and fails after delay.
type stubbornSource struct {
	delay time.Duration
	err   error
}

func (s stubbornSource) Bars(context.Context, string, core.Granularity, time.Time, time.Time) ([]core.Bar, error) {
	time.Sleep(s.delay)
	return nil, s.err
}

type slowSource struct{ delay time.Duration }

func (s slowSource) Bars(ctx context.Context, _ string, _ core.Granularity, _, _ time.Time) ([]core.Bar, error) {
	select {
	case <-time.After(s.delay):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// counter reads one labelled counter value from the registry.
func counter(t *testing.T, reg *metrics.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabel(m, label, value) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
