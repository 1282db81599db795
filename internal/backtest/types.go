package backtest

import (
	"errors"
	"time"

	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/engine"
	"github.com/newthinker/orb/internal/storage/results"
)

// StateInvalidRisk marks a trade whose levels could not be placed. It is not
// an engine state: the engine reports it as an error, the batch records it.
const StateInvalidRisk engine.State = "INVALID_RISK"

// Trade is one evaluated (symbol, day, slot, parameter set).
type Trade struct {
	Symbol     string       `json:"symbol"`
	TradingDay time.Time    `json:"trading_day"`
	Slot       string       `json:"slot"`
	ParamsKey  string       `json:"params"`
	State      engine.State `json:"state"`
	Class      string       `json:"class,omitempty"`
	Direction  string       `json:"direction,omitempty"`
	Reason     string       `json:"reason,omitempty"`

	EntryTime  time.Time `json:"entry_time,omitzero"`
	Entry      float64   `json:"entry,omitempty"`
	Stop       float64   `json:"stop,omitempty"`
	Target     float64   `json:"target,omitempty"`
	RiskPoints float64   `json:"risk_points,omitempty"`
	RR         float64   `json:"rr"`

	TheoreticalR  float64   `json:"theoretical_r"`
	RealizedR     float64   `json:"realized_r"`
	Friction      float64   `json:"friction,omitempty"`
	FrictionRatio float64   `json:"friction_ratio,omitempty"`
	MAE           float64   `json:"mae,omitempty"`
	MFE           float64   `json:"mfe,omitempty"`
	EntryDelay    int       `json:"entry_delay,omitempty"`
	BarsHeld      int       `json:"bars_held,omitempty"`
	ExitTime      time.Time `json:"exit_time,omitzero"`
}

// Counted reports whether the trade enters the statistics. Skips, open trades
// and cost rejections never do.
func (t Trade) Counted() bool {
	return t.State == engine.StateViable
}

// tradeFromResult flattens an engine result.
func tradeFromResult(r engine.Result) Trade {
	info := r.Info()
	t := Trade{
		Symbol:     info.Symbol,
		TradingDay: info.Window.TradingDay,
		Slot:       info.Window.Slot,
		ParamsKey:  info.Params.Key(),
		State:      r.State(),
		RR:         info.Params.RR,
	}

	if e, ok := engine.Filled(r); ok {
		t.Class = string(e.Outcome.Class)
		t.Direction = e.Fill.Direction.String()
		t.EntryTime = e.Fill.Time
		t.Entry = e.Levels.Entry
		t.Stop = e.Levels.Stop
		t.Target = e.Levels.Target
		t.RiskPoints = e.Levels.Risk
		t.TheoreticalR = e.Outcome.RMultiple
		t.MAE = e.Outcome.MAE
		t.MFE = e.Outcome.MFE
		t.EntryDelay = e.Outcome.EntryDelay
		t.BarsHeld = e.Outcome.BarsHeld
		t.ExitTime = e.Outcome.ExitTime
	}

	switch v := r.(type) {
	case engine.NoRange:
		if v.Reason != nil {
			t.Reason = v.Reason.Error()
		}
	case engine.Viable:
		t.RealizedR = v.Costed.RealizedR
		t.Friction = v.Costed.Friction
		t.FrictionRatio = v.Costed.FrictionRatio
		if v.Costed.Downgraded {
			t.Reason = "target hit but reward did not cover friction"
		}
	case engine.Rejected:
		t.Friction = v.Gate.Friction
		t.FrictionRatio = v.Gate.Ratio
		t.Reason = v.Gate.Error()
	}
	return t
}

// tradeFromError records a rejected evaluation. Only per-trade conditions are
// accepted; anything else aborts the batch.
func tradeFromError(job Job, p engine.Params, err error) (Trade, bool) {
	if !errors.Is(err, core.ErrInvalidRisk) {
		return Trade{}, false
	}
	return Trade{
		Symbol:     job.Symbol,
		TradingDay: job.Day,
		Slot:       job.Slot,
		ParamsKey:  p.Key(),
		State:      StateInvalidRisk,
		RR:         p.RR,
		Reason:     err.Error(),
	}, true
}

// Record converts the trade to a storage row.
func (t Trade) Record(runID string) results.Record {
	rec := results.Record{
		RunID:         runID,
		Symbol:        t.Symbol,
		TradingDay:    t.TradingDay,
		Slot:          t.Slot,
		ParamsKey:     t.ParamsKey,
		State:         string(t.State),
		Class:         t.Class,
		Direction:     t.Direction,
		EntryPrice:    t.Entry,
		StopPrice:     t.Stop,
		Target:        t.Target,
		RiskPoints:    t.RiskPoints,
		RR:            t.RR,
		TheoreticalR:  t.TheoreticalR,
		RealizedR:     t.RealizedR,
		Friction:      t.Friction,
		FrictionRatio: t.FrictionRatio,
		Viable:        t.Counted(),
		MAE:           t.MAE,
		MFE:           t.MFE,
		EntryDelay:    t.EntryDelay,
		BarsHeld:      t.BarsHeld,
	}
	if !t.EntryTime.IsZero() {
		et := t.EntryTime
		rec.EntryTime = &et
	}
	if !t.ExitTime.IsZero() {
		xt := t.ExitTime
		rec.ExitTime = &xt
	}
	return rec
}

// Job is one (symbol, trading day, slot) session. All parameter sets of a
// batch are evaluated against the same loaded bars.
type Job struct {
	Symbol string
	Day    time.Time
	Slot   string
}

// Stats holds performance statistics in R units
type Stats struct {
	Trades               int     `json:"trades"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	WinRate              float64 `json:"win_rate"` // percentage
	TotalR               float64 `json:"total_r"`
	AvgR                 float64 `json:"avg_r"` // expectancy per trade
	MaxDrawdownR         float64 `json:"max_drawdown_r"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	// ProfitFactor is gross winning R over gross losing R, 0 when there are no losses.
	ProfitFactor float64 `json:"profit_factor"`
	// Sharpe is mean R over its sample standard deviation, per trade, not annualized.
	Sharpe float64 `json:"sharpe"`
}

// Group is the result of one parameter set.
type Group struct {
	ParamsKey   string               `json:"params"`
	Realized    Stats                `json:"realized"`
	Theoretical Stats                `json:"theoretical"`
	States      map[engine.State]int `json:"states"`
}

// Report is the output of a batch run.
type Report struct {
	RunID    string               `json:"run_id"`
	Status   string               `json:"status"`
	Started  time.Time            `json:"started"`
	Finished time.Time            `json:"finished"`
	Symbols  []string             `json:"symbols"`
	From     time.Time            `json:"from"`
	To       time.Time            `json:"to"`
	Slots    []string             `json:"slots"`
	Sessions int                  `json:"sessions"`
	States   map[engine.State]int `json:"states"`
	Groups   []Group              `json:"groups"`
	Trades   []Trade              `json:"trades"`
}

// Complete reports whether every job ran.
func (r *Report) Complete() bool {
	return r.Status == StatusSuccess
}

// Batch statuses.
const (
	StatusSuccess = "success"
	StatusTimeout = "timeout"
	StatusFailed  = "failed"
)
