// Package results persists per-trade rows of a backtest run.
package results

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateKey is returned when a row for the same run, symbol, day, slot
// and parameter set already exists.
var ErrDuplicateKey = errors.New("duplicate trade result")

// Record is one evaluated (symbol, day, slot, parameter set). Skipped trades
// are stored too, with zero prices, so a run can be audited end to end.
type Record struct {
	ID         string
	RunID      string
	Symbol     string
	TradingDay time.Time
	Slot       string
	ParamsKey  string
	State      string
	Class      string // WIN, LOSS, OPEN or empty
	Direction  string

	EntryTime  *time.Time
	EntryPrice float64
	StopPrice  float64
	Target     float64
	RiskPoints float64
	RR         float64

	TheoreticalR  float64
	RealizedR     float64
	Friction      float64
	FrictionRatio float64
	Viable        bool
	MAE           float64
	MFE           float64
	EntryDelay    int
	BarsHeld      int
	ExitTime      *time.Time
}

// Store defines result persistence.
type Store interface {
	// InsertBulk stores rows atomically. A duplicate fails the whole batch.
	InsertBulk(ctx context.Context, rows []Record) error

	// ListByRun returns a run's rows ordered by day, slot, symbol and params.
	ListByRun(ctx context.Context, runID string) ([]Record, error)
}
