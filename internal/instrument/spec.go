// Package instrument holds validated futures contract specifications and the
// scope guard that every cost and simulation entry point routes through.
package instrument

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Status is the validation state of a contract specification.
type Status string

const (
	// StatusProduction marks a spec whose multipliers were validated against the exchange.
	StatusProduction Status = "production"
	// StatusResearch marks a spec that exists but has not been validated.
	StatusResearch Status = "research"
	// StatusBlocked marks a symbol that must never be costed.
	StatusBlocked Status = "blocked"
)

// Spec is the contract specification and per-round-trip friction for one instrument.
type Spec struct {
	Symbol     string
	TickSize   float64 // minimum price increment
	TickValue  float64 // currency per tick per contract
	PointValue float64 // currency per 1.0 price move per contract

	CommissionRT  float64 // currency, round trip
	SpreadTicks   float64 // ticks paid across the round trip
	SlippageTicks float64 // ticks paid across the round trip

	Status  Status
	Aliases []string
}

// Friction returns commission + round-trip spread + slippage in currency.
func (s Spec) Friction() float64 {
	return s.FrictionDecimal().InexactFloat64()
}

// FrictionDecimal is Friction without the float conversion.
func (s Spec) FrictionDecimal() decimal.Decimal {
	tv := decimal.NewFromFloat(s.TickValue)
	return decimal.NewFromFloat(s.CommissionRT).
		Add(decimal.NewFromFloat(s.SpreadTicks).Mul(tv)).
		Add(decimal.NewFromFloat(s.SlippageTicks).Mul(tv))
}

// Ticks converts a tick count into a price distance.
func (s Spec) Ticks(n float64) float64 {
	return decimal.NewFromFloat(n).Mul(decimal.NewFromFloat(s.TickSize)).InexactFloat64()
}

// Validate checks that the multipliers are positive and mutually consistent.
// A tick value that disagrees with tick size × point value is the exact
// mistake the scope guard exists to catch.
func (s Spec) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if s.TickSize <= 0 || s.TickValue <= 0 || s.PointValue <= 0 {
		return fmt.Errorf("%s: tick_size, tick_value and point_value must be positive", s.Symbol)
	}
	if s.CommissionRT < 0 || s.SpreadTicks < 0 || s.SlippageTicks < 0 {
		return fmt.Errorf("%s: friction components cannot be negative", s.Symbol)
	}
	implied := decimal.NewFromFloat(s.TickSize).Mul(decimal.NewFromFloat(s.PointValue)).InexactFloat64()
	if math.Abs(implied-s.TickValue) > 1e-9 {
		return fmt.Errorf("%s: tick_value %.4f does not match tick_size*point_value %.4f", s.Symbol, s.TickValue, implied)
	}
	switch s.Status {
	case StatusProduction, StatusResearch, StatusBlocked:
	default:
		return fmt.Errorf("%s: unknown status %q", s.Symbol, s.Status)
	}
	return nil
}

// DefaultSpecs returns the built-in contract table used when no config overrides it.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Symbol:        "MGC",
			TickSize:      0.10,
			TickValue:     1.00,
			PointValue:    10,
			CommissionRT:  2.40,
			SpreadTicks:   2,
			SlippageTicks: 4,
			Status:        StatusProduction,
			Aliases:       []string{"MICRO_GOLD", "MICROGOLD"},
		},
		{
			Symbol:        "MES",
			TickSize:      0.25,
			TickValue:     1.25,
			PointValue:    5,
			CommissionRT:  1.24,
			SpreadTicks:   2,
			SlippageTicks: 2,
			Status:        StatusProduction,
			Aliases:       []string{"MICRO_SP", "MICRO_ES"},
		},
		{
			Symbol:        "MNQ",
			TickSize:      0.25,
			TickValue:     0.50,
			PointValue:    2,
			CommissionRT:  1.24,
			SpreadTicks:   2,
			SlippageTicks: 2,
			Status:        StatusProduction,
			Aliases:       []string{"MICRO_NASDAQ", "MICRO_NQ"},
		},
	}
}

// DefaultBlocked lists symbols whose multipliers are easily confused with a
// production micro contract.
func DefaultBlocked() []Spec {
	return []Spec{
		{Symbol: "GC", Status: StatusBlocked, Aliases: []string{"GOLD", "XAUUSD"}},
		{Symbol: "NQ", Status: StatusBlocked, Aliases: []string{"NASDAQ"}},
		{Symbol: "ES", Status: StatusBlocked, Aliases: []string{"SP500"}},
	}
}
