// Package cost turns a theoretical risk:reward outcome into a realized,
// friction-adjusted R-multiple and enforces the minimum-viable-risk gate.
package cost

import (
	"fmt"
	"sort"
	"strings"

	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/instrument"
	"github.com/shopspring/decimal"
)

// DefaultGateThreshold is the largest friction share of dollar risk a trade
// may carry before it is rejected.
const DefaultGateThreshold = 0.30

// Stress is a named friction multiplier.
type Stress string

const (
	StressNormal   Stress = "normal"
	StressElevated Stress = "elevated"
	StressSevere   Stress = "severe"
)

// DefaultStress returns the built-in friction multipliers.
func DefaultStress() map[Stress]float64 {
	return map[Stress]float64{
		StressNormal:   1.0,
		StressElevated: 1.5,
		StressSevere:   2.0,
	}
}

// Config parameterizes a Model.
type Config struct {
	GateThreshold float64
	Stress        map[Stress]float64
}

// DefaultConfig returns a 30% gate with the default stress levels.
func DefaultConfig() Config {
	return Config{GateThreshold: DefaultGateThreshold, Stress: DefaultStress()}
}

// Model computes realized returns. It holds no mutable state after
// construction and is safe for concurrent use.
type Model struct {
	registry  *instrument.Registry
	threshold decimal.Decimal
	stress    map[Stress]decimal.Decimal
}

// NewModel validates cfg and binds it to the instrument registry.
func NewModel(reg *instrument.Registry, cfg Config) (*Model, error) {
	if reg == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("instrument registry is required"))
	}
	if cfg.GateThreshold <= 0 || cfg.GateThreshold >= 1 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("cost gate threshold must be in (0, 1), got %g", cfg.GateThreshold))
	}
	stress := cfg.Stress
	if len(stress) == 0 {
		stress = DefaultStress()
	}
	m := &Model{
		registry:  reg,
		threshold: decimal.NewFromFloat(cfg.GateThreshold),
		stress:    make(map[Stress]decimal.Decimal, len(stress)),
	}
	for name, mult := range stress {
		if mult < 1 {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("stress %q multiplier %g is below 1", name, mult))
		}
		m.stress[Stress(strings.ToLower(string(name)))] = decimal.NewFromFloat(mult)
	}
	if _, ok := m.stress[StressNormal]; !ok {
		m.stress[StressNormal] = decimal.NewFromInt(1)
	}
	return m, nil
}

// Threshold returns the gate threshold as a fraction.
func (m *Model) Threshold() float64 {
	return m.threshold.InexactFloat64()
}

// StressLevels returns the configured stress names in ascending multiplier order.
func (m *Model) StressLevels() []Stress {
	out := make([]Stress, 0, len(m.stress))
	for s := range m.stress {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := m.stress[out[i]].Cmp(m.stress[out[j]]); c != 0 {
			return c < 0
		}
		return out[i] < out[j]
	})
	return out
}

// InstrumentSpec returns the validated contract spec for symbol.
func (m *Model) InstrumentSpec(symbol string) (instrument.Spec, error) {
	return m.registry.Guard(symbol)
}

// Spec is the friction breakdown for one instrument.
type Spec struct {
	Symbol        string
	PointValue    float64
	CommissionRT  float64
	SpreadTicks   float64
	SlippageTicks float64
	TickValue     float64
	Friction      float64
}

// CostSpec returns the friction breakdown for symbol.
func (m *Model) CostSpec(symbol string) (Spec, error) {
	s, err := m.registry.Guard(symbol)
	if err != nil {
		return Spec{}, err
	}
	return Spec{
		Symbol:        s.Symbol,
		PointValue:    s.PointValue,
		CommissionRT:  s.CommissionRT,
		SpreadTicks:   s.SpreadTicks,
		SlippageTicks: s.SlippageTicks,
		TickValue:     s.TickValue,
		Friction:      s.Friction(),
	}, nil
}

func (m *Model) multiplier(s Stress) (decimal.Decimal, error) {
	if s == "" {
		s = StressNormal
	}
	mult, ok := m.stress[Stress(strings.ToLower(string(s)))]
	if !ok {
		return decimal.Decimal{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("unknown stress level %q", s))
	}
	return mult, nil
}
