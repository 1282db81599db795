// Package outcome places stop and target levels for a filled breakout and
// resolves the trade against the bars that follow the fill.
package outcome

import (
	"fmt"
	"strings"

	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/execution"
	"github.com/newthinker/orb/internal/orb"
	"github.com/shopspring/decimal"
)

// StopMode selects where the protective stop sits.
type StopMode string

const (
	// StopFull puts the stop on the opposite range boundary.
	StopFull StopMode = "full"
	// StopHalf puts the stop on the range midpoint, clamped inside the range.
	StopHalf StopMode = "half"
)

// Anchor selects the price that risk and target are measured from.
type Anchor string

const (
	// AnchorFill measures from the simulated fill price.
	AnchorFill Anchor = "fill"
	// AnchorRangeEdge measures from the breached range boundary, ignoring
	// where the order actually filled.
	AnchorRangeEdge Anchor = "range_edge"
)

// ParseStopMode accepts "full" or "half" in any case.
func ParseStopMode(s string) (StopMode, error) {
	switch m := StopMode(strings.ToLower(strings.TrimSpace(s))); m {
	case StopFull, StopHalf:
		return m, nil
	default:
		return "", core.WrapError(core.ErrInvalidParams, fmt.Errorf("unknown stop mode %q", s))
	}
}

// ParseAnchor accepts "fill" or "range_edge" (or "range-edge") in any case.
func ParseAnchor(s string) (Anchor, error) {
	a := Anchor(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch a {
	case AnchorFill, AnchorRangeEdge:
		return a, nil
	default:
		return "", core.WrapError(core.ErrInvalidParams, fmt.Errorf("unknown anchor %q", s))
	}
}

// Levels are the stop and target for one trade. Construct with NewLevels; a
// Levels value always has Risk > 0.
type Levels struct {
	Direction core.Direction
	Entry     float64 // anchor price risk and target are measured from
	Stop      float64
	Target    float64
	Risk      float64 // |Entry - Stop|
	Reward    float64 // Risk * RR
	RR        float64
}

// NewLevels places stop and target for fill. A zero or negative risk distance
// is rejected with ErrInvalidRisk rather than producing a meaningless ratio.
func NewLevels(fill execution.Fill, rng orb.Range, mode StopMode, anchor Anchor, rr float64) (Levels, error) {
	if !fill.Filled {
		return Levels{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("levels requested for an unfilled entry"))
	}
	if rr <= 0 {
		return Levels{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("reward:risk must be positive, got %g", rr))
	}

	dir := fill.Direction

	var entry float64
	switch anchor {
	case AnchorFill:
		entry = fill.Price
	case AnchorRangeEdge:
		entry = rng.Boundary(dir)
	default:
		return Levels{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("unknown anchor %q", anchor))
	}

	var stop float64
	switch mode {
	case StopFull:
		stop = rng.Opposite(dir)
	case StopHalf:
		stop = min(max(rng.Midpoint(), rng.Low), rng.High)
	default:
		return Levels{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("unknown stop mode %q", mode))
	}

	sign := decimal.NewFromFloat(dir.Sign())
	e := decimal.NewFromFloat(entry)
	risk := e.Sub(decimal.NewFromFloat(stop)).Mul(sign)
	if !risk.IsPositive() {
		return Levels{}, core.WrapError(core.ErrInvalidRisk,
			fmt.Errorf("%s entry %.5f vs stop %.5f gives risk %s", dir, entry, stop, risk.String()))
	}
	reward := risk.Mul(decimal.NewFromFloat(rr))

	return Levels{
		Direction: dir,
		Entry:     entry,
		Stop:      stop,
		Target:    e.Add(reward.Mul(sign)).InexactFloat64(),
		Risk:      risk.InexactFloat64(),
		Reward:    reward.InexactFloat64(),
		RR:        rr,
	}, nil
}

// stopHit and targetHit test one bar against the levels.
func (l Levels) stopHit(b core.Bar) bool {
	if l.Direction == core.DirectionUp {
		return b.Low <= l.Stop
	}
	return b.High >= l.Stop
}

func (l Levels) targetHit(b core.Bar) bool {
	if l.Direction == core.DirectionUp {
		return b.High >= l.Target
	}
	return b.Low <= l.Target
}
