package execution

import (
	"fmt"
	"time"

	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/orb"
	"github.com/shopspring/decimal"
)

// Fill is the result of an entry simulation. When Filled is false every other
// field is zero: "no entry" is an outcome, not an error.
type Fill struct {
	Filled        bool
	Price         float64
	Time          time.Time
	Index         int // index of the fill bar in the breakout bars
	SignalIndex   int // index of the bar that triggered the order
	SlippageTicks float64
	Direction     core.Direction
}

// EntryDelay is the number of bars between the range close and the fill bar.
func (f Fill) EntryDelay() int {
	if !f.Filled {
		return 0
	}
	return f.Index
}

// Simulate runs policy p over the breakout bars, which must start at or after
// the range close. tickSize converts tick-denominated parameters to price.
func Simulate(p Policy, rng orb.Range, bars []core.Bar, tickSize float64) (Fill, error) {
	if p == nil {
		return Fill{}, fmt.Errorf("%w: nil policy", ErrInvalidPolicy)
	}
	if err := p.Validate(); err != nil {
		return Fill{}, err
	}
	if !rng.Valid() {
		return Fill{}, core.WrapError(core.ErrNoRangeFormed, fmt.Errorf("range %.5f-%.5f", rng.Low, rng.High))
	}
	if tickSize <= 0 {
		return Fill{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("tick size must be positive"))
	}
	if len(bars) > 0 && bars[0].Time.Before(rng.End) {
		return Fill{}, core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("breakout bars start at %s, before range close %s", bars[0].Time.Format(time.RFC3339), rng.End.Format(time.RFC3339)))
	}

	switch p := p.(type) {
	case MarketOnConfirm:
		return fillMarket(p, rng, bars, tickSize), nil
	case RangeEdge:
		return fillRangeEdge(p, rng, bars, tickSize), nil
	case RetraceAfterConfirm:
		return fillRetrace(p, rng, bars, tickSize), nil
	default:
		return Fill{}, fmt.Errorf("%w: unhandled policy %T", ErrInvalidPolicy, p)
	}
}

// confirm returns the index of the bar completing n consecutive closes strictly
// outside the range on one side. A close inside the range resets the count; a
// close on the other side restarts it for that side.
func confirm(rng orb.Range, bars []core.Bar, n int) (int, core.Direction, bool) {
	count := 0
	dir := core.DirectionNone
	for i, b := range bars {
		var d core.Direction
		switch {
		case b.Close > rng.High:
			d = core.DirectionUp
		case b.Close < rng.Low:
			d = core.DirectionDown
		default:
			count, dir = 0, core.DirectionNone
			continue
		}
		if d != dir {
			count, dir = 0, d
		}
		count++
		if count >= n {
			return i, dir, true
		}
	}
	return -1, core.DirectionNone, false
}

func fillMarket(p MarketOnConfirm, rng orb.Range, bars []core.Bar, tickSize float64) Fill {
	i, dir, ok := confirm(rng, bars, p.ConfirmBars)
	if !ok {
		return Fill{}
	}
	return Fill{
		Filled:        true,
		Price:         offsetTicks(bars[i].Close, p.SlippageTicks, tickSize, dir),
		Time:          bars[i].Time,
		Index:         i,
		SignalIndex:   i,
		SlippageTicks: p.SlippageTicks,
		Direction:     dir,
	}
}

func fillRetrace(p RetraceAfterConfirm, rng orb.Range, bars []core.Bar, tickSize float64) Fill {
	i, dir, ok := confirm(rng, bars, p.ConfirmBars)
	if !ok {
		return Fill{}
	}
	edge := rng.Boundary(dir)
	for j := i + 1; j < len(bars); j++ {
		b := bars[j]
		touched := (dir == core.DirectionUp && b.Low <= edge) || (dir == core.DirectionDown && b.High >= edge)
		if !touched {
			continue
		}
		return Fill{
			Filled:        true,
			Price:         offsetTicks(edge, p.AdverseSlippageTicks, tickSize, dir),
			Time:          b.Time,
			Index:         j,
			SignalIndex:   i,
			SlippageTicks: p.AdverseSlippageTicks,
			Direction:     dir,
		}
	}
	return Fill{}
}

func fillRangeEdge(p RangeEdge, rng orb.Range, bars []core.Bar, tickSize float64) Fill {
	upLevel := offsetTicks(rng.High, p.PenetrationTicks, tickSize, core.DirectionUp)
	downLevel := offsetTicks(rng.Low, p.PenetrationTicks, tickSize, core.DirectionDown)

	// With a zero margin the boundary has to be traded through, not touched.
	strict := p.PenetrationTicks == 0

	for i, b := range bars {
		up := b.High > upLevel || (!strict && b.High == upLevel)
		down := b.Low < downLevel || (!strict && b.Low == downLevel)

		var dir core.Direction
		switch {
		case up && down:
			dir = resolveBothPenetrated(rng, b, upLevel, downLevel)
		case up:
			dir = core.DirectionUp
		case down:
			dir = core.DirectionDown
		}
		if dir == core.DirectionNone {
			continue
		}
		return Fill{
			Filled:      true,
			Price:       rng.Boundary(dir),
			Time:        b.Time,
			Index:       i,
			SignalIndex: i,
			Direction:   dir,
		}
	}
	return Fill{}
}

// resolveBothPenetrated decides which side of a two-sided bar traded first.
// Only a bar strictly beyond both penetration levels is skipped as ambiguous.
// A bar that strictly contains the opening range but sits exactly on one level
// is resolved by proximity: the smaller breach of the range is taken to have
// happened first, and equal breaches are skipped.
func resolveBothPenetrated(rng orb.Range, b core.Bar, upLevel, downLevel float64) core.Direction {
	if b.High > upLevel && b.Low < downLevel {
		return core.DirectionNone
	}
	breachUp := decimal.NewFromFloat(b.High).Sub(decimal.NewFromFloat(rng.High))
	breachDown := decimal.NewFromFloat(rng.Low).Sub(decimal.NewFromFloat(b.Low))
	switch breachUp.Cmp(breachDown) {
	case -1:
		return core.DirectionUp
	case 1:
		return core.DirectionDown
	default:
		return core.DirectionNone
	}
}

// offsetTicks moves price by ticks against a trader entering in dir
// (higher for a buy, lower for a sell), on the exact tick grid.
func offsetTicks(price, ticks, tickSize float64, dir core.Direction) float64 {
	if ticks == 0 {
		return price
	}
	d := decimal.NewFromFloat(ticks).Mul(decimal.NewFromFloat(tickSize))
	if dir == core.DirectionDown {
		d = d.Neg()
	}
	return decimal.NewFromFloat(price).Add(d).InexactFloat64()
}
