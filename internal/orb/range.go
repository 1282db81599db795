// Package orb builds the opening range of a session slot.
package orb

import (
	"fmt"
	"time"

	"github.com/newthinker/orb/internal/core"
	"github.com/shopspring/decimal"
)

// Range is the high/low envelope of the opening-range bars.
type Range struct {
	Start time.Time // first bar timestamp of the window
	End   time.Time // range close; breakout bars start at or after End
	High  float64
	Low   float64
	Bars  int
}

// Size is High - Low.
func (r Range) Size() float64 {
	return decimal.NewFromFloat(r.High).Sub(decimal.NewFromFloat(r.Low)).InexactFloat64()
}

// Midpoint is the arithmetic middle of the range.
func (r Range) Midpoint() float64 {
	return decimal.NewFromFloat(r.High).Add(decimal.NewFromFloat(r.Low)).Div(decimal.NewFromInt(2)).InexactFloat64()
}

// Valid reports whether the range can be traded.
func (r Range) Valid() bool {
	return r.Bars > 0 && r.High > r.Low
}

// Boundary returns the edge breached by a breakout in dir.
func (r Range) Boundary(dir core.Direction) float64 {
	if dir == core.DirectionDown {
		return r.Low
	}
	return r.High
}

// Opposite returns the edge opposite to the breakout side.
func (r Range) Opposite(dir core.Direction) float64 {
	if dir == core.DirectionDown {
		return r.High
	}
	return r.Low
}

// Build forms the range from the bars stamped in [start, end). It never
// synthesizes bars: no bars, or a zero-height envelope, yields ErrNoRangeFormed.
func Build(bars []core.Bar, start, end time.Time) (Range, error) {
	r := Range{Start: start, End: end}
	for _, b := range bars {
		if b.Time.Before(start) || !b.Time.Before(end) {
			continue
		}
		if r.Bars == 0 {
			r.High, r.Low = b.High, b.Low
		} else {
			r.High = max(r.High, b.High)
			r.Low = min(r.Low, b.Low)
		}
		r.Bars++
	}

	if r.Bars == 0 {
		return r, core.WrapError(core.ErrNoRangeFormed, fmt.Errorf("no bars in [%s, %s)", start.Format(time.RFC3339), end.Format(time.RFC3339)))
	}
	if !r.Valid() {
		return r, core.WrapError(core.ErrNoRangeFormed, fmt.Errorf("range size %.5f is not positive", r.Size()))
	}
	return r, nil
}

// After returns the bars stamped in [from, until), i.e. the breakout bars.
// The returned slice aliases bars.
func After(bars []core.Bar, from, until time.Time) []core.Bar {
	lo := len(bars)
	for i, b := range bars {
		if !b.Time.Before(from) {
			lo = i
			break
		}
	}
	hi := lo
	for hi < len(bars) && bars[hi].Time.Before(until) {
		hi++
	}
	return bars[lo:hi:hi]
}
