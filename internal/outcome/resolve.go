package outcome

import (
	"time"

	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/execution"
	"github.com/shopspring/decimal"
)

// Class is the trade classification.
type Class string

const (
	ClassWin     Class = "WIN"
	ClassLoss    Class = "LOSS"
	ClassNoTrade Class = "NO_TRADE"
	ClassOpen    Class = "OPEN"
)

// Resolved reports whether the class carries a realized R-multiple.
func (c Class) Resolved() bool {
	return c == ClassWin || c == ClassLoss
}

// Outcome is the theoretical (cost-free) result of a trade.
type Outcome struct {
	Class      Class
	RMultiple  float64 // +RR on WIN, -1 on LOSS, 0 otherwise
	MAE        float64 // worst excursion against the anchor, in R
	MFE        float64 // best excursion in favour of the anchor, in R
	EntryDelay int     // bars from range close to fill
	ExitIndex  int     // index of the exit bar in the breakout bars, -1 while open
	ExitTime   time.Time
	BarsHeld   int
	// MarkR is the close of the last scanned bar in R. It is only informative
	// for OPEN trades.
	MarkR float64
}

// Resolve walks the breakout bars after the fill bar until the stop or the
// target is touched. A bar that touches both is a LOSS: nothing about OHLC
// tells us which level traded first, so the favourable path is never assumed.
// Running out of bars leaves the trade OPEN.
func Resolve(l Levels, fill execution.Fill, bars []core.Bar) Outcome {
	out := Outcome{
		Class:      ClassOpen,
		EntryDelay: fill.EntryDelay(),
		ExitIndex:  -1,
	}
	if !fill.Filled || l.Risk <= 0 {
		out.Class = ClassNoTrade
		return out
	}

	var worst, best float64
	last := -1
	for i := fill.Index + 1; i < len(bars); i++ {
		b := bars[i]
		last = i

		adverse, favourable := l.excursion(b)
		worst = max(worst, adverse)
		best = max(best, favourable)

		stop, target := l.stopHit(b), l.targetHit(b)
		if !stop && !target {
			continue
		}

		out.ExitIndex = i
		out.ExitTime = b.Time
		out.BarsHeld = i - fill.Index
		if stop {
			out.Class = ClassLoss
			out.RMultiple = -1
		} else {
			out.Class = ClassWin
			out.RMultiple = l.RR
		}
		break
	}

	risk := decimal.NewFromFloat(l.Risk)
	out.MAE = decimal.NewFromFloat(worst).Div(risk).InexactFloat64()
	out.MFE = decimal.NewFromFloat(best).Div(risk).InexactFloat64()

	if out.Class == ClassOpen && last >= 0 {
		out.BarsHeld = last - fill.Index
		move := decimal.NewFromFloat(bars[last].Close).Sub(decimal.NewFromFloat(l.Entry)).Mul(decimal.NewFromFloat(l.Direction.Sign()))
		out.MarkR = move.Div(risk).InexactFloat64()
	}
	return out
}

// excursion returns the adverse and favourable price distance of b from the
// anchor, each floored at zero.
func (l Levels) excursion(b core.Bar) (float64, float64) {
	entry := decimal.NewFromFloat(l.Entry)
	high := decimal.NewFromFloat(b.High)
	low := decimal.NewFromFloat(b.Low)

	var adverse, favourable decimal.Decimal
	if l.Direction == core.DirectionUp {
		adverse, favourable = entry.Sub(low), high.Sub(entry)
	} else {
		adverse, favourable = high.Sub(entry), entry.Sub(low)
	}
	return max(adverse.InexactFloat64(), 0), max(favourable.InexactFloat64(), 0)
}
