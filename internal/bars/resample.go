package bars

import (
	"time"

	"github.com/newthinker/orb/internal/core"
)

// Resample aggregates ascending bars into buckets of width d aligned to the
// local clock (a 5 minute bucket starts at :00, :05, ...). Gaps stay gaps.
func Resample(bars []core.Bar, d time.Duration) []core.Bar {
	if d <= time.Minute || len(bars) == 0 {
		out := make([]core.Bar, len(bars))
		copy(out, bars)
		return out
	}

	var out []core.Bar
	for _, b := range bars {
		start := bucket(b.Time, d)
		if n := len(out); n > 0 && out[n-1].Time.Equal(start) {
			agg := &out[n-1]
			agg.High = max(agg.High, b.High)
			agg.Low = min(agg.Low, b.Low)
			agg.Close = b.Close
			agg.Volume += b.Volume
			continue
		}
		b.Time = start
		out = append(out, b)
	}
	return out
}

func bucket(t time.Time, d time.Duration) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := t.Sub(midnight)
	return midnight.Add(offset - offset%d)
}
