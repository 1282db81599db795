// Package bars provides read-only access to historical OHLCV bars.
package bars

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/orb/internal/core"
)

// Source returns the bars for symbol stamped in [start, end), ascending by
// time. An empty window is not an error: callers decide what missing data
// means for them.
type Source interface {
	Bars(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]core.Bar, error)
}

type seriesKey struct {
	symbol string
	g      core.Granularity
}

// MemorySource is an in-memory Source. It hands out copies, so callers can
// never disturb the stored series.
type MemorySource struct {
	mu     sync.RWMutex
	series map[seriesKey][]core.Bar
}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{series: make(map[seriesKey][]core.Bar)}
}

// Add merges bars into the series for symbol. Bars with a timestamp already
// present replace the stored bar.
func (m *MemorySource) Add(symbol string, g core.Granularity, bars []core.Bar) error {
	if g.Duration() == 0 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("unsupported granularity %q", g))
	}
	for _, b := range bars {
		if !b.IsValid() {
			return core.WrapError(core.ErrInvalidParams, fmt.Errorf("%s: invalid bar at %s", symbol, b.Time.Format(time.RFC3339)))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := seriesKey{strings.ToUpper(symbol), g}
	byTime := make(map[int64]core.Bar, len(m.series[key])+len(bars))
	for _, b := range m.series[key] {
		byTime[b.Time.UnixNano()] = b
	}
	for _, b := range bars {
		byTime[b.Time.UnixNano()] = b
	}
	merged := make([]core.Bar, 0, len(byTime))
	for _, b := range byTime {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time.Before(merged[j].Time) })
	m.series[key] = merged
	return nil
}

// Len returns the number of stored bars for symbol.
func (m *MemorySource) Len(symbol string, g core.Granularity) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.series[seriesKey{strings.ToUpper(symbol), g}])
}

// Bars implements Source.
func (m *MemorySource) Bars(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]core.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	series := m.series[seriesKey{strings.ToUpper(symbol), g}]
	lo := sort.Search(len(series), func(i int) bool { return !series[i].Time.Before(start) })
	hi := sort.Search(len(series), func(i int) bool { return !series[i].Time.Before(end) })
	if lo >= hi {
		return nil, nil
	}
	out := make([]core.Bar, hi-lo)
	copy(out, series[lo:hi])
	return out, nil
}

var _ Source = (*MemorySource)(nil)
