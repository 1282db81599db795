package results

import (
	"context"
	"sort"
	"sync"
)

type rowKey struct {
	runID, symbol, slot, params string
	day                         int64
}

func keyOf(r Record) rowKey {
	return rowKey{r.RunID, r.Symbol, r.Slot, r.ParamsKey, r.TradingDay.Unix()}
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	rows []Record
	keys map[rowKey]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[rowKey]struct{})}
}

var _ Store = (*MemoryStore)(nil)

// InsertBulk implements Store.
func (m *MemoryStore) InsertBulk(ctx context.Context, rows []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make(map[rowKey]struct{}, len(rows))
	for _, r := range rows {
		k := keyOf(r)
		if _, ok := m.keys[k]; ok {
			return ErrDuplicateKey
		}
		if _, ok := batch[k]; ok {
			return ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}
	for k := range batch {
		m.keys[k] = struct{}{}
	}
	m.rows = append(m.rows, rows...)
	return nil
}

// ListByRun implements Store.
func (m *MemoryStore) ListByRun(ctx context.Context, runID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.rows {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	SortRecords(out)
	return out, nil
}

// SortRecords orders rows by trading day, slot, symbol and parameter key.
func SortRecords(rows []Record) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.TradingDay.Equal(b.TradingDay) {
			return a.TradingDay.Before(b.TradingDay)
		}
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.ParamsKey < b.ParamsKey
	})
}
