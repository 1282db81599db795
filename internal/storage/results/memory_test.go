package results

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows(runID string) []Record {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	entry := day.Add(9*time.Hour + 5*time.Minute)
	return []Record{
		{RunID: runID, Symbol: "MGC", TradingDay: day.AddDate(0, 0, 1), Slot: "0900", ParamsKey: "a", State: "NO_ENTRY"},
		{RunID: runID, Symbol: "MGC", TradingDay: day, Slot: "1000", ParamsKey: "a", State: "NO_RANGE"},
		{
			RunID: runID, Symbol: "MGC", TradingDay: day, Slot: "0900", ParamsKey: "a",
			State: "VIABLE_RESULT", Class: "WIN", Direction: "UP",
			EntryTime: &entry, EntryPrice: 2651.1, StopPrice: 2640, Target: 2673.3, RiskPoints: 11.1, RR: 2,
			TheoreticalR: 2, RealizedR: 1.79, Friction: 8.4, FrictionRatio: 0.0757, Viable: true,
		},
	}
}

func TestMemoryStore_InsertAndList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, sampleRows("run-1")))
	require.NoError(t, store.InsertBulk(ctx, sampleRows("run-2")))

	rows, err := store.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "0900", rows[0].Slot)
	assert.Equal(t, "VIABLE_RESULT", rows[0].State)
	assert.Equal(t, "1000", rows[1].Slot)
	assert.Equal(t, "NO_ENTRY", rows[2].State)

	rows, err = store.ListByRun(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryStore_DuplicateFailsWholeBatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.InsertBulk(ctx, sampleRows("run-1")[:1]))

	err := store.InsertBulk(ctx, sampleRows("run-1"))
	assert.ErrorIs(t, err, ErrDuplicateKey)

	rows, err := store.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	dup := sampleRows("run-3")
	dup = append(dup, dup[0])
	assert.ErrorIs(t, store.InsertBulk(ctx, dup), ErrDuplicateKey)
}
