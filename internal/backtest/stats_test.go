package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/newthinker/orb/internal/engine"
)

func TestCalculateStats_Empty(t *testing.T) {
	assert.Equal(t, Stats{}, CalculateStats(nil))
}

func TestCalculateStats(t *testing.T) {
	stats := CalculateStats([]float64{1, -1, -1, 2, -1})

	assert.Equal(t, 5, stats.Trades)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 3, stats.Losses)
	assert.Equal(t, 40.0, stats.WinRate)
	assert.Equal(t, 0.0, stats.TotalR)
	assert.Equal(t, 0.0, stats.AvgR)
	assert.Equal(t, 2.0, stats.MaxDrawdownR) // +1 peak down to -1
	assert.Equal(t, 2, stats.MaxConsecutiveLosses)
	assert.Equal(t, 1.0, stats.ProfitFactor)
	assert.Equal(t, 0.0, stats.Sharpe)
}

func TestCalculateStats_NoLosses(t *testing.T) {
	stats := CalculateStats([]float64{0.5, 1.5})

	assert.Equal(t, 100.0, stats.WinRate)
	assert.Equal(t, 0.0, stats.ProfitFactor)
	assert.Equal(t, 0.0, stats.MaxDrawdownR)
	assert.InDelta(t, math.Sqrt2, stats.Sharpe, 1e-12)
}

func TestCalculateStats_DowngradedWinIsALoss(t *testing.T) {
	stats := CalculateStats([]float64{-1})
	assert.Equal(t, 1, stats.Losses)
	assert.Equal(t, 1, stats.MaxConsecutiveLosses)
}

func TestCalculateMaxDrawdown(t *testing.T) {
	// cumulative: 2, 1, -1, 0, 3
	assert.Equal(t, 3.0, calculateMaxDrawdown([]float64{2, -1, -2, 1, 3}))
	assert.Equal(t, 2.0, calculateMaxDrawdown([]float64{-1, -1}))
}

func TestSummarize_OnlyCountsViable(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		{TradingDay: day, ParamsKey: "a", State: engine.StateViable, RealizedR: 0.8, TheoreticalR: 1},
		{TradingDay: day, ParamsKey: "a", State: engine.StateRejected, TheoreticalR: 1},
		{TradingDay: day, ParamsKey: "a", State: engine.StateOpen},
		{TradingDay: day, ParamsKey: "b", State: engine.StateNoEntry},
		{TradingDay: day, ParamsKey: "a", State: engine.StateViable, RealizedR: -1, TheoreticalR: -1},
	}

	groups, states := summarize(trades)
	assert.Equal(t, map[engine.State]int{
		engine.StateViable: 2, engine.StateRejected: 1, engine.StateOpen: 1, engine.StateNoEntry: 1,
	}, states)

	assert.Len(t, groups, 2)
	a := groups[0]
	assert.Equal(t, "a", a.ParamsKey)
	assert.Equal(t, 2, a.Realized.Trades)
	assert.InDelta(t, -0.2, a.Realized.TotalR, 1e-12)
	assert.Equal(t, 0.0, a.Theoretical.TotalR)
	assert.Equal(t, 0, groups[1].Realized.Trades)
}

func TestSortTrades(t *testing.T) {
	d1 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	trades := []Trade{
		{TradingDay: d2, Slot: "0900", Symbol: "MGC", ParamsKey: "a"},
		{TradingDay: d1, Slot: "1000", Symbol: "MGC", ParamsKey: "a"},
		{TradingDay: d1, Slot: "0900", Symbol: "MNQ", ParamsKey: "a"},
		{TradingDay: d1, Slot: "0900", Symbol: "MES", ParamsKey: "b"},
		{TradingDay: d1, Slot: "0900", Symbol: "MES", ParamsKey: "a"},
	}
	sortTrades(trades)

	var got []string
	for _, tr := range trades {
		got = append(got, tr.TradingDay.Format("02")+"/"+tr.Slot+"/"+tr.Symbol+"/"+tr.ParamsKey)
	}
	assert.Equal(t, []string{"04/0900/MES/a", "04/0900/MES/b", "04/0900/MNQ/a", "04/1000/MGC/a", "05/0900/MGC/a"}, got)
}
