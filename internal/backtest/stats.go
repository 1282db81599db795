package backtest

import (
	"math"
	"sort"

	"github.com/newthinker/orb/internal/engine"
)

// CalculateStats computes R statistics over a sequence of R-multiples in
// chronological order.
func CalculateStats(rs []float64) Stats {
	if len(rs) == 0 {
		return Stats{}
	}

	var wins, losses, streak, maxStreak int
	var total, grossWin, grossLoss float64
	for _, r := range rs {
		total += r
		if r > 0 {
			wins++
			grossWin += r
			streak = 0
			continue
		}
		losses++
		grossLoss -= r
		streak++
		maxStreak = max(maxStreak, streak)
	}

	var pf float64
	if grossLoss > 0 {
		pf = grossWin / grossLoss
	}

	return Stats{
		Trades:               len(rs),
		Wins:                 wins,
		Losses:               losses,
		WinRate:              float64(wins) / float64(len(rs)) * 100,
		TotalR:               total,
		AvgR:                 total / float64(len(rs)),
		MaxDrawdownR:         calculateMaxDrawdown(rs),
		MaxConsecutiveLosses: maxStreak,
		ProfitFactor:         pf,
		Sharpe:               calculateSharpeRatio(rs),
	}
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of the
// cumulative R curve, starting from zero.
func calculateMaxDrawdown(rs []float64) float64 {
	var maxDD, peak, cumulative float64
	for _, r := range rs {
		cumulative += r
		peak = max(peak, cumulative)
		maxDD = max(maxDD, peak-cumulative)
	}
	return maxDD
}

// calculateSharpeRatio is mean over sample standard deviation.
func calculateSharpeRatio(rs []float64) float64 {
	if len(rs) < 2 {
		return 0
	}

	var sum float64
	for _, r := range rs {
		sum += r
	}
	mean := sum / float64(len(rs))

	var variance float64
	for _, r := range rs {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(rs)-1))
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev
}

// sortTrades orders trades by day, slot, symbol and parameter key, so a
// report does not depend on worker scheduling.
func sortTrades(trades []Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
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

// summarize groups sorted trades by parameter set. Only counted trades feed
// the statistics; every trade feeds the state tally.
func summarize(trades []Trade) ([]Group, map[engine.State]int) {
	total := make(map[engine.State]int)
	byKey := make(map[string]*Group)
	realized := make(map[string][]float64)
	theoretical := make(map[string][]float64)

	for _, t := range trades {
		total[t.State]++
		g, ok := byKey[t.ParamsKey]
		if !ok {
			g = &Group{ParamsKey: t.ParamsKey, States: make(map[engine.State]int)}
			byKey[t.ParamsKey] = g
		}
		g.States[t.State]++
		if t.Counted() {
			realized[t.ParamsKey] = append(realized[t.ParamsKey], t.RealizedR)
			theoretical[t.ParamsKey] = append(theoretical[t.ParamsKey], t.TheoreticalR)
		}
	}

	groups := make([]Group, 0, len(byKey))
	for key, g := range byKey {
		g.Realized = CalculateStats(realized[key])
		g.Theoretical = CalculateStats(theoretical[key])
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ParamsKey < groups[j].ParamsKey })
	return groups, total
}
