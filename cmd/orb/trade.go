package main

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/orb/internal/cost"
	"github.com/newthinker/orb/internal/engine"
	"github.com/newthinker/orb/internal/execution"
	"github.com/newthinker/orb/internal/outcome"
	"github.com/spf13/cobra"
)

var (
	tradeSymbol string
	tradeDate   string
	tradeSlot   string
	tradeCSV    map[string]string
	tradeRR     float64
	tradePolicy string
	tradeStop   string
	tradeAnchor string
	tradeStress string
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Simulate a single trade",
	Long:  "Simulate one (symbol, trading day, slot) and show every step of the trade",
	RunE:  runTrade,
}

func init() {
	tradeCmd.Flags().StringVar(&tradeSymbol, "symbol", "", "Symbol (required)")
	tradeCmd.Flags().StringVar(&tradeDate, "date", "", "Trading day YYYY-MM-DD (required)")
	tradeCmd.Flags().StringVar(&tradeSlot, "slot", "0900", "Session slot")
	tradeCmd.Flags().StringToStringVar(&tradeCSV, "csv", nil, "Bar files as SYMBOL=path")
	tradeCmd.Flags().Float64Var(&tradeRR, "rr", 2, "Reward:risk")
	tradeCmd.Flags().StringVar(&tradePolicy, "policy", string(execution.KindMarketOnConfirm), "Execution policy")
	tradeCmd.Flags().StringVar(&tradeStop, "stop", string(outcome.StopFull), "Stop mode: full or half")
	tradeCmd.Flags().StringVar(&tradeAnchor, "anchor", string(outcome.AnchorFill), "Risk anchor: fill or range_edge")
	tradeCmd.Flags().StringVar(&tradeStress, "stress", string(cost.StressNormal), "Cost stress level")

	tradeCmd.MarkFlagRequired("symbol")
	tradeCmd.MarkFlagRequired("date")

	rootCmd.AddCommand(tradeCmd)
}

func runTrade(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	day, err := e.parseDay(tradeDate, "trade")
	if err != nil {
		return err
	}

	kind, err := execution.ParseKind(tradePolicy)
	if err != nil {
		return err
	}
	policy, err := execution.NewPolicy(kind, e.cfg.Policies)
	if err != nil {
		return err
	}
	params := engine.Params{
		Policy:   policy,
		RR:       tradeRR,
		StopMode: outcome.StopMode(tradeStop),
		Anchor:   outcome.Anchor(tradeAnchor),
		Stress:   cost.Stress(tradeStress),
	}

	ctx := context.Background()
	g, err := e.cfg.Granularity()
	if err != nil {
		return err
	}
	src, closeSource, err := e.openSource(ctx, g, tradeCSV)
	if err != nil {
		return err
	}
	defer closeSource()

	eng, err := engine.New(e.resolver, src, e.costs, engine.WithLogger(e.log), engine.WithGranularity(g))
	if err != nil {
		return err
	}

	res, err := eng.SimulateTrade(ctx, engine.TradeRequest{Symbol: tradeSymbol, Date: day, Slot: tradeSlot, Params: params})
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func printResult(res engine.Result) {
	info := res.Info()
	fmt.Println("=== ORB Trade ===")
	fmt.Printf("Symbol:  %s\n", info.Symbol)
	fmt.Printf("Window:  %s %s [%s, %s) scan to %s\n", info.Window.TradingDay.Format(time.DateOnly), info.Window.Slot,
		info.Window.Start.Format(time.DateTime), info.Window.RangeEnd.Format(time.TimeOnly), info.Window.ScanEnd.Format(time.DateTime))
	fmt.Printf("Params:  %s\n", info.Params.Key())
	fmt.Printf("Path:    %v\n", info.Path)

	switch v := res.(type) {
	case engine.NoRange:
		fmt.Printf("Reason:  %v\n", v.Reason)
		return
	case engine.NoEntry:
		fmt.Printf("Range:   %g - %g (%d bars)\n", v.Range.Low, v.Range.High, v.Range.Bars)
		return
	}

	entered, _ := engine.Filled(res)
	fmt.Printf("Range:   %g - %g (%d bars)\n", entered.Range.Low, entered.Range.High, entered.Range.Bars)
	fmt.Printf("Entry:   %s %g at %s (delay %d bars)\n", entered.Fill.Direction, entered.Fill.Price,
		entered.Fill.Time.Format(time.TimeOnly), entered.Outcome.EntryDelay)
	fmt.Printf("Stop:    %g\n", entered.Levels.Stop)
	fmt.Printf("Target:  %g\n", entered.Levels.Target)
	fmt.Printf("Outcome: %s %.2fR (MAE %.2fR, MFE %.2fR)\n", entered.Outcome.Class, entered.Outcome.RMultiple,
		entered.Outcome.MAE, entered.Outcome.MFE)

	switch v := res.(type) {
	case engine.Open:
		fmt.Printf("Mark:    %.2fR\n", v.Outcome.MarkR)
	case engine.Viable:
		printCosted(v.Costed)
	case engine.Rejected:
		printCosted(v.Costed)
		fmt.Printf("Gate:    %v\n", v.Gate)
	}
}

func printCosted(c *cost.CostedResult) {
	fmt.Printf("Friction: $%.2f (%.1f%% of risk)\n", c.Friction, c.FrictionRatio*100)
	fmt.Printf("Realized: risk $%.2f, reward $%.2f, %.3fR\n", c.RealizedRisk, c.RealizedReward, c.RealizedR)
	if c.Downgraded {
		fmt.Println("Target hit but friction consumed the reward; booked as a loss")
	}
}
