package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/newthinker/orb/internal/backtest"
	"github.com/newthinker/orb/internal/engine"
	"github.com/newthinker/orb/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backtestSymbols []string
	backtestFrom    string
	backtestTo      string
	backtestSlots   []string
	backtestCSV     map[string]string
	backtestRR      []float64
	backtestWorkers int
	backtestBudget  time.Duration
	backtestOutput  string
	backtestTrades  bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the parameter grid over a date range",
	Long: `Simulate every (symbol, trading day, slot) in the range against every
parameter set of the configured grid and show R statistics per parameter set.`,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringSliceVar(&backtestSymbols, "symbols", nil, "Symbols to backtest (required)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "First trading day YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "Last trading day YYYY-MM-DD (required)")
	backtestCmd.Flags().StringSliceVar(&backtestSlots, "slots", nil, "Session slots (default: all configured)")
	backtestCmd.Flags().StringToStringVar(&backtestCSV, "csv", nil, "Bar files as SYMBOL=path")
	backtestCmd.Flags().Float64SliceVar(&backtestRR, "rr", nil, "Reward:risk values, replacing the configured grid axis")
	backtestCmd.Flags().IntVar(&backtestWorkers, "workers", 0, "Parallel sessions (default: from config)")
	backtestCmd.Flags().DurationVar(&backtestBudget, "budget", 0, "Wall-clock budget, e.g. 10m (default: from config)")
	backtestCmd.Flags().StringVarP(&backtestOutput, "output", "o", "", "Write the JSON report to this file")
	backtestCmd.Flags().BoolVar(&backtestTrades, "trades", false, "Print every trade")

	backtestCmd.MarkFlagRequired("symbols")
	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	from, err := e.parseDay(backtestFrom, "from")
	if err != nil {
		return err
	}
	to, err := e.parseDay(backtestTo, "to")
	if err != nil {
		return err
	}
	if to.Before(from) {
		return fmt.Errorf("end date must not be before start date")
	}

	if len(backtestRR) > 0 {
		e.cfg.Engine.Grid.RR = backtestRR
	}
	grid, err := e.cfg.Grid()
	if err != nil {
		return err
	}

	batch := e.cfg.Batch
	if backtestWorkers > 0 {
		batch.Workers = backtestWorkers
	}
	if backtestBudget > 0 {
		batch.Budget = backtestBudget
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, err := e.cfg.Granularity()
	if err != nil {
		return err
	}
	src, closeSource, err := e.openSource(ctx, g, backtestCSV)
	if err != nil {
		return err
	}
	defer closeSource()

	eng, err := engine.New(e.resolver, src, e.costs, engine.WithLogger(e.log), engine.WithGranularity(g))
	if err != nil {
		return err
	}

	store, closeStore, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []backtest.Option{backtest.WithLogger(e.log), backtest.WithStore(store)}
	files, err := e.openArchive()
	if err != nil {
		return err
	}
	if files != nil {
		opts = append(opts, backtest.WithArchive(files))
	}
	var reg *metrics.Registry
	if e.cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		opts = append(opts, backtest.WithMetrics(reg))
	}

	runner, err := backtest.New(eng, batch, opts...)
	if err != nil {
		return err
	}

	report, runErr := runner.Run(ctx, backtest.Request{
		Symbols: backtestSymbols,
		From:    from,
		To:      to,
		Slots:   backtestSlots,
		Grid:    grid,
	})

	if reg != nil && e.cfg.Metrics.Textfile != "" {
		if err := reg.WriteTextfile(e.cfg.Metrics.Textfile); err != nil {
			e.log.Warn("write metrics textfile", zap.Error(err))
		}
	}
	if report == nil {
		return runErr
	}

	if backtestOutput != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(backtestOutput, data, 0644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	printReport(report, backtestTrades)
	return runErr
}

func printReport(r *backtest.Report, trades bool) {
	fmt.Println("=== ORB Backtest ===")
	fmt.Printf("Run:      %s (%s)\n", r.RunID, r.Status)
	fmt.Printf("Symbols:  %v\n", r.Symbols)
	fmt.Printf("Period:   %s to %s\n", r.From.Format(time.DateOnly), r.To.Format(time.DateOnly))
	fmt.Printf("Slots:    %v\n", r.Slots)
	fmt.Printf("Sessions: %d\n", r.Sessions)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARAMS\tTRADES\tWIN%\tTOTAL R\tAVG R\tMAX DD\tPF\tSHARPE\tTHEO R\tREJECTED")
	for _, g := range r.Groups {
		s := g.Realized
		fmt.Fprintf(w, "%s\t%d\t%.1f\t%.2f\t%.3f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n",
			g.ParamsKey, s.Trades, s.WinRate, s.TotalR, s.AvgR, s.MaxDrawdownR,
			s.ProfitFactor, s.Sharpe, g.Theoretical.TotalR, g.States[engine.StateRejected])
	}
	w.Flush()

	fmt.Println()
	for _, state := range []engine.State{
		engine.StateViable, engine.StateRejected, engine.StateOpen,
		engine.StateNoEntry, engine.StateNoRange, backtest.StateInvalidRisk,
	} {
		if n := r.States[state]; n > 0 {
			fmt.Printf("%-20s %d\n", state, n)
		}
	}

	if !trades {
		return
	}
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tSLOT\tSYMBOL\tPARAMS\tSTATE\tDIR\tENTRY\tSTOP\tTARGET\tTHEO R\tREAL R")
	for _, t := range r.Trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%g\t%g\t%g\t%.2f\t%.3f\n",
			t.TradingDay.Format(time.DateOnly), t.Slot, t.Symbol, t.ParamsKey, t.State,
			t.Direction, t.Entry, t.Stop, t.Target, t.TheoreticalR, t.RealizedR)
	}
	w.Flush()
}
