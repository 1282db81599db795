package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/orb/internal/cost"
	"github.com/spf13/cobra"
)

var (
	recostSymbol string
	recostRisk   float64
	recostRR     float64
	recostStress []string
)

var recostCmd = &cobra.Command{
	Use:   "recost",
	Short: "Compute the realized return of a theoretical trade",
	Long: `Apply commission, spread and slippage to a trade with the given stop
distance and reward:risk, at every configured stress level.`,
	RunE: runRecost,
}

func init() {
	recostCmd.Flags().StringVar(&recostSymbol, "symbol", "", "Symbol (required)")
	recostCmd.Flags().Float64Var(&recostRisk, "risk", 0, "Stop distance in price points (required)")
	recostCmd.Flags().Float64Var(&recostRR, "rr", 2, "Reward:risk")
	recostCmd.Flags().StringSliceVar(&recostStress, "stress", nil, "Stress levels (default: all configured)")

	recostCmd.MarkFlagRequired("symbol")
	recostCmd.MarkFlagRequired("risk")

	rootCmd.AddCommand(recostCmd)
}

func runRecost(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	levels := e.costs.StressLevels()
	if len(recostStress) > 0 {
		levels = levels[:0]
		for _, s := range recostStress {
			levels = append(levels, cost.Stress(s))
		}
	}

	spec, err := e.costs.CostSpec(recostSymbol)
	if err != nil {
		return err
	}
	fmt.Printf("%s: $%.2f per point, $%.2f friction per round trip, gate %.0f%%\n\n",
		spec.Symbol, spec.PointValue, spec.Friction, e.costs.Threshold()*100)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STRESS\tFRICTION\tRATIO\tRISK $\tREWARD $\tREALIZED R\tSTATUS")
	for _, level := range levels {
		res, err := e.costs.Compute(recostSymbol, recostRisk, recostRR, level)
		var gate *cost.GateError
		status := "viable"
		switch {
		case errors.As(err, &gate):
			status = "rejected"
		case err != nil:
			return err
		case res.Downgraded:
			status = "downgraded"
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.1f%%\t%.2f\t%.2f\t%.3f\t%s\n",
			level, res.Friction, res.FrictionRatio*100, res.RealizedRisk, res.RealizedReward, res.RealizedR, status)
	}
	return w.Flush()
}
