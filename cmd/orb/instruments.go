package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/orb/internal/instrument"
	"github.com/spf13/cobra"
)

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "List contract specifications",
	Long: `List every configured instrument with its friction and the smallest stop
distance that passes the cost gate.`,
	RunE: runInstruments,
}

func init() {
	rootCmd.AddCommand(instrumentsCmd)
}

func runInstruments(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tSTATUS\tTICK\tTICK $\tPOINT $\tCOMM RT\tSPREAD\tSLIP\tFRICTION\tMIN RISK\tALIASES")
	for _, sym := range e.registry.Symbols() {
		spec, _ := e.registry.Lookup(sym)
		if spec.Status == instrument.StatusBlocked {
			fmt.Fprintf(w, "%s\t%s\t\t\t\t\t\t\t\t\t\n", spec.Symbol, spec.Status)
			continue
		}
		// smallest risk in points whose friction ratio stays within the gate
		minRisk := spec.Friction() / (e.costs.Threshold() * spec.PointValue)
		fmt.Fprintf(w, "%s\t%s\t%g\t%.2f\t%g\t%.2f\t%g\t%g\t%.2f\t%.2f\t%s\n",
			spec.Symbol, spec.Status, spec.TickSize, spec.TickValue, spec.PointValue,
			spec.CommissionRT, spec.SpreadTicks, spec.SlippageTicks, spec.Friction(), minRisk,
			strings.Join(spec.Aliases, ","))
	}
	return w.Flush()
}
