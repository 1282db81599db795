package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	windowDate  string
	windowSlots []string
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Show the session windows of a trading day",
	RunE:  runWindow,
}

func init() {
	windowCmd.Flags().StringVar(&windowDate, "date", "", "Trading day YYYY-MM-DD (required)")
	windowCmd.Flags().StringSliceVar(&windowSlots, "slots", nil, "Session slots (default: all configured)")

	windowCmd.MarkFlagRequired("date")

	rootCmd.AddCommand(windowCmd)
}

func runWindow(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	day, err := e.parseDay(windowDate, "window")
	if err != nil {
		return err
	}
	slots := windowSlots
	if len(slots) == 0 {
		slots = e.resolver.Slots()
	}

	const layout = "2006-01-02 15:04 MST"
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tRANGE START\tRANGE END\tSCAN END")
	for _, slot := range slots {
		win, err := e.resolver.Resolve(day, slot)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", win.Slot,
			win.Start.Format(layout), win.RangeEnd.Format(time.TimeOnly), win.ScanEnd.Format(layout))
	}
	return w.Flush()
}
