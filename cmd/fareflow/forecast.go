package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"fareflow/internal/modules/forecast"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Compute an ad-hoc segment forecast over stored platform history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, envOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		horizon, _ := cmd.Flags().GetInt("horizon")
		out, err := env.Forecast.Run(ctx, horizon)
		if err != nil {
			return eris.Wrap(err, "forecast")
		}
		formatForecastSummary(os.Stdout, out)
		return nil
	},
}

func init() {
	forecastCmd.Flags().Int("horizon", 0, "horizon in days (30, 60 or 90); 0 uses the configured horizon")
	rootCmd.AddCommand(forecastCmd)
}

func formatForecastSummary(out io.Writer, o *forecast.Output) {
	s := o.Summary
	_, _ = fmt.Fprintf(out, "records: %d  segment-specific: %d  aggregated: %d  errors: %d\n",
		o.RecordCount, len(o.SegmentSpecific), len(o.AggregatedFallback), len(o.Errors))
	_, _ = fmt.Fprintf(out, "baseline revenue (30d): %.2f\n", s.BaselineRevenue)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "HORIZON\tPROJECTED_REVENUE\tGROWTH_PCT")
	for _, h := range o.Horizons {
		_, _ = fmt.Fprintf(w, "%dd\t%.2f\t%.2f\n", h, s.ProjectedRevenue[h], s.GrowthPct[h])
	}
	_ = w.Flush()
}
