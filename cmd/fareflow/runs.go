package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"fareflow/internal/modules/pipeline"
	"fareflow/internal/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, envOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := env.Pipeline.List(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs last / get --

var runsLastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the most recent run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, envOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Pipeline.Last(ctx)
		if err != nil {
			return eris.Wrap(err, "runs last")
		}
		return printRun(os.Stdout, run)
	},
}

var runsGetCmd = &cobra.Command{
	Use:   "get <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, envOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Pipeline.Get(ctx, types.ID(args[0]))
		if err != nil {
			return eris.Wrap(err, "runs get")
		}
		return printRun(os.Stdout, run)
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 10, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsLastCmd)
	runsCmd.AddCommand(runsGetCmd)
	rootCmd.AddCommand(runsCmd)
}

func printRun(out io.Writer, run *pipeline.Run) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []pipeline.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tSTARTED\tDURATION\tFAILED_PHASES")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.TriggerSource,
			r.Status,
			r.StartedAt.Format(time.RFC3339),
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
			failedPhases(r),
		)
	}
	_ = w.Flush()
}

func failedPhases(r pipeline.Run) string {
	var failed []string
	for name, res := range r.Results {
		if !res.Success {
			failed = append(failed, name)
		}
	}
	if len(failed) == 0 {
		return "-"
	}
	sort.Strings(failed)
	return strings.Join(failed, ",")
}
