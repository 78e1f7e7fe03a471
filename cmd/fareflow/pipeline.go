package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"fareflow/internal/modules/pipeline"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the pricing-strategy pipeline",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run and print its outcome",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, envOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		changes, _ := cmd.Flags().GetStringSlice("changed")
		run, err := env.Pipeline.Trigger(ctx, pipeline.TriggerRequest{Source: "cli", ChangeSummary: changes})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return err
		}
		if run.Status == pipeline.StatusFailed {
			return eris.Errorf("pipeline run %s failed", run.ID)
		}
		return nil
	},
}

func init() {
	pipelineRunCmd.Flags().StringSlice("changed", nil, "data sources that changed since the last run (e.g. ride_records,competitor_records)")

	pipelineCmd.AddCommand(pipelineRunCmd)
	rootCmd.AddCommand(pipelineCmd)
}
