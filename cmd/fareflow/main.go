// README: Entry point; cobra root command loading config and the zap logger for every subcommand.
package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fareflow/internal/config"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "fareflow",
	Short: "Ride pricing, priority dispatch and pricing-strategy pipeline",
	Long:  "Prices ride requests, dispatches them by priority tier, and periodically forecasts demand across 162 market segments to recommend pricing rules.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
