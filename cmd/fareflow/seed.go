package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"fareflow/internal/infra"
	"fareflow/internal/modules/history"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load synthetic platform and competitor ride history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		db, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := infra.Migrate(ctx, db); err != nil {
			return err
		}

		platform, _ := cmd.Flags().GetInt("platform")
		competitor, _ := cmd.Flags().GetInt("competitor")
		days, _ := cmd.Flags().GetInt("days")
		seed, _ := cmd.Flags().GetInt64("seed")
		quiet, _ := cmd.Flags().GetBool("quiet")
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		res, err := history.NewSeeder(history.NewStore(db), seed).Seed(ctx, platform, competitor, days, !quiet)
		if err != nil {
			return eris.Wrap(err, "seed")
		}
		fmt.Fprintf(os.Stderr, "seeded %d platform and %d competitor records (seed %d)\n", res.Platform, res.Competitor, seed)
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("platform", 1000, "number of platform ride records")
	seedCmd.Flags().Int("competitor", 500, "number of competitor ride records")
	seedCmd.Flags().Int("days", 180, "spread records over this many past days")
	seedCmd.Flags().Int64("seed", 0, "random seed (0 = time-based)")
	seedCmd.Flags().Bool("quiet", false, "disable the progress bar")
	rootCmd.AddCommand(seedCmd)
}
