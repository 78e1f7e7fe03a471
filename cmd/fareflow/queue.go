package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"fareflow/internal/modules/dispatch"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the priority dispatch queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-tier queue depth",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, envOptions{redis: true})
		if err != nil {
			return err
		}
		defer env.Close()
		if err := requireDispatch(env); err != nil {
			return err
		}

		st, err := env.Dispatch.Status(ctx)
		if err != nil {
			return eris.Wrap(err, "queue status")
		}
		formatQueueStatus(os.Stdout, st)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueStatusCmd)
	rootCmd.AddCommand(queueCmd)
}

func formatQueueStatus(out io.Writer, st dispatch.Status) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIER\tORDER\tDEPTH")
	_, _ = fmt.Fprintf(w, "%s\tFIFO\t%d\n", dispatch.TierP0, st.P0)
	_, _ = fmt.Fprintf(w, "%s\tranked\t%d\n", dispatch.TierP1, st.P1)
	_, _ = fmt.Fprintf(w, "%s\tranked\t%d\n", dispatch.TierP2, st.P2)
	_, _ = fmt.Fprintf(w, "total\t\t%d\n", st.Total)
	_ = w.Flush()
}
