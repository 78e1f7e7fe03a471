package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "fareflow/internal/http"
	"fareflow/internal/infra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the pipeline scheduler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		verifier, err := newVerifier(ctx)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, envOptions{redis: true})
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Pipeline.Scheduler {
			go env.Pipeline.RunScheduler(ctx)
		}

		server := httptransport.NewServer(httptransport.ServerDeps{
			Pricing:  env.Pricing,
			Dispatch: env.Dispatch,
			Pipeline: env.Pipeline,
			Forecast: env.Forecast,
			Verifier: verifier,
		})
		return server.ListenAndServe(ctx, cfg.HTTP.Addr)
	},
}

func newVerifier(ctx context.Context) (infra.TokenVerifier, error) {
	if cfg.Firebase.ProjectID == "" {
		zap.L().Warn("auth: FAREFLOW_FIREBASE_PROJECT_ID not set, accepting any bearer token as admin")
		return infra.StaticVerifier{}, nil
	}
	return infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
