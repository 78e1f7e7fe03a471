// README: Fixed-interval pipeline scheduler.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RunScheduler triggers the pipeline every cfg.Interval until ctx is done.
// A tick that finds a run in progress is skipped.
func (s *Service) RunScheduler(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		zap.L().Info("pipeline: scheduler disabled")
		return
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	run, err := s.Trigger(ctx, TriggerRequest{Source: "scheduler"})
	var running *AlreadyRunningError
	switch {
	case errors.As(err, &running):
		zap.L().Info("pipeline: scheduled run skipped", zap.String("active_run_id", string(running.RunID)))
	case err != nil:
		zap.L().Error("pipeline: scheduled run failed", zap.Error(err))
	default:
		zap.L().Info("pipeline: scheduled run done",
			zap.String("run_id", string(run.ID)),
			zap.String("status", string(run.Status)),
		)
	}
}
