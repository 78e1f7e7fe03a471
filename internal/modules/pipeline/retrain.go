// README: Retraining decision and execution ahead of the forecast phase.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"fareflow/internal/modules/history"
	"fareflow/internal/types"
)

// DefaultMinTrainingRecords is the smallest merged dataset the oracle is retrained on.
const DefaultMinTrainingRecords = 300

// forecastSources are the tables whose changes invalidate the trained model.
var forecastSources = map[string]bool{
	"ride_records":       true,
	"competitor_records": true,
}

const (
	ReasonSourcesChanged = "sources_changed"
	ReasonNewRecords     = "new_records"
	ReasonNoTraining     = "no_training_record"
)

// ShouldRetrain reports whether the model must be retrained and why.
// newest is the newest stored record timestamp; ok is false when no records exist.
func ShouldRetrain(changeSummary []string, newest time.Time, ok bool, last *TrainingRecord) (bool, []string) {
	var reasons []string
	for _, src := range changeSummary {
		if forecastSources[src] {
			reasons = append(reasons, ReasonSourcesChanged+":"+src)
		}
	}
	if last == nil {
		reasons = append(reasons, ReasonNoTraining)
	} else if ok && newest.After(last.TrainedAt) {
		reasons = append(reasons, ReasonNewRecords)
	}
	return len(reasons) > 0, reasons
}

func (s *Service) retrain(ctx context.Context, run *Run) (*RetrainReport, error) {
	newest, ok, err := s.history.LatestRecordedAt(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: newest record")
	}
	last, err := s.runs.LastTraining(ctx)
	if err != nil {
		return nil, err
	}

	rep := &RetrainReport{}
	rep.Retrain, rep.Reasons = ShouldRetrain(run.ChangeSummary, newest, ok, last)
	if !rep.Retrain {
		return rep, nil
	}

	platform, err := s.history.List(ctx, history.Filter{Source: history.SourcePlatform})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load platform records")
	}
	competitor, err := s.history.ListCompetitor(ctx, 0)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load competitor records")
	}
	merged, mr := history.Merge(platform, competitor)
	rep.Merge = &mr

	if mr.Usable < s.cfg.MinTrainingRecords {
		rep.Skipped = fmt.Sprintf("insufficient_records: %d < %d", mr.Usable, s.cfg.MinTrainingRecords)
		zap.L().Info("pipeline: retrain skipped",
			zap.String("run_id", string(run.ID)),
			zap.Int("usable", mr.Usable),
		)
		return rep, nil
	}

	res, err := s.forecast.Train(ctx, merged)
	if err != nil {
		// The forecast still runs against the previous model.
		rep.Error = err.Error()
		zap.L().Warn("pipeline: retrain failed", zap.String("run_id", string(run.ID)), zap.Error(err))
		return rep, nil
	}
	rep.Trained = true
	rep.ModelVersion = res.ModelVersion

	trainedAt := res.TrainedAt
	if trainedAt.IsZero() {
		trainedAt = time.Now().UTC()
	}
	if err := s.runs.RecordTraining(ctx, TrainingRecord{
		ID:             types.NewID(),
		RunID:          run.ID,
		TrainedAt:      trainedAt,
		Records:        mr.Usable,
		Platform:       mr.Platform,
		Competitor:     mr.Competitor,
		NewestRecordAt: newest,
		ModelVersion:   res.ModelVersion,
	}); err != nil {
		zap.L().Warn("pipeline: record training failed", zap.String("run_id", string(run.ID)), zap.Error(err))
	}
	zap.L().Info("pipeline: retrained",
		zap.String("run_id", string(run.ID)),
		zap.String("model_version", res.ModelVersion),
		zap.Int("records", mr.Usable),
	)
	return rep, nil
}
