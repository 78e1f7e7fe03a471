// README: Forecast service: loads platform history, computes segment forecasts, archives, trains.
package forecast

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"fareflow/internal/modules/history"
)

type RecordSource interface {
	List(ctx context.Context, f history.Filter) ([]history.Record, error)
}

type Service struct {
	records     RecordSource
	computer    *Computer
	oracle      Oracle
	archiver    Archiver
	horizonDays int
}

// NewService wires the forecast phase. archiver may be nil.
func NewService(records RecordSource, computer *Computer, oracle Oracle, archiver Archiver, horizonDays int) *Service {
	if horizonDays <= 0 {
		horizonDays = StandardHorizons[len(StandardHorizons)-1]
	}
	return &Service{
		records:     records,
		computer:    computer,
		oracle:      oracle,
		archiver:    archiver,
		horizonDays: horizonDays,
	}
}

func (s *Service) HorizonDays() int {
	return s.horizonDays
}

// Run forecasts over all stored platform records. horizonDays <= 0 uses the configured horizon.
func (s *Service) Run(ctx context.Context, horizonDays int) (*Output, error) {
	recs, err := s.records.List(ctx, history.Filter{Source: history.SourcePlatform})
	if err != nil {
		return nil, eris.Wrap(err, "forecast: load history")
	}
	return s.RunOn(ctx, horizonDays, recs)
}

// RunOn forecasts over the given records. Archive failures are logged, not returned.
func (s *Service) RunOn(ctx context.Context, horizonDays int, recs []history.Record) (*Output, error) {
	if horizonDays <= 0 {
		horizonDays = s.horizonDays
	}
	out, err := s.computer.Compute(ctx, horizonDays, recs)
	if err != nil {
		return nil, err
	}
	if s.archiver != nil {
		key, err := s.archiver.Archive(ctx, out)
		if err != nil {
			zap.L().Warn("forecast: archive failed", zap.Error(err))
		} else {
			zap.L().Info("forecast: archived", zap.String("key", key))
		}
	}
	return out, nil
}

func (s *Service) Train(ctx context.Context, recs []history.Record) (TrainResult, error) {
	if s.oracle == nil {
		return TrainResult{}, eris.New("forecast: oracle not configured")
	}
	res, err := s.oracle.Train(ctx, recs)
	if err != nil {
		return TrainResult{}, eris.Wrap(err, "forecast: train")
	}
	return res, nil
}
