// README: Pipeline orchestrator: lease guard, phased execution with per-phase isolation, run persistence.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fareflow/internal/modules/analysis"
	"fareflow/internal/modules/forecast"
	"fareflow/internal/modules/history"
	"fareflow/internal/modules/impact"
	"fareflow/internal/modules/recommend"
	"fareflow/internal/types"
)

type RunStore interface {
	UpsertRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id types.ID) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	LastRun(ctx context.Context) (*Run, error)
	MarkAbandoned(ctx context.Context, id types.ID, reason string) error
	LastTraining(ctx context.Context) (*TrainingRecord, error)
	RecordTraining(ctx context.Context, t TrainingRecord) error
}

type Leaser interface {
	Acquire(ctx context.Context, name string, runID types.ID, holder string, ttl time.Duration) (LeaseResult, error)
	Heartbeat(ctx context.Context, name string, runID types.ID, ttl time.Duration) error
	Release(ctx context.Context, name string, runID types.ID) error
}

type HistorySource interface {
	List(ctx context.Context, f history.Filter) ([]history.Record, error)
	ListCompetitor(ctx context.Context, limit int) ([]history.RawRecord, error)
	LatestRecordedAt(ctx context.Context) (time.Time, bool, error)
}

type Forecaster interface {
	Run(ctx context.Context, horizonDays int) (*forecast.Output, error)
	Train(ctx context.Context, recs []history.Record) (forecast.TrainResult, error)
}

type Analyzer interface {
	Run(ctx context.Context) (*analysis.Report, error)
}

type Recommender interface {
	Run(ctx context.Context, in recommend.Input) (*recommend.Result, error)
}

type Assessor interface {
	Run(ctx context.Context, in *recommend.Result) (*impact.Assessment, error)
}

type Config struct {
	LeaseTTL           time.Duration
	Interval           time.Duration
	MinTrainingRecords int
	Holder             string
}

// Deps are the orchestrator's collaborators. Events may be nil.
type Deps struct {
	Runs      RunStore
	Leases    Leaser
	History   HistorySource
	Forecast  Forecaster
	Analysis  Analyzer
	Recommend Recommender
	Impact    Assessor
	Events    EventPublisher
}

type Service struct {
	runs      RunStore
	leases    Leaser
	history   HistorySource
	forecast  Forecaster
	analysis  Analyzer
	recommend Recommender
	impact    Assessor
	events    EventPublisher
	cfg       Config

	mu     sync.Mutex
	active types.ID
}

func NewService(d Deps, cfg Config) *Service {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 15 * time.Minute
	}
	if cfg.MinTrainingRecords <= 0 {
		cfg.MinTrainingRecords = DefaultMinTrainingRecords
	}
	if cfg.Holder == "" {
		host, _ := os.Hostname()
		cfg.Holder = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return &Service{
		runs:      d.Runs,
		leases:    d.Leases,
		history:   d.History,
		forecast:  d.Forecast,
		analysis:  d.Analysis,
		recommend: d.Recommend,
		impact:    d.Impact,
		events:    d.Events,
		cfg:       cfg,
	}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Run, error) {
	return s.runs.GetRun(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.runs.ListRuns(ctx, limit)
}

func (s *Service) Last(ctx context.Context) (*Run, error) {
	return s.runs.LastRun(ctx)
}

// Trigger executes one pipeline run synchronously. While another run holds the lease it
// returns an *AlreadyRunningError (errors.Is ErrAlreadyRunning) naming that run.
func (s *Service) Trigger(ctx context.Context, req TriggerRequest) (*Run, error) {
	if req.Source == "" {
		req.Source = "manual"
	}
	run := &Run{
		ID:            types.NewID(),
		TriggerSource: req.Source,
		ChangeSummary: req.ChangeSummary,
		Status:        StatusPending,
		Results:       map[string]PhaseResult{},
		Errors:        []string{},
	}

	s.mu.Lock()
	if s.active != "" {
		id := s.active
		s.mu.Unlock()
		return nil, &AlreadyRunningError{RunID: id}
	}
	s.active = run.ID
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active = ""
		s.mu.Unlock()
	}()

	lease, err := s.leases.Acquire(ctx, LeaseName, run.ID, s.cfg.Holder, s.cfg.LeaseTTL)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: acquire lease")
	}
	if !lease.Acquired {
		return nil, &AlreadyRunningError{RunID: lease.Current.RunID}
	}
	bg := context.WithoutCancel(ctx)
	defer func() {
		if err := s.leases.Release(bg, LeaseName, run.ID); err != nil {
			zap.L().Warn("pipeline: release lease failed", zap.String("run_id", string(run.ID)), zap.Error(err))
		}
	}()

	if lease.Stale != nil {
		zap.L().Warn("pipeline: took over expired lease",
			zap.String("stale_run_id", string(lease.Stale.RunID)),
			zap.String("stale_holder", lease.Stale.Holder),
		)
		if err := s.runs.MarkAbandoned(ctx, lease.Stale.RunID, "abandoned: lease expired"); err != nil {
			zap.L().Warn("pipeline: mark abandoned failed", zap.Error(err))
		}
	}

	s.execute(ctx, run)
	s.finish(bg, run)
	return run, nil
}

// execute runs every phase. Failures outside phase boundaries mark the run FAILED.
func (s *Service) execute(ctx context.Context, run *Run) {
	log := zap.L().With(zap.String("run_id", string(run.ID)))

	defer func() {
		if r := recover(); r != nil {
			s.fail(run, fmt.Sprintf("pipeline: panic: %v", r))
			log.Error("pipeline: run panicked", zap.Any("panic", r))
		}
	}()

	run.StartedAt = time.Now().UTC()
	if err := run.Transition(StatusRunning); err != nil {
		s.fail(run, err.Error())
		return
	}
	if err := s.runs.UpsertRun(ctx, run); err != nil {
		log.Error("pipeline: persist run failed", zap.Error(err))
		s.fail(run, err.Error())
		return
	}
	log.Info("pipeline: run started",
		zap.String("trigger_source", run.TriggerSource),
		zap.Strings("change_summary", run.ChangeSummary),
	)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go s.heartbeat(hbCtx, run.ID)

	var (
		resultsMu sync.Mutex
		fc        *forecast.Output
		an        *analysis.Report
		rec       *recommend.Result
	)

	trackPhase := func(name string, fn func() (any, error)) {
		start := time.Now()
		data, fnErr := guard(fn)
		duration := time.Since(start).Milliseconds()

		res := PhaseResult{DurationMs: duration}
		if fnErr != nil {
			res.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			res.Success = true
			if data != nil {
				if b, err := json.Marshal(data); err == nil {
					res.Data = b
				} else {
					log.Warn("pipeline: encode phase output", zap.String("phase", name), zap.Error(err))
				}
			}
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		resultsMu.Lock()
		run.Results[name] = res
		if fnErr != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("%s: %s", name, fnErr.Error()))
		}
		resultsMu.Unlock()
	}

	// Phase 1: forecast and analysis are independent.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trackPhase(PhaseForecast, func() (any, error) {
			rep, err := s.retrain(gCtx, run)
			if err != nil {
				return nil, err
			}
			resultsMu.Lock()
			run.Retrain = rep
			resultsMu.Unlock()

			out, err := s.forecast.Run(gCtx, 0)
			if err != nil {
				return nil, err
			}
			fc = out
			return out, nil
		})
		return nil
	})
	g.Go(func() error {
		trackPhase(PhaseAnalysis, func() (any, error) {
			rep, err := s.analysis.Run(gCtx)
			if err != nil {
				return nil, err
			}
			an = rep
			return rep, nil
		})
		return nil
	})
	_ = g.Wait()

	// Phase 2 consumes whatever phase 1 produced.
	trackPhase(PhaseRecommendation, func() (any, error) {
		out, err := s.recommend.Run(ctx, recommend.Input{Forecast: fc, Analysis: an})
		if err != nil {
			return nil, err
		}
		rec = out
		return out, nil
	})

	trackPhase(PhaseImpact, func() (any, error) {
		out, err := s.impact.Run(ctx, rec)
		if err != nil {
			return nil, err
		}
		return out, nil
	})

	status := StatusCompleted
	for _, name := range Phases {
		if !run.Results[name].Success {
			status = StatusPartial
			break
		}
	}
	if err := run.Transition(status); err != nil {
		s.fail(run, err.Error())
	}
}

// guard converts a phase panic into an error.
func guard(fn func() (any, error)) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, eris.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (s *Service) fail(run *Run, msg string) {
	run.Errors = append(run.Errors, msg)
	if run.Status.Terminal() {
		return
	}
	run.Status = StatusFailed
}

// finish stamps completion, persists the final record and publishes the event.
func (s *Service) finish(ctx context.Context, run *Run) {
	now := time.Now().UTC()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	run.CompletedAt = &now
	run.DurationMs = now.Sub(run.StartedAt).Milliseconds()

	log := zap.L().With(zap.String("run_id", string(run.ID)))
	if err := s.runs.UpsertRun(ctx, run); err != nil {
		log.Error("pipeline: persist final run failed", zap.Error(err))
	}
	log.Info("pipeline: run finished",
		zap.String("status", string(run.Status)),
		zap.Int64("duration_ms", run.DurationMs),
		zap.Int("errors", len(run.Errors)),
	)

	if s.events != nil {
		if err := s.events.Publish(ctx, run); err != nil {
			log.Warn("pipeline: publish event failed", zap.Error(err))
		}
	}
}

func (s *Service) heartbeat(ctx context.Context, id types.ID) {
	interval := s.cfg.LeaseTTL / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.leases.Heartbeat(ctx, LeaseName, id, s.cfg.LeaseTTL); err != nil && ctx.Err() == nil {
				zap.L().Warn("pipeline: heartbeat failed", zap.String("run_id", string(id)), zap.Error(err))
			}
		}
	}
}
