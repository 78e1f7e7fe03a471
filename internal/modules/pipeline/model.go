// README: Pipeline run aggregate, status machine and phase results.
package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"fareflow/internal/modules/history"
	"fareflow/internal/types"
)

var (
	ErrAlreadyRunning    = eris.New("pipeline: a run is already in progress")
	ErrNotFound          = eris.New("pipeline: run not found")
	ErrInvalidTransition = eris.New("pipeline: invalid status transition")
)

// AlreadyRunningError carries the id of the run holding the lease.
type AlreadyRunningError struct {
	RunID types.ID
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("pipeline: run %s is already in progress", e.RunID)
}

func (e *AlreadyRunningError) Is(target error) bool {
	return target == ErrAlreadyRunning
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusPartial   Status = "PARTIAL"
	StatusFailed    Status = "FAILED"
)

// AllowedTransitions is the one-way run lifecycle.
var AllowedTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed},
	StatusRunning: {StatusCompleted, StatusPartial, StatusFailed},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

const (
	PhaseForecast       = "forecast"
	PhaseAnalysis       = "analysis"
	PhaseRecommendation = "recommendation"
	PhaseImpact         = "impact"
)

var Phases = []string{PhaseForecast, PhaseAnalysis, PhaseRecommendation, PhaseImpact}

type PhaseResult struct {
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type Run struct {
	ID            types.ID               `json:"run_id"`
	TriggerSource string                 `json:"trigger_source"`
	ChangeSummary []string               `json:"change_summary,omitempty"`
	Status        Status                 `json:"status"`
	StartedAt     time.Time              `json:"started_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	DurationMs    int64                  `json:"duration_ms"`
	Results       map[string]PhaseResult `json:"results"`
	Errors        []string               `json:"errors"`
	Retrain       *RetrainReport         `json:"retrain,omitempty"`
}

func (r *Run) Transition(to Status) error {
	if !CanTransition(r.Status, to) {
		return eris.Wrapf(ErrInvalidTransition, "%s -> %s", r.Status, to)
	}
	r.Status = to
	return nil
}

type TriggerRequest struct {
	Source        string   `json:"trigger_source"`
	ChangeSummary []string `json:"change_summary,omitempty"`
}

type TrainingRecord struct {
	ID             types.ID  `json:"id"`
	RunID          types.ID  `json:"run_id"`
	TrainedAt      time.Time `json:"trained_at"`
	Records        int       `json:"records"`
	Platform       int       `json:"platform"`
	Competitor     int       `json:"competitor"`
	NewestRecordAt time.Time `json:"newest_record_at"`
	ModelVersion   string    `json:"model_version"`
}

type RetrainReport struct {
	Retrain      bool                 `json:"retrain"`
	Reasons      []string             `json:"reasons,omitempty"`
	Trained      bool                 `json:"trained"`
	Skipped      string               `json:"skipped,omitempty"`
	Error        string               `json:"error,omitempty"`
	ModelVersion string               `json:"model_version,omitempty"`
	Merge        *history.MergeReport `json:"merge,omitempty"`
}
