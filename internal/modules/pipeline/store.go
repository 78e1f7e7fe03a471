// README: Pipeline run + training log store backed by PostgreSQL (JSONB result columns).
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"fareflow/internal/infra"
	"fareflow/internal/types"
)

const runColumns = `id, trigger_source, change_summary, status, started_at, completed_at, duration_ms, results, errors, retrain`

type Store struct {
	db infra.Pool
}

func NewStore(db infra.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertRun(ctx context.Context, r *Run) error {
	summary, err := json.Marshal(r.ChangeSummary)
	if err != nil {
		return eris.Wrap(err, "pipeline: encode change summary")
	}
	results, err := json.Marshal(r.Results)
	if err != nil {
		return eris.Wrap(err, "pipeline: encode results")
	}
	errs, err := json.Marshal(r.Errors)
	if err != nil {
		return eris.Wrap(err, "pipeline: encode errors")
	}
	var retrain []byte
	if r.Retrain != nil {
		if retrain, err = json.Marshal(r.Retrain); err != nil {
			return eris.Wrap(err, "pipeline: encode retrain report")
		}
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO pipeline_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			duration_ms = EXCLUDED.duration_ms,
			results = EXCLUDED.results,
			errors = EXCLUDED.errors,
			retrain = EXCLUDED.retrain`,
		string(r.ID), r.TriggerSource, summary, string(r.Status), r.StartedAt, r.CompletedAt,
		r.DurationMs, results, errs, retrain,
	)
	if err != nil {
		return eris.Wrapf(err, "pipeline: upsert run %s", r.ID)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id types.ID) (*Run, error) {
	row := s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = $1`, string(id))
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: get run %s", id)
	}
	return r, nil
}

// LastRun returns the most recently started run.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: last run")
	}
	return r, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.Query(ctx, `SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: scan run")
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: iterate runs")
	}
	return out, nil
}

// MarkAbandoned fails a run left RUNNING by a process that lost its lease.
func (s *Store) MarkAbandoned(ctx context.Context, id types.ID, reason string) error {
	errs, _ := json.Marshal([]string{reason})
	_, err := s.db.Exec(ctx, `
		UPDATE pipeline_runs
		SET status = $1, completed_at = $2, errors = errors || $3::jsonb
		WHERE id = $4 AND status IN ('PENDING', 'RUNNING')`,
		string(StatusFailed), time.Now().UTC(), errs, string(id),
	)
	if err != nil {
		return eris.Wrapf(err, "pipeline: mark run %s abandoned", id)
	}
	return nil
}

// LastTraining returns nil, nil when no model has been trained yet.
func (s *Store) LastTraining(ctx context.Context) (*TrainingRecord, error) {
	var t TrainingRecord
	var id, runID string
	err := s.db.QueryRow(ctx, `
		SELECT id, run_id, trained_at, records, platform, competitor, newest_record_at, model_version
		FROM training_runs
		ORDER BY trained_at DESC
		LIMIT 1`).Scan(&id, &runID, &t.TrainedAt, &t.Records, &t.Platform, &t.Competitor, &t.NewestRecordAt, &t.ModelVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: last training")
	}
	t.ID, t.RunID = types.ID(id), types.ID(runID)
	return &t, nil
}

func (s *Store) RecordTraining(ctx context.Context, t TrainingRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO training_runs (id, run_id, trained_at, records, platform, competitor, newest_record_at, model_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(t.ID), string(t.RunID), t.TrainedAt, t.Records, t.Platform, t.Competitor, t.NewestRecordAt, t.ModelVersion,
	)
	if err != nil {
		return eris.Wrap(err, "pipeline: record training")
	}
	return nil
}

func scanRun(row pgx.Row) (*Run, error) {
	var r Run
	var id, status string
	var summary, results, errs, retrain []byte
	if err := row.Scan(&id, &r.TriggerSource, &summary, &status, &r.StartedAt, &r.CompletedAt,
		&r.DurationMs, &results, &errs, &retrain); err != nil {
		return nil, err
	}
	r.ID, r.Status = types.ID(id), Status(status)
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &r.ChangeSummary); err != nil {
			return nil, eris.Wrap(err, "pipeline: decode change summary")
		}
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &r.Results); err != nil {
			return nil, eris.Wrap(err, "pipeline: decode results")
		}
	}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &r.Errors); err != nil {
			return nil, eris.Wrap(err, "pipeline: decode errors")
		}
	}
	if len(retrain) > 0 {
		r.Retrain = &RetrainReport{}
		if err := json.Unmarshal(retrain, r.Retrain); err != nil {
			return nil, eris.Wrap(err, "pipeline: decode retrain report")
		}
	}
	return &r, nil
}
