// README: Persisted single-flight lease (pipeline_leases) so only one process runs the pipeline.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"fareflow/internal/infra"
	"fareflow/internal/types"
)

const LeaseName = "pricing-pipeline"

type Lease struct {
	Name      string    `json:"name"`
	RunID     types.ID  `json:"run_id"`
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LeaseResult reports the outcome of Acquire. When Acquired is false, Current is the live holder.
// Stale is set when an expired lease was taken over.
type LeaseResult struct {
	Acquired bool
	Current  Lease
	Stale    *Lease
}

type LeaseStore struct {
	db  infra.Pool
	now func() time.Time
}

func NewLeaseStore(db infra.Pool) *LeaseStore {
	return &LeaseStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *LeaseStore) current(ctx context.Context, name string) (*Lease, error) {
	var l Lease
	var runID string
	err := s.db.QueryRow(ctx, `
		SELECT name, run_id, holder, expires_at
		FROM pipeline_leases
		WHERE name = $1`, name).Scan(&l.Name, &runID, &l.Holder, &l.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read lease %s", name)
	}
	l.RunID = types.ID(runID)
	return &l, nil
}

// Acquire takes the lease for runID unless a live lease exists. The conditional upsert
// makes concurrent acquirers race safely: at most one sees its row returned.
func (s *LeaseStore) Acquire(ctx context.Context, name string, runID types.ID, holder string, ttl time.Duration) (LeaseResult, error) {
	now := s.now()
	cur, err := s.current(ctx, name)
	if err != nil {
		return LeaseResult{}, err
	}
	if cur != nil && cur.ExpiresAt.After(now) {
		return LeaseResult{Current: *cur}, nil
	}

	var got string
	err = s.db.QueryRow(ctx, `
		INSERT INTO pipeline_leases (name, run_id, holder, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET run_id = EXCLUDED.run_id, holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
		WHERE pipeline_leases.expires_at <= $5
		RETURNING run_id`,
		name, string(runID), holder, now.Add(ttl), now,
	).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		winner, err := s.current(ctx, name)
		if err != nil {
			return LeaseResult{}, err
		}
		if winner == nil {
			return LeaseResult{}, eris.Errorf("pipeline: lease %s vanished during acquire", name)
		}
		return LeaseResult{Current: *winner}, nil
	}
	if err != nil {
		return LeaseResult{}, eris.Wrapf(err, "pipeline: acquire lease %s", name)
	}

	res := LeaseResult{
		Acquired: true,
		Current:  Lease{Name: name, RunID: types.ID(got), Holder: holder, ExpiresAt: now.Add(ttl)},
	}
	if cur != nil {
		res.Stale = cur
	}
	return res, nil
}

func (s *LeaseStore) Heartbeat(ctx context.Context, name string, runID types.ID, ttl time.Duration) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE pipeline_leases SET expires_at = $1
		WHERE name = $2 AND run_id = $3`,
		s.now().Add(ttl), name, string(runID),
	)
	if err != nil {
		return eris.Wrapf(err, "pipeline: heartbeat lease %s", name)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("pipeline: lease %s no longer held by run %s", name, runID)
	}
	return nil
}

func (s *LeaseStore) Release(ctx context.Context, name string, runID types.ID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM pipeline_leases WHERE name = $1 AND run_id = $2`, name, string(runID))
	if err != nil {
		return eris.Wrapf(err, "pipeline: release lease %s", name)
	}
	return nil
}
