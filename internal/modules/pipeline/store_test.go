package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runCols = []string{"id", "trigger_source", "change_summary", "status", "started_at", "completed_at",
	"duration_ms", "results", "errors", "retrain"}

func TestStore_UpsertRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run := &Run{ID: "run-1", TriggerSource: "api", Status: StatusRunning, StartedAt: time.Now().UTC(),
		Results: map[string]PhaseResult{}}
	mock.ExpectExec("INSERT INTO pipeline_runs").
		WithArgs("run-1", "api", pgxmock.AnyArg(), "RUNNING", pgxmock.AnyArg(), pgxmock.AnyArg(),
			int64(0), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewStore(mock).UpsertRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetRunNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM pipeline_runs WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewStore(mock).GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListRunsDecodesJSONB(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	done := started.Add(90 * time.Second)
	results, _ := json.Marshal(map[string]PhaseResult{
		PhaseForecast: {Success: true, DurationMs: 800},
		PhaseAnalysis: {Success: false, Error: "timeout"},
	})
	retrain, _ := json.Marshal(RetrainReport{Retrain: true, Skipped: "insufficient_records: 12 < 300"})

	mock.ExpectQuery("FROM pipeline_runs ORDER BY started_at DESC LIMIT").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows(runCols).
			AddRow("run-2", "scheduler", []byte(`["ride_records"]`), "PARTIAL", started, &done,
				int64(90000), results, []byte(`["analysis: timeout"]`), retrain).
			AddRow("run-1", "api", []byte(`null`), "RUNNING", started.Add(-time.Hour), (*time.Time)(nil),
				int64(0), []byte(`{}`), []byte(`[]`), []byte(nil)))

	runs, err := NewStore(mock).ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, StatusPartial, runs[0].Status)
	assert.Equal(t, []string{"ride_records"}, runs[0].ChangeSummary)
	assert.Equal(t, "timeout", runs[0].Results[PhaseAnalysis].Error)
	require.NotNil(t, runs[0].CompletedAt)
	assert.Equal(t, done, *runs[0].CompletedAt)
	require.NotNil(t, runs[0].Retrain)
	assert.Equal(t, "insufficient_records: 12 < 300", runs[0].Retrain.Skipped)

	assert.Nil(t, runs[1].CompletedAt)
	assert.Nil(t, runs[1].Retrain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LastTrainingNone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM training_runs").WillReturnError(pgx.ErrNoRows)

	last, err := NewStore(mock).LastTraining(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}

func newTestLeaseStore(mock pgxmock.PgxPoolIface, now time.Time) *LeaseStore {
	s := NewLeaseStore(mock)
	s.now = func() time.Time { return now }
	return s
}

func TestLeaseStore_AcquireFree(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT name, run_id, holder, expires_at").WithArgs(LeaseName).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO pipeline_leases").
		WithArgs(LeaseName, "run-1", "host-a", now.Add(time.Minute), now).
		WillReturnRows(pgxmock.NewRows([]string{"run_id"}).AddRow("run-1"))

	res, err := newTestLeaseStore(mock, now).Acquire(context.Background(), LeaseName, "run-1", "host-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Acquired)
	assert.Nil(t, res.Stale)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaseStore_AcquireHeld(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT name, run_id, holder, expires_at").WithArgs(LeaseName).
		WillReturnRows(pgxmock.NewRows([]string{"name", "run_id", "holder", "expires_at"}).
			AddRow(LeaseName, "run-0", "host-b", now.Add(5*time.Minute)))

	res, err := newTestLeaseStore(mock, now).Acquire(context.Background(), LeaseName, "run-1", "host-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Acquired)
	assert.Equal(t, "host-b", res.Current.Holder)
	assert.EqualValues(t, "run-0", res.Current.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaseStore_AcquireExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT name, run_id, holder, expires_at").WithArgs(LeaseName).
		WillReturnRows(pgxmock.NewRows([]string{"name", "run_id", "holder", "expires_at"}).
			AddRow(LeaseName, "run-0", "host-b", now.Add(-time.Minute)))
	mock.ExpectQuery("INSERT INTO pipeline_leases").
		WithArgs(LeaseName, "run-1", "host-a", now.Add(time.Minute), now).
		WillReturnRows(pgxmock.NewRows([]string{"run_id"}).AddRow("run-1"))

	res, err := newTestLeaseStore(mock, now).Acquire(context.Background(), LeaseName, "run-1", "host-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Acquired)
	require.NotNil(t, res.Stale)
	assert.EqualValues(t, "run-0", res.Stale.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaseStore_AcquireLostRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT name, run_id, holder, expires_at").WithArgs(LeaseName).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO pipeline_leases").
		WithArgs(LeaseName, "run-1", "host-a", now.Add(time.Minute), now).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT name, run_id, holder, expires_at").WithArgs(LeaseName).
		WillReturnRows(pgxmock.NewRows([]string{"name", "run_id", "holder", "expires_at"}).
			AddRow(LeaseName, "run-9", "host-c", now.Add(time.Minute)))

	res, err := newTestLeaseStore(mock, now).Acquire(context.Background(), LeaseName, "run-1", "host-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Acquired)
	assert.EqualValues(t, "run-9", res.Current.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaseStore_HeartbeatLost(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE pipeline_leases").
		WithArgs(now.Add(time.Minute), LeaseName, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = newTestLeaseStore(mock, now).Heartbeat(context.Background(), LeaseName, "run-1", time.Minute)
	assert.ErrorContains(t, err, "no longer held")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev RunEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		assert.Equal(t, "run-7", ev.RunID)
		assert.Equal(t, StatusPartial, ev.Status)
		assert.False(t, ev.Phases[PhaseAnalysis])
		return nil
	})

	run := &Run{ID: "run-7", Status: StatusPartial, Results: map[string]PhaseResult{
		PhaseForecast: {Success: true},
		PhaseAnalysis: {Success: false},
	}}
	require.NoError(t, NewKafkaPublisher(producer, "pipeline-runs").Publish(context.Background(), run))
}
