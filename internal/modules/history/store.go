// README: History store backed by PostgreSQL JSONB documents (ride_records, competitor_records).
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"fareflow/internal/infra"
	"fareflow/internal/types"
)

// defaultListLimit caps unbounded reads; the newest rows win.
var defaultListLimit = 50000

type Store struct {
	db infra.Pool
}

func NewStore(db infra.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, recs []Record) (int64, error) {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		if r.ID == "" {
			r.ID = types.NewID()
		}
		if r.Source == "" {
			r.Source = SourcePlatform
		}
		doc, err := json.Marshal(r)
		if err != nil {
			return 0, eris.Wrap(err, "history: encode record")
		}
		rows = append(rows, []any{string(r.ID), string(r.Source), r.RecordedAt, doc})
	}
	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"ride_records"},
		[]string{"id", "source", "recorded_at", "doc"}, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrap(err, "history: copy ride records")
	}
	return n, nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Source != "" {
		add("source = $%d", string(f.Source))
	}
	if f.Since != nil {
		add("recorded_at >= $%d", *f.Since)
	}
	if f.Location != "" {
		add("doc->>'location_category' = $%d", f.Location)
	}
	if f.Vehicle != "" {
		add("doc->>'vehicle_type' = $%d", f.Vehicle)
	}
	limit, capped := f.Limit, false
	if limit <= 0 {
		limit, capped = defaultListLimit, true
	}

	q := "SELECT doc FROM ride_records"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY recorded_at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "history: list records")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "history: scan record")
		}
		var r Record
		if err := json.Unmarshal(doc, &r); err != nil {
			return nil, eris.Wrap(err, "history: decode record")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "history: iterate records")
	}
	if capped {
		warnTruncated("ride_records", len(out), limit)
	}
	return out, nil
}

func (s *Store) InsertCompetitor(ctx context.Context, raws []RawRecord) (int64, error) {
	rows := make([][]any, 0, len(raws))
	for _, r := range raws {
		if r.ID == "" {
			r.ID = types.NewID()
		}
		doc, err := json.Marshal(r.Fields)
		if err != nil {
			return 0, eris.Wrap(err, "history: encode competitor record")
		}
		rows = append(rows, []any{string(r.ID), r.RecordedAt, doc})
	}
	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"competitor_records"},
		[]string{"id", "recorded_at", "raw"}, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrap(err, "history: copy competitor records")
	}
	return n, nil
}

func (s *Store) ListCompetitor(ctx context.Context, limit int) ([]RawRecord, error) {
	capped := limit <= 0
	if capped {
		limit = defaultListLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, recorded_at, raw
		FROM competitor_records
		ORDER BY recorded_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "history: list competitor records")
	}
	defer rows.Close()

	var out []RawRecord
	for rows.Next() {
		var r RawRecord
		var id string
		var raw []byte
		if err := rows.Scan(&id, &r.RecordedAt, &raw); err != nil {
			return nil, eris.Wrap(err, "history: scan competitor record")
		}
		r.ID = types.ID(id)
		if err := json.Unmarshal(raw, &r.Fields); err != nil {
			return nil, eris.Wrap(err, "history: decode competitor record")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "history: iterate competitor records")
	}
	if capped {
		warnTruncated("competitor_records", len(out), limit)
	}
	return out, nil
}

// warnTruncated flags a default-capped read that may have dropped older rows.
func warnTruncated(table string, n, limit int) {
	if n < limit {
		return
	}
	zap.L().Warn("history: read hit the default row cap, older records were not loaded",
		zap.String("table", table), zap.Int("limit", limit))
}

// LatestRecordedAt returns the newest timestamp across platform and competitor data.
// ok is false when both collections are empty.
func (s *Store) LatestRecordedAt(ctx context.Context) (time.Time, bool, error) {
	var latest *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT GREATEST(
			(SELECT MAX(recorded_at) FROM ride_records),
			(SELECT MAX(recorded_at) FROM competitor_records)
		)`).Scan(&latest)
	if err != nil {
		return time.Time{}, false, eris.Wrap(err, "history: latest recorded_at")
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}
