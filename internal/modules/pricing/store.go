// README: Pricing rate store backed by PostgreSQL (pricing_rates overrides the built-in tables).
package pricing

import (
	"context"

	"github.com/rotisserie/eris"

	"fareflow/internal/infra"
)

type Store struct {
	db infra.Pool
}

func NewStore(db infra.Pool) *Store {
	return &Store{db: db}
}

// LoadRates returns the default tables overlaid with any rows in pricing_rates.
// Rows naming FIXED or an unknown model are skipped.
func (s *Store) LoadRates(ctx context.Context) (RateTable, error) {
	rows, err := s.db.Query(ctx, `
		SELECT model, base_fare, per_mile, per_minute
		FROM pricing_rates`)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: load rates")
	}
	defer rows.Close()

	rates := DefaultRates()
	for rows.Next() {
		var name string
		var r Rate
		if err := rows.Scan(&name, &r.BaseFare, &r.PerMile, &r.PerMinute); err != nil {
			return nil, eris.Wrap(err, "pricing: scan rate")
		}
		m, err := ParseModel(name)
		if err != nil || !m.IsDynamic() {
			continue
		}
		rates[m] = r
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "pricing: iterate rates")
	}
	return rates, nil
}

func (s *Store) UpsertRate(ctx context.Context, m Model, r Rate) error {
	if !m.IsDynamic() {
		return eris.Wrapf(ErrValidation, "%s has no rate table", m)
	}
	if r.BaseFare < 0 || r.PerMile < 0 || r.PerMinute < 0 {
		return eris.Wrapf(ErrValidation, "%s rates must not be negative", m)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO pricing_rates (model, base_fare, per_mile, per_minute, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (model) DO UPDATE
		SET base_fare = EXCLUDED.base_fare,
			per_mile = EXCLUDED.per_mile,
			per_minute = EXCLUDED.per_minute,
			updated_at = EXCLUDED.updated_at`,
		m.String(), r.BaseFare, r.PerMile, r.PerMinute,
	)
	if err != nil {
		return eris.Wrap(err, "pricing: upsert rate")
	}
	return nil
}
