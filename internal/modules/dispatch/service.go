// README: Priority dispatch queue: tier assignment, ranked/FIFO dequeue, status and clear.
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"fareflow/internal/modules/pricing"
	"fareflow/internal/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Service struct {
	store *Store
	now   func() time.Time
}

func NewService(store *Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Add enqueues an order under the tier derived from its pricing model.
// Order id uniqueness is the caller's concern.
func (s *Service) Add(ctx context.Context, orderID types.ID, model pricing.Model, score float64, payload json.RawMessage) error {
	tier, err := TierFor(model)
	if err != nil {
		return err
	}
	if orderID == "" {
		return eris.Wrap(pricing.ErrValidation, "order_id is required")
	}
	seq, err := s.store.NextSeq(ctx)
	if err != nil {
		return err
	}
	e := Entry{
		OrderID:      orderID,
		Tier:         tier,
		Model:        model,
		RankingScore: score,
		Payload:      payload,
		EnqueuedAt:   s.now().UTC(),
		Seq:          seq,
	}
	if err := s.store.Push(ctx, e); err != nil {
		return err
	}
	zap.L().Debug("dispatch: enqueued",
		zap.String("order_id", string(orderID)),
		zap.String("tier", string(tier)),
		zap.Float64("ranking_score", score),
	)
	return nil
}

// Next pops the head of the tier: oldest for P0, highest score for P1/P2.
// A drained tier yields nil, nil.
func (s *Service) Next(ctx context.Context, tier Tier) (*Entry, error) {
	return s.store.Pop(ctx, tier)
}

func (s *Service) List(ctx context.Context, tier Tier, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.store.Range(ctx, tier, int64(limit))
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{P0: counts[TierP0], P1: counts[TierP1], P2: counts[TierP2]}
	st.Total = st.P0 + st.P1 + st.P2
	return st, nil
}

func (s *Service) Clear(ctx context.Context, tier Tier) error {
	if err := s.store.Clear(ctx, tier); err != nil {
		return err
	}
	zap.L().Info("dispatch: tier cleared", zap.String("tier", string(tier)))
	return nil
}
