// README: Pricing service: quotes (optionally routed through maps) and quote-then-enqueue.
package pricing

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"fareflow/internal/types"
)

// RouteEstimator resolves a trip between two addresses into miles and minutes.
type RouteEstimator interface {
	Estimate(ctx context.Context, origin, destination string) (miles, minutes float64, err error)
}

// Enqueuer receives priced orders for dispatch.
type Enqueuer interface {
	Add(ctx context.Context, orderID types.ID, model Model, score float64, payload json.RawMessage) error
}

type Quote struct {
	Request
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
}

type Service struct {
	store  *Store
	router RouteEstimator
	queue  Enqueuer

	mu     sync.RWMutex
	engine *Engine
}

// NewService starts with the default rate tables; call ReloadRates to pick up stored overrides.
// store, router and queue may each be nil.
func NewService(store *Store, router RouteEstimator, queue Enqueuer) *Service {
	return &Service{
		store:  store,
		router: router,
		queue:  queue,
		engine: NewEngine(nil),
	}
}

func (s *Service) Engine() *Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

func (s *Service) ReloadRates(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	rates, err := s.store.LoadRates(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.engine = NewEngine(rates)
	s.mu.Unlock()
	zap.L().Info("pricing: rates loaded", zap.Int("models", len(rates)))
	return nil
}

// SetRate stores an override for a dynamic model and rebuilds the engine from the stored tables.
func (s *Service) SetRate(ctx context.Context, m Model, r Rate) error {
	if s.store == nil {
		return eris.New("pricing: no rate store configured")
	}
	if err := s.store.UpsertRate(ctx, m, r); err != nil {
		return err
	}
	zap.L().Info("pricing: rate updated", zap.Stringer("model", m),
		zap.Float64("base_fare", r.BaseFare), zap.Float64("per_mile", r.PerMile), zap.Float64("per_minute", r.PerMinute))
	return s.ReloadRates(ctx)
}

func (s *Service) Quote(ctx context.Context, q Quote) (Result, error) {
	req := q.Request
	if req.Model.IsDynamic() && (req.DistanceMiles == nil || req.DurationMinutes == nil) && q.Origin != "" && q.Destination != "" {
		if s.router == nil {
			return Result{}, eris.Wrap(ErrValidation, "distance and duration are required when routing is not configured")
		}
		miles, minutes, err := s.router.Estimate(ctx, q.Origin, q.Destination)
		if err != nil {
			return Result{}, eris.Wrap(err, "pricing: estimate route")
		}
		if req.DistanceMiles == nil {
			req.DistanceMiles = Float(miles)
		}
		if req.DurationMinutes == nil {
			req.DurationMinutes = Float(minutes)
		}
	}
	return s.Engine().Calculate(req)
}

// QuoteAndEnqueue prices the order and hands it to the dispatch queue under the order's tier.
func (s *Service) QuoteAndEnqueue(ctx context.Context, orderID types.ID, q Quote, payload json.RawMessage) (Result, error) {
	if s.queue == nil {
		return Result{}, eris.New("pricing: dispatch queue not configured")
	}
	if orderID == "" {
		return Result{}, eris.Wrap(ErrValidation, "order_id is required")
	}
	res, err := s.Quote(ctx, q)
	if err != nil {
		return Result{}, err
	}
	if err := s.queue.Add(ctx, orderID, res.Model, res.RankingScore, payload); err != nil {
		return Result{}, eris.Wrap(err, "pricing: enqueue order")
	}
	return res, nil
}
