package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fareflow/internal/types"
)

type fakeRouter struct {
	miles, minutes float64
	err            error
	calls          int
}

func (f *fakeRouter) Estimate(ctx context.Context, origin, destination string) (float64, float64, error) {
	f.calls++
	return f.miles, f.minutes, f.err
}

type queuedOrder struct {
	id    types.ID
	model Model
	score float64
}

type fakeQueue struct {
	mu     sync.Mutex
	orders []queuedOrder
	err    error
}

func (q *fakeQueue) Add(ctx context.Context, orderID types.ID, model Model, score float64, payload json.RawMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.orders = append(q.orders, queuedOrder{id: orderID, model: model, score: score})
	return nil
}

func TestService_QuoteUsesRouteWhenDistanceMissing(t *testing.T) {
	router := &fakeRouter{miles: 10, minutes: 25}
	svc := NewService(nil, router, nil)

	res, err := svc.Quote(context.Background(), Quote{
		Request: Request{
			Model: ModelDynamicStandard, TimeOfDay: TimeEveningRush, Location: LocationUrbanHighDemand,
			Vehicle: VehiclePremium, SupplyDemandRatio: 0.4, Loyalty: LoyaltyGold,
		},
		Origin:      "Union Square, San Francisco",
		Destination: "SFO",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, router.calls)
	assert.Equal(t, 124.75, res.FinalPrice)
}

func TestService_QuoteSkipsRouteWhenDistanceGiven(t *testing.T) {
	router := &fakeRouter{err: errors.New("should not be called")}
	svc := NewService(nil, router, nil)

	_, err := svc.Quote(context.Background(), Quote{
		Request:     Request{Model: ModelDynamicStandard, DistanceMiles: Float(2), DurationMinutes: Float(5), SupplyDemandRatio: 1},
		Origin:      "a",
		Destination: "b",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, router.calls)
}

func TestService_QuoteAndEnqueue(t *testing.T) {
	q := &fakeQueue{}
	svc := NewService(nil, nil, q)

	res, err := svc.QuoteAndEnqueue(context.Background(), "order-1", Quote{
		Request: Request{Model: ModelFixed, FixedPrice: Float(12), Loyalty: LoyaltyGold},
	}, json.RawMessage(`{"rider":"r1"}`))
	require.NoError(t, err)
	require.Len(t, q.orders, 1)
	assert.Equal(t, types.ID("order-1"), q.orders[0].id)
	assert.Equal(t, ModelFixed, q.orders[0].model)
	assert.Equal(t, res.RankingScore, q.orders[0].score)

	_, err = svc.QuoteAndEnqueue(context.Background(), "order-2", Quote{Request: Request{Model: ModelFixed}}, nil)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Len(t, q.orders, 1)
}

func TestService_QuoteAndEnqueuePropagatesQueueFailure(t *testing.T) {
	boom := errors.New("redis down")
	svc := NewService(nil, nil, &fakeQueue{err: boom})
	_, err := svc.QuoteAndEnqueue(context.Background(), "order-1", Quote{
		Request: Request{Model: ModelFixed, FixedPrice: Float(12)},
	}, nil)
	assert.True(t, errors.Is(err, boom))
}

func TestService_ReloadRates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT model, base_fare, per_mile, per_minute").
		WillReturnRows(pgxmock.NewRows([]string{"model", "base_fare", "per_mile", "per_minute"}).
			AddRow("DYNAMIC_STANDARD", 3.0, 1.0, 0.5).
			AddRow("FIXED", 9.0, 9.0, 9.0).
			AddRow("LEGACY", 1.0, 1.0, 1.0))

	svc := NewService(NewStore(mock), nil, nil)
	require.NoError(t, svc.ReloadRates(context.Background()))

	rates := svc.Engine().Rates()
	assert.Equal(t, Rate{BaseFare: 3, PerMile: 1, PerMinute: 0.5}, rates[ModelDynamicStandard])
	assert.Equal(t, DefaultRates()[ModelDynamicCustom], rates[ModelDynamicCustom])
	_, hasFixed := rates[ModelFixed]
	assert.False(t, hasFixed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpsertRateRejectsFixed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	err = NewStore(mock).UpsertRate(context.Background(), ModelFixed, Rate{})
	assert.True(t, errors.Is(err, ErrValidation))

	mock.ExpectExec("INSERT INTO pricing_rates").
		WithArgs("DYNAMIC_CUSTOM", 6.0, 3.0, 0.5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, NewStore(mock).UpsertRate(context.Background(), ModelDynamicCustom, Rate{BaseFare: 6, PerMile: 3, PerMinute: 0.5}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_SetRateRebuildsEngine(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	custom := Rate{BaseFare: 6, PerMile: 3, PerMinute: 0.5}
	mock.ExpectExec("INSERT INTO pricing_rates").
		WithArgs("DYNAMIC_CUSTOM", 6.0, 3.0, 0.5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT model, base_fare, per_mile, per_minute").
		WillReturnRows(pgxmock.NewRows([]string{"model", "base_fare", "per_mile", "per_minute"}).
			AddRow("DYNAMIC_CUSTOM", 6.0, 3.0, 0.5))

	svc := NewService(NewStore(mock), nil, nil)
	require.NoError(t, svc.SetRate(context.Background(), ModelDynamicCustom, custom))
	assert.Equal(t, custom, svc.Engine().Rates()[ModelDynamicCustom])
	assert.NoError(t, mock.ExpectationsWereMet())

	err = svc.SetRate(context.Background(), ModelDynamicStandard, Rate{BaseFare: -1})
	assert.True(t, errors.Is(err, ErrValidation))
}
