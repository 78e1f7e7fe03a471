package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fareflow/internal/modules/forecast"
	"fareflow/internal/modules/history"
	"fareflow/internal/modules/pricing"
)

func rec(loc, veh string, model pricing.Model, cost, duration, riders, drivers float64) history.Record {
	return history.Record{
		Location: loc, Vehicle: veh, Loyalty: history.LoyaltyGold, PricingModel: model,
		HistoricalCost: cost, ExpectedDuration: duration, Riders: riders, Drivers: drivers,
	}
}

func TestAnalyze_KPIsAndGap(t *testing.T) {
	platform := []history.Record{
		rec(history.LocationUrban, history.VehiclePremium, pricing.ModelFixed, 60, 20, 100, 10),
		rec(history.LocationUrban, history.VehiclePremium, pricing.ModelFixed, 40, 20, 100, 50),
		rec(history.LocationRural, history.VehicleEconomy, pricing.ModelDynamicStandard, 20, 10, 100, 80),
		{Location: "Nowhere"},
	}
	competitor := []history.Record{
		rec(history.LocationUrban, history.VehiclePremium, pricing.ModelDynamicStandard, 40, 20, 0, 0),
	}

	rep := Analyze(platform, competitor)
	assert.Equal(t, 4, rep.PlatformRecords)
	assert.Equal(t, KPI{Rides: 2, AvgUnitPrice: 2.5, AvgDuration: 20, Revenue: 100}, rep.ByModel["FIXED"])
	assert.Equal(t, 1, rep.ByLocation[history.LocationRural].Rides)
	assert.Equal(t, 1, rep.DemandMix[forecast.DemandHigh])
	assert.Equal(t, 1, rep.DemandMix[forecast.DemandMedium])
	assert.Equal(t, 1, rep.DemandMix[forecast.DemandLow])

	require.Len(t, rep.PriceGaps, 1)
	assert.Equal(t, 25.0, rep.PriceGaps[0].GapPct)
	require.Len(t, rep.Highlights, 1)
	assert.Contains(t, rep.Highlights[0], "25.0% above")
}

type fakeSource struct {
	platform []history.Record
	raws     []history.RawRecord
	err      error
}

func (f *fakeSource) List(ctx context.Context, flt history.Filter) ([]history.Record, error) {
	return f.platform, f.err
}

func (f *fakeSource) ListCompetitor(ctx context.Context, limit int) ([]history.RawRecord, error) {
	return f.raws, nil
}

func TestService_RunNormalisesCompetitor(t *testing.T) {
	src := &fakeSource{
		platform: []history.Record{rec(history.LocationUrban, history.VehicleEconomy, pricing.ModelFixed, 30, 10, 10, 10)},
		raws: []history.RawRecord{{Fields: map[string]any{
			"Location_Category": "Urban", "Vehicle_Type": "Economy", "Expected_Ride_Duration": 10, "Historical_Cost_of_Ride": 20,
		}}},
	}
	rep, err := NewService(src).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.CompetitorRecords)
	require.Len(t, rep.PriceGaps, 1)
	assert.Equal(t, 50.0, rep.PriceGaps[0].GapPct)
}

func TestService_RunPropagatesStoreError(t *testing.T) {
	_, err := NewService(&fakeSource{err: errors.New("db down")}).Run(context.Background())
	assert.Error(t, err)
}
