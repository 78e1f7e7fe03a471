package forecast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fareflow/internal/modules/history"
	"fareflow/internal/modules/pricing"
)

type fakeOracle struct {
	mu      sync.Mutex
	calls   []OracleRequest
	failFor string
	trained int
}

func (f *fakeOracle) Forecast(ctx context.Context, req OracleRequest) (OracleResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.failFor != "" && strings.Contains(req.Segment, f.failFor) {
		return OracleResponse{}, errors.New("oracle: model not ready")
	}
	var resp OracleResponse
	for _, h := range req.Horizons {
		v := req.Baseline * 1.1
		resp.Points = append(resp.Points, OraclePoint{HorizonDays: h, Value: v, Lower: v * 0.9, Upper: v * 1.1})
	}
	return resp, nil
}

func (f *fakeOracle) Train(ctx context.Context, records []history.Record) (TrainResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trained += len(records)
	return TrainResult{ModelVersion: "v-test", Records: len(records), TrainedAt: time.Now()}, nil
}

var day0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func makeRecords(n int, loyalty, vehicle string, riders, drivers float64, model pricing.Model, location string) []history.Record {
	out := make([]history.Record, n)
	for i := range out {
		out[i] = history.Record{
			ID:               "",
			Source:           history.SourcePlatform,
			RecordedAt:       day0.Add(time.Duration(i) * time.Hour),
			Riders:           riders,
			Drivers:          drivers,
			Location:         location,
			Loyalty:          loyalty,
			Vehicle:          vehicle,
			PricingModel:     model,
			ExpectedDuration: 20,
			HistoricalCost:   60,
		}
	}
	return out
}

// fixture: A=12 specific, B=4 specific, C=2 aggregated (bucket Urban/Premium=14), D=1 bucket too small.
func fixture() []history.Record {
	var recs []history.Record
	recs = append(recs, makeRecords(12, history.LoyaltyGold, history.VehiclePremium, 100, 10, pricing.ModelFixed, history.LocationUrban)...)
	recs = append(recs, makeRecords(4, history.LoyaltySilver, history.VehicleEconomy, 100, 90, pricing.ModelDynamicStandard, history.LocationSuburban)...)
	recs = append(recs, makeRecords(2, history.LoyaltyRegular, history.VehiclePremium, 100, 50, pricing.ModelDynamicCustom, history.LocationUrban)...)
	recs = append(recs, makeRecords(1, history.LoyaltyGold, history.VehicleEconomy, 100, 10, pricing.ModelFixed, history.LocationRural)...)
	return recs
}

func TestDemandProfileFor(t *testing.T) {
	tests := []struct {
		riders, drivers float64
		want            DemandProfile
	}{
		{100, 33, DemandHigh},
		{100, 34, DemandMedium},
		{100, 66, DemandMedium},
		{100, 67, DemandLow},
		{0, 50, DemandMedium},
		{-1, 50, DemandMedium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DemandProfileFor(tt.riders, tt.drivers), "riders=%v drivers=%v", tt.riders, tt.drivers)
	}
}

func TestAllSegments_Has162UniqueKeys(t *testing.T) {
	keys := AllSegments()
	require.Len(t, keys, 162)
	seen := map[SegmentKey]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate %s", k)
		seen[k] = true
	}
}

func TestCompute_PartitionsAndFallbacks(t *testing.T) {
	oracle := &fakeOracle{}
	c := NewComputer(oracle, Options{Concurrency: 4})

	out, err := c.Compute(context.Background(), 90, fixture())
	require.NoError(t, err)
	assert.Equal(t, []int{30, 60, 90}, out.Horizons)
	assert.Empty(t, out.Errors)

	require.Len(t, out.SegmentSpecific, 2)
	require.Len(t, out.AggregatedFallback, 1)

	byKey := map[string]SegmentForecast{}
	for _, f := range out.SegmentSpecific {
		byKey[f.Key.String()] = f
		assert.Equal(t, StrategySegmentSpecific, f.Strategy)
		assert.Equal(t, QualitySufficient, f.DataQuality)
	}
	a := byKey["Gold|Premium|HIGH|FIXED|Urban"]
	assert.Equal(t, ConfidenceHigh, a.Confidence)
	assert.Equal(t, 12, a.Baseline.RideCount)
	assert.InDelta(t, 3.0, a.Baseline.AvgUnitPrice, 1e-9)
	b := byKey["Silver|Economy|LOW|DYNAMIC_STANDARD|Suburban"]
	assert.Equal(t, ConfidenceMedium, b.Confidence)

	agg := out.AggregatedFallback[0]
	assert.Equal(t, "Regular|Premium|MEDIUM|DYNAMIC_CUSTOM|Urban", agg.Key.String())
	assert.Equal(t, ConfidenceLow, agg.Confidence)
	assert.Equal(t, QualityAggregated, agg.DataQuality)
	p30, ok := agg.Projection(30)
	require.True(t, ok)
	// Bucket Urban/Premium has 14 rides per period; oracle adds 10%; scaled by 2/14.
	assert.InDelta(t, 2.2, p30.Rides, 1e-9)
	assert.InDelta(t, CombineRevenue(p30.Rides, p30.UnitPrice, p30.Duration), p30.Revenue, 1e-9)

	assert.Equal(t, 1, out.Summary.Omitted["bucket_too_small"])
	assert.Equal(t, 162-4, out.Summary.Omitted["no_records"])
	assert.Equal(t, 3, out.Summary.Segments)
	assert.Equal(t, 1, out.Summary.ByConfidence[ConfidenceLow])
}

func TestCompute_UnusableRecordsAreUnclassified(t *testing.T) {
	recs := fixture()
	bad := makeRecords(2, history.LoyaltyGold, history.VehiclePremium, 100, 10, pricing.ModelFixed, history.LocationUrban)
	bad[0].HistoricalCost = -500
	bad[1].ExpectedDuration = 0
	recs = append(recs, bad...)

	out, err := NewComputer(&fakeOracle{}, Options{}).Compute(context.Background(), 90, recs)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Summary.Omitted["unclassified_records"])

	for _, f := range out.SegmentSpecific {
		if f.Key.String() == "Gold|Premium|HIGH|FIXED|Urban" {
			assert.Equal(t, 12, f.Baseline.RideCount)
			assert.InDelta(t, 3.0, f.Baseline.AvgUnitPrice, 1e-9)
		}
	}
}

func TestCompute_NoKeyInBothOutputs(t *testing.T) {
	out, err := NewComputer(&fakeOracle{}, Options{}).Compute(context.Background(), 90, fixture())
	require.NoError(t, err)

	valid := map[SegmentKey]bool{}
	for _, k := range AllSegments() {
		valid[k] = true
	}
	specific := map[SegmentKey]bool{}
	for _, f := range out.SegmentSpecific {
		assert.True(t, valid[f.Key])
		specific[f.Key] = true
	}
	for _, f := range out.AggregatedFallback {
		assert.True(t, valid[f.Key])
		assert.False(t, specific[f.Key], "%s emitted twice", f.Key)
	}
}

func TestCompute_OracleFailureFallsBackToLinear(t *testing.T) {
	oracle := &fakeOracle{failFor: "Silver"}
	out, err := NewComputer(oracle, Options{}).Compute(context.Background(), 60, fixture())
	require.NoError(t, err)

	var b *SegmentForecast
	for i, f := range out.SegmentSpecific {
		if f.Key.Loyalty == history.LoyaltySilver {
			b = &out.SegmentSpecific[i]
		}
	}
	require.NotNil(t, b)
	assert.Equal(t, StrategyLinearExtrapolation, b.Strategy)
	assert.Equal(t, DemandLow, b.Baseline.Demand)
	require.Len(t, b.Projections, 2)
	assert.InDelta(t, 4*(1+0.005*2), b.Projections[1].Rides, 1e-9)

	require.Len(t, out.Errors, 1)
	assert.Equal(t, StrategySegmentSpecific, out.Errors[0].Strategy)
	assert.Equal(t, b.Key.String(), out.Errors[0].Segment)
	assert.Equal(t, 1, out.Summary.ByStrategy[StrategyLinearExtrapolation])
}

func TestCompute_WithoutOracleEverythingIsLinear(t *testing.T) {
	out, err := NewComputer(nil, Options{}).Compute(context.Background(), 30, fixture())
	require.NoError(t, err)
	for _, f := range out.SegmentSpecific {
		assert.Equal(t, StrategyLinearExtrapolation, f.Strategy)
	}
	require.Len(t, out.AggregatedFallback, 1)
	// The bucket projection failed once and fell back to linear.
	assert.Len(t, out.Errors, 3)
}

func TestCompute_HorizonValidation(t *testing.T) {
	_, err := NewComputer(nil, Options{}).Compute(context.Background(), 20, nil)
	assert.True(t, errors.Is(err, ErrValidation))

	out, err := NewComputer(nil, Options{}).Compute(context.Background(), 75, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{30, 60}, out.Horizons)
	assert.Equal(t, 162, out.Summary.Omitted["no_records"])
}

func TestCompute_SummaryGrowth(t *testing.T) {
	recs := makeRecords(5, history.LoyaltyGold, history.VehiclePremium, 100, 10, pricing.ModelFixed, history.LocationUrban)
	out, err := NewComputer(&fakeOracle{}, Options{}).Compute(context.Background(), 30, recs)
	require.NoError(t, err)
	// 5 rides × 3.00/min × 20 min = 300; oracle projects 10% more rides and price.
	assert.Equal(t, 300.0, out.Summary.BaselineRevenue)
	assert.InDelta(t, 363.0, out.Summary.ProjectedRevenue[30], 0.01)
	assert.InDelta(t, 21.0, out.Summary.GrowthPct[30], 0.01)
}

func TestCompute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewComputer(&fakeOracle{}, Options{}).Compute(ctx, 30, fixture())
	assert.Error(t, err)
}

func TestComputer_StrategyOrder(t *testing.T) {
	assert.Equal(t, []string{StrategySegmentSpecific, StrategyLinearExtrapolation, StrategyAggregatedBucket},
		NewComputer(nil, Options{}).Strategies())
}

func TestService_RunOnArchives(t *testing.T) {
	arch := &fakeArchiver{}
	svc := NewService(nil, NewComputer(&fakeOracle{}, Options{}), nil, arch, 0)
	out, err := svc.RunOn(context.Background(), 0, fixture())
	require.NoError(t, err)
	assert.Equal(t, 90, out.HorizonDays)
	assert.Equal(t, 1, arch.calls)

	arch.err = fmt.Errorf("s3 down")
	_, err = svc.RunOn(context.Background(), 30, fixture())
	assert.NoError(t, err)
}

type fakeArchiver struct {
	calls int
	err   error
}

func (a *fakeArchiver) Archive(ctx context.Context, out *Output) (string, error) {
	a.calls++
	return "k", a.err
}
