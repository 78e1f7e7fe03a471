// README: Simulates a candidate rule against segment baselines through the pricing engine.
package recommend

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"fareflow/internal/modules/forecast"
	"fareflow/internal/modules/history"
	"fareflow/internal/modules/pricing"
)

// milesPerMinute turns an average ride duration into a distance for dynamic pricing.
const milesPerMinute = 0.4

// Demand elasticity: rides change by elasticity × relative price change.
var elasticity = map[forecast.DemandProfile]float64{
	forecast.DemandHigh:   -0.3,
	forecast.DemandMedium: -0.6,
	forecast.DemandLow:    -1.0,
}

// BaseRequest rebuilds a representative pricing request for a segment baseline.
func BaseRequest(f forecast.SegmentForecast) pricing.Request {
	b := f.Baseline
	loc := pricing.LocationSuburban
	if f.Key.Location == history.LocationUrban {
		loc = pricing.LocationUrbanRegular
	}
	ratio := 1.0
	if b.AvgRiders > 0 {
		ratio = b.AvgDrivers / b.AvgRiders
	}
	req := pricing.Request{
		Model:             f.Key.Model,
		DistanceMiles:     pricing.Float(b.AvgDuration * milesPerMinute),
		DurationMinutes:   pricing.Float(b.AvgDuration),
		TimeOfDay:         pricing.TimeRegular,
		Location:          loc,
		Vehicle:           strings.ToLower(f.Key.Vehicle),
		SupplyDemandRatio: ratio,
		Loyalty:           strings.ToLower(f.Key.Loyalty),
	}
	if f.Key.Model == pricing.ModelFixed {
		req.FixedPrice = pricing.Float(b.AvgUnitPrice * b.AvgDuration)
	}
	return req
}

// Simulate prices every in-scope segment before and after the rule.
// A segment the engine cannot price is skipped and counted, never fatal.
func Simulate(engine *pricing.Engine, rule Rule, segments []forecast.SegmentForecast) Recommendation {
	rec := Recommendation{Rule: rule}
	var priceChange float64
	for _, f := range segments {
		if !rule.Scope.Matches(f.Key) {
			continue
		}
		base := BaseRequest(f)
		before, err := engine.Calculate(base)
		if err != nil {
			zap.L().Warn("recommend: segment not priceable", zap.String("segment", f.Key.String()), zap.Error(err))
			rec.SegmentsSkipped++
			continue
		}
		after, err := engine.Calculate(rule.apply(base))
		if err != nil {
			zap.L().Warn("recommend: rule not applicable to segment",
				zap.String("rule", rule.ID), zap.String("segment", f.Key.String()), zap.Error(err))
			rec.SegmentsSkipped++
			continue
		}
		if before.FinalPrice <= 0 {
			continue
		}
		factor := after.FinalPrice / before.FinalPrice
		ridesFactor := math.Max(0, 1+elasticity[f.Baseline.Demand]*(factor-1))

		eff := SegmentEffect{
			Segment:          f.Key,
			PriceFactor:      round4(factor),
			RidesFactor:      round4(ridesFactor),
			BaselineRevenue:  f.Baseline.Revenue,
			SimulatedRevenue: f.Baseline.Revenue * factor * ridesFactor,
			HorizonRevenue:   map[int]float64{},
		}
		for _, p := range f.Projections {
			eff.HorizonRevenue[p.HorizonDays] = p.Revenue
		}
		rec.Effects = append(rec.Effects, eff)
		rec.BaselineRevenue += eff.BaselineRevenue
		rec.SimulatedRevenue += eff.SimulatedRevenue
		priceChange += (factor - 1) * 100
	}
	rec.SegmentsAffected = len(rec.Effects)
	rec.RevenueDelta = round2(rec.SimulatedRevenue - rec.BaselineRevenue)
	if rec.BaselineRevenue > 0 {
		rec.DeltaPct = round2(rec.RevenueDelta / rec.BaselineRevenue * 100)
	}
	if rec.SegmentsAffected > 0 {
		rec.AvgPriceChangePct = round2(priceChange / float64(rec.SegmentsAffected))
	}
	rec.BaselineRevenue = round2(rec.BaselineRevenue)
	rec.SimulatedRevenue = round2(rec.SimulatedRevenue)
	return rec
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
