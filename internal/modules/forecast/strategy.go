// README: Ordered fallback strategies for a single segment forecast.
package forecast

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"fareflow/internal/modules/history"
)

const (
	StrategySegmentSpecific     = "segment_specific"
	StrategyLinearExtrapolation = "linear_extrapolation"
	StrategyAggregatedBucket    = "aggregated_bucket"
)

const (
	minSegmentRecords   = 3
	highConfidenceCount = 10
	minBucketRecords    = 3
)

// Growth per 30-day period used by linear extrapolation.
var linearGrowth = map[DemandProfile]float64{
	DemandHigh:   0.015,
	DemandMedium: 0.010,
	DemandLow:    0.005,
}

// Strategy produces a forecast for one segment or reports why it cannot.
// A NotApplicable error moves on to the next strategy silently; any other error is recorded first.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, key SegmentKey, records []history.Record) (SegmentForecast, error)
}

type NotApplicable struct {
	Reason string
}

func (n NotApplicable) Error() string {
	return "not applicable: " + n.Reason
}

type segmentSpecific struct{ r *run }

func (segmentSpecific) Name() string { return StrategySegmentSpecific }

func (s segmentSpecific) Apply(ctx context.Context, key SegmentKey, records []history.Record) (SegmentForecast, error) {
	if len(records) < minSegmentRecords {
		return SegmentForecast{}, NotApplicable{Reason: "insufficient_records"}
	}
	base := baselineOf(records, s.r.part.periods)
	proj, err := s.r.oracleProjections(ctx, key.String(), records, base)
	if err != nil {
		return SegmentForecast{}, err
	}
	return SegmentForecast{
		Key:         key,
		Baseline:    base,
		Projections: proj,
		Confidence:  confidenceFor(len(records)),
		DataQuality: QualitySufficient,
	}, nil
}

type linearExtrapolation struct{ r *run }

func (linearExtrapolation) Name() string { return StrategyLinearExtrapolation }

func (s linearExtrapolation) Apply(ctx context.Context, key SegmentKey, records []history.Record) (SegmentForecast, error) {
	if len(records) < minSegmentRecords {
		return SegmentForecast{}, NotApplicable{Reason: "insufficient_records"}
	}
	base := baselineOf(records, s.r.part.periods)
	return SegmentForecast{
		Key:         key,
		Baseline:    base,
		Projections: linearProjections(base, s.r.horizons),
		Confidence:  confidenceFor(len(records)),
		DataQuality: QualitySufficient,
	}, nil
}

type aggregatedBucket struct{ r *run }

func (aggregatedBucket) Name() string { return StrategyAggregatedBucket }

func (s aggregatedBucket) Apply(ctx context.Context, key SegmentKey, records []history.Record) (SegmentForecast, error) {
	n := len(records)
	if n == 0 {
		return SegmentForecast{}, NotApplicable{Reason: "no_records"}
	}
	if n >= minSegmentRecords {
		return SegmentForecast{}, NotApplicable{Reason: "not_sparse"}
	}
	bk := bucketKey{Location: key.Location, Vehicle: key.Vehicle}
	bucket := s.r.part.buckets[bk]
	if len(bucket) < minBucketRecords {
		return SegmentForecast{}, NotApplicable{Reason: "bucket_too_small"}
	}
	bp := s.r.bucketProjection(ctx, bk)
	proportion := float64(n) / float64(len(bucket))

	scaled := make([]Projection, len(bp))
	for i, p := range bp {
		p.Rides *= proportion
		p.RidesLower *= proportion
		p.RidesUpper *= proportion
		p.Revenue = CombineRevenue(p.Rides, p.UnitPrice, p.Duration)
		scaled[i] = p
	}
	return SegmentForecast{
		Key:         key,
		Baseline:    baselineOf(records, s.r.part.periods),
		Projections: scaled,
		Confidence:  ConfidenceLow,
		DataQuality: QualityAggregated,
	}, nil
}

type bucketResult struct {
	once sync.Once
	proj []Projection
}

// bucketProjection forecasts a {location, vehicle} bucket once per run, using the oracle
// and falling back to linear extrapolation.
func (r *run) bucketProjection(ctx context.Context, bk bucketKey) []Projection {
	r.bucketMu.Lock()
	br, ok := r.buckets[bk]
	if !ok {
		br = &bucketResult{}
		r.buckets[bk] = br
	}
	r.bucketMu.Unlock()

	br.once.Do(func() {
		records := r.part.buckets[bk]
		base := baselineOf(records, r.part.periods)
		proj, err := r.oracleProjections(ctx, bk.String(), records, base)
		if err != nil {
			r.addError(bk.String(), StrategyAggregatedBucket, err)
			proj = linearProjections(base, r.horizons)
		}
		br.proj = proj
	})
	return br.proj
}

func (r *run) oracleProjections(ctx context.Context, label string, records []history.Record, base Baseline) ([]Projection, error) {
	if r.c.oracle == nil {
		return nil, eris.New("forecast: oracle not configured")
	}
	rides, err := r.c.callOracle(ctx, OracleRequest{
		Segment:  label,
		Metric:   MetricRides,
		Horizons: r.horizons,
		Baseline: base.RidesPerPeriod,
		History:  dailySeries(records, MetricRides),
	})
	if err != nil {
		return nil, eris.Wrap(err, "demand trend")
	}
	prices, err := r.c.callOracle(ctx, OracleRequest{
		Segment:  label,
		Metric:   MetricUnitPrice,
		Horizons: r.horizons,
		Baseline: base.AvgUnitPrice,
		History:  dailySeries(records, MetricUnitPrice),
	})
	if err != nil {
		return nil, eris.Wrap(err, "price trend")
	}

	out := make([]Projection, 0, len(r.horizons))
	for _, h := range r.horizons {
		rp, ok := rides.Point(h)
		if !ok {
			return nil, eris.Errorf("demand trend missing horizon %d", h)
		}
		pp, ok := prices.Point(h)
		if !ok {
			return nil, eris.Errorf("price trend missing horizon %d", h)
		}
		out = append(out, Projection{
			HorizonDays: h,
			Rides:       rp.Value,
			RidesLower:  rp.Lower,
			RidesUpper:  rp.Upper,
			UnitPrice:   pp.Value,
			Duration:    base.AvgDuration,
			Revenue:     CombineRevenue(rp.Value, pp.Value, base.AvgDuration),
		})
	}
	return out, nil
}

func linearProjections(base Baseline, horizons []int) []Projection {
	g := linearGrowth[base.Demand]
	out := make([]Projection, 0, len(horizons))
	for _, h := range horizons {
		periods := float64(h) / PeriodDays
		rides := base.RidesPerPeriod * (1 + g*periods)
		out = append(out, Projection{
			HorizonDays: h,
			Rides:       rides,
			UnitPrice:   base.AvgUnitPrice,
			Duration:    base.AvgDuration,
			Revenue:     CombineRevenue(rides, base.AvgUnitPrice, base.AvgDuration),
		})
	}
	return out
}

func confidenceFor(n int) Confidence {
	if n >= highConfidenceCount {
		return ConfidenceHigh
	}
	return ConfidenceMedium
}
