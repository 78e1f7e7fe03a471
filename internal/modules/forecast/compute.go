// README: 162-segment forecast computation: partition, per-segment strategy chain, summary.
package forecast

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"fareflow/internal/modules/history"
)

type Options struct {
	Concurrency   int
	RatePerSecond float64
}

// Computer is safe for concurrent Compute calls.
type Computer struct {
	oracle      Oracle
	limiter     *rate.Limiter
	concurrency int
	now         func() time.Time
}

func NewComputer(oracle Oracle, opts Options) *Computer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), max(1, int(opts.RatePerSecond)))
	}
	return &Computer{
		oracle:      oracle,
		limiter:     limiter,
		concurrency: opts.Concurrency,
		now:         time.Now,
	}
}

// Strategies lists the fallback chain in the order it is tried.
func (c *Computer) Strategies() []string {
	var names []string
	for _, s := range (&run{c: c}).strategies() {
		names = append(names, s.Name())
	}
	return names
}

func (c *Computer) callOracle(ctx context.Context, req OracleRequest) (OracleResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return OracleResponse{}, eris.Wrap(err, "forecast: oracle rate limit")
	}
	return c.oracle.Forecast(ctx, req)
}

type run struct {
	c        *Computer
	horizons []int
	part     partition

	bucketMu sync.Mutex
	buckets  map[bucketKey]*bucketResult

	errMu  sync.Mutex
	errors []SegmentError
}

func (r *run) strategies() []Strategy {
	return []Strategy{segmentSpecific{r}, linearExtrapolation{r}, aggregatedBucket{r}}
}

func (r *run) addError(segment, strategy string, err error) {
	zap.L().Warn("forecast: strategy failed",
		zap.String("segment", segment),
		zap.String("strategy", strategy),
		zap.Error(err),
	)
	r.errMu.Lock()
	r.errors = append(r.errors, SegmentError{Segment: segment, Strategy: strategy, Error: err.Error()})
	r.errMu.Unlock()
}

// forecastSegment walks the strategy chain. On omission it returns the last skip reason.
func (r *run) forecastSegment(ctx context.Context, key SegmentKey) (*SegmentForecast, string) {
	records := r.part.segments[key]
	reason := "no_records"
	for _, s := range r.strategies() {
		f, err := s.Apply(ctx, key, records)
		var na NotApplicable
		if errors.As(err, &na) {
			reason = na.Reason
			continue
		}
		if err != nil {
			r.addError(key.String(), s.Name(), err)
			reason = "strategy_failed"
			continue
		}
		f.Strategy = s.Name()
		return &f, ""
	}
	return nil, reason
}

// Compute forecasts every segment with data. Per-segment oracle failures are recorded in
// Output.Errors and never returned.
func (c *Computer) Compute(ctx context.Context, horizonDays int, records []history.Record) (*Output, error) {
	horizons, err := horizonsFor(horizonDays)
	if err != nil {
		return nil, err
	}
	r := &run{
		c:        c,
		horizons: horizons,
		part:     partitionRecords(records),
		buckets:  map[bucketKey]*bucketResult{},
	}

	var (
		mu       sync.Mutex
		specific []SegmentForecast
		fallback []SegmentForecast
		omitted  = map[string]int{}
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, key := range AllSegments() {
		g.Go(func() error {
			f, reason := r.forecastSegment(gCtx, key)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case f == nil:
				omitted[reason]++
			case f.DataQuality == QualityAggregated:
				fallback = append(fallback, *f)
			default:
				specific = append(specific, *f)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "forecast: compute cancelled")
	}

	sortForecasts(specific)
	sortForecasts(fallback)
	sort.Slice(r.errors, func(i, j int) bool { return r.errors[i].Segment < r.errors[j].Segment })

	out := &Output{
		GeneratedAt:        c.now().UTC(),
		HorizonDays:        horizonDays,
		Horizons:           horizons,
		RecordCount:        len(records),
		SegmentSpecific:    specific,
		AggregatedFallback: fallback,
		Errors:             r.errors,
	}
	out.Summary = summarize(out, omitted)
	if r.part.skipped > 0 {
		out.Summary.Omitted["unclassified_records"] = r.part.skipped
	}
	zap.L().Info("forecast: computed",
		zap.Int("records", len(records)),
		zap.Int("segment_specific", len(specific)),
		zap.Int("aggregated", len(fallback)),
		zap.Int("errors", len(out.Errors)),
	)
	return out, nil
}

func summarize(out *Output, omitted map[string]int) Summary {
	s := Summary{
		ByConfidence:     map[Confidence]int{},
		ByStrategy:       map[string]int{},
		Omitted:          omitted,
		ProjectedRevenue: map[int]float64{},
		GrowthPct:        map[int]float64{},
	}
	for _, f := range out.All() {
		s.Segments++
		s.ByConfidence[f.Confidence]++
		s.ByStrategy[f.Strategy]++
		s.BaselineRevenue += f.Baseline.Revenue
		for _, p := range f.Projections {
			s.ProjectedRevenue[p.HorizonDays] += p.Revenue
		}
	}
	s.BaselineRevenue = round2(s.BaselineRevenue)
	for h, v := range s.ProjectedRevenue {
		s.ProjectedRevenue[h] = round2(v)
		if s.BaselineRevenue > 0 {
			s.GrowthPct[h] = round2((v - s.BaselineRevenue) / s.BaselineRevenue * 100)
		}
	}
	return s
}

func sortForecasts(fs []SegmentForecast) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].Key.String() < fs[j].Key.String() })
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
