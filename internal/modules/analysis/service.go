// README: Analysis phase: KPIs over platform history and the platform vs competitor price gap.
package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"fareflow/internal/modules/forecast"
	"fareflow/internal/modules/history"
)

// gapHighlightPct is the price gap above which a bucket is called out.
const gapHighlightPct = 10.0

type RecordSource interface {
	List(ctx context.Context, f history.Filter) ([]history.Record, error)
	ListCompetitor(ctx context.Context, limit int) ([]history.RawRecord, error)
}

type Service struct {
	records RecordSource
}

func NewService(records RecordSource) *Service {
	return &Service{records: records}
}

func (s *Service) Run(ctx context.Context) (*Report, error) {
	platform, err := s.records.List(ctx, history.Filter{Source: history.SourcePlatform})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: load platform history")
	}
	raws, err := s.records.ListCompetitor(ctx, 0)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: load competitor history")
	}
	merged, _ := history.Merge(nil, raws)
	rep := Analyze(platform, merged)
	return &rep, nil
}

type acc struct {
	n        int
	unit     float64
	duration float64
	revenue  float64
}

func (a *acc) add(r history.Record) {
	a.n++
	a.unit += r.UnitPrice()
	a.duration += r.ExpectedDuration
	a.revenue += r.HistoricalCost
}

func (a *acc) kpi() KPI {
	if a.n == 0 {
		return KPI{}
	}
	return KPI{
		Rides:        a.n,
		AvgUnitPrice: round2(a.unit / float64(a.n)),
		AvgDuration:  round2(a.duration / float64(a.n)),
		Revenue:      round2(a.revenue),
	}
}

// Analyze is pure: platform KPIs plus a gap against already-normalised competitor records.
func Analyze(platform, competitor []history.Record) Report {
	rep := Report{
		PlatformRecords:   len(platform),
		CompetitorRecords: len(competitor),
		ByModel:           map[string]KPI{},
		ByLocation:        map[string]KPI{},
		ByLoyalty:         map[string]KPI{},
		DemandMix:         map[forecast.DemandProfile]int{},
	}

	byModel, byLoc, byLoy := map[string]*acc{}, map[string]*acc{}, map[string]*acc{}
	get := func(m map[string]*acc, k string) *acc {
		a, ok := m[k]
		if !ok {
			a = &acc{}
			m[k] = a
		}
		return a
	}
	type bucket struct{ loc, veh string }
	platBucket, compBucket := map[bucket]*acc{}, map[bucket]*acc{}

	for _, r := range platform {
		if !r.Usable() {
			continue
		}
		get(byModel, r.PricingModel.String()).add(r)
		get(byLoc, r.Location).add(r)
		get(byLoy, r.Loyalty).add(r)
		rep.DemandMix[forecast.DemandProfileFor(r.Riders, r.Drivers)]++
		b := bucket{r.Location, r.Vehicle}
		if platBucket[b] == nil {
			platBucket[b] = &acc{}
		}
		platBucket[b].add(r)
	}
	for _, r := range competitor {
		if !r.Usable() {
			continue
		}
		b := bucket{r.Location, r.Vehicle}
		if compBucket[b] == nil {
			compBucket[b] = &acc{}
		}
		compBucket[b].add(r)
	}

	for k, a := range byModel {
		rep.ByModel[k] = a.kpi()
	}
	for k, a := range byLoc {
		rep.ByLocation[k] = a.kpi()
	}
	for k, a := range byLoy {
		rep.ByLoyalty[k] = a.kpi()
	}

	for b, p := range platBucket {
		c, ok := compBucket[b]
		if !ok {
			continue
		}
		pp, cp := p.kpi().AvgUnitPrice, c.kpi().AvgUnitPrice
		if cp <= 0 {
			continue
		}
		gap := PriceGap{
			Location:        b.loc,
			Vehicle:         b.veh,
			PlatformPrice:   pp,
			CompetitorPrice: cp,
			GapPct:          round2((pp - cp) / cp * 100),
		}
		rep.PriceGaps = append(rep.PriceGaps, gap)
		if math.Abs(gap.GapPct) >= gapHighlightPct {
			dir := "above"
			if gap.GapPct < 0 {
				dir = "below"
			}
			rep.Highlights = append(rep.Highlights, fmt.Sprintf("%s %s rides are priced %.1f%% %s competitors",
				b.loc, b.veh, math.Abs(gap.GapPct), dir))
		}
	}
	sort.Slice(rep.PriceGaps, func(i, j int) bool {
		if rep.PriceGaps[i].Location != rep.PriceGaps[j].Location {
			return rep.PriceGaps[i].Location < rep.PriceGaps[j].Location
		}
		return rep.PriceGaps[i].Vehicle < rep.PriceGaps[j].Vehicle
	})
	sort.Strings(rep.Highlights)
	return rep
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
