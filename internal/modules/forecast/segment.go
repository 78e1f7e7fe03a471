// README: Segment partitioning and baseline aggregation over historical records.
package forecast

import (
	"sort"
	"time"

	"fareflow/internal/modules/history"
	"fareflow/internal/modules/pricing"
)

// AllSegments enumerates the 162 segment keys in a stable order.
func AllSegments() []SegmentKey {
	out := make([]SegmentKey, 0, len(history.Loyalties)*len(history.Vehicles)*len(DemandProfiles)*len(pricing.Models)*len(history.Locations))
	for _, loy := range history.Loyalties {
		for _, veh := range history.Vehicles {
			for _, d := range DemandProfiles {
				for _, m := range pricing.Models {
					for _, loc := range history.Locations {
						out = append(out, SegmentKey{Loyalty: loy, Vehicle: veh, Demand: d, Model: m, Location: loc})
					}
				}
			}
		}
	}
	return out
}

// KeyOf places a record in its segment. ok is false for records outside the 162 combinations.
func KeyOf(r history.Record) (SegmentKey, bool) {
	k := SegmentKey{
		Loyalty:  r.Loyalty,
		Vehicle:  r.Vehicle,
		Demand:   DemandProfileFor(r.Riders, r.Drivers),
		Model:    r.PricingModel,
		Location: r.Location,
	}
	return k, contains(history.Loyalties, k.Loyalty) && contains(history.Vehicles, k.Vehicle) &&
		contains(history.Locations, k.Location) && k.Model != pricing.ModelUnknown
}

type bucketKey struct {
	Location string
	Vehicle  string
}

func (b bucketKey) String() string {
	return "bucket|" + b.Location + "|" + b.Vehicle
}

type partition struct {
	segments map[SegmentKey][]history.Record
	buckets  map[bucketKey][]history.Record
	skipped  int
	periods  float64
}

func partitionRecords(records []history.Record) partition {
	p := partition{
		segments: map[SegmentKey][]history.Record{},
		buckets:  map[bucketKey][]history.Record{},
	}
	var first, last time.Time
	for _, r := range records {
		k, ok := KeyOf(r)
		if !ok || !r.Usable() {
			p.skipped++
			continue
		}
		p.segments[k] = append(p.segments[k], r)
		b := bucketKey{Location: r.Location, Vehicle: r.Vehicle}
		p.buckets[b] = append(p.buckets[b], r)
		if first.IsZero() || r.RecordedAt.Before(first) {
			first = r.RecordedAt
		}
		if r.RecordedAt.After(last) {
			last = r.RecordedAt
		}
	}
	span := last.Sub(first).Hours() / 24
	p.periods = max(1, span/PeriodDays)
	return p
}

func baselineOf(records []history.Record, periods float64) Baseline {
	b := Baseline{RideCount: len(records)}
	if len(records) == 0 {
		return b
	}
	var unit, dur, riders, drivers float64
	for _, r := range records {
		unit += r.UnitPrice()
		dur += r.ExpectedDuration
		riders += r.Riders
		drivers += r.Drivers
	}
	n := float64(len(records))
	b.AvgUnitPrice = unit / n
	b.AvgDuration = dur / n
	b.AvgRiders = riders / n
	b.AvgDrivers = drivers / n
	b.Demand = DemandProfileFor(b.AvgRiders, b.AvgDrivers)
	b.RidesPerPeriod = n / periods
	b.Revenue = CombineRevenue(b.RidesPerPeriod, b.AvgUnitPrice, b.AvgDuration)
	return b
}

// SeriesPoint is one day of a segment's history as sent to the oracle.
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// dailySeries aggregates records per UTC day: ride counts, or mean unit price.
func dailySeries(records []history.Record, metric string) []SeriesPoint {
	type acc struct {
		n   float64
		sum float64
	}
	days := map[string]*acc{}
	for _, r := range records {
		d := r.RecordedAt.UTC().Format(time.DateOnly)
		a, ok := days[d]
		if !ok {
			a = &acc{}
			days[d] = a
		}
		a.n++
		a.sum += r.UnitPrice()
	}
	out := make([]SeriesPoint, 0, len(days))
	for d, a := range days {
		v := a.n
		if metric == MetricUnitPrice {
			v = a.sum / a.n
		}
		out = append(out, SeriesPoint{Date: d, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// CombineRevenue is rides × unit price (per minute) × average duration (minutes).
func CombineRevenue(rides, unitPrice, duration float64) float64 {
	return rides * unitPrice * duration
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
