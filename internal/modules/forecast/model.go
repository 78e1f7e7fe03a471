// README: Segment forecast types: demand profile, segment keys, baselines, projections and run output.
package forecast

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"fareflow/internal/modules/pricing"
)

var ErrValidation = eris.New("forecast: invalid input")

// PeriodDays is the length of one projection period.
const PeriodDays = 30

// StandardHorizons are emitted when they do not exceed the requested horizon.
var StandardHorizons = []int{30, 60, 90}

type DemandProfile string

const (
	DemandHigh   DemandProfile = "HIGH"
	DemandMedium DemandProfile = "MEDIUM"
	DemandLow    DemandProfile = "LOW"
)

var DemandProfiles = []DemandProfile{DemandHigh, DemandMedium, DemandLow}

// DemandProfileFor derives demand from the driver-to-rider ratio: few drivers per rider is HIGH demand.
func DemandProfileFor(riders, drivers float64) DemandProfile {
	if riders <= 0 {
		return DemandMedium
	}
	ratio := drivers / riders * 100
	switch {
	case ratio < 34:
		return DemandHigh
	case ratio < 67:
		return DemandMedium
	default:
		return DemandLow
	}
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type DataQuality string

const (
	QualitySufficient DataQuality = "sufficient"
	QualityAggregated DataQuality = "aggregated"
)

type SegmentKey struct {
	Loyalty  string        `json:"loyalty_tier"`
	Vehicle  string        `json:"vehicle_type"`
	Demand   DemandProfile `json:"demand_profile"`
	Model    pricing.Model `json:"pricing_model"`
	Location string        `json:"location"`
}

func (k SegmentKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", k.Loyalty, k.Vehicle, k.Demand, k.Model, k.Location)
}

type Baseline struct {
	RideCount      int           `json:"ride_count"`
	RidesPerPeriod float64       `json:"rides_per_period"`
	AvgUnitPrice   float64       `json:"avg_unit_price"`
	AvgDuration    float64       `json:"avg_duration"`
	AvgRiders      float64       `json:"avg_riders"`
	AvgDrivers     float64       `json:"avg_drivers"`
	Demand         DemandProfile `json:"demand_profile"`
	Revenue        float64       `json:"revenue_per_period"`
}

type Projection struct {
	HorizonDays int     `json:"horizon_days"`
	Rides       float64 `json:"predicted_rides"`
	UnitPrice   float64 `json:"unit_price"`
	Duration    float64 `json:"duration"`
	Revenue     float64 `json:"revenue"`
	RidesLower  float64 `json:"rides_lower,omitempty"`
	RidesUpper  float64 `json:"rides_upper,omitempty"`
}

type SegmentForecast struct {
	Key         SegmentKey   `json:"segment"`
	Baseline    Baseline     `json:"baseline"`
	Projections []Projection `json:"projections"`
	Confidence  Confidence   `json:"confidence"`
	DataQuality DataQuality  `json:"data_quality"`
	Strategy    string       `json:"strategy"`
}

// Projection returns the projection for a horizon, if present.
func (f SegmentForecast) Projection(horizon int) (Projection, bool) {
	for _, p := range f.Projections {
		if p.HorizonDays == horizon {
			return p, true
		}
	}
	return Projection{}, false
}

type SegmentError struct {
	Segment  string `json:"segment"`
	Strategy string `json:"strategy"`
	Error    string `json:"error"`
}

type Summary struct {
	Segments         int                `json:"segments"`
	ByConfidence     map[Confidence]int `json:"by_confidence"`
	ByStrategy       map[string]int     `json:"by_strategy"`
	Omitted          map[string]int     `json:"omitted"`
	BaselineRevenue  float64            `json:"baseline_revenue"`
	ProjectedRevenue map[int]float64    `json:"projected_revenue"`
	GrowthPct        map[int]float64    `json:"growth_pct"`
}

type Output struct {
	GeneratedAt        time.Time         `json:"generated_at"`
	HorizonDays        int               `json:"horizon_days"`
	Horizons           []int             `json:"horizons"`
	RecordCount        int               `json:"record_count"`
	SegmentSpecific    []SegmentForecast `json:"segment_specific"`
	AggregatedFallback []SegmentForecast `json:"aggregated_fallback"`
	Summary            Summary           `json:"summary"`
	Errors             []SegmentError    `json:"errors"`
}

// All returns segment-specific forecasts followed by aggregated ones.
func (o *Output) All() []SegmentForecast {
	out := make([]SegmentForecast, 0, len(o.SegmentSpecific)+len(o.AggregatedFallback))
	out = append(out, o.SegmentSpecific...)
	return append(out, o.AggregatedFallback...)
}

func horizonsFor(days int) ([]int, error) {
	if days < StandardHorizons[0] {
		return nil, eris.Wrapf(ErrValidation, "horizon_days must be at least %d, got %d", StandardHorizons[0], days)
	}
	var out []int
	for _, h := range StandardHorizons {
		if h <= days {
			out = append(out, h)
		}
	}
	return out, nil
}
