// README: Candidate pricing rules and recommendation results.
package recommend

import (
	"fareflow/internal/modules/forecast"
	"fareflow/internal/modules/pricing"
)

// Scope restricts a rule to matching segments. Zero fields match anything.
type Scope struct {
	Location string                 `json:"location,omitempty"`
	Vehicle  string                 `json:"vehicle,omitempty"`
	Loyalty  string                 `json:"loyalty,omitempty"`
	Demand   forecast.DemandProfile `json:"demand_profile,omitempty"`
	Model    pricing.Model          `json:"pricing_model,omitempty"`
}

func (s Scope) Matches(k forecast.SegmentKey) bool {
	return (s.Location == "" || s.Location == k.Location) &&
		(s.Vehicle == "" || s.Vehicle == k.Vehicle) &&
		(s.Loyalty == "" || s.Loyalty == k.Loyalty) &&
		(s.Demand == "" || s.Demand == k.Demand) &&
		(s.Model == pricing.ModelUnknown || s.Model == k.Model)
}

// Rule rewrites the pricing request of every segment in scope.
type Rule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Scope       Scope  `json:"scope"`

	apply func(req pricing.Request) pricing.Request
}

type SegmentEffect struct {
	Segment          forecast.SegmentKey `json:"segment"`
	PriceFactor      float64             `json:"price_factor"`
	RidesFactor      float64             `json:"rides_factor"`
	BaselineRevenue  float64             `json:"baseline_revenue"`
	SimulatedRevenue float64             `json:"simulated_revenue"`
	// Forecast revenue per horizon before the rule is applied.
	HorizonRevenue map[int]float64 `json:"horizon_revenue"`
}

type Recommendation struct {
	Rule              Rule            `json:"rule"`
	SegmentsAffected  int             `json:"segments_affected"`
	SegmentsSkipped   int             `json:"segments_skipped,omitempty"`
	BaselineRevenue   float64         `json:"baseline_revenue"`
	SimulatedRevenue  float64         `json:"simulated_revenue"`
	RevenueDelta      float64         `json:"revenue_delta"`
	DeltaPct          float64         `json:"delta_pct"`
	AvgPriceChangePct float64         `json:"avg_price_change_pct"`
	Effects           []SegmentEffect `json:"effects"`
}

type Result struct {
	Evaluated       int              `json:"rules_evaluated"`
	Recommendations []Recommendation `json:"recommendations"`
	Highlights      []string         `json:"context_highlights,omitempty"`
	Narrative       string           `json:"narrative,omitempty"`
}
