// README: Analysis report types (segment KPIs, demand mix, competitor price gap).
package analysis

import "fareflow/internal/modules/forecast"

type KPI struct {
	Rides        int     `json:"rides"`
	AvgUnitPrice float64 `json:"avg_unit_price"`
	AvgDuration  float64 `json:"avg_duration"`
	Revenue      float64 `json:"revenue"`
}

// PriceGap compares per-minute prices between platform and competitor for one {location, vehicle}.
type PriceGap struct {
	Location        string  `json:"location"`
	Vehicle         string  `json:"vehicle"`
	PlatformPrice   float64 `json:"platform_unit_price"`
	CompetitorPrice float64 `json:"competitor_unit_price"`
	GapPct          float64 `json:"gap_pct"`
}

type Report struct {
	PlatformRecords   int                            `json:"platform_records"`
	CompetitorRecords int                            `json:"competitor_records"`
	ByModel           map[string]KPI                 `json:"by_pricing_model"`
	ByLocation        map[string]KPI                 `json:"by_location"`
	ByLoyalty         map[string]KPI                 `json:"by_loyalty"`
	DemandMix         map[forecast.DemandProfile]int `json:"demand_mix"`
	PriceGaps         []PriceGap                     `json:"price_gaps"`
	Highlights        []string                       `json:"highlights"`
}
