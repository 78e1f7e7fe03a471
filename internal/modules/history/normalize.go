// README: Competitor record normalisation and platform/competitor merge for model training.
package history

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/rotisserie/eris"

	"fareflow/internal/modules/pricing"
)

// fieldAliases maps squashed provider field names (lowercase, no separators) to canonical keys.
var fieldAliases = map[string]string{
	"numberofriders": "riders", "riders": "riders", "ridercount": "riders", "demand": "riders",
	"numberofdrivers": "drivers", "drivers": "drivers", "drivercount": "drivers", "supply": "drivers",
	"locationcategory": "location", "location": "location", "area": "location", "zone": "location",
	"customerloyaltystatus": "loyalty", "loyaltystatus": "loyalty", "loyalty": "loyalty", "loyaltytier": "loyalty", "membership": "loyalty",
	"vehicletype": "vehicle", "vehicle": "vehicle", "cartype": "vehicle", "ridetype": "vehicle",
	"pricingmodel": "pricing_model", "pricingtier": "pricing_model", "pricetier": "pricing_model", "pricingtype": "pricing_model",
	"timeofbooking": "time_of_booking", "bookingtime": "time_of_booking", "timeofday": "time_of_booking",
	"numberofpastrides": "past_rides", "pastrides": "past_rides",
	"averageratings": "average_rating", "averagerating": "average_rating", "rating": "average_rating",
	"expectedrideduration": "expected_duration", "rideduration": "expected_duration", "durationminutes": "expected_duration", "duration": "expected_duration",
	"historicalcostofride": "historical_cost", "historicalcost": "historical_cost", "cost": "historical_cost", "fare": "historical_cost", "price": "historical_cost",
}

type competitorRow struct {
	Riders           float64 `mapstructure:"riders"`
	Drivers          float64 `mapstructure:"drivers"`
	Location         string  `mapstructure:"location"`
	Loyalty          string  `mapstructure:"loyalty"`
	Vehicle          string  `mapstructure:"vehicle"`
	PricingModel     string  `mapstructure:"pricing_model"`
	TimeOfBooking    string  `mapstructure:"time_of_booking"`
	PastRides        int     `mapstructure:"past_rides"`
	AverageRating    float64 `mapstructure:"average_rating"`
	ExpectedDuration float64 `mapstructure:"expected_duration"`
	HistoricalCost   float64 `mapstructure:"historical_cost"`
}

// MergeReport describes a platform + competitor merge. Defaulted counts, per field,
// competitor values that were not recognised and fell back to a default.
type MergeReport struct {
	Platform   int            `json:"platform"`
	Competitor int            `json:"competitor"`
	Usable     int            `json:"usable"`
	Dropped    int            `json:"dropped"`
	Defaulted  map[string]int `json:"defaulted"`
}

// NormalizeCompetitor decodes a raw competitor row into a Record.
// It returns the names of fields whose values were defaulted.
func NormalizeCompetitor(raw RawRecord) (Record, []string, error) {
	canonical := make(map[string]any, len(raw.Fields))
	for k, v := range raw.Fields {
		if c, ok := fieldAliases[squash(k)]; ok {
			canonical[c] = v
		}
	}

	var row competitorRow
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &row,
	})
	if err != nil {
		return Record{}, nil, eris.Wrap(err, "history: build decoder")
	}
	if err := dec.Decode(canonical); err != nil {
		return Record{}, nil, eris.Wrapf(err, "history: decode competitor record %s", raw.ID)
	}

	var defaulted []string
	model, ok := competitorModel(row.PricingModel)
	if !ok {
		defaulted = append(defaulted, "pricing_model")
	}
	vehicle, ok := competitorVehicle(row.Vehicle)
	if !ok {
		defaulted = append(defaulted, "vehicle")
	}
	loyalty, ok := competitorLoyalty(row.Loyalty)
	if !ok {
		defaulted = append(defaulted, "loyalty")
	}

	return Record{
		ID:               raw.ID,
		Source:           SourceCompetitor,
		RecordedAt:       raw.RecordedAt,
		Riders:           row.Riders,
		Drivers:          row.Drivers,
		Location:         competitorLocation(row.Location),
		Loyalty:          loyalty,
		Vehicle:          vehicle,
		PricingModel:     model,
		TimeOfBooking:    row.TimeOfBooking,
		PastRides:        row.PastRides,
		AverageRating:    row.AverageRating,
		ExpectedDuration: row.ExpectedDuration,
		HistoricalCost:   row.HistoricalCost,
	}, defaulted, nil
}

// Merge tags and normalises both datasets and keeps only usable records.
func Merge(platform []Record, competitor []RawRecord) ([]Record, MergeReport) {
	rep := MergeReport{
		Platform:   len(platform),
		Competitor: len(competitor),
		Defaulted:  map[string]int{},
	}
	out := make([]Record, 0, len(platform)+len(competitor))
	for _, r := range platform {
		r.Source = SourcePlatform
		if !r.Usable() {
			rep.Dropped++
			continue
		}
		out = append(out, r)
	}
	for _, raw := range competitor {
		r, defaulted, err := NormalizeCompetitor(raw)
		if err != nil || !r.Usable() {
			rep.Dropped++
			continue
		}
		for _, f := range defaulted {
			rep.Defaulted[f]++
		}
		out = append(out, r)
	}
	rep.Usable = len(out)
	return out, rep
}

func competitorModel(v string) (pricing.Model, bool) {
	switch squash(v) {
	case "fixed", "flat", "flatrate":
		return pricing.ModelFixed, true
	case "standard", "dynamic", "dynamicstandard", "surge":
		return pricing.ModelDynamicStandard, true
	case "custom", "dynamiccustom", "personalized":
		return pricing.ModelDynamicCustom, true
	default:
		return pricing.ModelDynamicStandard, false
	}
}

func competitorVehicle(v string) (string, bool) {
	switch squash(v) {
	case "premium", "luxury", "comfort", "black":
		return VehiclePremium, true
	case "economy", "basic", "standard", "pool":
		return VehicleEconomy, true
	default:
		return VehicleEconomy, false
	}
}

func competitorLoyalty(v string) (string, bool) {
	switch squash(v) {
	case "gold", "platinum":
		return LoyaltyGold, true
	case "silver":
		return LoyaltySilver, true
	case "regular", "none", "basic":
		return LoyaltyRegular, true
	default:
		return LoyaltyRegular, false
	}
}

// competitorLocation has no default: an unknown location makes the record unusable.
func competitorLocation(v string) string {
	switch squash(v) {
	case "urban", "city", "downtown":
		return LocationUrban
	case "suburban", "suburb", "suburbs":
		return LocationSuburban
	case "rural", "countryside":
		return LocationRural
	default:
		return ""
	}
}

func squash(s string) string {
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}
