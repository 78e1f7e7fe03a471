// README: Rate tables and multiplier lookups for each pricing model.
package pricing

import "strings"

type Rate struct {
	BaseFare  float64 `json:"base_fare"`
	PerMile   float64 `json:"per_mile"`
	PerMinute float64 `json:"per_minute"`
}

// RateTable holds the dynamic-regime rates. FIXED has no entry.
type RateTable map[Model]Rate

func DefaultRates() RateTable {
	return RateTable{
		ModelDynamicStandard: {BaseFare: 4.00, PerMile: 2.00, PerMinute: 0.30},
		ModelDynamicCustom:   {BaseFare: 5.00, PerMile: 2.50, PerMinute: 0.40},
	}
}

var timeMultipliers = map[string]float64{
	TimeMorningRush: 1.3,
	TimeEveningRush: 1.4,
	TimeNight:       1.2,
}

var locationMultipliers = map[string]float64{
	LocationUrbanHighDemand: 1.3,
	LocationUrbanRegular:    1.15,
	LocationSuburban:        1.0,
}

var vehicleMultipliers = map[string]float64{
	VehiclePremium: 1.6,
	VehicleEconomy: 1.0,
}

var loyaltyDiscounts = map[string]float64{
	LoyaltyGold:    0.15,
	LoyaltySilver:  0.10,
	LoyaltyRegular: 0,
}

var loyaltyBonuses = map[string]float64{
	LoyaltyGold:    0.20,
	LoyaltySilver:  0.10,
	LoyaltyRegular: 0,
}

func lookup(table map[string]float64, key, fallbackLabel string) Multiplier {
	k := normalize(key)
	if v, ok := table[k]; ok {
		return Multiplier{Value: v, Label: k}
	}
	return Multiplier{Value: 1.0, Label: fallbackLabel}
}

// surgeFor uses strict less-than thresholds: a boundary ratio lands in the lower-surge bucket.
func surgeFor(ratio float64) Multiplier {
	switch {
	case ratio < 0.3:
		return Multiplier{Value: 2.0, Label: "very_high_demand"}
	case ratio < 0.5:
		return Multiplier{Value: 1.6, Label: "high_demand"}
	case ratio < 0.7:
		return Multiplier{Value: 1.3, Label: "moderate_demand"}
	default:
		return Multiplier{Value: 1.0, Label: "normal"}
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
