// README: Built-in catalogue of candidate pricing rules.
package recommend

import (
	"fareflow/internal/modules/forecast"
	"fareflow/internal/modules/history"
	"fareflow/internal/modules/pricing"
)

func Catalogue() []Rule {
	return []Rule{
		{
			ID:          "urban-high-demand-zone",
			Name:        "Urban high-demand zoning",
			Description: "Price HIGH-demand urban segments with the urban high-demand location multiplier.",
			Scope:       Scope{Location: history.LocationUrban, Demand: forecast.DemandHigh},
			apply: func(r pricing.Request) pricing.Request {
				r.Location = pricing.LocationUrbanHighDemand
				return r
			},
		},
		{
			ID:          "premium-custom-rates",
			Name:        "Premium on custom rates",
			Description: "Move premium rides on standard dynamic pricing to the custom rate table.",
			Scope:       Scope{Vehicle: history.VehiclePremium, Model: pricing.ModelDynamicStandard},
			apply: func(r pricing.Request) pricing.Request {
				r.Model = pricing.ModelDynamicCustom
				return r
			},
		},
		{
			ID:          "fixed-to-dynamic-high-demand",
			Name:        "Dynamic pricing for high-demand fixed fares",
			Description: "Switch HIGH-demand fixed-price segments to standard dynamic pricing.",
			Scope:       Scope{Model: pricing.ModelFixed, Demand: forecast.DemandHigh},
			apply: func(r pricing.Request) pricing.Request {
				r.Model = pricing.ModelDynamicStandard
				r.FixedPrice = nil
				return r
			},
		},
		{
			ID:          "low-demand-surge-cap",
			Name:        "No surge in low demand",
			Description: "Cap the surge multiplier at 1.0 for LOW-demand segments.",
			Scope:       Scope{Demand: forecast.DemandLow},
			apply: func(r pricing.Request) pricing.Request {
				r.SupplyDemandRatio = max(r.SupplyDemandRatio, 0.7)
				return r
			},
		},
		{
			ID:          "suburban-peak",
			Name:        "Suburban peak pricing",
			Description: "Apply the morning-rush multiplier to HIGH-demand suburban segments.",
			Scope:       Scope{Location: history.LocationSuburban, Demand: forecast.DemandHigh},
			apply: func(r pricing.Request) pricing.Request {
				r.TimeOfDay = pricing.TimeMorningRush
				return r
			},
		},
		{
			ID:          "rural-night",
			Name:        "Rural night premium",
			Description: "Apply the night multiplier to rural segments.",
			Scope:       Scope{Location: history.LocationRural},
			apply: func(r pricing.Request) pricing.Request {
				r.TimeOfDay = pricing.TimeNight
				return r
			},
		},
		{
			ID:          "silver-discount-trim",
			Name:        "Trim silver discount",
			Description: "Price silver members without the loyalty discount.",
			Scope:       Scope{Loyalty: history.LoyaltySilver},
			apply: func(r pricing.Request) pricing.Request {
				r.Loyalty = pricing.LoyaltyRegular
				return r
			},
		},
	}
}

// NewRule builds a custom rule; apply receives a copy of the segment's baseline request.
func NewRule(id, name, description string, scope Scope, apply func(pricing.Request) pricing.Request) Rule {
	return Rule{ID: id, Name: name, Description: description, Scope: scope, apply: apply}
}
