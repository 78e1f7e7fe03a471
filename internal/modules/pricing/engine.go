// README: Pricing engine; pure price + ranking-score calculation, safe for tight simulation loops.
package pricing

import (
	"math"

	"github.com/rotisserie/eris"
)

var neutral = Multiplier{Value: 1.0, Label: "fixed"}

// Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	rates RateTable
}

func NewEngine(rates RateTable) *Engine {
	merged := DefaultRates()
	for m, r := range rates {
		merged[m] = r
	}
	return &Engine{rates: merged}
}

func (e *Engine) Rates() RateTable {
	out := make(RateTable, len(e.rates))
	for m, r := range e.rates {
		out[m] = r
	}
	return out
}

// Calculate prices a single request. It performs no I/O.
func (e *Engine) Calculate(req Request) (Result, error) {
	switch req.Model {
	case ModelFixed:
		return e.fixed(req)
	case ModelDynamicStandard, ModelDynamicCustom:
		return e.dynamic(req)
	default:
		return Result{}, eris.Wrapf(ErrValidation, "unknown pricing model %d", int(req.Model))
	}
}

func (e *Engine) fixed(req Request) (Result, error) {
	if req.FixedPrice == nil {
		return Result{}, eris.Wrap(ErrValidation, "fixed_price is required for FIXED pricing")
	}
	if *req.FixedPrice < 0 {
		return Result{}, eris.Wrap(ErrValidation, "fixed_price must not be negative")
	}
	res := Result{
		Model:             ModelFixed,
		BasePrice:         round2(*req.FixedPrice),
		Multipliers:       Breakdown{Time: neutral, Location: neutral, Vehicle: neutral, Surge: neutral},
		MultiplierProduct: 1.0,
	}
	applyLoyalty(&res, *req.FixedPrice, req.Loyalty)
	return res, nil
}

func (e *Engine) dynamic(req Request) (Result, error) {
	if req.DistanceMiles == nil || req.DurationMinutes == nil {
		return Result{}, eris.Wrapf(ErrValidation, "distance and duration are required for %s pricing", req.Model)
	}
	distance, duration := *req.DistanceMiles, *req.DurationMinutes
	if distance < 0 || duration < 0 {
		return Result{}, eris.Wrap(ErrValidation, "distance and duration must not be negative")
	}
	rate, ok := e.rates[req.Model]
	if !ok {
		return Result{}, eris.Wrapf(ErrValidation, "no rate table for %s", req.Model)
	}

	base := rate.BaseFare + distance*rate.PerMile + duration*rate.PerMinute
	bd := Breakdown{
		Time:     lookup(timeMultipliers, req.TimeOfDay, TimeRegular),
		Location: lookup(locationMultipliers, req.Location, LocationSuburban),
		Vehicle:  lookup(vehicleMultipliers, req.Vehicle, VehicleEconomy),
		Surge:    surgeFor(req.SupplyDemandRatio),
	}
	product := bd.Time.Value * bd.Location.Value * bd.Vehicle.Value * bd.Surge.Value

	res := Result{
		Model:             req.Model,
		BasePrice:         round2(base),
		Multipliers:       bd,
		MultiplierProduct: round4(product),
	}
	applyLoyalty(&res, base*product, req.Loyalty)
	return res, nil
}

// applyLoyalty works on the unrounded price so final_price is a single rounding of the full product.
func applyLoyalty(res *Result, priceAfter float64, loyalty string) {
	tier := normalize(loyalty)
	discount := loyaltyDiscounts[tier]
	bonus := loyaltyBonuses[tier]

	final := round2(priceAfter * (1 - discount))
	res.PriceAfterMultipliers = round2(priceAfter)
	res.LoyaltyDiscountPct = discount * 100
	res.LoyaltyDiscount = round2(priceAfter * discount)
	res.FinalPrice = final
	res.RankingScore = math.Max(final, round2(final*(1+bonus)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
