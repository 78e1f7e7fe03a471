package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_WorkedExample(t *testing.T) {
	e := NewEngine(nil)
	res, err := e.Calculate(Request{
		Model:             ModelDynamicStandard,
		DistanceMiles:     Float(10),
		DurationMinutes:   Float(25),
		TimeOfDay:         TimeEveningRush,
		Location:          LocationUrbanHighDemand,
		Vehicle:           VehiclePremium,
		SupplyDemandRatio: 0.4,
		Loyalty:           LoyaltyGold,
	})
	require.NoError(t, err)

	assert.Equal(t, 31.50, res.BasePrice)
	assert.InDelta(t, 4.6592, res.MultiplierProduct, 1e-9)
	assert.Equal(t, 146.76, res.PriceAfterMultipliers)
	assert.Equal(t, 15.0, res.LoyaltyDiscountPct)
	assert.Equal(t, 22.01, res.LoyaltyDiscount)
	assert.Equal(t, 124.75, res.FinalPrice)
	assert.Equal(t, 149.70, res.RankingScore)

	assert.Equal(t, Multiplier{Value: 1.4, Label: TimeEveningRush}, res.Multipliers.Time)
	assert.Equal(t, Multiplier{Value: 1.3, Label: LocationUrbanHighDemand}, res.Multipliers.Location)
	assert.Equal(t, Multiplier{Value: 1.6, Label: VehiclePremium}, res.Multipliers.Vehicle)
	assert.Equal(t, 1.6, res.Multipliers.Surge.Value)
}

func TestEngine_SurgeBoundaries(t *testing.T) {
	tests := []struct {
		ratio float64
		want  float64
	}{
		{0.0, 2.0},
		{0.29, 2.0},
		{0.30, 1.6},
		{0.49, 1.6},
		{0.50, 1.3},
		{0.69, 1.3},
		{0.70, 1.0},
		{3.0, 1.0},
	}
	e := NewEngine(nil)
	for _, tt := range tests {
		res, err := e.Calculate(Request{
			Model:             ModelDynamicStandard,
			DistanceMiles:     Float(1),
			DurationMinutes:   Float(1),
			SupplyDemandRatio: tt.ratio,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Multipliers.Surge.Value, "ratio %v", tt.ratio)
	}
}

func TestEngine_FixedRegime(t *testing.T) {
	e := NewEngine(nil)
	res, err := e.Calculate(Request{
		Model:             ModelFixed,
		FixedPrice:        Float(20),
		TimeOfDay:         TimeNight,
		Location:          LocationUrbanHighDemand,
		Vehicle:           VehiclePremium,
		SupplyDemandRatio: 0.1,
		Loyalty:           LoyaltySilver,
	})
	require.NoError(t, err)

	for _, m := range []Multiplier{res.Multipliers.Time, res.Multipliers.Location, res.Multipliers.Vehicle, res.Multipliers.Surge} {
		assert.Equal(t, 1.0, m.Value)
	}
	assert.Equal(t, 1.0, res.MultiplierProduct)
	assert.Equal(t, 20.0, res.BasePrice)
	assert.Equal(t, 2.0, res.LoyaltyDiscount)
	assert.Equal(t, 18.0, res.FinalPrice)
	assert.Equal(t, 19.8, res.RankingScore)
}

func TestEngine_CustomRates(t *testing.T) {
	e := NewEngine(nil)
	res, err := e.Calculate(Request{
		Model:             ModelDynamicCustom,
		DistanceMiles:     Float(4),
		DurationMinutes:   Float(10),
		TimeOfDay:         TimeRegular,
		Location:          LocationSuburban,
		Vehicle:           VehicleEconomy,
		SupplyDemandRatio: 1.0,
		Loyalty:           LoyaltyRegular,
	})
	require.NoError(t, err)
	assert.Equal(t, 19.0, res.BasePrice)
	assert.Equal(t, 19.0, res.FinalPrice)
	assert.Equal(t, 19.0, res.RankingScore)

	overridden := NewEngine(RateTable{ModelDynamicCustom: {BaseFare: 1, PerMile: 1, PerMinute: 0}})
	res, err = overridden.Calculate(Request{Model: ModelDynamicCustom, DistanceMiles: Float(4), DurationMinutes: Float(10), SupplyDemandRatio: 1})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.BasePrice)
}

func TestEngine_ValidationErrors(t *testing.T) {
	e := NewEngine(nil)
	tests := []struct {
		name string
		req  Request
	}{
		{"unknown model", Request{Model: ModelUnknown}},
		{"fixed without price", Request{Model: ModelFixed}},
		{"dynamic without distance", Request{Model: ModelDynamicStandard, DurationMinutes: Float(5)}},
		{"dynamic without duration", Request{Model: ModelDynamicCustom, DistanceMiles: Float(5)}},
		{"negative distance", Request{Model: ModelDynamicStandard, DistanceMiles: Float(-1), DurationMinutes: Float(5)}},
		{"negative fixed price", Request{Model: ModelFixed, FixedPrice: Float(-3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Calculate(tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestEngine_FinalPriceAndRankingInvariants(t *testing.T) {
	e := NewEngine(nil)
	times := []string{TimeMorningRush, TimeEveningRush, TimeNight, TimeRegular}
	locations := []string{LocationUrbanHighDemand, LocationUrbanRegular, LocationSuburban}
	vehicles := []string{VehiclePremium, VehicleEconomy}
	ratios := []float64{0.1, 0.4, 0.6, 0.9}
	loyalties := []string{LoyaltyGold, LoyaltySilver, LoyaltyRegular}

	for _, model := range []Model{ModelDynamicStandard, ModelDynamicCustom} {
		for _, tod := range times {
			for _, loc := range locations {
				for _, veh := range vehicles {
					for _, r := range ratios {
						for _, loy := range loyalties {
							res, err := e.Calculate(Request{
								Model: model, DistanceMiles: Float(7), DurationMinutes: Float(20),
								TimeOfDay: tod, Location: loc, Vehicle: veh, SupplyDemandRatio: r, Loyalty: loy,
							})
							require.NoError(t, err)
							bd := res.Multipliers
							want := res.BasePrice * bd.Time.Value * bd.Location.Value * bd.Vehicle.Value * bd.Surge.Value * (1 - res.LoyaltyDiscountPct/100)
							assert.InDelta(t, math.Round(want*100)/100, res.FinalPrice, 0.0101)
							assert.GreaterOrEqual(t, res.RankingScore, res.FinalPrice)
						}
					}
				}
			}
		}
	}
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel("dynamic_custom")
	require.NoError(t, err)
	assert.Equal(t, ModelDynamicCustom, m)

	_, err = ParseModel("SURGE")
	assert.True(t, errors.Is(err, ErrValidation))

	var decoded Model
	require.NoError(t, decoded.UnmarshalText([]byte("FIXED")))
	assert.Equal(t, ModelFixed, decoded)
	assert.Error(t, decoded.UnmarshalText([]byte("nope")))
}

func TestEngine_UnknownLabelsAreNeutral(t *testing.T) {
	res, err := NewEngine(nil).Calculate(Request{
		Model: ModelDynamicStandard, DistanceMiles: Float(1), DurationMinutes: Float(0),
		TimeOfDay: "afternoon", Location: "mars", Vehicle: "scooter", SupplyDemandRatio: 1, Loyalty: "platinum",
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.MultiplierProduct)
	assert.Equal(t, TimeRegular, res.Multipliers.Time.Label)
	assert.Equal(t, 6.0, res.FinalPrice)
	assert.Equal(t, 6.0, res.RankingScore)
}
