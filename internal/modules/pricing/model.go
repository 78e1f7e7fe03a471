// README: Pricing request/result types and the closed pricing-model enum.
package pricing

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrValidation marks bad or missing engine input. Never retried.
var ErrValidation = eris.New("pricing: invalid request")

type Model int

const (
	ModelUnknown Model = iota
	ModelFixed
	ModelDynamicStandard
	ModelDynamicCustom
)

// Models lists every valid pricing model in declaration order.
var Models = []Model{ModelFixed, ModelDynamicStandard, ModelDynamicCustom}

func (m Model) String() string {
	switch m {
	case ModelFixed:
		return "FIXED"
	case ModelDynamicStandard:
		return "DYNAMIC_STANDARD"
	case ModelDynamicCustom:
		return "DYNAMIC_CUSTOM"
	default:
		return "UNKNOWN"
	}
}

func (m Model) IsDynamic() bool {
	return m == ModelDynamicStandard || m == ModelDynamicCustom
}

// ParseModel accepts the canonical names case-insensitively.
func ParseModel(s string) (Model, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FIXED":
		return ModelFixed, nil
	case "DYNAMIC_STANDARD":
		return ModelDynamicStandard, nil
	case "DYNAMIC_CUSTOM":
		return ModelDynamicCustom, nil
	default:
		return ModelUnknown, eris.Wrapf(ErrValidation, "unknown pricing model %q", s)
	}
}

func (m Model) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText leaves empty or UNKNOWN values as ModelUnknown; the engine rejects them.
func (m *Model) UnmarshalText(b []byte) error {
	if s := strings.TrimSpace(string(b)); s == "" || strings.EqualFold(s, "UNKNOWN") {
		*m = ModelUnknown
		return nil
	}
	parsed, err := ParseModel(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Category values accepted by the multiplier tables.
const (
	TimeMorningRush = "morning_rush"
	TimeEveningRush = "evening_rush"
	TimeNight       = "night"
	TimeRegular     = "regular"

	LocationUrbanHighDemand = "urban_high_demand"
	LocationUrbanRegular    = "urban_regular"
	LocationSuburban        = "suburban"

	VehiclePremium = "premium"
	VehicleEconomy = "economy"

	LoyaltyGold    = "gold"
	LoyaltySilver  = "silver"
	LoyaltyRegular = "regular"
)

type Request struct {
	Model             Model    `json:"pricing_model"`
	DistanceMiles     *float64 `json:"distance,omitempty"`
	DurationMinutes   *float64 `json:"duration,omitempty"`
	TimeOfDay         string   `json:"time_of_day"`
	Location          string   `json:"location_category"`
	Vehicle           string   `json:"vehicle_type"`
	SupplyDemandRatio float64  `json:"supply_demand_ratio"`
	Loyalty           string   `json:"loyalty_tier"`
	FixedPrice        *float64 `json:"fixed_price,omitempty"`
}

type Multiplier struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

type Breakdown struct {
	Time     Multiplier `json:"time"`
	Location Multiplier `json:"location"`
	Vehicle  Multiplier `json:"vehicle"`
	Surge    Multiplier `json:"surge"`
}

type Result struct {
	Model                 Model     `json:"pricing_model"`
	BasePrice             float64   `json:"base_price"`
	Multipliers           Breakdown `json:"multipliers"`
	MultiplierProduct     float64   `json:"multiplier_product"`
	PriceAfterMultipliers float64   `json:"price_after_multipliers"`
	LoyaltyDiscountPct    float64   `json:"loyalty_discount_pct"`
	LoyaltyDiscount       float64   `json:"loyalty_discount_amount"`
	FinalPrice            float64   `json:"final_price"`
	RankingScore          float64   `json:"ranking_score"`
}

func Float(v float64) *float64 {
	return &v
}
