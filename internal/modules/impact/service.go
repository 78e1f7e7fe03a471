// README: Impact assessment: per-horizon revenue deltas, loyalty price effects and risk flags.
package impact

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"fareflow/internal/modules/recommend"
)

// PriceIncreaseLimitPct flags a rule when any loyalty tier's average price rises above it.
const PriceIncreaseLimitPct = 15.0

const (
	RiskPriceIncrease   = "price_increase"
	RiskNegativeRevenue = "negative_revenue"
)

var ErrNoRecommendations = eris.New("impact: no recommendation output to assess")

type Risk struct {
	RuleID string `json:"rule_id"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

type RuleImpact struct {
	RuleID                string             `json:"rule_id"`
	RevenueDeltaByHorizon map[int]float64    `json:"revenue_delta_by_horizon"`
	PriceChangeByLoyalty  map[string]float64 `json:"price_change_pct_by_loyalty"`
	Risks                 []Risk             `json:"risks,omitempty"`
}

type Assessment struct {
	Rules               []RuleImpact    `json:"rules"`
	TotalDeltaByHorizon map[int]float64 `json:"total_delta_by_horizon"`
	Risks               []Risk          `json:"risks"`
	HighRisk            bool            `json:"high_risk"`
}

type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Run(ctx context.Context, in *recommend.Result) (*Assessment, error) {
	if in == nil {
		return nil, ErrNoRecommendations
	}
	a := Assess(in.Recommendations)
	return &a, nil
}

// Assess projects each recommendation's effect onto the forecast horizons.
func Assess(recs []recommend.Recommendation) Assessment {
	out := Assessment{TotalDeltaByHorizon: map[int]float64{}, Risks: []Risk{}}
	for _, rec := range recs {
		ri := RuleImpact{
			RuleID:                rec.Rule.ID,
			RevenueDeltaByHorizon: map[int]float64{},
			PriceChangeByLoyalty:  map[string]float64{},
		}
		sums, counts := map[string]float64{}, map[string]int{}
		for _, eff := range rec.Effects {
			lift := eff.PriceFactor*eff.RidesFactor - 1
			for h, rev := range eff.HorizonRevenue {
				ri.RevenueDeltaByHorizon[h] += rev * lift
			}
			sums[eff.Segment.Loyalty] += (eff.PriceFactor - 1) * 100
			counts[eff.Segment.Loyalty]++
		}
		for tier, sum := range sums {
			avg := round2(sum / float64(counts[tier]))
			ri.PriceChangeByLoyalty[tier] = avg
			if avg > PriceIncreaseLimitPct {
				ri.Risks = append(ri.Risks, Risk{
					RuleID: rec.Rule.ID,
					Kind:   RiskPriceIncrease,
					Detail: fmt.Sprintf("%s riders see %.1f%% higher prices", tier, avg),
				})
			}
		}
		for _, h := range sortedKeys(ri.RevenueDeltaByHorizon) {
			d := round2(ri.RevenueDeltaByHorizon[h])
			ri.RevenueDeltaByHorizon[h] = d
			out.TotalDeltaByHorizon[h] = round2(out.TotalDeltaByHorizon[h] + d)
			if d < 0 {
				ri.Risks = append(ri.Risks, Risk{
					RuleID: rec.Rule.ID,
					Kind:   RiskNegativeRevenue,
					Detail: fmt.Sprintf("revenue falls by %.2f at %d days", -d, h),
				})
			}
		}
		sort.Slice(ri.Risks, func(i, j int) bool { return ri.Risks[i].Detail < ri.Risks[j].Detail })
		out.Risks = append(out.Risks, ri.Risks...)
		out.Rules = append(out.Rules, ri)
	}
	out.HighRisk = len(out.Risks) > 0
	return out
}

func sortedKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
