// README: Recommendation phase: ranks candidate rules by simulated revenue delta.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"fareflow/internal/modules/analysis"
	"fareflow/internal/modules/forecast"
	"fareflow/internal/modules/pricing"
)

var ErrNoBaselines = eris.New("recommend: no forecast baselines to simulate against")

type EngineSource interface {
	Engine() *pricing.Engine
}

// Narrator writes a short explanation of the recommendations. Optional.
type Narrator interface {
	Narrate(ctx context.Context, prompt string) (string, error)
}

// Input is the merged output of the forecast and analysis phases. Either may be nil.
type Input struct {
	Forecast *forecast.Output
	Analysis *analysis.Report
}

type Service struct {
	engines  EngineSource
	rules    []Rule
	topN     int
	narrator Narrator
}

func NewService(engines EngineSource, rules []Rule, topN int, narrator Narrator) *Service {
	if len(rules) == 0 {
		rules = Catalogue()
	}
	if topN <= 0 {
		topN = 5
	}
	return &Service{engines: engines, rules: rules, topN: topN, narrator: narrator}
}

func (s *Service) Run(ctx context.Context, in Input) (*Result, error) {
	if in.Forecast == nil {
		return nil, ErrNoBaselines
	}
	segments := in.Forecast.All()
	if len(segments) == 0 {
		return nil, ErrNoBaselines
	}
	engine := s.engines.Engine()

	res := &Result{Evaluated: len(s.rules)}
	for _, rule := range s.rules {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "recommend: cancelled")
		}
		rec := Simulate(engine, rule, segments)
		if rec.RevenueDelta > 0 {
			res.Recommendations = append(res.Recommendations, rec)
		}
	}
	sort.SliceStable(res.Recommendations, func(i, j int) bool {
		return res.Recommendations[i].RevenueDelta > res.Recommendations[j].RevenueDelta
	})
	if len(res.Recommendations) > s.topN {
		res.Recommendations = res.Recommendations[:s.topN]
	}
	if in.Analysis != nil {
		res.Highlights = in.Analysis.Highlights
	}

	if s.narrator != nil && len(res.Recommendations) > 0 {
		text, err := s.narrator.Narrate(ctx, prompt(res))
		if err != nil {
			zap.L().Warn("recommend: narrative skipped", zap.Error(err))
		} else {
			res.Narrative = text
		}
	}
	return res, nil
}

func prompt(res *Result) string {
	var b strings.Builder
	b.WriteString("Explain these ride pricing recommendations to an operations manager in under 120 words.\n")
	for i, r := range res.Recommendations {
		fmt.Fprintf(&b, "%d. %s: %s Revenue %+.2f (%+.1f%%), average price change %+.1f%% across %d segments.\n",
			i+1, r.Rule.Name, r.Rule.Description, r.RevenueDelta, r.DeltaPct, r.AvgPriceChangePct, r.SegmentsAffected)
	}
	for _, h := range res.Highlights {
		fmt.Fprintf(&b, "Context: %s.\n", h)
	}
	return b.String()
}
