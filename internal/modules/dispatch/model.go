// README: Dispatch tiers and queue entries.
package dispatch

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"fareflow/internal/modules/pricing"
	"fareflow/internal/types"
)

var (
	// ErrUnavailable wraps every backing-store failure. Callers must not retry silently.
	ErrUnavailable = eris.New("dispatch: queue store unavailable")
	ErrUnknownTier = eris.New("dispatch: unknown tier")
)

type Tier string

const (
	TierP0 Tier = "P0" // FIFO
	TierP1 Tier = "P1" // ranked
	TierP2 Tier = "P2" // ranked
)

var Tiers = []Tier{TierP0, TierP1, TierP2}

func (t Tier) Ranked() bool {
	return t == TierP1 || t == TierP2
}

func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierP0:
		return TierP0, nil
	case TierP1:
		return TierP1, nil
	case TierP2:
		return TierP2, nil
	default:
		return "", eris.Wrapf(ErrUnknownTier, "%q", s)
	}
}

// TierFor maps a pricing model to its dispatch tier.
func TierFor(m pricing.Model) (Tier, error) {
	switch m {
	case pricing.ModelFixed:
		return TierP0, nil
	case pricing.ModelDynamicStandard:
		return TierP1, nil
	case pricing.ModelDynamicCustom:
		return TierP2, nil
	default:
		return "", eris.Wrapf(pricing.ErrValidation, "no dispatch tier for %s", m)
	}
}

type Entry struct {
	OrderID      types.ID        `json:"order_id"`
	Tier         Tier            `json:"tier"`
	Model        pricing.Model   `json:"pricing_model"`
	RankingScore float64         `json:"ranking_score"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	Seq          int64           `json:"seq"`
}

type Status struct {
	P0    int64 `json:"P0"`
	P1    int64 `json:"P1"`
	P2    int64 `json:"P2"`
	Total int64 `json:"total"`
}
