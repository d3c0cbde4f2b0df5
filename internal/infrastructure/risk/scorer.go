// Package risk provides the payout risk scoring used to build the
// policy check context. The scoring model is intentionally simple and
// lives behind the application-layer RiskScorer interface so it can be
// swapped for an external model service without touching the pipeline.
package risk

import (
	"context"

	"github.com/streamcart/backend/internal/domain/payout"
)

// HeuristicScorerConfig tunes the built-in scorer
type HeuristicScorerConfig struct {
	// BaseScore is the floor applied to every payout
	BaseScore float64
	// AmountCeilingCents is the net amount at which the amount
	// component saturates at its maximum contribution
	AmountCeilingCents int64
	// AmountWeight is the maximum contribution of the amount component
	AmountWeight float64
	// HoldPenalty is added once per hold ever applied to the payout,
	// released or not; a history of holds is a risk signal in itself
	HoldPenalty float64
	// RetryPenalty is added per processing attempt beyond the first
	RetryPenalty float64
}

// DefaultHeuristicScorerConfig returns the default scorer tuning
func DefaultHeuristicScorerConfig() HeuristicScorerConfig {
	return HeuristicScorerConfig{
		BaseScore:          0.05,
		AmountCeilingCents: 1_000_000,
		AmountWeight:       0.5,
		HoldPenalty:        0.15,
		RetryPenalty:       0.1,
	}
}

// HeuristicScorer scores payouts from signals already on the aggregate:
// net amount, hold history, and retry count
type HeuristicScorer struct {
	cfg HeuristicScorerConfig
}

// NewHeuristicScorer creates a HeuristicScorer
func NewHeuristicScorer(cfg HeuristicScorerConfig) *HeuristicScorer {
	if cfg.AmountCeilingCents <= 0 {
		cfg = DefaultHeuristicScorerConfig()
	}
	return &HeuristicScorer{cfg: cfg}
}

// ScorePayout returns a score in [0,1]; higher means riskier
func (s *HeuristicScorer) ScorePayout(_ context.Context, p *payout.Payout) (float64, error) {
	score := s.cfg.BaseScore

	net := p.NetCents
	if net < 0 {
		net = -net
	}
	amountRatio := float64(net) / float64(s.cfg.AmountCeilingCents)
	if amountRatio > 1 {
		amountRatio = 1
	}
	score += amountRatio * s.cfg.AmountWeight

	score += float64(len(p.Holds)) * s.cfg.HoldPenalty

	if p.Attempt > 1 {
		score += float64(p.Attempt-1) * s.cfg.RetryPenalty
	}

	if score > 1 {
		score = 1
	}
	return score, nil
}

// FixedScorer returns the same score for every payout. Used when the
// pipeline should treat all payouts uniformly, e.g. in development.
type FixedScorer struct {
	Score float64
}

// ScorePayout returns the configured score
func (s FixedScorer) ScorePayout(context.Context, *payout.Payout) (float64, error) {
	return s.Score, nil
}
