package hold

import (
	"context"
	"errors"
	"log/slog"

	"github.com/earnflow/earnflow/internal/fraud"
)

// ErrRiskBlocked indicates the risk policy refused a hold placement.
var ErrRiskBlocked = errors.New("hold blocked by risk policy")

// Decision is the policy verdict on a hold request.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionFlag  Decision = "flag"
	DecisionBlock Decision = "block"
)

// Scorer produces a risk score for a user and candidate amount. Implemented
// by fraud.Aggregator.
type Scorer interface {
	Score(ctx context.Context, userID string, candidateAmount int64) (fraud.Score, error)
}

// RiskPolicy decides whether a score gates a hold request. The aggregator
// only reports signals; this layer owns the allow/flag/block call.
type RiskPolicy struct {
	scorer         Scorer
	flagThreshold  int
	blockThreshold int
	logger         *slog.Logger
}

// NewRiskPolicy builds a policy over the given scorer.
func NewRiskPolicy(scorer Scorer, flagThreshold, blockThreshold int, logger *slog.Logger) *RiskPolicy {
	return &RiskPolicy{
		scorer:         scorer,
		flagThreshold:  flagThreshold,
		blockThreshold: blockThreshold,
		logger:         logger,
	}
}

// Evaluate scores the request and maps it to a decision. Scoring failures
// resolve to allow: hold placement must not depend on the fraud pipeline
// being up.
func (p *RiskPolicy) Evaluate(ctx context.Context, userID string, amount int64) (Decision, fraud.Score) {
	score, err := p.scorer.Score(ctx, userID, amount)
	if err != nil {
		p.logger.Warn("risk scoring failed, allowing hold", "user_id", userID, "error", err)
		return DecisionAllow, fraud.Score{}
	}
	switch {
	case score.Score >= p.blockThreshold:
		return DecisionBlock, score
	case score.Score >= p.flagThreshold:
		return DecisionFlag, score
	default:
		return DecisionAllow, score
	}
}
