// Package decisionengine fuses the duplicate, anomaly, and rule-engine
// signals into a final 0-100 risk score and PASS/REVIEW/HOLD label.
package decisionengine

import (
	"context"
	"math"

	"github.com/mmdatafocus/invoice-sieve/internal/configstore"
	"github.com/mmdatafocus/invoice-sieve/models"
)

// Inputs bundles the per-candidate-pair probabilities the fusion
// formula combines; dup_prob and text_dup_prob are already the
// max across candidates by the time they reach this package.
type Inputs struct {
	DupProb     float64
	AnomProb    float64
	TextDupProb float64
	BankChange  bool
}

const bankChangeFusionWeight = 0.6

// Fuse combines the four signals into a single duplicate-or-anomaly
// probability. The formula is order-independent and idempotent:
// each factor is a "probability this signal does NOT indicate a
// problem", so their product is the probability nothing is wrong.
func Fuse(in Inputs) float64 {
	bankFactor := 0.0
	if in.BankChange {
		bankFactor = bankChangeFusionWeight
	}
	p := 1 - (1-in.DupProb)*(1-in.AnomProb)*(1-bankFactor)*(1-in.TextDupProb)
	return p
}

// RiskScore converts a fused probability to the persisted 0-100,
// scale-2 risk score.
func RiskScore(p float64) float64 {
	return math.Round(100*p*100) / 100
}

// Engine resolves thresholds per tenant/vendor and combines the
// score-based decision with the rule engine's forced outcome.
type Engine struct {
	configs *configstore.Store
}

func NewEngine(configs *configstore.Store) *Engine {
	return &Engine{configs: configs}
}

// rank orders decision labels so the strictest of two can be picked;
// mirrors internal/rules' precedence so the two packages never
// disagree on what "stricter" means.
func rank(l models.DecisionLabel) int {
	switch l {
	case models.DecisionHold:
		return 2
	case models.DecisionReview:
		return 1
	default:
		return 0
	}
}

// Decide resolves T_hold/T_review for (tenantID, vendorID), maps the
// risk score to a score-based decision, and returns the stricter of
// that and ruleForced.
func (e *Engine) Decide(ctx context.Context, tenantID, vendorID string, riskScore float64, ruleForced models.DecisionLabel) (models.DecisionLabel, error) {
	tHold, err := e.configs.GetFloat(ctx, tenantID, vendorID, "T_hold", configstore.DefaultTHold)
	if err != nil {
		return "", err
	}
	tReview, err := e.configs.GetFloat(ctx, tenantID, vendorID, "T_review", configstore.DefaultTReview)
	if err != nil {
		return "", err
	}

	scoreDecision := models.DecisionPass
	switch {
	case riskScore >= tHold:
		scoreDecision = models.DecisionHold
	case riskScore >= tReview:
		scoreDecision = models.DecisionReview
	}

	if rank(ruleForced) > rank(scoreDecision) {
		return ruleForced, nil
	}
	return scoreDecision, nil
}
