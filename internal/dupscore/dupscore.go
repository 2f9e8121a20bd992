// Package dupscore implements the Duplicate Scorer: given a feature
// vector, produces a duplicate probability using a pluggable
// predictor, falling back to a deterministic linear heuristic when no
// trained artifact is available so the service degrades rather than
// failing.
package dupscore

import (
	"encoding/json"
	"math"
	"os"

	"github.com/mmdatafocus/invoice-sieve/internal/features"
)

// Predictor is the inference contract every duplicate model
// implementation satisfies, whether a loaded logistic-regression
// artifact or the built-in fallback.
type Predictor interface {
	PredictProba(vector []float64) float64
	ModelID() string
	ModelVersion() string
}

// fallbackWeights/fallbackBias are ported verbatim from the
// pre-distillation Python implementation's _FALLBACK_WEIGHTS/_BIAS, in
// features.Order order, so the Go fallback scores identically to the
// Python one for the same inputs.
var fallbackWeights = []float64{
	-1.2,  // abs_total_diff_pct
	-0.03, // days_diff
	0.8,   // same_po
	0.3,   // same_currency
	0.2,   // same_tax_total
	-0.4,  // bank_change_flag
	-0.1,  // payee_name_change_flag
	-1.5,  // invnum_edit
	1.6,   // line_coverage_pct
	-1.8,  // unmatched_amount_frac
	-0.4,  // count_new_items
	-0.05, // median_unit_price_diff
	2.2,   // text_cosine
}

const fallbackBias = -0.3

// HeuristicFallback is a deterministic logistic-regression-shaped
// model used whenever no trained artifact is configured or loadable.
type HeuristicFallback struct{}

func NewHeuristicFallback() *HeuristicFallback { return &HeuristicFallback{} }

func (HeuristicFallback) PredictProba(vector []float64) float64 {
	logit := fallbackBias
	for i, w := range fallbackWeights {
		if i >= len(vector) {
			break
		}
		logit += w * vector[i]
	}
	p := 1 / (1 + math.Exp(-logit))
	return clamp01(p)
}

func (HeuristicFallback) ModelID() string      { return "heuristic-fallback" }
func (HeuristicFallback) ModelVersion() string { return "v1" }

// linearArtifact is the JSON-on-disk shape of a trained model: a flat
// weight vector in features.Order order plus a bias term. A YAML or
// pickle-compatible format was deliberately not chosen: JSON is the
// one self-describing, dependency-free serialization every other
// on-disk artifact in this service already uses (decision payloads,
// audit payloads), and introducing a second format just for this one
// file would be inconsistent without buying anything.
type linearArtifact struct {
	ID      string    `json:"id"`
	Version string    `json:"version"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// LinearModel is a loaded logistic-regression artifact.
type LinearModel struct {
	id      string
	version string
	weights []float64
	bias    float64
}

func (m *LinearModel) PredictProba(vector []float64) float64 {
	logit := m.bias
	for i, w := range m.weights {
		if i >= len(vector) {
			break
		}
		logit += w * vector[i]
	}
	return clamp01(1 / (1 + math.Exp(-logit)))
}

func (m *LinearModel) ModelID() string     { return m.id }
func (m *LinearModel) ModelVersion() string { return m.version }

// Load reads a linear model artifact from path. On any error (missing
// file, malformed JSON) it returns a HeuristicFallback instead of an
// error, matching the degrade-don't-fail contract spec.md §4.5
// requires of this component.
func Load(path string) Predictor {
	if path == "" {
		return NewHeuristicFallback()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return NewHeuristicFallback()
	}
	var artifact linearArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return NewHeuristicFallback()
	}
	return &LinearModel{
		id:      artifact.ID,
		version: artifact.Version,
		weights: artifact.Weights,
		bias:    artifact.Bias,
	}
}

// Predict scores a feature vector with the given predictor, returning
// the duplicate probability plus the model identity that produced it.
func Predict(p Predictor, v features.Vector) (prob float64, modelID, modelVersion string) {
	vector := v.Ordered()
	return p.PredictProba(vector), p.ModelID(), p.ModelVersion()
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
