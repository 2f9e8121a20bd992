// Package features computes the Feature Engine's per-pair feature
// vector: header similarity, line-item assignment statistics, and a
// text-similarity proxy, assembled in a fixed, versioned ordering the
// duplicate scorer depends on.
package features

// Order is the canonical, versioned ordering of feature names. It is
// ported verbatim from the pre-distillation Python implementation's
// FEATURE_ORDER so a model artifact trained there scores identically
// here. A model artifact carries only a weight slice in this order, not
// feature names; no name matching is done when one is loaded. Names in
// Order that a Vector lacks are filled with 0 by Ordered.
var Order = []string{
	"abs_total_diff_pct",
	"days_diff",
	"same_po",
	"same_currency",
	"same_tax_total",
	"bank_change_flag",
	"payee_name_change_flag",
	"invnum_edit",
	"line_coverage_pct",
	"unmatched_amount_frac",
	"count_new_items",
	"median_unit_price_diff",
	"text_cosine",
}

// Vector is a named feature map plus its canonical-order slice form,
// kept together so callers needing either representation never
// recompute the projection.
type Vector map[string]float64

// Ordered projects v onto Order, filling any feature Order names that
// v does not contain with 0.
func (v Vector) Ordered() []float64 {
	out := make([]float64, len(Order))
	for i, name := range Order {
		out[i] = v[name]
	}
	return out
}
