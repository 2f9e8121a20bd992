package features

import (
	"math"
	"sort"

	"github.com/mmdatafocus/invoice-sieve/internal/features/assignment"
)

const (
	defaultAlpha = 0.7
	defaultBeta  = 0.2
	defaultGamma = 0.1
)

// Weights are the line-assignment cost coefficients, resolved per
// (tenant, vendor) through internal/configstore ahead of the call
// rather than hardcoded here.
type Weights struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

// DefaultWeights mirrors configstore's DefaultAlpha/Beta/Gamma,
// used when no config row exists at either scope.
func DefaultWeights() Weights {
	return Weights{Alpha: defaultAlpha, Beta: defaultBeta, Gamma: defaultGamma}
}

// Line is the minimal shape of an invoice line the line-assignment
// feature computation needs.
type Line struct {
	DescNorm  string
	UnitPrice float64
	Qty       float64
	Amount    float64
}

// LineAssignFeatures computes the four line-item features for the
// pair (aLines, bLines), solving a minimum-cost rectangular assignment
// between them. aLines is always the query invoice's lines.
func LineAssignFeatures(aLines, bLines []Line, w Weights) Vector {
	if len(aLines) == 0 || len(bLines) == 0 {
		totalAmount := sumAmount(aLines)
		unmatchedFrac := 1.0
		if totalAmount != 0 {
			unmatchedFrac = totalAmount / math.Max(totalAmount, 1.0)
		}
		return Vector{
			"line_coverage_pct":      0,
			"unmatched_amount_frac":  unmatchedFrac,
			"count_new_items":        float64(len(aLines)),
			"median_unit_price_diff": totalAmount,
		}
	}

	n, m := len(aLines), len(bLines)
	cost := make([][]float64, n)
	for i := 0; i < n; i++ {
		cost[i] = make([]float64, m)
		for j := 0; j < m; j++ {
			descCost := 1 - jaroWinklerSimilarity(aLines[i].DescNorm, bLines[j].DescNorm)
			upA, upB := aLines[i].UnitPrice, bLines[j].UnitPrice
			qtyA, qtyB := aLines[i].Qty, bLines[j].Qty
			upTerm := math.Min(math.Abs(upA-upB)/math.Max(math.Abs(upA), 1.0), 5.0)
			qtyTerm := math.Min(math.Abs(qtyA-qtyB)/math.Max(math.Abs(qtyA), 1.0), 5.0)
			cost[i][j] = w.Alpha*descCost + w.Beta*upTerm + w.Gamma*qtyTerm
		}
	}

	result := assignment.Solve(cost)

	matchedAmount := 0.0
	matchedCount := 0
	var priceDiffs []float64
	for i, j := range result.RowToCol {
		if j < 0 {
			continue
		}
		matchedAmount += aLines[i].Amount
		matchedCount++
		priceDiffs = append(priceDiffs, math.Abs(aLines[i].UnitPrice-bLines[j].UnitPrice))
	}

	totalAmount := sumAmount(aLines)
	unmatchedAmount := math.Max(totalAmount-matchedAmount, 0)
	unmatchedFrac := 0.0
	if totalAmount != 0 {
		unmatchedFrac = unmatchedAmount / math.Max(totalAmount, 1.0)
	} else {
		unmatchedFrac = 1.0
	}

	return Vector{
		"line_coverage_pct":      1 - unmatchedFrac,
		"unmatched_amount_frac":  unmatchedFrac,
		"count_new_items":        float64(maxInt(0, n-matchedCount)),
		"median_unit_price_diff": median(priceDiffs),
	}
}

func sumAmount(lines []Line) float64 {
	total := 0.0
	for _, l := range lines {
		total += l.Amount
	}
	return total
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
