// Package rules implements the Rule Engine: a small set of
// high-precision predicates that can force a minimum decision
// regardless of what the duplicate/anomaly scorers alone would have
// produced. A rule-forced outcome is authoritative; the decision
// engine only ever raises the score-based decision to meet it, never
// lowers it.
package rules

import (
	"time"

	"github.com/mmdatafocus/invoice-sieve/models"
)

// Candidate is the minimal shape of a retrieved same-vendor invoice
// the rule engine compares the query invoice against.
type Candidate struct {
	InvoiceID         string
	InvoiceNumberNorm string
	PONumber          *string
	Total             float64
	InvoiceDate       time.Time
	PDFHash           *string
	ShingleJaccard    float64
}

// Query is the invoice being scored.
type Query struct {
	InvoiceNumberNorm string
	PONumber          *string
	Total             float64
	InvoiceDate       time.Time
	PDFHash           *string
}

const (
	poTolerancePct = 0.005
	poWindowDays   = 30
	pdfJaccardMin  = 0.9
)

// Params are the rule engine's tunable thresholds, resolved per
// (tenant, vendor) through internal/configstore ahead of evaluation.
type Params struct {
	SamePOTotalTolPct float64
	SamePOWindowDays  int
}

// DefaultParams mirrors configstore's DefaultSamePOTotalTol/
// DefaultSamePOWindowDays, used when no config row exists at either
// scope.
func DefaultParams() Params {
	return Params{SamePOTotalTolPct: poTolerancePct, SamePOWindowDays: poWindowDays}
}

// sameInvnumNorm is EXACT_INVNUM: two invoices from the same vendor
// normalize to the identical invoice number.
func sameInvnumNorm(q Query, c Candidate) bool {
	return q.InvoiceNumberNorm != "" && q.InvoiceNumberNorm == c.InvoiceNumberNorm
}

// samePONearTotal is SAME_PO_NEAR_TOTAL: same PO number, totals within
// p.SamePOTotalTolPct of each other, and invoice dates no more than
// p.SamePOWindowDays days apart.
func samePONearTotal(q Query, c Candidate, p Params) bool {
	if q.PONumber == nil || c.PONumber == nil || *q.PONumber != *c.PONumber {
		return false
	}
	tolBase := q.Total
	if tolBase < 0 {
		tolBase = -tolBase
	}
	if tolBase < 1.0 {
		tolBase = 1.0
	}
	diff := q.Total - c.Total
	if diff < 0 {
		diff = -diff
	}
	if diff > p.SamePOTotalTolPct*tolBase {
		return false
	}
	gap := q.InvoiceDate.Sub(c.InvoiceDate)
	if gap < 0 {
		gap = -gap
	}
	return gap <= time.Duration(p.SamePOWindowDays)*24*time.Hour
}

// pdfNearDup is PDF_NEAR_DUP: identical PDF hash, or a shingle
// Jaccard similarity at or above 0.9 when hashes differ (e.g. a
// re-rendered PDF with a changed footer).
func pdfNearDup(q Query, c Candidate) bool {
	if q.PDFHash != nil && c.PDFHash != nil && *q.PDFHash == *c.PDFHash {
		return true
	}
	return c.ShingleJaccard >= pdfJaccardMin
}

// Finding is one fired rule: the reason code it contributes and the
// minimum decision it forces.
type Finding struct {
	ReasonCode string
	Forces     models.DecisionLabel
	InvoiceID  string
}

// rank orders decision labels for the strictest-outcome comparison;
// higher ranks win.
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

// Result is the rule engine's verdict across all candidates: the
// union of reason codes fired and the strictest decision any of them
// forced, or DecisionPass if none fired.
type Result struct {
	ReasonCodes []string
	Forced      models.DecisionLabel
}

// EvaluateCandidates runs EXACT_INVNUM, SAME_PO_NEAR_TOTAL, and
// PDF_NEAR_DUP against every candidate passed in (the orchestrator
// passes only its top-ranked match), each of which forces
// HOLD on a match. params carries the caller-resolved thresholds;
// pass DefaultParams() to use the scale defaults.
func EvaluateCandidates(q Query, candidates []Candidate, params Params) Result {
	res := Result{Forced: models.DecisionPass}
	seen := make(map[string]bool, 3)
	add := func(code string) {
		if !seen[code] {
			seen[code] = true
			res.ReasonCodes = append(res.ReasonCodes, code)
		}
	}
	for _, c := range candidates {
		if sameInvnumNorm(q, c) {
			add("EXACT_INVNUM")
			res.Forced = strictest(res.Forced, models.DecisionHold)
		}
		if samePONearTotal(q, c, params) {
			add("SAME_PO_NEAR_TOTAL")
			res.Forced = strictest(res.Forced, models.DecisionHold)
		}
		if pdfNearDup(q, c) {
			add("PDF_NEAR_DUP")
			res.Forced = strictest(res.Forced, models.DecisionHold)
		}
	}
	return res
}

// ApplyBankChange folds in BANK_CHANGE, which forces at least REVIEW
// (not HOLD: an unrecognized remit account alone is not conclusive of
// fraud or duplication, just worth a human look).
func ApplyBankChange(res Result, bankChange bool) Result {
	if !bankChange {
		return res
	}
	out := res
	out.ReasonCodes = append(append([]string{}, res.ReasonCodes...), "BANK_CHANGE")
	out.Forced = strictest(out.Forced, models.DecisionReview)
	return out
}

// strictest returns whichever of a, b ranks higher under HOLD > REVIEW > PASS.
func strictest(a, b models.DecisionLabel) models.DecisionLabel {
	if rank(b) > rank(a) {
		return b
	}
	return a
}
