package features

import (
	"math"
	"time"

	"github.com/xrash/smetrics"
)

// jaroWinklerBoostThreshold and jaroWinklerPrefixSize are the standard
// Winkler boost parameters; xrash/smetrics requires both explicitly
// where rapidfuzz.JaroWinkler.normalized_similarity bakes them in.
const (
	jaroWinklerBoostThreshold = 0.7
	jaroWinklerPrefixSize     = 4
)

func jaroWinklerSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	return smetrics.JaroWinkler(a, b, jaroWinklerBoostThreshold, jaroWinklerPrefixSize)
}

// Header is the minimal shape of an invoice the header-feature
// computation needs from either side of a pair.
type Header struct {
	Total             float64
	InvoiceDate       time.Time
	PONumber          *string
	Currency          string
	TaxTotal          *float64
	RemitAccountHash  *string
	RemitName         *string
	InvoiceNumberNorm string
}

// HeaderFeatures computes the eight dimensionless header-level
// features for the pair (a, b). a is always the query invoice; b is
// the candidate.
func HeaderFeatures(a, b Header) Vector {
	v := Vector{}

	v["abs_total_diff_pct"] = math.Abs(a.Total-b.Total) / math.Max(math.Abs(a.Total), 1.0)

	days := a.InvoiceDate.Sub(b.InvoiceDate).Hours() / 24.0
	v["days_diff"] = math.Abs(math.Round(days))

	if a.PONumber != nil && b.PONumber != nil && *a.PONumber != "" && *a.PONumber == *b.PONumber {
		v["same_po"] = 1
	}

	if a.Currency == b.Currency {
		v["same_currency"] = 1
	}

	aTax, bTax := 0.0, 0.0
	if a.TaxTotal != nil {
		aTax = *a.TaxTotal
	}
	if b.TaxTotal != nil {
		bTax = *b.TaxTotal
	}
	if round2(aTax) == round2(bTax) {
		v["same_tax_total"] = 1
	}

	aHashPresent, bHashPresent := a.RemitAccountHash != nil, b.RemitAccountHash != nil
	if aHashPresent != bHashPresent || (aHashPresent && bHashPresent && *a.RemitAccountHash != *b.RemitAccountHash) {
		v["bank_change_flag"] = 1
	}

	aName, bName := "", ""
	if a.RemitName != nil {
		aName = *a.RemitName
	}
	if b.RemitName != nil {
		bName = *b.RemitName
	}
	if aName != bName {
		v["payee_name_change_flag"] = 1
	}

	v["invnum_edit"] = 1 - jaroWinklerSimilarity(a.InvoiceNumberNorm, b.InvoiceNumberNorm)

	return v
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
