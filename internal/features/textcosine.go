package features

import "github.com/mmdatafocus/invoice-sieve/internal/normalize"

// TextCosine computes the character-3-gram set-overlap proxy between
// two normalized text blobs. The denominator is the sum of each side's
// character length, not the size of the n-gram union — this is a
// documented quirk of the proxy (not a true cosine or Jaccard measure)
// retained intentionally rather than "fixed," since downstream
// thresholds were calibrated against this exact formula.
func TextCosine(aText, bText string) float64 {
	aGrams := normalize.CharNGrams(aText, 3)
	bGrams := normalize.CharNGrams(bText, 3)

	overlap := 0
	for g := range aGrams {
		if _, ok := bGrams[g]; ok {
			overlap++
		}
	}

	denom := len(aText) + len(bText)
	if denom == 0 {
		return 0
	}

	score := 2 * float64(overlap) / float64(denom)
	if score > 1 {
		return 1
	}
	return score
}
