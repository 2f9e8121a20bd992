package features

import (
	"testing"
	"time"
)

func TestHeaderFeatures_IdenticalInvoicesScoreZeroDiff(t *testing.T) {
	po := "PO-1"
	hash := "abc"
	name := "Acme"
	now := time.Now()
	h := Header{
		Total: 100, InvoiceDate: now, PONumber: &po, Currency: "USD",
		RemitAccountHash: &hash, RemitName: &name, InvoiceNumberNorm: "42",
	}
	v := HeaderFeatures(h, h)
	if v["abs_total_diff_pct"] != 0 {
		t.Fatalf("expected 0 total diff, got %v", v["abs_total_diff_pct"])
	}
	if v["same_po"] != 1 || v["same_currency"] != 1 {
		t.Fatalf("expected same_po and same_currency = 1, got %v / %v", v["same_po"], v["same_currency"])
	}
	if v["bank_change_flag"] != 0 {
		t.Fatalf("expected no bank change for identical hash, got %v", v["bank_change_flag"])
	}
	if v["invnum_edit"] != 0 {
		t.Fatalf("expected 0 edit distance for identical invnum, got %v", v["invnum_edit"])
	}
}

func TestHeaderFeatures_AbsentVsPresentHashCountsAsChange(t *testing.T) {
	hashA := "abc"
	a := Header{RemitAccountHash: &hashA}
	b := Header{RemitAccountHash: nil}
	v := HeaderFeatures(a, b)
	if v["bank_change_flag"] != 1 {
		t.Fatalf("absent-vs-present hash should count as a bank change, got %v", v["bank_change_flag"])
	}
}

func TestHeaderFeatures_BothAbsentHashIsNotAChange(t *testing.T) {
	v := HeaderFeatures(Header{}, Header{})
	if v["bank_change_flag"] != 0 {
		t.Fatalf("both hashes absent should not count as a bank change, got %v", v["bank_change_flag"])
	}
}

func TestLineAssignFeatures_PerfectMatch(t *testing.T) {
	lines := []Line{
		{DescNorm: "widget a", UnitPrice: 10, Qty: 2, Amount: 20},
		{DescNorm: "widget b", UnitPrice: 5, Qty: 1, Amount: 5},
	}
	v := LineAssignFeatures(lines, lines, DefaultWeights())
	if v["line_coverage_pct"] != 1 {
		t.Fatalf("expected full coverage for identical lines, got %v", v["line_coverage_pct"])
	}
	if v["unmatched_amount_frac"] != 0 {
		t.Fatalf("expected 0 unmatched amount, got %v", v["unmatched_amount_frac"])
	}
	if v["count_new_items"] != 0 {
		t.Fatalf("expected 0 new items, got %v", v["count_new_items"])
	}
	if v["median_unit_price_diff"] != 0 {
		t.Fatalf("expected 0 median unit price diff, got %v", v["median_unit_price_diff"])
	}
}

func TestLineAssignFeatures_EmptyCandidateLines(t *testing.T) {
	lines := []Line{{DescNorm: "widget", UnitPrice: 10, Qty: 1, Amount: 10}}
	v := LineAssignFeatures(lines, nil, DefaultWeights())
	if v["line_coverage_pct"] != 0 {
		t.Fatalf("expected 0 coverage with no candidate lines, got %v", v["line_coverage_pct"])
	}
	if v["count_new_items"] != 1 {
		t.Fatalf("expected 1 new item, got %v", v["count_new_items"])
	}
}

// The denominator is the sum of the two character lengths, not the
// 3-gram union size, so identical blobs score below 1: this 17-character
// blob has 15 distinct 3-grams, giving 2*15/(17+17).
func TestTextCosine_IdenticalBlobsScoreByCharLength(t *testing.T) {
	want := 2 * 15.0 / 34.0
	if got := TextCosine("acme widget order", "acme widget order"); got != want {
		t.Fatalf("expected %v for identical blobs, got %v", want, got)
	}
}

func TestTextCosine_DisjointBlobsScoreZero(t *testing.T) {
	if got := TextCosine("aaa", "zzz"); got != 0 {
		t.Fatalf("expected 0 for disjoint blobs, got %v", got)
	}
}

func TestOrderedProjectionFillsMissingWithZero(t *testing.T) {
	v := Vector{"abs_total_diff_pct": 0.5}
	out := v.Ordered()
	if len(out) != len(Order) {
		t.Fatalf("expected %d features, got %d", len(Order), len(out))
	}
	if out[0] != 0.5 {
		t.Fatalf("expected first feature to be 0.5, got %v", out[0])
	}
	for i := 1; i < len(out); i++ {
		if out[i] != 0 {
			t.Fatalf("expected missing feature %s to default to 0, got %v", Order[i], out[i])
		}
	}
}
