package dupscore

import (
	"math"
	"testing"

	"github.com/mmdatafocus/invoice-sieve/internal/features"
)

func TestHeuristicFallback_IdenticalInvoiceScoresHigh(t *testing.T) {
	v := features.Vector{
		"abs_total_diff_pct":    0,
		"same_po":               1,
		"same_currency":         1,
		"same_tax_total":        1,
		"invnum_edit":           0,
		"line_coverage_pct":     1,
		"unmatched_amount_frac": 0,
		"text_cosine":           1,
	}
	prob, id, version := Predict(NewHeuristicFallback(), v)
	if id != "heuristic-fallback" || version != "v1" {
		t.Fatalf("unexpected model identity: %s/%s", id, version)
	}
	if prob < 0.9 {
		t.Fatalf("expected high duplicate probability for near-identical invoice, got %v", prob)
	}
}

func TestHeuristicFallback_DissimilarInvoiceScoresLow(t *testing.T) {
	v := features.Vector{
		"abs_total_diff_pct":    1,
		"invnum_edit":           1,
		"unmatched_amount_frac": 1,
		"text_cosine":           0,
	}
	prob, _, _ := Predict(NewHeuristicFallback(), v)
	if prob > 0.1 {
		t.Fatalf("expected low duplicate probability for dissimilar invoice, got %v", prob)
	}
}

func TestHeuristicFallback_Deterministic(t *testing.T) {
	v := features.Vector{"same_po": 1, "text_cosine": 0.5}
	a, _, _ := Predict(NewHeuristicFallback(), v)
	b, _, _ := Predict(NewHeuristicFallback(), v)
	if a != b {
		t.Fatalf("expected deterministic output, got %v vs %v", a, b)
	}
}

func TestLoad_MissingArtifactFallsBackToHeuristic(t *testing.T) {
	p := Load("/nonexistent/path/to/model.json")
	if p.ModelID() != "heuristic-fallback" {
		t.Fatalf("expected fallback model on missing artifact, got %s", p.ModelID())
	}
}

func TestLoad_EmptyPathFallsBackToHeuristic(t *testing.T) {
	p := Load("")
	if p.ModelID() != "heuristic-fallback" {
		t.Fatalf("expected fallback model for empty path, got %s", p.ModelID())
	}
}

func TestClamp01(t *testing.T) {
	if clamp01(-0.5) != 0 {
		t.Fatal("expected clamp to 0")
	}
	if clamp01(1.5) != 1 {
		t.Fatal("expected clamp to 1")
	}
	if math.Abs(clamp01(0.5)-0.5) > 1e-9 {
		t.Fatal("expected 0.5 unchanged")
	}
}
