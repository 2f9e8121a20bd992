package rules

import (
	"testing"
	"time"

	"github.com/mmdatafocus/invoice-sieve/models"
)

func TestEvaluateCandidates_ExactInvnumForcesHold(t *testing.T) {
	q := Query{InvoiceNumberNorm: "inv123", InvoiceDate: time.Now()}
	candidates := []Candidate{{InvoiceID: "c1", InvoiceNumberNorm: "inv123"}}
	res := EvaluateCandidates(q, candidates, DefaultParams())
	if res.Forced != models.DecisionHold {
		t.Fatalf("expected HOLD, got %s", res.Forced)
	}
	if len(res.ReasonCodes) != 1 || res.ReasonCodes[0] != "EXACT_INVNUM" {
		t.Fatalf("expected [EXACT_INVNUM], got %v", res.ReasonCodes)
	}
}

func TestEvaluateCandidates_SamePONearTotalWithinWindow(t *testing.T) {
	po := "PO-1"
	now := time.Now()
	q := Query{PONumber: &po, Total: 1000, InvoiceDate: now}
	candidates := []Candidate{{PONumber: &po, Total: 1002, InvoiceDate: now.Add(-10 * 24 * time.Hour)}}
	res := EvaluateCandidates(q, candidates, DefaultParams())
	if res.Forced != models.DecisionHold {
		t.Fatalf("expected HOLD, got %s", res.Forced)
	}
}

func TestEvaluateCandidates_SamePOOutsideToleranceDoesNotFire(t *testing.T) {
	po := "PO-1"
	now := time.Now()
	q := Query{PONumber: &po, Total: 1000, InvoiceDate: now}
	candidates := []Candidate{{PONumber: &po, Total: 1100, InvoiceDate: now}}
	res := EvaluateCandidates(q, candidates, DefaultParams())
	if res.Forced != models.DecisionPass {
		t.Fatalf("expected PASS, got %s", res.Forced)
	}
}

func TestEvaluateCandidates_SamePOOutsideWindowDoesNotFire(t *testing.T) {
	po := "PO-1"
	now := time.Now()
	q := Query{PONumber: &po, Total: 1000, InvoiceDate: now}
	candidates := []Candidate{{PONumber: &po, Total: 1000, InvoiceDate: now.Add(-40 * 24 * time.Hour)}}
	res := EvaluateCandidates(q, candidates, DefaultParams())
	if res.Forced != models.DecisionPass {
		t.Fatalf("expected PASS, got %s", res.Forced)
	}
}

func TestEvaluateCandidates_PDFHashMatchForcesHold(t *testing.T) {
	hash := "abc"
	q := Query{PDFHash: &hash}
	candidates := []Candidate{{PDFHash: &hash}}
	res := EvaluateCandidates(q, candidates, DefaultParams())
	if res.Forced != models.DecisionHold {
		t.Fatalf("expected HOLD, got %s", res.Forced)
	}
}

func TestEvaluateCandidates_ShingleJaccardAboveThresholdForcesHold(t *testing.T) {
	q := Query{}
	candidates := []Candidate{{ShingleJaccard: 0.95}}
	res := EvaluateCandidates(q, candidates, DefaultParams())
	if res.Forced != models.DecisionHold {
		t.Fatalf("expected HOLD, got %s", res.Forced)
	}
}

func TestEvaluateCandidates_ShingleJaccardBelowThresholdDoesNotFire(t *testing.T) {
	q := Query{}
	candidates := []Candidate{{ShingleJaccard: 0.5}}
	res := EvaluateCandidates(q, candidates, DefaultParams())
	if res.Forced != models.DecisionPass {
		t.Fatalf("expected PASS, got %s", res.Forced)
	}
}

func TestApplyBankChange_ForcesReviewNotHold(t *testing.T) {
	res := ApplyBankChange(Result{Forced: models.DecisionPass}, true)
	if res.Forced != models.DecisionReview {
		t.Fatalf("expected REVIEW, got %s", res.Forced)
	}
	if len(res.ReasonCodes) != 1 || res.ReasonCodes[0] != "BANK_CHANGE" {
		t.Fatalf("expected [BANK_CHANGE], got %v", res.ReasonCodes)
	}
}

func TestApplyBankChange_DoesNotDowngradeExistingHold(t *testing.T) {
	res := ApplyBankChange(Result{Forced: models.DecisionHold, ReasonCodes: []string{"EXACT_INVNUM"}}, true)
	if res.Forced != models.DecisionHold {
		t.Fatalf("expected HOLD preserved, got %s", res.Forced)
	}
	if len(res.ReasonCodes) != 2 {
		t.Fatalf("expected both reason codes retained, got %v", res.ReasonCodes)
	}
}

func TestApplyBankChange_NoOpWhenFalse(t *testing.T) {
	res := ApplyBankChange(Result{Forced: models.DecisionPass}, false)
	if len(res.ReasonCodes) != 0 {
		t.Fatalf("expected no reason codes, got %v", res.ReasonCodes)
	}
}
