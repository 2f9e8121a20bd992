package orchestrator

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/mmdatafocus/invoice-sieve/internal/configstore"
	"github.com/mmdatafocus/invoice-sieve/internal/dupscore"
	"github.com/mmdatafocus/invoice-sieve/internal/textindex"
	"github.com/mmdatafocus/invoice-sieve/models"
)

func newMockedDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	dial := mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true})
	gdb, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return gdb, mock, func() { sqlDB.Close() }
}

func newTestOrchestrator(gdb *gorm.DB) *Orchestrator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	configs := configstore.NewStore(gdb, nil)
	return New(gdb, configs, textindex.NewNoopIndexer(), dupscore.NewHeuristicFallback(), logger, nil)
}

var emptyConfigRows = []string{"tenant_id", "scope", "config_key", "config_value", "updated_at"}

// expectNoConfigOverride mocks the vendor-then-global lookup a single
// GetString/GetFloat/GetInt call issues when no override row exists at
// either scope, so the caller falls back to its compiled-in default.
func expectNoConfigOverride(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT \\* FROM `configs`").WillReturnRows(sqlmock.NewRows(emptyConfigRows))
	mock.ExpectQuery("SELECT \\* FROM `configs`").WillReturnRows(sqlmock.NewRows(emptyConfigRows))
}

func expectLockRoundTrip(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(1))
}

func expectReleaseLock(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT RELEASE_LOCK").WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(1))
}

// expectAnomalyBaselineAndColdStart mocks anomaly.Scorer.Score's DB
// reads for a vendor with no stored baseline row and no remit hash on
// the query invoice: the stored-baseline lookup misses, the inline
// mean/stddev fallback runs, and cold_start_invoices resolves to its
// default.
func expectAnomalyBaselineAndColdStart(mock sqlmock.Sqlmock, median, madLike float64, sampleCount int) {
	mock.ExpectQuery("SELECT \\* FROM `vendor_amount_baselines`").WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectQuery("SELECT AVG\\(total\\)").WillReturnRows(
		sqlmock.NewRows([]string{"median", "mad_like", "sample_count"}).AddRow(median, madLike, sampleCount),
	)
	expectNoConfigOverride(mock) // cold_start_invoices
}

func baseRequest(tenantID, invoiceID, poNumber string, total float64, date time.Time) Request {
	return Request{
		TenantID:      tenantID,
		Actor:         "tester",
		InvoiceID:     invoiceID,
		VendorID:      "vendor-1",
		VendorName:    "Acme Supplies",
		InvoiceNumber: "INV-" + invoiceID,
		InvoiceDate:   date,
		Currency:      "USD",
		Total:         total,
		PONumber:      &poNumber,
		LineItems: []LineItemInput{
			{Desc: "Widgets", Qty: 1, UnitPrice: total, Amount: total},
		},
		RawPayload: []byte(`{"invoice_id":"` + invoiceID + `"}`),
	}
}

// TestScore_IdempotentResubmissionReturnsSameDecision covers spec.md
// §8's idempotent-resubmission scenario: two /scoreInvoice calls under
// the same idempotency key must resolve to the same decision_id and
// risk_score instead of scoring twice.
func TestScore_IdempotentResubmissionReturnsSameDecision(t *testing.T) {
	gdb, mock, cleanup := newMockedDB(t)
	defer cleanup()
	orch := newTestOrchestrator(gdb)

	req := baseRequest("tenant-1", "inv-100", "PO-1", 100.00, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	req.IdempotencyKey = "idem-key-1"

	// First submission: runs the full pipeline with zero retrieved
	// candidates, so the score-based decision alone (PASS, on a
	// baseline-matching total) determines the outcome.
	mock.ExpectBegin()
	expectLockRoundTrip(mock)
	mock.ExpectExec("INSERT INTO `scoring_idempotency_keys`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `invoice_snapshots`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `invoice_lines`").WillReturnResult(sqlmock.NewResult(1, 1))
	expectAnomalyBaselineAndColdStart(mock, 100.00, 5.0, 20)
	expectNoConfigOverride(mock) // candidate_cap
	mock.ExpectQuery("SELECT invoice_id").WillReturnRows(sqlmock.NewRows([]string{
		"invoice_id", "invoice_number_norm", "po_number", "currency", "total", "tax_total",
		"invoice_date", "remit_account_hash", "remit_name", "pdf_hash",
	}))
	expectNoConfigOverride(mock) // T_hold
	expectNoConfigOverride(mock) // T_review
	mock.ExpectExec("INSERT INTO `decisions`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `audit_entries`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `scoring_idempotency_keys`").WillReturnResult(sqlmock.NewResult(1, 1))
	expectReleaseLock(mock)
	mock.ExpectCommit()

	first, err := orch.Score(context.Background(), req)
	if err != nil {
		t.Fatalf("first Score: %v", err)
	}
	if first.Decision != models.DecisionPass {
		t.Fatalf("expected PASS on the first submission, got %s", first.Decision)
	}

	// Resubmission under the same key: BeginIdempotency's insert hits
	// the unique constraint, the existing SUCCEEDED row is read back,
	// and the pipeline never re-runs.
	mock.ExpectBegin()
	expectLockRoundTrip(mock)
	mock.ExpectExec("INSERT INTO `scoring_idempotency_keys`").
		WillReturnError(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"})
	decisionIDCol := first.DecisionID
	mock.ExpectQuery("SELECT \\* FROM `scoring_idempotency_keys`").WillReturnRows(
		sqlmock.NewRows([]string{"tenant_id", "idempotency_key", "status", "decision_id", "error_text", "created_at", "updated_at"}).
			AddRow(req.TenantID, req.IdempotencyKey, "SUCCEEDED", decisionIDCol, nil, time.Now(), time.Now()),
	)
	mock.ExpectQuery("SELECT \\* FROM `decisions`").WillReturnRows(
		sqlmock.NewRows([]string{
			"tenant_id", "decision_id", "invoice_id", "risk_score", "label",
			"dup_prob", "anom_prob", "text_prob", "reason_codes", "top_matches", "explanation",
			"rule_override", "model_id", "model_version", "ruleset_version", "created_at",
		}).AddRow(
			req.TenantID, decisionIDCol, req.InvoiceID, first.RiskScore, string(first.Decision),
			first.RiskScore/100, 0.0, 0.0, "[]", "[]", "[]",
			false, "heuristic-fallback", "v1", "r1", time.Now(),
		),
	)
	expectReleaseLock(mock)
	mock.ExpectCommit()

	second, err := orch.Score(context.Background(), req)
	if err != nil {
		t.Fatalf("second Score: %v", err)
	}
	if second.DecisionID != first.DecisionID {
		t.Fatalf("expected resubmission to reuse decision_id %s, got %s", first.DecisionID, second.DecisionID)
	}
	if second.RiskScore != first.RiskScore || second.Decision != first.Decision {
		t.Fatalf("expected resubmission to reuse risk_score/decision, got %v/%s vs %v/%s",
			second.RiskScore, second.Decision, first.RiskScore, first.Decision)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// TestScore_SamePONearTotalForcesHoldRegardlessOfFusedScore covers
// spec.md §8's same-PO-near-total scenario: SAME_PO_NEAR_TOTAL must
// force HOLD even though nothing about the fused duplicate/anomaly
// score alone would clear the HOLD threshold.
func TestScore_SamePONearTotalForcesHoldRegardlessOfFusedScore(t *testing.T) {
	gdb, mock, cleanup := newMockedDB(t)
	defer cleanup()
	orch := newTestOrchestrator(gdb)

	invoiceDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	req := baseRequest("tenant-1", "inv-200", "PO-77", 500.00, invoiceDate)

	mock.ExpectBegin()
	expectLockRoundTrip(mock)
	mock.ExpectExec("INSERT INTO `scoring_idempotency_keys`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `invoice_snapshots`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `invoice_lines`").WillReturnResult(sqlmock.NewResult(1, 1))
	expectAnomalyBaselineAndColdStart(mock, 500.00, 25.0, 20)
	expectNoConfigOverride(mock) // candidate_cap

	candidateDate := invoiceDate.Add(-24 * time.Hour)
	candidatePO := "PO-77"
	mock.ExpectQuery("SELECT invoice_id").WillReturnRows(
		sqlmock.NewRows([]string{
			"invoice_id", "invoice_number_norm", "po_number", "currency", "total", "tax_total",
			"invoice_date", "remit_account_hash", "remit_name", "pdf_hash",
		}).AddRow("inv-199", "invxyz", &candidatePO, "USD", 500.10, nil, candidateDate, nil, nil, nil),
	)

	mock.ExpectQuery("SELECT \\* FROM `invoice_lines`").WillReturnRows(
		sqlmock.NewRows([]string{"tenant_id", "invoice_id", "line_no"}),
	)
	mock.ExpectQuery("SELECT \\* FROM `text_index_entries`").WillReturnRows(
		sqlmock.NewRows([]string{"tenant_id", "invoice_id", "text_blob"}),
	)
	expectNoConfigOverride(mock) // alpha
	expectNoConfigOverride(mock) // beta
	expectNoConfigOverride(mock) // gamma
	expectNoConfigOverride(mock) // same_po_total_tol
	expectNoConfigOverride(mock) // same_po_window_days
	expectNoConfigOverride(mock) // T_hold
	expectNoConfigOverride(mock) // T_review

	mock.ExpectExec("INSERT INTO `decisions`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT \\* FROM `cases`").WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectExec("INSERT INTO `cases`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `audit_entries`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `scoring_idempotency_keys`").WillReturnResult(sqlmock.NewResult(1, 1))
	expectReleaseLock(mock)
	mock.ExpectCommit()

	result, err := orch.Score(context.Background(), req)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if result.Decision != models.DecisionHold {
		t.Fatalf("expected SAME_PO_NEAR_TOTAL to force HOLD, got %s", result.Decision)
	}
	found := false
	for _, code := range result.ReasonCodes {
		if code == "SAME_PO_NEAR_TOTAL" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected SAME_PO_NEAR_TOTAL in reason codes, got %v", result.ReasonCodes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
