package anomaly

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/mmdatafocus/invoice-sieve/internal/configstore"
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

// expectNoConfigOverride sets up the vendor-then-global miss pair
// configstore.GetInt issues for one key when no config row exists at
// either scope, so the call falls through to its default.
func expectNoConfigOverride(mock sqlmock.Sqlmock, tenantID, vendorID, key string) {
	cols := []string{"tenant_id", "scope", "config_key", "config_value", "updated_at"}
	mock.ExpectQuery("SELECT \\* FROM `configs`").
		WithArgs(tenantID, "vendor:"+vendorID, key).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery("SELECT \\* FROM `configs`").
		WithArgs(tenantID, "global", key).
		WillReturnRows(sqlmock.NewRows(cols))
}

func TestScore_StableVendorNoAnomalies(t *testing.T) {
	gdb, mock, cleanup := newMockedDB(t)
	defer cleanup()

	baselineCols := []string{"tenant_id", "vendor_id", "sample_count", "median", "mad_like", "updated_at"}
	mock.ExpectQuery("SELECT \\* FROM `vendor_amount_baselines`").
		WillReturnRows(sqlmock.NewRows(baselineCols).AddRow("t1", "v1", 50, 100.0, 5.0, nil))

	expectNoConfigOverride(mock, "t1", "v1", "bank_change_lookback_months")

	remitCols := []string{"count"}
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `vendor_remit_sightings`").
		WillReturnRows(sqlmock.NewRows(remitCols).AddRow(1))

	expectNoConfigOverride(mock, "t1", "v1", "cold_start_invoices")

	hash := "hash-1"
	scorer := NewScorer(gdb, configstore.NewStore(gdb, nil))
	prob, reasons, err := scorer.Score(context.Background(), "t1", "v1", "inv-1", 101.0, &hash)
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if len(reasons) != 0 {
		t.Fatalf("expected no reason codes, got %v", reasons)
	}
	if prob > 0.2 {
		t.Fatalf("expected low anomaly probability for a stable vendor, got %v", prob)
	}
}

func TestScore_UnseenRemitAppendsBankChange(t *testing.T) {
	gdb, mock, cleanup := newMockedDB(t)
	defer cleanup()

	baselineCols := []string{"tenant_id", "vendor_id", "sample_count", "median", "mad_like", "updated_at"}
	mock.ExpectQuery("SELECT \\* FROM `vendor_amount_baselines`").
		WillReturnRows(sqlmock.NewRows(baselineCols).AddRow("t1", "v1", 50, 100.0, 5.0, nil))

	expectNoConfigOverride(mock, "t1", "v1", "bank_change_lookback_months")

	remitCols := []string{"count"}
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `vendor_remit_sightings`").
		WillReturnRows(sqlmock.NewRows(remitCols).AddRow(0))

	expectNoConfigOverride(mock, "t1", "v1", "cold_start_invoices")

	hash := "new-hash"
	scorer := NewScorer(gdb, configstore.NewStore(gdb, nil))
	prob, reasons, err := scorer.Score(context.Background(), "t1", "v1", "inv-1", 100.0, &hash)
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	found := false
	for _, r := range reasons {
		if r == "BANK_CHANGE" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected BANK_CHANGE reason, got %v", reasons)
	}
	if prob < bankChangeFloor*coldVendorDamp && prob < bankChangeFloor {
		t.Fatalf("expected amount score floor from bank change, got %v", prob)
	}
}
