package configstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
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

func TestGetFloat_VendorScopeWins(t *testing.T) {
	gdb, mock, cleanup := newMockedDB(t)
	defer cleanup()

	cols := []string{"tenant_id", "scope", "config_key", "config_value", "updated_at"}
	mock.ExpectQuery("SELECT \\* FROM `configs`").
		WithArgs("t1", "vendor:v1", "T_hold").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("t1", "vendor:v1", "T_hold", "90", nil))

	store := NewStore(gdb, nil)
	v, err := store.GetFloat(context.Background(), "t1", "v1", "T_hold", DefaultTHold)
	if err != nil {
		t.Fatalf("GetFloat: %v", err)
	}
	if v != 90 {
		t.Fatalf("expected vendor-scoped override 90, got %v", v)
	}
}

func TestGetFloat_FallsBackToGlobalThenDefault(t *testing.T) {
	gdb, mock, cleanup := newMockedDB(t)
	defer cleanup()

	cols := []string{"tenant_id", "scope", "config_key", "config_value", "updated_at"}
	mock.ExpectQuery("SELECT \\* FROM `configs`").
		WithArgs("t1", "vendor:v1", "T_hold").
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery("SELECT \\* FROM `configs`").
		WithArgs("t1", "global", "T_hold").
		WillReturnRows(sqlmock.NewRows(cols))

	store := NewStore(gdb, nil)
	v, err := store.GetFloat(context.Background(), "t1", "v1", "T_hold", DefaultTHold)
	if err != nil {
		t.Fatalf("GetFloat: %v", err)
	}
	if v != DefaultTHold {
		t.Fatalf("expected default %v, got %v", DefaultTHold, v)
	}
}

func TestGetInt_NoVendorIDSkipsVendorScope(t *testing.T) {
	gdb, mock, cleanup := newMockedDB(t)
	defer cleanup()

	cols := []string{"tenant_id", "scope", "config_key", "config_value", "updated_at"}
	mock.ExpectQuery("SELECT \\* FROM `configs`").
		WithArgs("t1", "global", "candidate_cap").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("t1", "global", "candidate_cap", "150", nil))

	store := NewStore(gdb, nil)
	v, err := store.GetInt(context.Background(), "t1", "", "candidate_cap", DefaultCandidateCap)
	if err != nil {
		t.Fatalf("GetInt: %v", err)
	}
	if v != 150 {
		t.Fatalf("expected 150, got %v", v)
	}
}
