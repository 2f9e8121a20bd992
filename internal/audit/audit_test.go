package audit

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestRecord_InsertsOneRow(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer sqlDB.Close()
	dial := mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true})
	gdb, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `audit_entries`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = gdb.Transaction(func(tx *gorm.DB) error {
		return Record(context.Background(), tx, "t1", "system", ActionScored, EntityInvoice, "inv-1", nil)
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
}
