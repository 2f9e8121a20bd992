package models

import (
	"log"

	"github.com/mmdatafocus/invoice-sieve/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&InvoiceSnapshot{}, &InvoiceLine{},
		&VendorRemitSighting{}, &VendorAmountBaseline{},
		&Decision{}, &Case{},
		&AuditEntry{}, &IdempotencyKey{},
		&Config{}, &TextIndexEntry{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
