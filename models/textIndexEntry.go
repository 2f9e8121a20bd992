package models

import "time"

// TextIndexEntry backs the SQL-backed text indexer: a degraded but
// dependency-free substitute for a dedicated search engine. One row
// per invoice's text blob, scoped by vendor since near-text retrieval
// never crosses vendors.
type TextIndexEntry struct {
	TenantID  string `gorm:"column:tenant_id;primaryKey;size:64"`
	InvoiceID string `gorm:"column:invoice_id;primaryKey;size:128"`

	VendorID string `gorm:"column:vendor_id;size:128;index"`
	TextBlob string `gorm:"column:text_blob;size:4096"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (TextIndexEntry) TableName() string { return "text_index_entries" }
