package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceSnapshot is the immutable-per-submission record of an invoice as
// received. Re-submitting the same (tenant_id, invoice_id) leaves the
// existing row unchanged (store.UpsertInvoice does nothing on conflict).
// payload_hash is stored with the row; the orchestrator does not use it
// to skip the pipeline.
type InvoiceSnapshot struct {
	TenantID  string `gorm:"column:tenant_id;primaryKey;size:64"`
	InvoiceID string `gorm:"column:invoice_id;primaryKey;size:128"`

	VendorID   string `gorm:"column:vendor_id;size:128;index:idx_invoice_snapshots_vendor,priority:2"`
	VendorName string `gorm:"column:vendor_name;size:256"`

	InvoiceNumber     string `gorm:"column:invoice_number;size:128"`
	InvoiceNumberNorm string `gorm:"column:invoice_number_norm;size:128;index"`

	InvoiceDate time.Time `gorm:"column:invoice_date;index:idx_invoice_snapshots_vendor,priority:1"`

	Currency string          `gorm:"column:currency;size:8"`
	Total    decimal.Decimal `gorm:"column:total;type:decimal(18,4)"`
	TaxTotal *decimal.Decimal `gorm:"column:tax_total;type:decimal(18,4)"`

	PONumber *string `gorm:"column:po_number;size:128;index"`

	RemitAccountHash    *string `gorm:"column:remit_account_hash;size:64;index"`
	RemitAccountMasked  *string `gorm:"column:remit_account_masked;size:32"`
	RemitName           *string `gorm:"column:remit_name;size:256"`

	PDFHash *string `gorm:"column:pdf_hash;size:64;index"`
	Terms   *string `gorm:"column:terms;size:128"`

	PayloadHash string   `gorm:"column:payload_hash;size:64;index"`
	RawPayload  JSONBlob `gorm:"column:raw_payload;type:json"`

	NormalizerVersion string    `gorm:"column:normalizer_version;size:16"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (InvoiceSnapshot) TableName() string { return "invoice_snapshots" }

// InvoiceLine is a single line item of an invoice snapshot.
type InvoiceLine struct {
	TenantID  string `gorm:"column:tenant_id;primaryKey;size:64"`
	InvoiceID string `gorm:"column:invoice_id;primaryKey;size:128"`
	LineNo    int    `gorm:"column:line_no;primaryKey"`

	Description     string          `gorm:"column:description;size:512"`
	DescriptionNorm string          `gorm:"column:description_norm;size:512"`
	Quantity        decimal.Decimal `gorm:"column:quantity;type:decimal(24,6)"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:decimal(24,6)"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(24,6)"`

	SKU        *string `gorm:"column:sku;size:128"`
	GLCode     *string `gorm:"column:gl_code;size:64"`
	CostCenter *string `gorm:"column:cost_center;size:64"`
}

func (InvoiceLine) TableName() string { return "invoice_lines" }
