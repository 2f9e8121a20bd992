package api

import "time"

// LineItemIn is one line of a scoring request, mirroring spec.md §6's
// InvoiceIn.line_items shape.
type LineItemIn struct {
	Desc       string  `json:"desc" binding:"required"`
	Qty        float64 `json:"qty" binding:"required"`
	UnitPrice  float64 `json:"unit_price" binding:"required"`
	Amount     float64 `json:"amount"`
	SKU        *string `json:"sku"`
	GLCode     *string `json:"gl_code"`
	CostCenter *string `json:"cost_center"`
}

// InvoiceIn is the /scoreInvoice request body.
type InvoiceIn struct {
	InvoiceID              string       `json:"invoice_id" binding:"required"`
	VendorID               string       `json:"vendor_id" binding:"required"`
	VendorName             string       `json:"vendor_name" binding:"required"`
	InvoiceNumber          string       `json:"invoice_number" binding:"required"`
	InvoiceDate            time.Time    `json:"invoice_date" binding:"required" time_format:"2006-01-02"`
	Currency               string       `json:"currency" binding:"required,len=3"`
	Total                  float64      `json:"total" binding:"required"`
	TaxTotal               *float64     `json:"tax_total"`
	PONumber               *string      `json:"po_number"`
	RemitBankIBANOrAccount *string      `json:"remit_bank_iban_or_account"`
	RemitName              *string      `json:"remit_name"`
	PDFHash                *string      `json:"pdf_hash"`
	Terms                  *string      `json:"terms"`
	LineItems              []LineItemIn `json:"line_items" binding:"required,min=1,dive"`
}

// FeatureExplanation is one (feature, value) pair surfaced for the
// top match's explanation list.
type FeatureExplanation struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// TopMatch is one ranked candidate returned alongside the decision.
type TopMatch struct {
	InvoiceID  string             `json:"invoice_id"`
	Similarity float64            `json:"similarity"`
	Features   map[string]float64 `json:"features"`
}

// ScoreResponse is the /scoreInvoice response body.
type ScoreResponse struct {
	RiskScore    float64               `json:"risk_score"`
	Decision     string                `json:"decision"`
	ReasonCodes  []string              `json:"reason_codes"`
	TopMatches   []TopMatch            `json:"top_matches"`
	Explanations []FeatureExplanation  `json:"explanations"`
	TraceID      string                `json:"trace_id"`
}

// DecisionOut is the /invoice/:invoice_id/decision response body.
type DecisionOut struct {
	RiskScore    float64               `json:"risk_score"`
	Decision     string                `json:"decision"`
	ReasonCodes  []string              `json:"reason_codes"`
	TopMatches   []TopMatch            `json:"top_matches"`
	Explanations []FeatureExplanation  `json:"explanations"`
}
