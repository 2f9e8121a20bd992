// Package retrieval implements the Candidate Retriever: given a query
// invoice, finds same-vendor invoices that plausibly collide with it
// on one of four structured signals, with an optional near-text
// fallback when structured matches fall short of the cap.
package retrieval

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mmdatafocus/invoice-sieve/internal/store"
	"github.com/mmdatafocus/invoice-sieve/internal/textindex"
)

// DefaultCap is the default fan-out ceiling for a single retrieval call.
const DefaultCap = 200

// Candidate is a same-vendor invoice row retrieval surfaces for
// feature computation.
type Candidate struct {
	InvoiceID         string
	InvoiceNumberNorm string
	PONumber          *string
	Currency          string
	Total             float64
	TaxTotal          *float64
	InvoiceDate       time.Time
	RemitAccountHash  *string
	RemitName         *string
	PDFHash           *string
	// MatchKind records which predicate qualified this row; a structured
	// row that matched neither on invoice number nor on PO (including a
	// remit-hash-only match) is labelled matchAmountMonth. Priority
	// ordering is done in SQL; MatchKind is never persisted or scored.
	MatchKind matchKind
}

type matchKind int

const (
	matchText matchKind = iota
	matchAmountMonth
	matchSamePO
	matchExactInvnum
)

// Query is the minimal shape of the invoice being scored that
// retrieval needs.
type Query struct {
	TenantID          string
	VendorID          string
	InvoiceID         string
	InvoiceNumberNorm string
	PONumber          *string
	Total             float64
	InvoiceDate       time.Time
	RemitAccountHash  *string
	TextBlob          string
}

// Retriever finds candidates for a query invoice.
type Retriever struct {
	db      *gorm.DB
	indexer textindex.Indexer
	cap     int
}

func NewRetriever(db *gorm.DB, indexer textindex.Indexer) *Retriever {
	return &Retriever{db: db, indexer: indexer, cap: DefaultCap}
}

// WithCap overrides the default fan-out cap (the orchestrator passes
// the configured candidate_cap).
func (r *Retriever) WithCap(cap int) *Retriever {
	r.cap = cap
	return r
}

type candidateRow struct {
	InvoiceID         string     `gorm:"column:invoice_id"`
	InvoiceNumberNorm string     `gorm:"column:invoice_number_norm"`
	PONumber          *string    `gorm:"column:po_number"`
	Currency          string     `gorm:"column:currency"`
	Total             float64    `gorm:"column:total"`
	TaxTotal          *float64   `gorm:"column:tax_total"`
	InvoiceDate       time.Time  `gorm:"column:invoice_date"`
	RemitAccountHash  *string    `gorm:"column:remit_account_hash"`
	RemitName         *string    `gorm:"column:remit_name"`
	PDFHash           *string    `gorm:"column:pdf_hash"`
}

// structuredQuery is the raw-SQL predicate set from spec.md §4.3: same
// vendor, not self, and any of amount+month / same-PO / exact invnum /
// same remit hash. Priority is computed in SQL via a CASE expression
// so the LIMIT applies to the highest-priority rows first.
const structuredQuery = `
SELECT invoice_id, invoice_number_norm, po_number, currency, total, tax_total,
       invoice_date, remit_account_hash, remit_name, pdf_hash
FROM invoice_snapshots
WHERE tenant_id = ?
  AND vendor_id = ?
  AND invoice_id != ?
  AND (
        (ROUND(total, 2) = ROUND(?, 2) AND DATE_FORMAT(invoice_date, '%Y-%m') = DATE_FORMAT(?, '%Y-%m'))
     OR (po_number IS NOT NULL AND ? IS NOT NULL AND po_number = ?)
     OR (invoice_number_norm = ?)
     OR (remit_account_hash IS NOT NULL AND ? IS NOT NULL AND remit_account_hash = ?)
  )
ORDER BY
  CASE
    WHEN invoice_number_norm = ? THEN 0
    WHEN po_number IS NOT NULL AND ? IS NOT NULL AND po_number = ? THEN 1
    WHEN ROUND(total, 2) = ROUND(?, 2) AND DATE_FORMAT(invoice_date, '%Y-%m') = DATE_FORMAT(?, '%Y-%m') THEN 2
    ELSE 3
  END,
  invoice_date DESC
LIMIT ?
`

// Retrieve returns up to the configured cap of candidates, ordered by
// priority (exact invnum > same-PO > amount-and-month > text-neighbor),
// ties broken by most-recent invoice_date. The near-text path is only
// consulted when structured predicates return fewer rows than the cap,
// and its failure is swallowed rather than propagated.
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]Candidate, error) {
	var rows []candidateRow
	err := r.db.WithContext(ctx).Raw(structuredQuery,
		q.TenantID, q.VendorID, q.InvoiceID,
		q.Total, q.InvoiceDate,
		q.PONumber, q.PONumber,
		q.InvoiceNumberNorm,
		q.RemitAccountHash, q.RemitAccountHash,
		q.InvoiceNumberNorm,
		q.PONumber, q.PONumber,
		q.Total, q.InvoiceDate,
		r.cap,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		candidates = append(candidates, toCandidate(row, q))
		seen[row.InvoiceID] = struct{}{}
	}

	if len(candidates) >= r.cap || r.indexer == nil {
		return candidates, nil
	}

	nearIDs, err := r.indexer.SearchNear(ctx, q.TenantID, q.VendorID, q.TextBlob, r.cap-len(candidates))
	if err != nil || len(nearIDs) == 0 {
		// Index failure or empty result: the structured candidates still stand.
		return candidates, nil
	}

	wanted := make([]string, 0, len(nearIDs))
	for _, id := range nearIDs {
		if _, dup := seen[id]; !dup && id != q.InvoiceID {
			wanted = append(wanted, id)
		}
	}
	headers, err := store.LoadInvoiceRowsForIDs(ctx, r.db, q.TenantID, wanted)
	if err != nil {
		// A hydration failure degrades to the structured candidates only;
		// a near-text match with no header is worse than no match at all.
		return candidates, nil
	}

	for _, id := range nearIDs {
		if _, dup := seen[id]; dup || id == q.InvoiceID {
			continue
		}
		row, ok := headers[id]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			InvoiceID:         row.InvoiceID,
			InvoiceNumberNorm: row.InvoiceNumberNorm,
			PONumber:          row.PONumber,
			Currency:          row.Currency,
			Total:             decimalFloat(row.Total),
			TaxTotal:          decimalFloatPtr(row.TaxTotal),
			InvoiceDate:       row.InvoiceDate,
			RemitAccountHash:  row.RemitAccountHash,
			RemitName:         row.RemitName,
			PDFHash:           row.PDFHash,
			MatchKind:         matchText,
		})
		seen[id] = struct{}{}
		if len(candidates) >= r.cap {
			break
		}
	}
	return candidates, nil
}

func decimalFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func decimalFloatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := decimalFloat(*d)
	return &f
}

func toCandidate(row candidateRow, q Query) Candidate {
	kind := matchText
	switch {
	case row.InvoiceNumberNorm == q.InvoiceNumberNorm:
		kind = matchExactInvnum
	case row.PONumber != nil && q.PONumber != nil && *row.PONumber == *q.PONumber:
		kind = matchSamePO
	default:
		kind = matchAmountMonth
	}
	return Candidate{
		InvoiceID:         row.InvoiceID,
		InvoiceNumberNorm: row.InvoiceNumberNorm,
		PONumber:          row.PONumber,
		Currency:          row.Currency,
		Total:             row.Total,
		TaxTotal:          row.TaxTotal,
		InvoiceDate:       row.InvoiceDate,
		RemitAccountHash:  row.RemitAccountHash,
		RemitName:         row.RemitName,
		PDFHash:           row.PDFHash,
		MatchKind:         kind,
	}
}
