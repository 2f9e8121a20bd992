// Package store is the Snapshot Store: the only part of the sieve
// that writes invoice/decision/case/audit rows. Callers pass a
// *gorm.DB that is already tenant- and transaction-scoped by the
// caller (the orchestrator); this package never calls config.GetDB()
// itself so it stays testable against go-sqlmock.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mmdatafocus/invoice-sieve/models"
)

// ErrNotFound mirrors gorm's not-found error under a package-local name
// so callers outside store never need to import gorm directly just to
// compare against gorm.ErrRecordNotFound.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertInvoice writes the snapshot header and its lines. A second
// call for the same (tenant_id, invoice_id) is a no-op: both the
// header and the lines use DoNothing conflict handling, so a
// resubmission never overwrites an existing snapshot's fields. created
// reports whether this call wrote a new snapshot; payload hashes are
// not compared.
func UpsertInvoice(ctx context.Context, tx *gorm.DB, snapshot *models.InvoiceSnapshot, lines []models.InvoiceLine) (created bool, err error) {
	result := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "invoice_id"}},
		DoNothing: true,
	}).Create(snapshot)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	if len(lines) > 0 {
		if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lines).Error; err != nil {
			return false, err
		}
	}
	return true, nil
}

// UpsertRemitSighting records (or refreshes) an observation of a
// vendor's remit account. First observation inserts with
// first_seen = last_seen = now; a later call for the same key bumps
// last_seen and increments the running count, never first_seen.
func UpsertRemitSighting(ctx context.Context, tx *gorm.DB, tenantID, vendorID, accountHash string, remitName *string) error {
	now := time.Now().UTC()
	sighting := models.VendorRemitSighting{
		TenantID:         tenantID,
		VendorID:         vendorID,
		RemitAccountHash: accountHash,
		RemitName:        remitName,
		FirstSeenAt:      now,
		LastSeenAt:       now,
		SeenCount:        1,
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "vendor_id"}, {Name: "remit_account_hash"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_seen_at": now,
			"remit_name":   remitName,
			"seen_count":   gorm.Expr("seen_count + 1"),
		}),
	}).Create(&sighting).Error
}

// LoadInvoiceRow returns the header row for (tenant, invoice_id).
func LoadInvoiceRow(ctx context.Context, db *gorm.DB, tenantID, invoiceID string) (*models.InvoiceSnapshot, error) {
	var row models.InvoiceSnapshot
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// LoadLines returns an invoice's lines ordered by line_no.
func LoadLines(ctx context.Context, db *gorm.DB, tenantID, invoiceID string) ([]models.InvoiceLine, error) {
	var lines []models.InvoiceLine
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("line_no ASC").
		Find(&lines).Error
	return lines, err
}

// LoadLinesForInvoices batch-loads lines for several invoices at once,
// keyed by invoice_id, so the orchestrator's per-candidate feature pass
// never issues one query per candidate.
func LoadLinesForInvoices(ctx context.Context, db *gorm.DB, tenantID string, invoiceIDs []string) (map[string][]models.InvoiceLine, error) {
	out := make(map[string][]models.InvoiceLine, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	var rows []models.InvoiceLine
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id IN ?", tenantID, invoiceIDs).
		Order("invoice_id ASC, line_no ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.InvoiceID] = append(out[r.InvoiceID], r)
	}
	return out, nil
}

// LoadInvoiceRowsForIDs batch-loads header snapshot rows for several
// invoices at once, keyed by invoice_id, so a candidate set sourced
// from the text index (which only has ids, not header fields) can be
// hydrated into real rows before feature computation instead of being
// scored against a zero-valued stand-in.
func LoadInvoiceRowsForIDs(ctx context.Context, db *gorm.DB, tenantID string, invoiceIDs []string) (map[string]models.InvoiceSnapshot, error) {
	out := make(map[string]models.InvoiceSnapshot, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	var rows []models.InvoiceSnapshot
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id IN ?", tenantID, invoiceIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.InvoiceID] = r
	}
	return out, nil
}

// LoadTextBlobs batch-loads the indexed text blob for each of the
// given invoice ids, keyed by invoice_id. An id with no indexed blob
// yet is simply absent from the result rather than an error.
func LoadTextBlobs(ctx context.Context, db *gorm.DB, tenantID string, invoiceIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	var rows []models.TextIndexEntry
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id IN ?", tenantID, invoiceIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.InvoiceID] = r.TextBlob
	}
	return out, nil
}

// RemitSightingExists reports whether a vendor has ever been observed
// paying out via the given remit account hash with last_seen_at at or
// after since. The anomaly scorer runs its own lookup rather than
// calling this function.
func RemitSightingExists(ctx context.Context, db *gorm.DB, tenantID, vendorID, accountHash string, since time.Time) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.VendorRemitSighting{}).
		Where("tenant_id = ? AND vendor_id = ? AND remit_account_hash = ? AND last_seen_at >= ?",
			tenantID, vendorID, accountHash, since).
		Count(&count).Error
	return count > 0, err
}

// LoadDecision returns a single decision row by id, used by the
// idempotency fast path to return a prior result without re-scoring.
func LoadDecision(ctx context.Context, db *gorm.DB, tenantID, decisionID string) (*models.Decision, error) {
	var d models.Decision
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND decision_id = ?", tenantID, decisionID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadLatestDecision returns the most recently created decision for an
// invoice, used by the read-only GET decision endpoint.
func LoadLatestDecision(ctx context.Context, db *gorm.DB, tenantID, invoiceID string) (*models.Decision, error) {
	var d models.Decision
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at DESC").
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// PersistDecision appends a new decision row. Decisions are append-only;
// there is no update path for an existing decision_id.
func PersistDecision(ctx context.Context, tx *gorm.DB, decision *models.Decision) error {
	return tx.WithContext(ctx).Create(decision).Error
}

// UpsertCase opens a case on first HOLD/REVIEW for an invoice, or
// refreshes the existing open case's decision_id/sla_due_at on a later
// one. Disposition fields are never touched by this path; they're only
// ever set via a store.SetDisposition call when they're still empty.
func UpsertCase(ctx context.Context, tx *gorm.DB, c *models.Case) error {
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "case_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"decision_id": c.DecisionID,
			"status":      c.Status,
			"sla_due_at":  c.SLADueAt,
		}),
	}).Create(c).Error
}

// FindOpenCase returns the open case for an invoice, if any.
func FindOpenCase(ctx context.Context, db *gorm.DB, tenantID, invoiceID string) (*models.Case, error) {
	var c models.Case
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ? AND status = ?", tenantID, invoiceID, models.CaseStatusOpen).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ErrDispositionAlreadySet is returned by SetDisposition when the case
// already has a non-empty disposition label; a disposition may be set
// exactly once.
var ErrDispositionAlreadySet = errors.New("case disposition already set")

// SetDisposition records an analyst's disposition on a case, refusing
// to overwrite one that has already been set.
func SetDisposition(ctx context.Context, tx *gorm.DB, tenantID, caseID string, label models.CaseDisposition, user, notes string) error {
	now := time.Now().UTC()
	result := tx.WithContext(ctx).Model(&models.Case{}).
		Where("tenant_id = ? AND case_id = ? AND (disposition_label = ? OR disposition_label IS NULL)", tenantID, caseID, models.CaseDispositionNone).
		Updates(map[string]interface{}{
			"disposition_label": label,
			"disposition_user":  &user,
			"disposition_at":    &now,
			"disposition_notes": &notes,
			"status":            models.CaseStatusClosed,
			"closed_at":         &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDispositionAlreadySet
	}
	return nil
}

// AppendAudit writes one forward-only audit entry.
func AppendAudit(ctx context.Context, tx *gorm.DB, entry *models.AuditEntry) error {
	return tx.WithContext(ctx).Create(entry).Error
}
