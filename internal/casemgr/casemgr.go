// Package casemgr is the Case Manager: opens and refreshes review
// cases for invoices that land on HOLD or REVIEW, and guards the
// analyst disposition workflow.
package casemgr

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mmdatafocus/invoice-sieve/internal/idgen"
	"github.com/mmdatafocus/invoice-sieve/internal/store"
	"github.com/mmdatafocus/invoice-sieve/models"
)

// SLAWindow is how long an analyst has to disposition a new case.
const SLAWindow = 48 * time.Hour

// Manager opens and updates cases within an already-scoped transaction.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// OnDecision opens a case for (tenant, invoice) on HOLD/REVIEW, or
// refreshes an existing open one's decision_id. PASS leaves any
// existing case untouched; it never closes one on a re-score.
func (m *Manager) OnDecision(ctx context.Context, tx *gorm.DB, tenantID, invoiceID, decisionID string, label models.DecisionLabel) (*models.Case, error) {
	if label == models.DecisionPass {
		return nil, nil
	}

	existing, err := store.FindOpenCase(ctx, tx, tenantID, invoiceID)
	if err != nil && err != store.ErrNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	c := &models.Case{
		TenantID:   tenantID,
		CaseID:     idgen.NewCaseID(),
		InvoiceID:  invoiceID,
		DecisionID: decisionID,
		Status:     models.CaseStatusOpen,
		SLADueAt:   now.Add(SLAWindow),
		CreatedAt:  now,
	}
	if existing != nil {
		c.CaseID = existing.CaseID
		c.SLADueAt = existing.SLADueAt
		c.CreatedAt = existing.CreatedAt
	}

	if err := store.UpsertCase(ctx, tx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Disposition records an analyst's resolution of a case. It is a thin
// pass-through to store.SetDisposition so callers outside the
// orchestrator never need to reach into internal/store directly.
func (m *Manager) Disposition(ctx context.Context, tx *gorm.DB, tenantID, caseID string, label models.CaseDisposition, user, notes string) error {
	return store.SetDisposition(ctx, tx, tenantID, caseID, label, user, notes)
}
