// Package audit is the Audit Log: a thin, typed wrapper over
// internal/store's append-only audit entries so callers describe an
// action by actor/entity rather than constructing a models.AuditEntry
// by hand at every call site.
package audit

import (
	"context"

	"gorm.io/gorm"

	"github.com/mmdatafocus/invoice-sieve/internal/store"
	"github.com/mmdatafocus/invoice-sieve/models"
)

// Entity names recorded by the scoring pipeline.
const (
	EntityInvoice  = "invoice"
	EntityDecision = "decision"
	EntityCase     = "case"
)

// Action names recorded by the scoring pipeline.
const (
	ActionScored       = "scored"
	ActionCaseOpened   = "case_opened"
	ActionDisposed     = "case_disposed"
	ActionIdempotentNo = "idempotent_replay"
)

// Record appends one audit entry within the caller's transaction.
func Record(ctx context.Context, tx *gorm.DB, tenantID, actor, action, entity, entityID string, payload models.JSONBlob) error {
	entry := &models.AuditEntry{
		TenantID: tenantID,
		Actor:    actor,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Payload:  payload,
	}
	return store.AppendAudit(ctx, tx, entry)
}
