// Package scoring holds the cross-cutting concurrency primitives the
// scoring orchestrator wraps each request in: idempotent-submission
// detection and per-(tenant, invoice) advisory locks.
package scoring

import (
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/mmdatafocus/invoice-sieve/models"
)

// ErrIdempotencyInProgress is returned when a concurrent request for
// the same idempotency key is still within its in-flight window.
var ErrIdempotencyInProgress = errors.New("idempotency key in progress")

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// BeginIdempotency inserts a STARTED row for (tenant, key). If a
// SUCCEEDED row already exists, it returns (true, existingDecisionID,
// nil) so the caller can return the prior result instead of
// re-scoring. A STARTED row younger than the in-flight window yields
// ErrIdempotencyInProgress; an older STARTED row is treated as
// abandoned and retried in place.
func BeginIdempotency(tx *gorm.DB, tenantID, key string) (skip bool, existingDecisionID string, err error) {
	row := models.IdempotencyKey{
		TenantID: tenantID,
		Key:      key,
		Status:   "STARTED",
	}
	if err := tx.Create(&row).Error; err == nil {
		return false, "", nil
	} else if !isDuplicateKeyErr(err) {
		return false, "", err
	}

	var existing models.IdempotencyKey
	if err := tx.Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&existing).Error; err != nil {
		return false, "", err
	}

	switch existing.Status {
	case "SUCCEEDED":
		decisionID := ""
		if existing.DecisionID != nil {
			decisionID = *existing.DecisionID
		}
		return true, decisionID, nil
	case "STARTED":
		if time.Since(existing.UpdatedAt) < 5*time.Minute {
			return false, "", ErrIdempotencyInProgress
		}
		return false, "", tx.Model(&models.IdempotencyKey{}).
			Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
			Updates(map[string]interface{}{"status": "STARTED", "error_text": nil}).Error
	default: // FAILED
		return false, "", tx.Model(&models.IdempotencyKey{}).
			Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
			Updates(map[string]interface{}{"status": "STARTED", "error_text": nil}).Error
	}
}

// MarkIdempotencySucceeded records the decision a STARTED key resolved to.
func MarkIdempotencySucceeded(tx *gorm.DB, tenantID, key, decisionID string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		Updates(map[string]interface{}{"status": "SUCCEEDED", "decision_id": &decisionID, "error_text": nil}).Error
}

// MarkIdempotencyFailed records that processing failed, allowing a
// later retry to reuse the same key.
func MarkIdempotencyFailed(tx *gorm.DB, tenantID, key string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		Updates(map[string]interface{}{"status": "FAILED", "error_text": &msg}).Error
}
