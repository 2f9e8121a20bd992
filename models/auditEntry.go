package models

import "time"

// AuditEntry is one append-only record of something the sieve did.
// Rows are never updated or deleted; a correction is a new entry, not
// an edit of an old one.
type AuditEntry struct {
	TenantID string `gorm:"column:tenant_id;primaryKey;size:64"`
	EntryID  uint64 `gorm:"column:entry_id;primaryKey;autoIncrement"`

	Actor    string `gorm:"column:actor;size:128"`
	Action   string `gorm:"column:action;size:64"` // e.g. "scored", "case_disposed"
	Entity   string `gorm:"column:entity;size:32"` // e.g. "invoice", "case"
	EntityID string `gorm:"column:entity_id;size:128;index"`

	Payload JSONBlob `gorm:"column:payload;type:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

func (AuditEntry) TableName() string { return "audit_entries" }

// IdempotencyKey records the lifecycle of an in-flight or completed
// score-invoice request so a retried submission with the same key is
// resolved deterministically instead of double-processed.
type IdempotencyKey struct {
	TenantID string `gorm:"column:tenant_id;primaryKey;size:64"`
	Key      string `gorm:"column:idempotency_key;primaryKey;size:128"`

	Status string `gorm:"column:status;size:16"` // STARTED | SUCCEEDED | FAILED

	DecisionID *string `gorm:"column:decision_id;size:32"`
	ErrorText  *string `gorm:"column:error_text;size:512"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (IdempotencyKey) TableName() string { return "scoring_idempotency_keys" }

// Config is a single threshold/tuning value, resolved by scope with
// "vendor:{id}" falling back to "global". It is a cache-accelerated
// convenience layer, never the sole source of truth — a cache miss or
// redis outage must still fall back to this table.
type Config struct {
	TenantID string `gorm:"column:tenant_id;primaryKey;size:64"`
	Scope    string `gorm:"column:scope;primaryKey;size:128"`
	Key      string `gorm:"column:config_key;primaryKey;size:64"`

	Value string `gorm:"column:config_value;size:256"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Config) TableName() string { return "configs" }
