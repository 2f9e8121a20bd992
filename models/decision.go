package models

import "time"

// DecisionLabel is the decision engine's terminal classification for an
// invoice. Its zero value "" is none of the three labels; nothing
// rejects it, and the strictest-outcome ranking in internal/rules and
// internal/decisionengine ranks it the same as PASS.
type DecisionLabel string

const (
	DecisionPass   DecisionLabel = "PASS"
	DecisionReview DecisionLabel = "REVIEW"
	DecisionHold   DecisionLabel = "HOLD"
)

// Decision is the scoring orchestrator's terminal output for one
// invoice submission. decision_id is assigned once and never reused,
// even across re-scoring of the same invoice_id.
type Decision struct {
	TenantID   string `gorm:"column:tenant_id;primaryKey;size:64"`
	DecisionID string `gorm:"column:decision_id;primaryKey;size:32"`

	InvoiceID string `gorm:"column:invoice_id;size:128;index"`

	// RiskScore is 0-100, scale 2 (e.g. 87.35), rounded per the fusion formula.
	RiskScore float64       `gorm:"column:risk_score;type:decimal(6,2)"`
	Label     DecisionLabel `gorm:"column:label;size:16"`

	DupProb  float64 `gorm:"column:dup_prob"`
	AnomProb float64 `gorm:"column:anom_prob"`
	TextProb float64 `gorm:"column:text_prob"`

	ReasonCodes StringSlice `gorm:"column:reason_codes;type:json"`
	TopMatches  JSONBlob    `gorm:"column:top_matches;type:json"`
	Explanation JSONBlob    `gorm:"column:explanation;type:json"`

	RuleOverride   bool   `gorm:"column:rule_override"`
	ModelID        string `gorm:"column:model_id;size:64"`
	ModelVersion   string `gorm:"column:model_version;size:32"`
	RulesetVersion string `gorm:"column:ruleset_version;size:32"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Decision) TableName() string { return "decisions" }

// CaseDisposition is the analyst-facing outcome of a case once it has
// been worked. Unset dispositions remain an empty string, not "OPEN" —
// openness is represented by the case's status, not by disposition.
type CaseDisposition string

const (
	CaseDispositionNone           CaseDisposition = ""
	CaseDispositionConfirmedDup   CaseDisposition = "CONFIRMED_DUPLICATE"
	CaseDispositionFalsePositive  CaseDisposition = "FALSE_POSITIVE"
	CaseDispositionLegitimate     CaseDisposition = "LEGITIMATE_ANOMALY"
	CaseDispositionEscalated      CaseDisposition = "ESCALATED"
)

// CaseStatus tracks whether a case is still awaiting analyst action.
type CaseStatus string

const (
	CaseStatusOpen   CaseStatus = "OPEN"
	CaseStatusClosed CaseStatus = "CLOSED"
)

// Case is opened whenever a decision resolves to HOLD or REVIEW, keyed
// by (tenant_id, invoice_id) so at most one open case exists per
// invoice. A second decision for the same invoice_id upserts the
// existing open case rather than opening a duplicate one. The
// disposition block is set at most once per case: the store layer must
// refuse to overwrite a non-empty DispositionLabel.
type Case struct {
	TenantID string `gorm:"column:tenant_id;primaryKey;size:64"`
	CaseID   string `gorm:"column:case_id;primaryKey;size:32"`

	InvoiceID  string `gorm:"column:invoice_id;size:128;index"`
	DecisionID string `gorm:"column:decision_id;size:32"`

	Status CaseStatus `gorm:"column:status;size:16"`

	DispositionLabel CaseDisposition `gorm:"column:disposition_label;size:32"`
	DispositionUser  *string         `gorm:"column:disposition_user;size:128"`
	DispositionAt    *time.Time      `gorm:"column:disposition_at"`
	DispositionNotes *string         `gorm:"column:disposition_notes;size:1024"`

	SLADueAt  time.Time  `gorm:"column:sla_due_at;index"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	ClosedAt  *time.Time `gorm:"column:closed_at"`
}

func (Case) TableName() string { return "cases" }
