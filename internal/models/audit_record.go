package models

import "time"

// ActionType categorizes an auditable action.
type ActionType string

const (
	ActionTypeRebalance    ActionType = "rebalance"
	ActionTypeTrade        ActionType = "trade"
	ActionTypeAlert        ActionType = "alert"
	ActionTypeConfigChange ActionType = "config_change"
)

// TriggerSource identifies what initiated an auditable action.
type TriggerSource string

const (
	TriggerAIAgent   TriggerSource = "ai_agent"
	TriggerUser      TriggerSource = "user"
	TriggerSystem    TriggerSource = "system"
	TriggerScheduled TriggerSource = "scheduled"
)

// AuditRecord is one immutable entry in a subject's hash-chained audit trail.
// Records are never updated or deleted; corrections are written as new records
// that reference the old one via ExtraContext.
type AuditRecord struct {
	ID             string                 `json:"id"`
	SubjectID      string                 `json:"subject_id"`
	SequenceNumber int64                  `json:"sequence_number"`
	Timestamp      time.Time              `json:"timestamp"`
	ActionType     ActionType             `json:"action_type"`
	Description    string                 `json:"description"`
	AffectedAssets []string               `json:"affected_assets"`
	TriggeredBy    TriggerSource          `json:"triggered_by"`
	Confidence     *float64               `json:"confidence,omitempty"`
	Reasoning      string                 `json:"reasoning,omitempty"`
	ExtraContext   map[string]interface{} `json:"extra_context,omitempty"`
	ContentHash    string                 `json:"content_hash"`
	PreviousHash   string                 `json:"previous_hash"`
}
