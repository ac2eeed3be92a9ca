package models

import "time"

// Audit actions recorded by the services.
const (
	ActionStageUpdated    = "stage_updated"
	ActionLeadAssigned    = "lead_assigned"
	ActionDealScored      = "deal_scored"
	ActionContractRenewed = "contract_renewed"
	ActionContractExpired = "contract_expired"
)

// Entity types referenced by audit entries and notifications.
const (
	EntityProject  = "project"
	EntityLead     = "lead"
	EntityDeal     = "deal"
	EntityContract = "contract"
)

// AuditEntry is an immutable record of a state change.
type AuditEntry struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Forced     bool      `json:"forced"`
	ActorID    string    `json:"actor_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Priority of an outgoing notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is a message addressed to a single user.
type Notification struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	RecipientID string    `json:"recipient_id"`
	Text        string    `json:"text"`
	Priority    Priority  `json:"priority"`
	EntityType  string    `json:"entity_type,omitempty"`
	EntityID    string    `json:"entity_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
