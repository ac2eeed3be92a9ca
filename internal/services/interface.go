// Package services holds the decision modules that sit beside the stage
// workflow: notifications, lead assignment, deal scoring, contract renewal
// and AI usage.
package services

import (
	"context"
	"time"

	"business-os/backend/pkg/models"
)

// Notifier delivers a message to a single recipient.
type Notifier interface {
	Send(ctx context.Context, n *models.Notification) error
}

// AuditLogger records immutable audit entries.
type AuditLogger interface {
	LogAction(ctx context.Context, entry *models.AuditEntry) error
}

// SideEffects runs best-effort tasks away from the request path.
type SideEffects interface {
	Submit(ctx context.Context, name string, task func(context.Context) error) bool
}

// OutboxStore persists delivered notifications.
type OutboxStore interface {
	SaveNotification(ctx context.Context, n *models.Notification) error
}

// LeadStore is the data the lead assigner reads and writes.
type LeadStore interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	ListActiveReps(ctx context.Context, tenantID string) ([]*models.SalesRep, error)
	OpenLeadCounts(ctx context.Context, tenantID string) (map[string]int, error)
	LastAssignedRep(ctx context.Context, tenantID string) (string, error)
	AssignLead(ctx context.Context, leadID, repID string) (*models.Lead, error)
}

// DealStore is the data the deal scorer reads and writes.
type DealStore interface {
	GetDeal(ctx context.Context, id string) (*models.Deal, error)
	AverageDealAmount(ctx context.Context, tenantID string) (float64, error)
	UpdateDealProbability(ctx context.Context, id string, probability int) (*models.Deal, error)
}

// ContractStore is the data the contract renewer reads and writes.
type ContractStore interface {
	ListActiveContractsEndingBefore(ctx context.Context, tenantID string, cutoff time.Time) ([]*models.Contract, error)
	RenewContract(ctx context.Context, id string, newEnd time.Time) (*models.Contract, error)
	ExpireContract(ctx context.Context, id string) (*models.Contract, error)
}

// UsageStore tracks monthly AI token consumption.
type UsageStore interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetUsage(ctx context.Context, tenantID string, period time.Time) (int64, error)
	AddUsage(ctx context.Context, tenantID string, period time.Time, tokens int64) (int64, error)
}
