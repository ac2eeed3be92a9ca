// Package repository persists the backend's entities in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"time"

	"business-os/backend/pkg/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStaleState is returned when a versioned write lost a race with a
	// concurrent update. The caller should reload and retry.
	ErrStaleState = errors.New("stale state, retry")
)

// TenantStore persists tenants.
type TenantStore interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
}

// ProjectStore persists projects. Writes are guarded by the project version.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, tenantID string) ([]*models.Project, error)
	UpdateProjectStage(ctx context.Context, id, stage string, expectedVersion int) (*models.Project, error)
	UpdateProjectDetails(ctx context.Context, p *models.Project) (*models.Project, error)
}

// AuditStore appends audit entries. Entries are never updated.
type AuditStore interface {
	LogAction(ctx context.Context, entry *models.AuditEntry) error
	ListAudit(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error)
}

// NotificationStore keeps the in-app notification inbox.
type NotificationStore interface {
	SaveNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error)
}

// SalesStore persists reps, leads and deals.
type SalesStore interface {
	CreateSalesRep(ctx context.Context, rep *models.SalesRep) error
	ListActiveReps(ctx context.Context, tenantID string) ([]*models.SalesRep, error)
	OpenLeadCounts(ctx context.Context, tenantID string) (map[string]int, error)
	LastAssignedRep(ctx context.Context, tenantID string) (string, error)
	CreateLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	AssignLead(ctx context.Context, leadID, repID string) (*models.Lead, error)
	CreateDeal(ctx context.Context, deal *models.Deal) error
	GetDeal(ctx context.Context, id string) (*models.Deal, error)
	AverageDealAmount(ctx context.Context, tenantID string) (float64, error)
	UpdateDealProbability(ctx context.Context, id string, probability int) (*models.Deal, error)
}

// ContractStore persists contracts.
type ContractStore interface {
	CreateContract(ctx context.Context, c *models.Contract) error
	ListActiveContractsEndingBefore(ctx context.Context, tenantID string, cutoff time.Time) ([]*models.Contract, error)
	RenewContract(ctx context.Context, id string, newEnd time.Time) (*models.Contract, error)
	ExpireContract(ctx context.Context, id string) (*models.Contract, error)
}

// UsageStore tracks AI token consumption per tenant and month.
type UsageStore interface {
	GetUsage(ctx context.Context, tenantID string, period time.Time) (int64, error)
	AddUsage(ctx context.Context, tenantID string, period time.Time, tokens int64) (int64, error)
}

// Repository is the full persistence surface used by the server.
type Repository interface {
	Ping(ctx context.Context) error
	TenantStore
	ProjectStore
	AuditStore
	NotificationStore
	SalesStore
	ContractStore
	UsageStore
}
