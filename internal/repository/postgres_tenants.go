package repository

import (
	"context"

	"business-os/backend/pkg/models"
)

const tenantColumns = `id, name, domain, plan, created_at, updated_at`

func scanTenant(row scanner) (*models.Tenant, error) {
	var t models.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.Plan, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTenant retrieves a tenant by its ID.
func (s *PostgresStore) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, "tenant", id)
	}
	return t, nil
}

// GetTenantByDomain retrieves the tenant owning an email domain.
func (s *PostgresStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE domain = $1", domain))
	if err != nil {
		return nil, notFound(err, "tenant for domain", domain)
	}
	return t, nil
}

// CreateTenant inserts a tenant, filling in ID, plan and timestamps.
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = newID()
	}
	if tenant.Plan == "" {
		tenant.Plan = models.PlanFree
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO tenants (id, name, domain, plan) VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		tenant.ID, tenant.Name, tenant.Domain, tenant.Plan,
	).Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
}
