package repository

import (
	"context"
	"time"

	"business-os/backend/pkg/models"
)

const contractColumns = `id, tenant_id, title, owner_id, start_date, end_date, term_months,
	auto_renew, status, renewal_count, updated_at`

func scanContract(row scanner) (*models.Contract, error) {
	var c models.Contract
	if err := row.Scan(&c.ID, &c.TenantID, &c.Title, &c.OwnerID, &c.StartDate, &c.EndDate, &c.TermMonths,
		&c.AutoRenew, &c.Status, &c.RenewalCount, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateContract inserts a contract.
func (s *PostgresStore) CreateContract(ctx context.Context, c *models.Contract) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Status == "" {
		c.Status = models.ContractActive
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO contracts (id, tenant_id, title, owner_id, start_date, end_date, term_months, auto_renew, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING updated_at`,
		c.ID, c.TenantID, c.Title, c.OwnerID, c.StartDate, c.EndDate, c.TermMonths, c.AutoRenew, c.Status,
	).Scan(&c.UpdatedAt)
}

// ListActiveContractsEndingBefore returns active contracts whose end date is
// before cutoff, soonest first. An empty tenantID matches every tenant.
func (s *PostgresStore) ListActiveContractsEndingBefore(ctx context.Context, tenantID string, cutoff time.Time) ([]*models.Contract, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+contractColumns+` FROM contracts
		 WHERE status = $1 AND end_date < $2 AND ($3 = '' OR tenant_id = $3)
		 ORDER BY end_date, id`,
		models.ContractActive, cutoff, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RenewContract moves the end date and counts the renewal.
func (s *PostgresStore) RenewContract(ctx context.Context, id string, newEnd time.Time) (*models.Contract, error) {
	c, err := scanContract(s.db.QueryRow(ctx,
		`UPDATE contracts SET end_date = $1, renewal_count = renewal_count + 1, updated_at = now()
		 WHERE id = $2 AND status = $3 RETURNING `+contractColumns,
		newEnd, id, models.ContractActive))
	if err != nil {
		return nil, notFound(err, "active contract", id)
	}
	return c, nil
}

// ExpireContract marks an active contract as expired.
func (s *PostgresStore) ExpireContract(ctx context.Context, id string) (*models.Contract, error) {
	c, err := scanContract(s.db.QueryRow(ctx,
		`UPDATE contracts SET status = $1, updated_at = now() WHERE id = $2 AND status = $3 RETURNING `+contractColumns,
		models.ContractExpired, id, models.ContractActive))
	if err != nil {
		return nil, notFound(err, "active contract", id)
	}
	return c, nil
}

// GetUsage returns the tokens a tenant consumed in the period.
func (s *PostgresStore) GetUsage(ctx context.Context, tenantID string, period time.Time) (int64, error) {
	var tokens int64
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE((SELECT tokens FROM ai_usage WHERE tenant_id = $1 AND period = $2), 0)`,
		tenantID, period).Scan(&tokens)
	return tokens, err
}

// AddUsage adds tokens to the tenant's period total and returns the new total.
func (s *PostgresStore) AddUsage(ctx context.Context, tenantID string, period time.Time, tokens int64) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO ai_usage (tenant_id, period, tokens) VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id, period) DO UPDATE SET tokens = ai_usage.tokens + EXCLUDED.tokens
		 RETURNING tokens`,
		tenantID, period, tokens).Scan(&total)
	return total, err
}
