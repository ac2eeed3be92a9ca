package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"business-os/backend/pkg/models"
)

// CreateSalesRep inserts a sales rep.
func (s *PostgresStore) CreateSalesRep(ctx context.Context, rep *models.SalesRep) error {
	if rep.ID == "" {
		rep.ID = newID()
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO sales_reps (id, tenant_id, name, active) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		rep.ID, rep.TenantID, rep.Name, rep.Active,
	).Scan(&rep.CreatedAt)
}

// ListActiveReps returns the active reps of a tenant ordered by ID.
func (s *PostgresStore) ListActiveReps(ctx context.Context, tenantID string) ([]*models.SalesRep, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, name, active, created_at FROM sales_reps
		 WHERE tenant_id = $1 AND active ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reps []*models.SalesRep
	for rows.Next() {
		var r models.SalesRep
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.Active, &r.CreatedAt); err != nil {
			return nil, err
		}
		reps = append(reps, &r)
	}
	return reps, rows.Err()
}

// OpenLeadCounts returns the number of open leads per assigned rep.
func (s *PostgresStore) OpenLeadCounts(ctx context.Context, tenantID string) (map[string]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT assigned_to, count(*) FROM leads
		 WHERE tenant_id = $1 AND assigned_to IS NOT NULL AND status = ANY($2)
		 GROUP BY assigned_to`,
		tenantID, []string{
			string(models.LeadStatusNew), string(models.LeadStatusContacted), string(models.LeadStatusQualified),
		})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var rep string
		var n int
		if err := rows.Scan(&rep, &n); err != nil {
			return nil, err
		}
		counts[rep] = n
	}
	return counts, rows.Err()
}

// LastAssignedRep returns the rep that received the tenant's previous
// round-robin assignment, or "" when there was none.
func (s *PostgresStore) LastAssignedRep(ctx context.Context, tenantID string) (string, error) {
	var rep string
	err := s.db.QueryRow(ctx, `SELECT last_rep_id FROM lead_rotation WHERE tenant_id = $1`, tenantID).Scan(&rep)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return rep, err
}

const leadColumns = `id, tenant_id, name, email, source, status, assigned_to, created_at, updated_at`

func scanLead(row scanner) (*models.Lead, error) {
	var l models.Lead
	if err := row.Scan(&l.ID, &l.TenantID, &l.Name, &l.Email, &l.Source, &l.Status,
		&l.AssignedTo, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLead inserts a lead.
func (s *PostgresStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = newID()
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO leads (id, tenant_id, name, email, source, status, assigned_to)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		lead.ID, lead.TenantID, lead.Name, lead.Email, lead.Source, lead.Status, lead.AssignedTo,
	).Scan(&lead.CreatedAt, &lead.UpdatedAt)
}

// GetLead retrieves a lead by its ID.
func (s *PostgresStore) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	l, err := scanLead(s.db.QueryRow(ctx, "SELECT "+leadColumns+" FROM leads WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, "lead", id)
	}
	return l, nil
}

// AssignLead sets the lead's owner and records the rep as the tenant's last
// rotation target in one transaction.
func (s *PostgresStore) AssignLead(ctx context.Context, leadID, repID string) (*models.Lead, error) {
	var lead *models.Lead
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		lead, err = scanLead(tx.QueryRow(ctx,
			`UPDATE leads SET assigned_to = $1, updated_at = now() WHERE id = $2 RETURNING `+leadColumns,
			repID, leadID))
		if err != nil {
			return notFound(err, "lead", leadID)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO lead_rotation (tenant_id, last_rep_id) VALUES ($1, $2)
			 ON CONFLICT (tenant_id) DO UPDATE SET last_rep_id = EXCLUDED.last_rep_id, updated_at = now()`,
			lead.TenantID, repID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

const dealColumns = `id, tenant_id, name, stage, amount, probability, owner_id,
	last_activity_at, last_contacted_at, created_at, updated_at`

func scanDeal(row scanner) (*models.Deal, error) {
	var d models.Deal
	if err := row.Scan(&d.ID, &d.TenantID, &d.Name, &d.Stage, &d.Amount, &d.Probability, &d.OwnerID,
		&d.LastActivityAt, &d.LastContactedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDeal inserts a deal.
func (s *PostgresStore) CreateDeal(ctx context.Context, deal *models.Deal) error {
	if deal.ID == "" {
		deal.ID = newID()
	}
	if deal.Stage == "" {
		deal.Stage = models.DealProspecting
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO deals (id, tenant_id, name, stage, amount, probability, owner_id, last_activity_at, last_contacted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at, updated_at`,
		deal.ID, deal.TenantID, deal.Name, deal.Stage, deal.Amount, deal.Probability, deal.OwnerID,
		deal.LastActivityAt, deal.LastContactedAt,
	).Scan(&deal.CreatedAt, &deal.UpdatedAt)
}

// GetDeal retrieves a deal by its ID.
func (s *PostgresStore) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	d, err := scanDeal(s.db.QueryRow(ctx, "SELECT "+dealColumns+" FROM deals WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, "deal", id)
	}
	return d, nil
}

// AverageDealAmount returns the mean amount of the tenant's deals, or 0.
func (s *PostgresStore) AverageDealAmount(ctx context.Context, tenantID string) (float64, error) {
	var avg float64
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(avg(amount), 0)::double precision FROM deals WHERE tenant_id = $1`, tenantID).Scan(&avg)
	return avg, err
}

// UpdateDealProbability stores a recomputed win probability.
func (s *PostgresStore) UpdateDealProbability(ctx context.Context, id string, probability int) (*models.Deal, error) {
	d, err := scanDeal(s.db.QueryRow(ctx,
		`UPDATE deals SET probability = $1, updated_at = now() WHERE id = $2 RETURNING `+dealColumns,
		probability, id))
	if err != nil {
		return nil, notFound(err, "deal", id)
	}
	return d, nil
}
