package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"business-os/backend/pkg/models"
)

const projectColumns = `id, tenant_id, name, description, current_stage, owner_id, timeline,
	design_files, test_results, deployment_url, completion_date, hold_reason,
	version, created_at, updated_at`

func scanProject(row scanner) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.CurrentStage, &p.OwnerID, &p.Timeline,
		&p.DesignFiles, &p.TestResults, &p.DeploymentURL, &p.CompletionDate, &p.HoldReason,
		&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject inserts a project at version 1. The caller sets the stage.
func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newID()
	}
	p.Version = 1
	return s.db.QueryRow(ctx,
		`INSERT INTO projects (id, tenant_id, name, description, current_stage, owner_id, timeline,
			design_files, test_results, deployment_url, completion_date, hold_reason, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8::text[], '{}'), $9, $10, $11, $12, 1)
		 RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.Name, p.Description, p.CurrentStage, p.OwnerID, p.Timeline,
		p.DesignFiles, p.TestResults, p.DeploymentURL, p.CompletionDate, p.HoldReason,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// GetProject retrieves a project by its ID.
func (s *PostgresStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p *models.Project
	err := s.withRetry(ctx, func() error {
		var err error
		p, err = scanProject(s.db.QueryRow(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = $1", id))
		return err
	})
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return p, nil
}

// ListProjects returns the projects of a tenant, newest first.
func (s *PostgresStore) ListProjects(ctx context.Context, tenantID string) ([]*models.Project, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE tenant_id = $1 ORDER BY created_at DESC", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProjectStage sets the stage if the stored version equals
// expectedVersion, bumping the version and updated_at.
func (s *PostgresStore) UpdateProjectStage(ctx context.Context, id, stage string, expectedVersion int) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRow(ctx,
		`UPDATE projects SET current_stage = $1, version = version + 1, updated_at = now()
		 WHERE id = $2 AND version = $3
		 RETURNING `+projectColumns,
		stage, id, expectedVersion))
	if err != nil {
		return nil, s.versionConflict(ctx, err, id)
	}
	return p, nil
}

// UpdateProjectDetails writes the editable attributes of p, guarded by
// p.Version.
func (s *PostgresStore) UpdateProjectDetails(ctx context.Context, p *models.Project) (*models.Project, error) {
	updated, err := scanProject(s.db.QueryRow(ctx,
		`UPDATE projects SET name = $1, description = $2, owner_id = $3, timeline = $4,
			design_files = COALESCE($5::text[], '{}'), test_results = $6, deployment_url = $7,
			completion_date = $8, hold_reason = $9, version = version + 1, updated_at = now()
		 WHERE id = $10 AND version = $11
		 RETURNING `+projectColumns,
		p.Name, p.Description, p.OwnerID, p.Timeline, p.DesignFiles, p.TestResults, p.DeploymentURL,
		p.CompletionDate, p.HoldReason, p.ID, p.Version))
	if err != nil {
		return nil, s.versionConflict(ctx, err, p.ID)
	}
	return updated, nil
}

// versionConflict tells a missing project apart from a lost update after a
// guarded UPDATE matched no row.
func (s *PostgresStore) versionConflict(ctx context.Context, err error, id string) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	if qerr := s.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)", id).Scan(&exists); qerr != nil {
		return qerr
	}
	if !exists {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("project %s: %w", id, ErrStaleState)
}
