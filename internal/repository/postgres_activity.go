package repository

import (
	"context"

	"business-os/backend/pkg/models"
)

// LogAction appends an audit entry.
func (s *PostgresStore) LogAction(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = newID()
	}
	return s.withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO audit_log (id, tenant_id, action, entity_type, entity_id, old_value, new_value, reason, forced, actor_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING created_at`,
			entry.ID, entry.TenantID, entry.Action, entry.EntityType, entry.EntityID,
			entry.OldValue, entry.NewValue, entry.Reason, entry.Forced, entry.ActorID,
		).Scan(&entry.CreatedAt)
	})
}

// ListAudit returns the audit trail of one entity, oldest first.
func (s *PostgresStore) ListAudit(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, action, entity_type, entity_id, old_value, new_value, reason, forced, actor_id, created_at
		 FROM audit_log WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at, id`,
		entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Action, &e.EntityType, &e.EntityID,
			&e.OldValue, &e.NewValue, &e.Reason, &e.Forced, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// SaveNotification stores a notification in the recipient's inbox.
func (s *PostgresStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = newID()
	}
	if n.Priority == "" {
		n.Priority = models.PriorityNormal
	}
	return s.withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO notifications (id, tenant_id, recipient_id, text, priority, entity_type, entity_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING created_at`,
			n.ID, n.TenantID, n.RecipientID, n.Text, n.Priority, n.EntityType, n.EntityID,
		).Scan(&n.CreatedAt)
	})
}

// ListNotifications returns the newest notifications of a recipient.
func (s *PostgresStore) ListNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, recipient_id, text, priority, entity_type, entity_id, created_at
		 FROM notifications WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT $2`,
		recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.TenantID, &n.RecipientID, &n.Text, &n.Priority,
			&n.EntityType, &n.EntityID, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
