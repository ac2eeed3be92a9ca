package services

import (
	"context"
	"fmt"

	"business-os/backend/internal/logging"
	"business-os/backend/pkg/models"
)

// NotificationService stores every notification in the in-app inbox and
// forwards it to an optional external channel.
type NotificationService struct {
	outbox  OutboxStore
	forward Notifier
	logger  *logging.Logger
}

// NewNotificationService creates a NotificationService. forward may be nil.
func NewNotificationService(outbox OutboxStore, forward Notifier, logger *logging.Logger) *NotificationService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &NotificationService{outbox: outbox, forward: forward, logger: logger}
}

// Send saves n and then forwards it. A forwarding failure is logged; the
// inbox copy is the record of delivery.
func (s *NotificationService) Send(ctx context.Context, n *models.Notification) error {
	if n.RecipientID == "" {
		return fmt.Errorf("notification has no recipient")
	}
	if n.Priority == "" {
		n.Priority = models.PriorityNormal
	}
	if err := s.outbox.SaveNotification(ctx, n); err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	if s.forward == nil {
		return nil
	}
	if err := s.forward.Send(ctx, n); err != nil {
		s.logger.Warn("failed to forward notification",
			"notification_id", n.ID,
			"recipient_id", n.RecipientID,
			"error", err,
		)
	}
	return nil
}
