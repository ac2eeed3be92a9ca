package stages

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"business-os/backend/internal/logging"
	"business-os/backend/pkg/models"
)

const instrumentationScope = "business-os/backend/internal/stages"

// ProjectStore is the entity store collaborator.
//
// UpdateProjectStage must apply the write only when the stored version still
// equals expectedVersion, and report a stale-state error otherwise.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	UpdateProjectStage(ctx context.Context, id, stage string, expectedVersion int) (*models.Project, error)
}

// AuditLogger records immutable audit entries.
type AuditLogger interface {
	LogAction(ctx context.Context, entry *models.AuditEntry) error
}

// Notifier delivers a message to a single recipient.
type Notifier interface {
	Send(ctx context.Context, n *models.Notification) error
}

// SideEffects runs best-effort tasks away from the request path. A task's
// error is handled by the implementation and never reaches the submitter.
type SideEffects interface {
	Submit(ctx context.Context, name string, task func(context.Context) error) bool
}

// Request asks the [Executor] to move a project to TargetStage.
type Request struct {
	ProjectID   string `json:"project_id"`
	TargetStage string `json:"target_stage"`
	RequestedBy string `json:"requested_by"`
	Reason      string `json:"reason,omitempty"`
	// ForceOverride applies the move even when the validator denies it or
	// asks for confirmation. Unknown stage names are still rejected.
	ForceOverride bool `json:"force_override"`
}

// ExecutionResult reports the outcome of [Executor.Execute]. A failed
// validation is reported here with Success=false; infrastructure failures
// are returned as errors instead.
type ExecutionResult struct {
	Success       bool            `json:"success"`
	Error         string          `json:"error,omitempty"`
	Transition    *Result         `json:"transition,omitempty"`
	PreviousStage string          `json:"previous_stage,omitempty"`
	Project       *models.Project `json:"project,omitempty"`
}

// ConfirmationRequired is the error reported for an unconfirmed backward move.
const ConfirmationRequired = "Confirmation required"

// Executor applies validated stage transitions. Loading and persisting are
// part of the call; auditing and notifying are handed to [SideEffects].
type Executor struct {
	validator *Validator
	store     ProjectStore
	audit     AuditLogger
	notifier  Notifier
	effects   SideEffects
	logger    *logging.Logger

	transitions metric.Int64Counter
}

// NewExecutor creates an Executor. audit and notifier may be nil, in which
// case the corresponding side effect is skipped.
func NewExecutor(g *Graph, store ProjectStore, audit AuditLogger, notifier Notifier, effects SideEffects, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Discard()
	}
	meter := otel.Meter(instrumentationScope)
	transitions, err := meter.Int64Counter("stages.transitions",
		metric.WithDescription("Stage transition requests by outcome"))
	if err != nil {
		logger.Warn("failed to create transitions counter", "error", err)
	}
	return &Executor{
		validator:   NewValidator(g),
		store:       store,
		audit:       audit,
		notifier:    notifier,
		effects:     effects,
		logger:      logger,
		transitions: transitions,
	}
}

// Validator returns the validator the executor applies.
func (e *Executor) Validator() *Validator {
	return e.validator
}

// Execute loads the project, validates the move and, when permitted,
// persists the new stage. The audit entry and the owner notification are
// best effort and never affect the returned outcome.
func (e *Executor) Execute(ctx context.Context, req Request) (*ExecutionResult, error) {
	project, err := e.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", req.ProjectID, err)
	}

	current := project.CurrentStage
	if current == "" {
		current = e.validator.graph.Entry()
	}
	result := e.validator.Validate(current, req.TargetStage, project)

	switch {
	case result.Kind == KindInvalidStage:
		return e.reject(ctx, req, current, result, result.Reason), nil
	case result.Kind == KindIdentity:
		e.count(ctx, "noop", req.ForceOverride)
		return &ExecutionResult{Success: true, Transition: &result, PreviousStage: current, Project: project}, nil
	case !result.Allowed && !req.ForceOverride:
		return e.reject(ctx, req, current, result, result.Reason), nil
	case result.RequiresConfirmation && !req.ForceOverride:
		return e.reject(ctx, req, current, result, ConfirmationRequired), nil
	}

	updated, err := e.store.UpdateProjectStage(ctx, project.ID, req.TargetStage, project.Version)
	if err != nil {
		e.count(ctx, "store_error", req.ForceOverride)
		return nil, fmt.Errorf("update stage of project %s: %w", project.ID, err)
	}

	e.count(ctx, "applied", req.ForceOverride)
	e.logger.Info("project stage updated",
		"project_id", updated.ID,
		"from", current,
		"to", updated.CurrentStage,
		"requested_by", req.RequestedBy,
		"forced", req.ForceOverride,
	)

	e.dispatchAudit(ctx, req, updated, current)
	e.dispatchNotification(ctx, req, updated, current)

	return &ExecutionResult{
		Success:       true,
		Transition:    &result,
		PreviousStage: current,
		Project:       updated,
	}, nil
}

func (e *Executor) reject(ctx context.Context, req Request, current string, result Result, reason string) *ExecutionResult {
	e.count(ctx, "rejected", req.ForceOverride)
	e.logger.Info("stage transition rejected",
		"project_id", req.ProjectID,
		"from", current,
		"to", req.TargetStage,
		"reason", reason,
	)
	return &ExecutionResult{Error: reason, Transition: &result, PreviousStage: current}
}

func (e *Executor) dispatchAudit(ctx context.Context, req Request, p *models.Project, oldStage string) {
	if e.audit == nil || e.effects == nil {
		return
	}
	entry := &models.AuditEntry{
		TenantID:   p.TenantID,
		Action:     models.ActionStageUpdated,
		EntityType: models.EntityProject,
		EntityID:   p.ID,
		OldValue:   oldStage,
		NewValue:   p.CurrentStage,
		Reason:     req.Reason,
		Forced:     req.ForceOverride,
		ActorID:    req.RequestedBy,
	}
	e.effects.Submit(ctx, "audit:"+models.ActionStageUpdated, func(ctx context.Context) error {
		return e.audit.LogAction(ctx, entry)
	})
}

func (e *Executor) dispatchNotification(ctx context.Context, req Request, p *models.Project, oldStage string) {
	if e.notifier == nil || e.effects == nil {
		return
	}
	if p.OwnerID == "" {
		e.logger.Debug("project has no owner, skipping notification", "project_id", p.ID)
		return
	}
	n := &models.Notification{
		TenantID:    p.TenantID,
		RecipientID: p.OwnerID,
		Text:        fmt.Sprintf("Project %s moved from %s to %s", p.Name, oldStage, p.CurrentStage),
		Priority:    notificationPriority(p.CurrentStage, req.ForceOverride),
		EntityType:  models.EntityProject,
		EntityID:    p.ID,
	}
	e.effects.Submit(ctx, "notify:"+models.EntityProject, func(ctx context.Context) error {
		return e.notifier.Send(ctx, n)
	})
}

func notificationPriority(stage string, forced bool) models.Priority {
	if forced || stage == StageCompleted || stage == StageOnHold {
		return models.PriorityHigh
	}
	return models.PriorityNormal
}

func (e *Executor) count(ctx context.Context, outcome string, forced bool) {
	if e.transitions == nil {
		return
	}
	e.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("forced", forced),
	))
}
