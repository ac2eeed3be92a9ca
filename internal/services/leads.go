package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"business-os/backend/internal/logging"
	"business-os/backend/pkg/models"
)

// ErrNoActiveReps is returned when a tenant has no rep to assign a lead to.
var ErrNoActiveReps = errors.New("no active sales reps")

// ErrUnknownStrategy is returned for an unsupported assignment strategy.
var ErrUnknownStrategy = errors.New("unknown assignment strategy")

// AssignmentStrategy selects how the next rep is picked.
type AssignmentStrategy string

const (
	RoundRobin   AssignmentStrategy = "round_robin"
	LoadBalanced AssignmentStrategy = "load_balanced"
)

// PickRoundRobin returns the rep following last in ID order, wrapping
// around. An unknown or empty last starts at the first rep.
func PickRoundRobin(reps []*models.SalesRep, last string) (*models.SalesRep, error) {
	if len(reps) == 0 {
		return nil, ErrNoActiveReps
	}
	sorted := sortedReps(reps)
	for i, r := range sorted {
		if r.ID > last {
			return sorted[i], nil
		}
	}
	return sorted[0], nil
}

// PickLeastLoaded returns the rep with the fewest open leads. Ties go to the
// lowest ID.
func PickLeastLoaded(reps []*models.SalesRep, open map[string]int) (*models.SalesRep, error) {
	if len(reps) == 0 {
		return nil, ErrNoActiveReps
	}
	var best *models.SalesRep
	for _, r := range sortedReps(reps) {
		if best == nil || open[r.ID] < open[best.ID] {
			best = r
		}
	}
	return best, nil
}

func sortedReps(reps []*models.SalesRep) []*models.SalesRep {
	sorted := make([]*models.SalesRep, len(reps))
	copy(sorted, reps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}

// LeadAssigner assigns leads to sales reps.
type LeadAssigner struct {
	store    LeadStore
	audit    AuditLogger
	notifier Notifier
	effects  SideEffects
	logger   *logging.Logger
}

// NewLeadAssigner creates a LeadAssigner. audit and notifier may be nil.
func NewLeadAssigner(store LeadStore, audit AuditLogger, notifier Notifier, effects SideEffects, logger *logging.Logger) *LeadAssigner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LeadAssigner{store: store, audit: audit, notifier: notifier, effects: effects, logger: logger}
}

// Assign picks a rep for the lead with the given strategy and stores the
// assignment. An empty strategy means round robin.
func (a *LeadAssigner) Assign(ctx context.Context, leadID string, strategy AssignmentStrategy, actorID string) (*models.Lead, error) {
	lead, err := a.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("load lead %s: %w", leadID, err)
	}
	reps, err := a.store.ListActiveReps(ctx, lead.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list reps: %w", err)
	}

	var rep *models.SalesRep
	switch strategy {
	case RoundRobin, "":
		last, err := a.store.LastAssignedRep(ctx, lead.TenantID)
		if err != nil {
			return nil, fmt.Errorf("load rotation: %w", err)
		}
		rep, err = PickRoundRobin(reps, last)
		if err != nil {
			return nil, err
		}
	case LoadBalanced:
		open, err := a.store.OpenLeadCounts(ctx, lead.TenantID)
		if err != nil {
			return nil, fmt.Errorf("count open leads: %w", err)
		}
		rep, err = PickLeastLoaded(reps, open)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	previous := ""
	if lead.AssignedTo != nil {
		previous = *lead.AssignedTo
	}
	updated, err := a.store.AssignLead(ctx, lead.ID, rep.ID)
	if err != nil {
		return nil, fmt.Errorf("assign lead %s: %w", lead.ID, err)
	}
	a.logger.Info("lead assigned", "lead_id", lead.ID, "rep_id", rep.ID, "strategy", string(strategy))

	if a.audit != nil && a.effects != nil {
		entry := &models.AuditEntry{
			TenantID:   lead.TenantID,
			Action:     models.ActionLeadAssigned,
			EntityType: models.EntityLead,
			EntityID:   lead.ID,
			OldValue:   previous,
			NewValue:   rep.ID,
			ActorID:    actorID,
		}
		a.effects.Submit(ctx, "audit:"+models.ActionLeadAssigned, func(ctx context.Context) error {
			return a.audit.LogAction(ctx, entry)
		})
	}
	if a.notifier != nil && a.effects != nil {
		n := &models.Notification{
			TenantID:    lead.TenantID,
			RecipientID: rep.ID,
			Text:        fmt.Sprintf("New lead assigned: %s", lead.Name),
			Priority:    models.PriorityNormal,
			EntityType:  models.EntityLead,
			EntityID:    lead.ID,
		}
		a.effects.Submit(ctx, "notify:"+models.EntityLead, func(ctx context.Context) error {
			return a.notifier.Send(ctx, n)
		})
	}
	return updated, nil
}
