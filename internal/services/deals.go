package services

import (
	"context"
	"fmt"
	"time"

	"business-os/backend/internal/logging"
	"business-os/backend/pkg/models"
)

// baseProbability is the win probability of a deal by pipeline stage.
var baseProbability = map[models.DealStage]int{
	models.DealProspecting:   10,
	models.DealQualification: 20,
	models.DealProposal:      40,
	models.DealNegotiation:   60,
	models.DealClosedWon:     100,
	models.DealClosedLost:    0,
}

const (
	recentContactWindow = 7 * 24 * time.Hour
	staleActivityWindow = 30 * 24 * time.Hour
)

// ScoreDeal computes a deal's win probability in percent. Closed deals keep
// their fixed value; open deals are adjusted for recent contact, stale
// activity and size relative to the tenant's average, then clamped to 0..100.
func ScoreDeal(d *models.Deal, averageAmount float64, now time.Time) int {
	score := baseProbability[d.Stage]
	if d.Stage.IsClosed() {
		return score
	}
	if d.LastContactedAt != nil && now.Sub(*d.LastContactedAt) <= recentContactWindow {
		score += 10
	}
	if d.LastActivityAt == nil || now.Sub(*d.LastActivityAt) > staleActivityWindow {
		score -= 10
	}
	if averageAmount > 0 && d.Amount <= averageAmount {
		score += 5
	}
	return min(max(score, 0), 100)
}

// DealScorer recomputes and stores deal probabilities.
type DealScorer struct {
	store   DealStore
	audit   AuditLogger
	effects SideEffects
	logger  *logging.Logger
	now     func() time.Time
}

// NewDealScorer creates a DealScorer. audit may be nil.
func NewDealScorer(store DealStore, audit AuditLogger, effects SideEffects, logger *logging.Logger) *DealScorer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &DealScorer{store: store, audit: audit, effects: effects, logger: logger, now: time.Now}
}

// Score recomputes the deal's probability and persists it when it changed.
func (s *DealScorer) Score(ctx context.Context, dealID, actorID string) (*models.Deal, error) {
	deal, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("load deal %s: %w", dealID, err)
	}
	avg, err := s.store.AverageDealAmount(ctx, deal.TenantID)
	if err != nil {
		return nil, fmt.Errorf("average deal amount: %w", err)
	}

	score := ScoreDeal(deal, avg, s.now())
	if score == deal.Probability {
		return deal, nil
	}
	previous := deal.Probability
	updated, err := s.store.UpdateDealProbability(ctx, deal.ID, score)
	if err != nil {
		return nil, fmt.Errorf("update deal %s: %w", deal.ID, err)
	}
	s.logger.Debug("deal scored", "deal_id", deal.ID, "from", previous, "to", score)

	if s.audit != nil && s.effects != nil {
		entry := &models.AuditEntry{
			TenantID:   deal.TenantID,
			Action:     models.ActionDealScored,
			EntityType: models.EntityDeal,
			EntityID:   deal.ID,
			OldValue:   fmt.Sprint(previous),
			NewValue:   fmt.Sprint(score),
			ActorID:    actorID,
		}
		s.effects.Submit(ctx, "audit:"+models.ActionDealScored, func(ctx context.Context) error {
			return s.audit.LogAction(ctx, entry)
		})
	}
	return updated, nil
}
