package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"business-os/backend/internal/logging"
	"business-os/backend/pkg/models"
)

// RenewalOptions configures a [ContractRenewer].
type RenewalOptions struct {
	// Window is how far ahead of its end date an auto-renewing contract is
	// extended.
	Window time.Duration
	// Concurrency bounds the contracts processed at once.
	Concurrency int
}

// RenewalReport summarizes one renewal run.
type RenewalReport struct {
	Renewed  []string `json:"renewed"`
	Expired  []string `json:"expired"`
	Expiring []string `json:"expiring"`
	Failed   []string `json:"failed"`
}

// ContractAction is the decision taken for one contract in a renewal run.
type ContractAction int

const (
	ContractKeep ContractAction = iota
	ContractRenew
	ContractExpire
	ContractWarn
)

// DecideContract classifies an active contract at time now. Auto-renewing
// contracts ending within window are renewed; others past their end date
// expire; others ending within window are flagged.
func DecideContract(c *models.Contract, now time.Time, window time.Duration) ContractAction {
	if c.Status != models.ContractActive {
		return ContractKeep
	}
	if c.EndDate.After(now.Add(window)) {
		return ContractKeep
	}
	if c.AutoRenew {
		return ContractRenew
	}
	if !c.EndDate.After(now) {
		return ContractExpire
	}
	return ContractWarn
}

// RenewedEndDate extends end by the contract term. A non-positive term
// counts as twelve months.
func RenewedEndDate(end time.Time, termMonths int) time.Time {
	if termMonths <= 0 {
		termMonths = 12
	}
	return end.AddDate(0, termMonths, 0)
}

// ContractRenewer extends auto-renewing contracts and expires lapsed ones.
type ContractRenewer struct {
	store    ContractStore
	audit    AuditLogger
	notifier Notifier
	effects  SideEffects
	logger   *logging.Logger
	opts     RenewalOptions
	now      func() time.Time
}

// NewContractRenewer creates a ContractRenewer. audit and notifier may be nil.
func NewContractRenewer(store ContractStore, audit AuditLogger, notifier Notifier, effects SideEffects, logger *logging.Logger, opts RenewalOptions) *ContractRenewer {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Window <= 0 {
		opts.Window = 30 * 24 * time.Hour
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &ContractRenewer{
		store:    store,
		audit:    audit,
		notifier: notifier,
		effects:  effects,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// Run processes the tenant's active contracts ending within the renewal
// window; an empty tenantID processes all tenants. Failures of single
// contracts are reported, not returned; only listing failures and
// cancellation end the run with an error.
func (r *ContractRenewer) Run(ctx context.Context, tenantID, actorID string) (*RenewalReport, error) {
	now := r.now()
	due, err := r.store.ListActiveContractsEndingBefore(ctx, tenantID, now.Add(r.opts.Window))
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}

	var (
		mu     sync.Mutex
		report = &RenewalReport{}
	)
	record := func(list *[]string, id string) {
		mu.Lock()
		*list = append(*list, id)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for _, c := range due {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			switch DecideContract(c, now, r.opts.Window) {
			case ContractRenew:
				renewed, err := r.store.RenewContract(gctx, c.ID, RenewedEndDate(c.EndDate, c.TermMonths))
				if err != nil {
					r.logger.Error("failed to renew contract", "contract_id", c.ID, "error", err)
					record(&report.Failed, c.ID)
					return nil
				}
				record(&report.Renewed, c.ID)
				r.followUp(ctx, renewed, models.ActionContractRenewed, c.EndDate, actorID,
					fmt.Sprintf("Contract %s renewed until %s", c.Title, renewed.EndDate.Format(time.DateOnly)),
					models.PriorityNormal)
			case ContractExpire:
				expired, err := r.store.ExpireContract(gctx, c.ID)
				if err != nil {
					r.logger.Error("failed to expire contract", "contract_id", c.ID, "error", err)
					record(&report.Failed, c.ID)
					return nil
				}
				record(&report.Expired, c.ID)
				r.followUp(ctx, expired, models.ActionContractExpired, c.EndDate, actorID,
					fmt.Sprintf("Contract %s has expired", c.Title), models.PriorityHigh)
			case ContractWarn:
				record(&report.Expiring, c.ID)
				r.notify(ctx, c, fmt.Sprintf("Contract %s ends on %s and does not renew automatically",
					c.Title, c.EndDate.Format(time.DateOnly)), models.PriorityNormal)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	r.logger.Info("contract renewal run finished",
		"renewed", len(report.Renewed),
		"expired", len(report.Expired),
		"expiring", len(report.Expiring),
		"failed", len(report.Failed),
	)
	return report, nil
}

func (r *ContractRenewer) followUp(ctx context.Context, c *models.Contract, action string, oldEnd time.Time, actorID, text string, priority models.Priority) {
	if r.audit != nil && r.effects != nil {
		entry := &models.AuditEntry{
			TenantID:   c.TenantID,
			Action:     action,
			EntityType: models.EntityContract,
			EntityID:   c.ID,
			OldValue:   oldEnd.Format(time.DateOnly),
			NewValue:   c.EndDate.Format(time.DateOnly),
			ActorID:    actorID,
		}
		if action == models.ActionContractExpired {
			entry.OldValue = string(models.ContractActive)
			entry.NewValue = string(c.Status)
		}
		r.effects.Submit(ctx, "audit:"+action, func(ctx context.Context) error {
			return r.audit.LogAction(ctx, entry)
		})
	}
	r.notify(ctx, c, text, priority)
}

func (r *ContractRenewer) notify(ctx context.Context, c *models.Contract, text string, priority models.Priority) {
	if r.notifier == nil || r.effects == nil || c.OwnerID == "" {
		return
	}
	n := &models.Notification{
		TenantID:    c.TenantID,
		RecipientID: c.OwnerID,
		Text:        text,
		Priority:    priority,
		EntityType:  models.EntityContract,
		EntityID:    c.ID,
	}
	r.effects.Submit(ctx, "notify:"+models.EntityContract, func(ctx context.Context) error {
		return r.notifier.Send(ctx, n)
	})
}
