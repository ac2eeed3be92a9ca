package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"business-os/backend/pkg/models"
)

// ErrQuotaExceeded is returned when a tenant has used its monthly AI tokens.
var ErrQuotaExceeded = errors.New("AI usage quota exceeded")

// DefaultQuotas are the monthly token limits per plan. Zero means unlimited.
var DefaultQuotas = map[models.Plan]int64{
	models.PlanFree:       50_000,
	models.PlanPro:        1_000_000,
	models.PlanEnterprise: 0,
}

// UsageQuota enforces monthly AI token limits per tenant plan.
type UsageQuota struct {
	store  UsageStore
	limits map[models.Plan]int64
	now    func() time.Time
}

// NewUsageQuota creates a UsageQuota. Plans missing from overrides fall back
// to [DefaultQuotas].
func NewUsageQuota(store UsageStore, overrides map[string]int64) *UsageQuota {
	limits := make(map[models.Plan]int64, len(DefaultQuotas))
	for plan, limit := range DefaultQuotas {
		limits[plan] = limit
	}
	for plan, limit := range overrides {
		limits[models.Plan(plan)] = limit
	}
	return &UsageQuota{store: store, limits: limits, now: time.Now}
}

// Period returns the first day of the month containing t, in UTC.
func Period(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Limit returns the monthly limit of plan. Unknown plans get the free limit.
func (q *UsageQuota) Limit(plan models.Plan) int64 {
	if limit, ok := q.limits[plan]; ok {
		return limit
	}
	return q.limits[models.PlanFree]
}

// Usage returns the tenant's consumption in the current period.
func (q *UsageQuota) Usage(ctx context.Context, tenantID string) (*models.AIUsage, error) {
	tenant, err := q.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	period := Period(q.now())
	used, err := q.store.GetUsage(ctx, tenantID, period)
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	return &models.AIUsage{TenantID: tenantID, Period: period, Tokens: used, Limit: q.Limit(tenant.Plan)}, nil
}

// Check returns the tokens the tenant may still use this period, or -1 when
// the plan is unlimited. It returns ErrQuotaExceeded once nothing is left.
func (q *UsageQuota) Check(ctx context.Context, tenantID string) (int64, error) {
	usage, err := q.Usage(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if usage.Limit == 0 {
		return -1, nil
	}
	remaining := usage.Limit - usage.Tokens
	if remaining <= 0 {
		return 0, ErrQuotaExceeded
	}
	return remaining, nil
}

// Record adds tokens to the tenant's current period.
func (q *UsageQuota) Record(ctx context.Context, tenantID string, tokens int64) error {
	if tokens <= 0 {
		return nil
	}
	if _, err := q.store.AddUsage(ctx, tenantID, Period(q.now()), tokens); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}
