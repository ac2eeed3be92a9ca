package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"business-os/backend/pkg/models"
)

type fakeContractStore struct {
	mu        sync.Mutex
	contracts map[string]*models.Contract
	failRenew string
}

func (f *fakeContractStore) ListActiveContractsEndingBefore(_ context.Context, tenantID string, cutoff time.Time) ([]*models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Contract
	for _, c := range f.contracts {
		if tenantID != "" && c.TenantID != tenantID {
			continue
		}
		if c.Status == models.ContractActive && c.EndDate.Before(cutoff) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeContractStore) RenewContract(_ context.Context, id string, newEnd time.Time) (*models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == f.failRenew {
		return nil, errors.New("connection reset")
	}
	c := f.contracts[id]
	c.EndDate = newEnd
	c.RenewalCount++
	cp := *c
	return &cp, nil
}

func (f *fakeContractStore) ExpireContract(_ context.Context, id string) (*models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.contracts[id]
	c.Status = models.ContractExpired
	cp := *c
	return &cp, nil
}

func TestDecideContract(t *testing.T) {
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	window := 30 * 24 * time.Hour
	c := func(endInDays int, auto bool) *models.Contract {
		return &models.Contract{Status: models.ContractActive, EndDate: now.AddDate(0, 0, endInDays), AutoRenew: auto}
	}

	assert.Equal(t, ContractRenew, DecideContract(c(10, true), now, window))
	assert.Equal(t, ContractRenew, DecideContract(c(-3, true), now, window))
	assert.Equal(t, ContractKeep, DecideContract(c(60, true), now, window))
	assert.Equal(t, ContractExpire, DecideContract(c(-1, false), now, window))
	assert.Equal(t, ContractExpire, DecideContract(c(0, false), now, window))
	assert.Equal(t, ContractWarn, DecideContract(c(5, false), now, window))

	cancelled := c(-1, false)
	cancelled.Status = models.ContractCancelled
	assert.Equal(t, ContractKeep, DecideContract(cancelled, now, window))
}

func TestRenewedEndDate(t *testing.T) {
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC), RenewedEndDate(end, 3))
	assert.Equal(t, time.Date(2027, 11, 1, 0, 0, 0, 0, time.UTC), RenewedEndDate(end, 0))
}

func TestContractRenewer_Run(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	store := &fakeContractStore{
		failRenew: "c-broken",
		contracts: map[string]*models.Contract{
			"c-auto":    {ID: "c-auto", TenantID: "t-1", Title: "Support", OwnerID: "owner-1", EndDate: now.AddDate(0, 0, 10), TermMonths: 12, AutoRenew: true, Status: models.ContractActive},
			"c-lapsed":  {ID: "c-lapsed", TenantID: "t-1", Title: "Pilot", OwnerID: "owner-1", EndDate: now.AddDate(0, 0, -2), TermMonths: 6, Status: models.ContractActive},
			"c-soon":    {ID: "c-soon", TenantID: "t-1", Title: "Licence", EndDate: now.AddDate(0, 0, 5), TermMonths: 12, Status: models.ContractActive},
			"c-later":   {ID: "c-later", TenantID: "t-1", Title: "Hosting", EndDate: now.AddDate(1, 0, 0), TermMonths: 12, AutoRenew: true, Status: models.ContractActive},
			"c-broken":  {ID: "c-broken", TenantID: "t-1", Title: "Broken", EndDate: now.AddDate(0, 0, 1), TermMonths: 12, AutoRenew: true, Status: models.ContractActive},
			"c-expired": {ID: "c-expired", TenantID: "t-1", Title: "Old", EndDate: now.AddDate(-1, 0, 0), Status: models.ContractExpired},
		},
	}
	audit, notifier := new(MockAuditLogger), new(MockNotifier)
	audit.On("LogAction", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Send", mock.Anything, mock.Anything).Return(nil)

	r := NewContractRenewer(store, audit, notifier, inline, nil, RenewalOptions{Concurrency: 2})
	r.now = func() time.Time { return now }

	report, err := r.Run(ctx, "t-1", "scheduler")
	require.NoError(t, err)
	assert.Equal(t, []string{"c-auto"}, report.Renewed)
	assert.Equal(t, []string{"c-lapsed"}, report.Expired)
	assert.Equal(t, []string{"c-soon"}, report.Expiring)
	assert.Equal(t, []string{"c-broken"}, report.Failed)

	renewed := store.contracts["c-auto"]
	assert.Equal(t, now.AddDate(0, 0, 10).AddDate(0, 12, 0), renewed.EndDate)
	assert.Equal(t, 1, renewed.RenewalCount)
	assert.Equal(t, models.ContractActive, renewed.Status)
	assert.Equal(t, models.ContractExpired, store.contracts["c-lapsed"].Status)
	assert.Equal(t, 0, store.contracts["c-later"].RenewalCount)

	audit.AssertNumberOfCalls(t, "LogAction", 2)
	// c-soon has no owner, so only the renewed and expired contracts notify.
	notifier.AssertNumberOfCalls(t, "Send", 2)
}

func TestContractRenewer_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	now := time.Now()
	store := &fakeContractStore{contracts: map[string]*models.Contract{
		"c-1": {ID: "c-1", EndDate: now.Add(time.Hour), AutoRenew: true, Status: models.ContractActive},
	}}

	r := NewContractRenewer(store, nil, nil, inline, nil, RenewalOptions{})
	_, err := r.Run(ctx, "", "scheduler")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.contracts["c-1"].RenewalCount)
}
