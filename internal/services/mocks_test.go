package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"business-os/backend/internal/logging"
	"business-os/backend/internal/sideeffect"
	"business-os/backend/pkg/models"
)

var inline = sideeffect.Inline{Logger: logging.Discard()}

func strPtr(s string) *string { return &s }

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogAction(ctx context.Context, entry *models.AuditEntry) error {
	return m.Called(ctx, entry).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type MockOutbox struct {
	mock.Mock
}

func (m *MockOutbox) SaveNotification(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type MockLeadStore struct {
	mock.Mock
}

func (m *MockLeadStore) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadStore) ListActiveReps(ctx context.Context, tenantID string) ([]*models.SalesRep, error) {
	args := m.Called(ctx, tenantID)
	reps, _ := args.Get(0).([]*models.SalesRep)
	return reps, args.Error(1)
}

func (m *MockLeadStore) OpenLeadCounts(ctx context.Context, tenantID string) (map[string]int, error) {
	args := m.Called(ctx, tenantID)
	counts, _ := args.Get(0).(map[string]int)
	return counts, args.Error(1)
}

func (m *MockLeadStore) LastAssignedRep(ctx context.Context, tenantID string) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

func (m *MockLeadStore) AssignLead(ctx context.Context, leadID, repID string) (*models.Lead, error) {
	args := m.Called(ctx, leadID, repID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

type MockDealStore struct {
	mock.Mock
}

func (m *MockDealStore) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deal), args.Error(1)
}

func (m *MockDealStore) AverageDealAmount(ctx context.Context, tenantID string) (float64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockDealStore) UpdateDealProbability(ctx context.Context, id string, probability int) (*models.Deal, error) {
	args := m.Called(ctx, id, probability)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deal), args.Error(1)
}

type MockUsageStore struct {
	mock.Mock
}

func (m *MockUsageStore) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockUsageStore) GetUsage(ctx context.Context, tenantID string, period time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, period)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageStore) AddUsage(ctx context.Context, tenantID string, period time.Time, tokens int64) (int64, error) {
	args := m.Called(ctx, tenantID, period, tokens)
	return args.Get(0).(int64), args.Error(1)
}
