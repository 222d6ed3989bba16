package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dealdesk/crm-report-cli/internal/model"
	"github.com/dealdesk/crm-report-cli/internal/store"
	"github.com/dealdesk/crm-report-cli/pkg/hubspot"
)

// --- CRM Mock ---

type mockCRM struct {
	mock.Mock
}

func (m *mockCRM) ListOwners(ctx context.Context) ([]hubspot.Owner, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.Owner), args.Error(1)
}

func (m *mockCRM) ListPipelines(ctx context.Context) ([]hubspot.Pipeline, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.Pipeline), args.Error(1)
}

func (m *mockCRM) ListDealProperties(ctx context.Context) ([]hubspot.Property, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.Property), args.Error(1)
}

func (m *mockCRM) GetDealProperty(ctx context.Context, name string) (*hubspot.Property, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hubspot.Property), args.Error(1)
}

func (m *mockCRM) SearchDeals(ctx context.Context, req hubspot.SearchRequest) ([]hubspot.Deal, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.Deal), args.Error(1)
}

func (m *mockCRM) ListDeals(ctx context.Context, properties []string) ([]hubspot.Deal, error) {
	args := m.Called(ctx, properties)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.Deal), args.Error(1)
}

func (m *mockCRM) BatchDealCompanies(ctx context.Context, dealIDs []string) (map[string]string, error) {
	args := m.Called(ctx, dealIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *mockCRM) BatchCompanyNames(ctx context.Context, companyIDs []string) (map[string]string, error) {
	args := m.Called(ctx, companyIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) CreateRun(ctx context.Context, report model.ReportKind, week string) (*model.Run, error) {
	args := m.Called(ctx, report, week)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, errMsg, category string) error {
	args := m.Called(ctx, runID, errMsg, category)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
