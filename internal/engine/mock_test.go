package engine

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListEmails(ctx context.Context, workspaceID string, limit, offset int) ([]model.EmailMessage, error) {
	args := m.Called(ctx, workspaceID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EmailMessage), args.Error(1)
}

func (m *mockStore) FindPersonsByAddress(ctx context.Context, workspaceID, address string) ([]model.Person, error) {
	args := m.Called(ctx, workspaceID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Person), args.Error(1)
}

func (m *mockStore) CreatePerson(ctx context.Context, p *model.Person) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *mockStore) FindCompaniesByAddress(ctx context.Context, workspaceID, address, domain, nameToken string) ([]model.Company, error) {
	args := m.Called(ctx, workspaceID, address, domain, nameToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Company), args.Error(1)
}

func (m *mockStore) CreateCompany(ctx context.Context, c *model.Company) (bool, error) {
	args := m.Called(ctx, c)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ListActions(ctx context.Context, workspaceID string, limit int) ([]model.Action, error) {
	args := m.Called(ctx, workspaceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Action), args.Error(1)
}

func (m *mockStore) FindActionByFingerprint(ctx context.Context, workspaceID, fingerprint string) (*model.Action, error) {
	args := m.Called(ctx, workspaceID, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Action), args.Error(1)
}

func (m *mockStore) CreateAction(ctx context.Context, a *model.Action) (bool, error) {
	args := m.Called(ctx, a)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) LinkEmailPerson(ctx context.Context, link *model.EmailPersonLink) (bool, error) {
	args := m.Called(ctx, link)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) LinkEmailCompany(ctx context.Context, link *model.EmailCompanyLink) (bool, error) {
	args := m.Called(ctx, link)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) LinkEmailAction(ctx context.Context, link *model.EmailActionLink) (bool, error) {
	args := m.Called(ctx, link)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CoverageCounts(ctx context.Context, workspaceID string) (*model.CoverageReport, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CoverageReport), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Ensure interface compliance ---
var _ store.Store = (*mockStore)(nil)
