package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"fusionbi/internal/reporting"
	"fusionbi/pkg/contracts/domain"
)

// MockUserStore is a mock for the UserStore interface
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) UserByLogin(ctx context.Context, login string) (*domain.User, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

// MockTokenIssuer is a mock for the TokenIssuer interface
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(u *domain.User) (string, error) {
	args := m.Called(u)
	return args.String(0), args.Error(1)
}

// MockPortalStore is a mock for the PortalStore interface
type MockPortalStore struct {
	mock.Mock
}

func (m *MockPortalStore) Profile(ctx context.Context, userID int64) (domain.UserProfile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.UserProfile), args.Error(1)
}

func (m *MockPortalStore) ModulesForUser(ctx context.Context, userID int64) ([]domain.Module, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Module), args.Error(1)
}

func (m *MockPortalStore) CanAccessURL(ctx context.Context, userID int64, url string) (bool, error) {
	args := m.Called(ctx, userID, url)
	return args.Bool(0), args.Error(1)
}

// MockCoreStore is a mock for the CoreStore interface
type MockCoreStore struct {
	mock.Mock
}

func (m *MockCoreStore) ObjectCounts(ctx context.Context) (domain.ObjectCounts, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.ObjectCounts), args.Error(1)
}

func (m *MockCoreStore) Tables(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCoreStore) RefreshTables(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCoreStore) TopTables(ctx context.Context, limit int) ([]domain.TableRowCount, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TableRowCount), args.Error(1)
}

func (m *MockCoreStore) Preview(ctx context.Context, table string, limit int) (*domain.TablePreview, error) {
	args := m.Called(ctx, table, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TablePreview), args.Error(1)
}

// MockNotifier is a mock for the Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Broadcast(messageType string, data interface{}) {
	m.Called(messageType, data)
}

// MockMovementSource is a mock for reporting.MovementSource
type MockMovementSource struct {
	mock.Mock
}

func (m *MockMovementSource) FetchMovements(ctx context.Context, start, end time.Time) ([]reporting.RawMovement, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reporting.RawMovement), args.Error(1)
}

func (m *MockMovementSource) FetchActiveExpected(ctx context.Context) ([]reporting.ExpectedMovement, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reporting.ExpectedMovement), args.Error(1)
}

func (m *MockMovementSource) FetchMonths(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockHealthDeps implements the health check dependencies
type MockHealthDeps struct {
	mock.Mock
}

func (m *MockHealthDeps) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockHealthDeps) BreakerState() string {
	return m.Called().String(0)
}

func (m *MockHealthDeps) ClientCount() int {
	return m.Called().Int(0)
}

func (m *MockHealthDeps) Stats() reporting.CacheStats {
	return m.Called().Get(0).(reporting.CacheStats)
}
