package http

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"fusionbi/internal/auth"
	"fusionbi/internal/exporter"
	"fusionbi/internal/reporting"
	"fusionbi/internal/services"
	"fusionbi/pkg/contracts/domain"
)

// MockAuthService is a mock implementation of AuthServiceInterface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, login, password string) (*services.LoginResult, error) {
	args := m.Called(login, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LoginResult), args.Error(1)
}

func (m *MockAuthService) CurrentUser(ctx context.Context, claims *auth.Claims) (*domain.User, error) {
	args := m.Called(claims)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockSessionCookies records cookie writes
type MockSessionCookies struct {
	mock.Mock
}

func (m *MockSessionCookies) SetCookie(w http.ResponseWriter, token string) {
	m.Called(token)
}

func (m *MockSessionCookies) ClearCookie(w http.ResponseWriter) {
	m.Called()
}

// MockPortalService is a mock implementation of PortalServiceInterface
type MockPortalService struct {
	mock.Mock
}

func (m *MockPortalService) Home(ctx context.Context, user *domain.User) (*services.HomePage, error) {
	args := m.Called(user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.HomePage), args.Error(1)
}

// MockCoreService is a mock implementation of CoreServiceInterface
type MockCoreService struct {
	mock.Mock
}

func (m *MockCoreService) Overview(ctx context.Context, topLimit int) (*services.CoreOverview, error) {
	args := m.Called(topLimit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CoreOverview), args.Error(1)
}

func (m *MockCoreService) Tables(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCoreService) RefreshTables(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCoreService) TopTables(ctx context.Context, limit int) ([]domain.TableRowCount, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TableRowCount), args.Error(1)
}

func (m *MockCoreService) Preview(ctx context.Context, table string, limit int) (*domain.TablePreview, error) {
	args := m.Called(table, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TablePreview), args.Error(1)
}

// MockDashboardService is a mock implementation of DashboardServiceInterface
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) AvailableMonths(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDashboardService) Aggregate(ctx context.Context, month string, filter reporting.Filter) (*reporting.AggregateResult, error) {
	args := m.Called(month, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reporting.AggregateResult), args.Error(1)
}

func (m *MockDashboardService) Options(ctx context.Context, month, principal string) (reporting.FilterOptions, error) {
	args := m.Called(month, principal)
	return args.Get(0).(reporting.FilterOptions), args.Error(1)
}

func (m *MockDashboardService) Completeness(ctx context.Context, month string, filter reporting.Filter) ([]reporting.RouteCompleteness, error) {
	args := m.Called(month, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reporting.RouteCompleteness), args.Error(1)
}

func (m *MockDashboardService) Records(ctx context.Context, month string, filter reporting.Filter) ([]reporting.MovementRecord, error) {
	args := m.Called(month, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reporting.MovementRecord), args.Error(1)
}

func (m *MockDashboardService) Export(ctx context.Context, month string, filter reporting.Filter) (*exporter.MonthReport, error) {
	args := m.Called(month, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exporter.MonthReport), args.Error(1)
}

func (m *MockDashboardService) Invalidate(ctx context.Context, month string) error {
	return m.Called(month).Error(0)
}

func (m *MockDashboardService) Stats() reporting.CacheStats {
	return m.Called().Get(0).(reporting.CacheStats)
}
