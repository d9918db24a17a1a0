package http

import (
	"context"
	"net/http"

	"fusionbi/internal/auth"
	"fusionbi/internal/exporter"
	"fusionbi/internal/reporting"
	"fusionbi/internal/services"
	"fusionbi/pkg/contracts/domain"
)

// AuthServiceInterface defines the sign-in operations used by AuthHandler
type AuthServiceInterface interface {
	Login(ctx context.Context, login, password string) (*services.LoginResult, error)
	CurrentUser(ctx context.Context, claims *auth.Claims) (*domain.User, error)
}

// CurrentUserResolver loads the account behind a session
type CurrentUserResolver interface {
	CurrentUser(ctx context.Context, claims *auth.Claims) (*domain.User, error)
}

// SessionCookies writes and clears the session cookie
type SessionCookies interface {
	SetCookie(w http.ResponseWriter, token string)
	ClearCookie(w http.ResponseWriter)
}

// PortalServiceInterface defines the landing page operations
type PortalServiceInterface interface {
	Home(ctx context.Context, user *domain.User) (*services.HomePage, error)
}

// CoreServiceInterface defines the Core explorer operations
type CoreServiceInterface interface {
	Overview(ctx context.Context, topLimit int) (*services.CoreOverview, error)
	Tables(ctx context.Context) ([]string, error)
	RefreshTables(ctx context.Context) ([]string, error)
	TopTables(ctx context.Context, limit int) ([]domain.TableRowCount, error)
	Preview(ctx context.Context, table string, limit int) (*domain.TablePreview, error)
}

// DashboardServiceInterface defines the reporting dashboard operations
type DashboardServiceInterface interface {
	AvailableMonths(ctx context.Context) ([]string, error)
	Aggregate(ctx context.Context, month string, filter reporting.Filter) (*reporting.AggregateResult, error)
	Options(ctx context.Context, month, principal string) (reporting.FilterOptions, error)
	Completeness(ctx context.Context, month string, filter reporting.Filter) ([]reporting.RouteCompleteness, error)
	Records(ctx context.Context, month string, filter reporting.Filter) ([]reporting.MovementRecord, error)
	Export(ctx context.Context, month string, filter reporting.Filter) (*exporter.MonthReport, error)
	Invalidate(ctx context.Context, month string) error
	Stats() reporting.CacheStats
}

var (
	_ AuthServiceInterface      = (*services.AuthService)(nil)
	_ PortalServiceInterface    = (*services.PortalService)(nil)
	_ CoreServiceInterface      = (*services.CoreService)(nil)
	_ DashboardServiceInterface = (*services.DashboardService)(nil)
	_ SessionCookies            = (*auth.SessionManager)(nil)
)
