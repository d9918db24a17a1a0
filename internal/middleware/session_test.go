package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fusionbi/internal/auth"
	apierrors "fusionbi/internal/errors"
	"fusionbi/internal/shared/testutil"
)

type MockSessionValidator struct {
	mock.Mock
}

func (m *MockSessionValidator) TokenFromRequest(r *http.Request) (string, error) {
	args := m.Called(r)
	return args.String(0), args.Error(1)
}

func (m *MockSessionValidator) Validate(token string) (*auth.Claims, error) {
	args := m.Called(token)
	if c := args.Get(0); c != nil {
		return c.(*auth.Claims), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockModuleAccessChecker struct {
	mock.Mock
}

func (m *MockModuleAccessChecker) CanAccessURL(ctx context.Context, userID int64, url string) (bool, error) {
	args := m.Called(ctx, userID, url)
	return args.Bool(0), args.Error(1)
}

func TestRequireSession(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		accept     string
		setup      func(*MockSessionValidator)
		wantStatus int
		wantHeader string
	}{
		{
			name: "valid session",
			path: "/api/me",
			setup: func(m *MockSessionValidator) {
				m.On("TokenFromRequest", mock.Anything).Return("tok", nil)
				m.On("Validate", "tok").Return(&auth.Claims{UserID: 7, Username: "jdoe"}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "api without session",
			path: "/api/dashboard/months",
			setup: func(m *MockSessionValidator) {
				m.On("TokenFromRequest", mock.Anything).Return("", auth.ErrNoSession)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "page without session redirects",
			path: "/module/Core/",
			setup: func(m *MockSessionValidator) {
				m.On("TokenFromRequest", mock.Anything).Return("", auth.ErrNoSession)
			},
			wantStatus: http.StatusFound,
			wantHeader: "/login?next=%2Fmodule%2FCore%2F",
		},
		{
			name:   "json client with expired token",
			path:   "/",
			accept: "application/json",
			setup: func(m *MockSessionValidator) {
				m.On("TokenFromRequest", mock.Anything).Return("old", nil)
				m.On("Validate", "old").Return(nil, errors.New("token is expired"))
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			sessions := new(MockSessionValidator)
			tt.setup(sessions)

			var claims *auth.Claims
			h := RequireSession(sessions, apierrors.NewErrorHandler(logger, false), logger)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					claims, _ = auth.ClaimsFromContext(r.Context())
				}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantHeader != "" {
				assert.Equal(t, tt.wantHeader, rec.Header().Get("Location"))
			}
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, claims)
				assert.Equal(t, int64(7), claims.UserID)
			} else {
				assert.Nil(t, claims)
			}
			sessions.AssertExpectations(t)
		})
	}
}

func TestRequireModule(t *testing.T) {
	tests := []struct {
		name       string
		allowed    bool
		err        error
		wantStatus int
	}{
		{"granted", true, nil, http.StatusOK},
		{"denied", false, nil, http.StatusForbidden},
		{"lookup failure", false, errors.New("db down"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			checker := new(MockModuleAccessChecker)
			checker.On("CanAccessURL", mock.Anything, int64(7), "/module/Core").Return(tt.allowed, tt.err)
			errHandler := apierrors.NewErrorHandler(logger, false)

			r := chi.NewRouter()
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), &auth.Claims{UserID: 7})))
				})
			})
			r.Route("/module/{module}", func(r chi.Router) {
				r.Use(RequireModule(checker, errHandler, logger))
				r.Get("/*", okHandler)
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/module/Core/tables", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			checker.AssertExpectations(t)
		})
	}
}

func TestRequireModule_WithoutSession(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	checker := new(MockModuleAccessChecker)
	h := RequireModule(checker, apierrors.NewErrorHandler(logger, false), logger)(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/module/Core/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	checker.AssertNotCalled(t, "CanAccessURL", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequireModuleURL(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	checker := new(MockModuleAccessChecker)
	checker.On("CanAccessURL", mock.Anything, int64(7), "/module/Core").Return(false, nil)

	h := RequireModuleURL(checker, "/module/Core", apierrors.NewErrorHandler(logger, false), logger)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/core/tables", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{UserID: 7}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	checker.AssertExpectations(t)
}
