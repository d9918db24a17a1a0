package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apierrors "fusionbi/internal/errors"
	"fusionbi/internal/services"
	"fusionbi/internal/store"
	"fusionbi/pkg/contracts/domain"
)

func newCoreHandler(t *testing.T, svc *MockCoreService) *CoreHandler {
	t.Helper()
	logger, errorHandler, validator := newTestDeps(t)
	return NewCoreHandler(svc, validator, logger, errorHandler)
}

func TestCoreHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"sqlite has no catalog", store.ErrUnsupported, http.StatusNotImplemented, apierrors.CodeNotImplemented},
		{"core database missing", store.ErrCoreNotConfigured, http.StatusServiceUnavailable, apierrors.CodeServiceUnavailable},
		{"query failure", fmt.Errorf("list tables: %w", errors.New("login failed for user 'core'")), http.StatusServiceUnavailable, apierrors.CodeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCoreService)
			svc.On("Tables").Return(nil, tt.err)
			handler := newCoreHandler(t, svc)

			rec := httptest.NewRecorder()
			handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tables", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeBody(t, rec)["error_code"])
			assert.NotContains(t, rec.Body.String(), "login failed")
			svc.AssertExpectations(t)
		})
	}
}

func TestCoreHandler_GetPreview(t *testing.T) {
	preview := &domain.TablePreview{
		Table:   "dbo.Orders",
		Columns: []string{"id", "amount"},
		Rows:    []map[string]interface{}{{"id": 1, "amount": 9.5}},
	}

	tests := []struct {
		name       string
		query      string
		setupMock  func(*MockCoreService)
		wantStatus int
		wantCode   string
	}{
		{
			name:  "default limit",
			query: "?table=dbo.Orders",
			setupMock: func(m *MockCoreService) {
				m.On("Preview", "dbo.Orders", 100).Return(preview, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "explicit limit",
			query: "?table=dbo.Orders&limit=5",
			setupMock: func(m *MockCoreService) {
				m.On("Preview", "dbo.Orders", 5).Return(preview, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "limit above maximum",
			query:      "?table=dbo.Orders&limit=501",
			setupMock:  func(*MockCoreService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.CodeValidationFailed,
		},
		{
			name:       "missing table",
			query:      "",
			setupMock:  func(*MockCoreService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.CodeValidationFailed,
		},
		{
			name:       "not a schema.table name",
			query:      "?table=Orders;DROP",
			setupMock:  func(*MockCoreService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.CodeValidationFailed,
		},
		{
			name:  "table outside the list",
			query: "?table=sys.secrets",
			setupMock: func(m *MockCoreService) {
				m.On("Preview", "sys.secrets", 100).Return(nil, store.ErrInvalidTable)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.CodeInvalidTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCoreService)
			tt.setupMock(svc)
			handler := newCoreHandler(t, svc)

			rec := httptest.NewRecorder()
			handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			} else {
				data := body["data"].(map[string]interface{})
				assert.Equal(t, "dbo.Orders", data["table"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestCoreHandler_TopAndRefresh(t *testing.T) {
	svc := new(MockCoreService)
	svc.On("TopTables", 3).Return([]domain.TableRowCount{{Table: "dbo.Orders", Rows: 1200}}, nil)
	svc.On("RefreshTables").Return([]string{"dbo.Customers", "dbo.Orders"}, nil)
	handler := newCoreHandler(t, svc)
	routes := handler.Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/top?limit=3", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/top?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tables/refresh", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"])

	svc.AssertExpectations(t)
}

func TestCoreHandler_Page(t *testing.T) {
	t.Run("overview", func(t *testing.T) {
		svc := new(MockCoreService)
		svc.On("Overview", 10).Return(&services.CoreOverview{
			Counts:    domain.ObjectCounts{Tables: 42, Views: 7, Procedures: 3},
			TopTables: []domain.TableRowCount{{Table: "dbo.Orders", Rows: 1200}},
			Tables:    []string{"dbo.Orders"},
		}, nil)
		handler := newCoreHandler(t, svc)

		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<p>42</p>")
		assert.Contains(t, rec.Body.String(), "dbo.Orders")
	})

	t.Run("database failure shows an alert", func(t *testing.T) {
		svc := new(MockCoreService)
		svc.On("Overview", mock.Anything).Return(nil, errors.New("network unreachable"))
		handler := newCoreHandler(t, svc)

		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Core module failed to load")
		assert.NotContains(t, rec.Body.String(), "network unreachable")
	})
}
