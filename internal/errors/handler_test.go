package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"fusionbi/internal/reporting"
	"fusionbi/internal/shared/testutil"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
		wantDetail string
	}{
		{
			name:       "context deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "api error",
			err:        ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantType:   TypeUnauthorized,
			wantCode:   CodeInvalidCredentials,
			wantDetail: "Invalid credentials.",
		},
		{
			name:       "wrapped api error",
			err:        fmt.Errorf("login: %w", ErrAccountInactive),
			wantStatus: http.StatusForbidden,
			wantType:   TypeForbidden,
			wantCode:   CodeAccountInactive,
		},
		{
			name:       "invalid month key",
			err:        &reporting.InvalidMonthKeyError{Key: "2025-13", Reason: "month out of range"},
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidMonth,
			wantCode:   CodeInvalidMonthKey,
		},
		{
			name:       "data access hides driver message",
			err:        &reporting.DataAccessError{Op: "fetch movements", Err: fmt.Errorf("login failed for user 'sa'")},
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeDataAccess,
			wantCode:   CodeDataAccessFailed,
			wantDetail: ErrReportUnavailable.Message,
		},
		{
			name:       "data access timeout stays a data error",
			err:        &reporting.DataAccessError{Op: "fetch movements", Err: context.DeadlineExceeded},
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeDataAccess,
		},
		{
			name:       "not implemented",
			err:        ErrNotImplemented,
			wantStatus: http.StatusNotImplemented,
			wantType:   TypeNotImplemented,
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodGet, "/api/reporting/months/2025-01", nil)
			rec := httptest.NewRecorder()
			handler.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/reporting/months/2025-01", body["instance"])
			assert.NotContains(t, body, "stack")
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			}
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body["detail"])
			}
			assert.NotContains(t, rec.Body.String(), "login failed for user")

			testutil.AssertLogAttr(t, logs, "component", "error_handler")
			assert.True(t, logs.ContainsMessage("request failed"))
		})
	}
}

func TestErrorHandler_NilError(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, true)

	rec := httptest.NewRecorder()
	handler.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Zero(t, rec.Body.Len())
	assert.Zero(t, logs.Count())
}

func TestErrorHandler_LogLevelFollowsStatus(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.HandleError(httptest.NewRecorder(), req, ErrMissingLogin)
	assert.Len(t, logs.GetRecordsByLevel(slog.LevelWarn), 1)
	testutil.AssertNoErrors(t, logs)

	handler.HandleError(httptest.NewRecorder(), req, fmt.Errorf("boom"))
	assert.Len(t, logs.GetRecordsByLevel(slog.LevelError), 1)
}

func TestErrorHandler_RecordsServerErrorsOnSpan(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantEvents int
	}{
		{"server error", fmt.Errorf("boom"), codes.Error, 1},
		{"client error", ErrMissingLogin, codes.Unset, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			defer provider.Shutdown(context.Background())

			ctx, span := provider.Tracer("test").Start(context.Background(), "request")
			logger, _ := testutil.NewTestLogger(t)
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
			NewErrorHandler(logger, false).HandleError(httptest.NewRecorder(), req, tt.err)
			span.End()

			ended := recorder.Ended()
			require.Len(t, ended, 1)
			assert.Equal(t, tt.wantStatus, ended[0].Status().Code)
			assert.Len(t, ended[0].Events(), tt.wantEvents)
		})
	}
}

func TestErrorHandler_ValidationErrors(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	err := NewValidationErrors([]ValidationError{
		{Field: "login", Message: "required"},
		{Field: "password", Message: "required"},
	})
	rec := httptest.NewRecorder()
	handler.HandleError(rec, httptest.NewRequest(http.MethodPost, "/login", nil), err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeValidation, body["type"])
	fields, ok := body["errors"].([]interface{})
	require.True(t, ok)
	assert.Len(t, fields, 2)
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	tests := []struct {
		name         string
		includeStack bool
	}{
		{"production", false},
		{"development", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, tt.includeStack)

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(RecoveryMiddleware(handler))
			r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
				panic("cache corrupted")
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, TypeInternal, body["type"])
			assert.NotEmpty(t, body["trace_id"])
			if tt.includeStack {
				assert.Equal(t, "cache corrupted", body["panic"])
				assert.Contains(t, body, "stack")
			} else {
				assert.NotContains(t, body, "panic")
			}
			testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")
		})
	}
}

func TestErrorHandler_RoutingFallbacks(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	r := chi.NewRouter()
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method DELETE is not allowed for this endpoint", decodeProblem(t, rec)["detail"])
}

func TestProblemDetailsMarshal(t *testing.T) {
	pd := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad", "", "").
		WithExtension("error_code", CodeValidationFailed)

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, CodeValidationFailed, body["error_code"])
	assert.NotContains(t, body, "detail")
	assert.NotContains(t, body, "instance")
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrRateLimitExceeded)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), CodeRateLimitExceeded)
}
