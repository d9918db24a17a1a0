package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "fusionbi/internal/errors"
	"fusionbi/internal/exporter"
	"fusionbi/internal/reporting"
	api "fusionbi/pkg/contracts/api/v1"
)

// DashboardHandler serves the movement reporting dashboard API
type DashboardHandler struct {
	service      DashboardServiceInterface
	validator    StructValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, validator StructValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes mounts the dashboard endpoints under /api/dashboard
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/months/{month}/export.xlsx", h.Export)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/months", h.GetMonths)
		r.Get("/months/{month}", h.GetMonth)
		r.Get("/months/{month}/options", h.GetOptions)
		r.Get("/months/{month}/completeness", h.GetCompleteness)
		r.Get("/months/{month}/records", h.GetRecords)

		r.Post("/cache/invalidate", h.InvalidateCache)
		r.Get("/cache/stats", h.GetCacheStats)
	})

	return r
}

// filter reads the principal and interface query parameters. On failure the
// error response has been written and ok is false.
func (h *DashboardHandler) filter(w http.ResponseWriter, r *http.Request) (reporting.Filter, bool) {
	q := api.DashboardQuery{
		Principal: strings.TrimSpace(r.URL.Query().Get("principal")),
		Interface: strings.TrimSpace(r.URL.Query().Get("interface")),
	}
	if err := h.validator.ValidateStruct(&q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return reporting.Filter{}, false
	}
	return reporting.Filter{Principal: q.Principal, Interface: q.Interface}.Normalized(), true
}

func (h *DashboardHandler) failed(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "dashboard request failed",
		slog.String("op", op),
		slog.String("month", chi.URLParam(r, "month")),
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	h.errorHandler.HandleError(w, r, err)
}

// GetMonths handles GET /api/dashboard/months
func (h *DashboardHandler) GetMonths(w http.ResponseWriter, r *http.Request) {
	months, err := h.service.AvailableMonths(r.Context())
	if err != nil {
		h.failed(w, r, "months", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   months,
		"count":  len(months),
	})
}

// GetMonth handles GET /api/dashboard/months/{month}
func (h *DashboardHandler) GetMonth(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}

	result, err := h.service.Aggregate(r.Context(), chi.URLParam(r, "month"), filter)
	if err != nil {
		h.failed(w, r, "aggregate", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// GetOptions handles GET /api/dashboard/months/{month}/options
func (h *DashboardHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}

	options, err := h.service.Options(r.Context(), chi.URLParam(r, "month"), filter.Principal)
	if err != nil {
		h.failed(w, r, "options", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   options,
	})
}

// GetCompleteness handles GET /api/dashboard/months/{month}/completeness
func (h *DashboardHandler) GetCompleteness(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}

	rows, err := h.service.Completeness(r.Context(), chi.URLParam(r, "month"), filter)
	if err != nil {
		h.failed(w, r, "completeness", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   rows,
		"count":  len(rows),
	})
}

// GetRecords handles GET /api/dashboard/months/{month}/records
func (h *DashboardHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}

	records, err := h.service.Records(r.Context(), chi.URLParam(r, "month"), filter)
	if err != nil {
		h.failed(w, r, "records", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   records,
		"count":  len(records),
	})
}

// Export handles GET /api/dashboard/months/{month}/export.xlsx
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}

	report, err := h.service.Export(r.Context(), chi.URLParam(r, "month"), filter)
	if err != nil {
		h.failed(w, r, "export", err)
		return
	}

	// Build the workbook before writing headers so failures still get a
	// problem response.
	var buf bytes.Buffer
	if _, err := report.WriteTo(&buf); err != nil {
		h.failed(w, r, "export", err)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export download interrupted",
			slog.String("month", report.Month),
			slog.String("error", err.Error()),
		)
		return
	}

	h.logger.InfoContext(r.Context(), "month exported",
		slog.String("month", report.Month),
		slog.String("principal", filter.Principal),
		slog.String("interface", filter.Interface),
		slog.Int("records", len(report.Records)),
	)
}

// InvalidateCache handles POST /api/dashboard/cache/invalidate. The month
// comes from ?month= or a JSON body; without one every month is dropped.
func (h *DashboardHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	req := api.CacheInvalidateRequest{Month: strings.TrimSpace(r.URL.Query().Get("month"))}
	if req.Month == "" && r.ContentLength != 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		req.Month = strings.TrimSpace(req.Month)
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidMonthKey(req.Month))
		return
	}

	if err := h.service.Invalidate(r.Context(), req.Month); err != nil {
		h.failed(w, r, "invalidate", err)
		return
	}

	scope := req.Month
	if scope == "" {
		scope = "all"
	}
	render.JSON(w, r, map[string]interface{}{
		"status":      "success",
		"invalidated": scope,
	})
}

// GetCacheStats handles GET /api/dashboard/cache/stats
func (h *DashboardHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.service.Stats()
	render.JSON(w, r, map[string]interface{}{
		"status":    "success",
		"data":      stats,
		"hit_ratio": stats.HitRatio(),
	})
}
