package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "fusionbi/internal/errors"
	"fusionbi/internal/middleware"
	"fusionbi/internal/services"
	"fusionbi/internal/store"
	api "fusionbi/pkg/contracts/api/v1"
)

const (
	defaultTopTables    = 10
	maxTopTables        = 100
	defaultPreviewLimit = 100
	maxPreviewLimit     = 500
)

var coreTemplate = template.Must(template.New("core").Parse(`<!DOCTYPE html>
<html>
<head><title>Fusion Core</title></head>
<body>
<header><h1>Fusion Core</h1><a href="/">Home</a> <a href="/logout">Logout</a></header>
{{if .Error}}<p role="alert">{{.Error}}</p>{{else}}
<section>
<div><h2>Tables</h2><p>{{.Overview.Counts.Tables}}</p></div>
<div><h2>Views</h2><p>{{.Overview.Counts.Views}}</p></div>
<div><h2>Stored Procedures</h2><p>{{.Overview.Counts.Procedures}}</p></div>
</section>
<h2>Top tables by row count</h2>
<table>
{{range .Overview.TopTables}}<tr><td>{{.Table}}</td><td>{{.Rows}}</td></tr>
{{end}}</table>
<h2>Data explorer</h2>
<ul>
{{range .Overview.Tables}}<li><a href="/module/Core/api/preview?table={{.}}">{{.}}</a></li>
{{end}}</ul>
{{end}}
</body>
</html>
`))

type corePage struct {
	Error    string
	Overview *services.CoreOverview
}

// CoreHandler serves the Core explorer module
type CoreHandler struct {
	service      CoreServiceInterface
	validator    StructValidator
	params       *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewCoreHandler creates a new Core explorer handler
func NewCoreHandler(service CoreServiceInterface, validator StructValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *CoreHandler {
	return &CoreHandler{
		service:      service,
		validator:    validator,
		params:       middleware.NewQueryParamValidator(errorHandler),
		logger:       logger.With(slog.String("component", "core_handler")),
		errorHandler: errorHandler,
	}
}

// Routes mounts the module page and its JSON API under /module/Core
func (h *CoreHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Page)
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/overview", h.GetOverview)
		r.Get("/tables", h.GetTables)
		r.Post("/tables/refresh", h.RefreshTables)
		r.Get("/top", h.GetTopTables)
		r.Get("/preview", h.GetPreview)
	})

	return r
}

// coreError maps store errors to API errors.
func (h *CoreHandler) coreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, store.ErrUnsupported):
		h.errorHandler.HandleError(w, r, apierrors.ErrNotImplemented)
	case errors.Is(err, store.ErrCoreNotConfigured):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusServiceUnavailable,
			apierrors.CodeServiceUnavailable,
			"Core database is not configured",
		))
	case errors.Is(err, store.ErrInvalidTable):
		h.errorHandler.HandleError(w, r, apierrors.ErrInvalidTable)
	default:
		h.logger.ErrorContext(r.Context(), "core query failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		h.errorHandler.HandleError(w, r, apierrors.ErrServiceUnavailable)
	}
}

// Page handles GET /module/Core/
func (h *CoreHandler) Page(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context(), defaultTopTables)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "core module failed to load",
			slog.String("error", err.Error()),
		)
		renderPage(w, h.logger, r, http.StatusOK, coreTemplate, corePage{
			Error: "Core module failed to load from the database.",
		})
		return
	}
	renderPage(w, h.logger, r, http.StatusOK, coreTemplate, corePage{Overview: overview})
}

// GetOverview handles GET /module/Core/api/overview
func (h *CoreHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	top, ok := h.params.ValidateInt(w, r, "top", 1, maxTopTables, defaultTopTables)
	if !ok {
		return
	}

	overview, err := h.service.Overview(r.Context(), top)
	if err != nil {
		h.coreError(w, r, "overview", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   overview,
	})
}

// GetTables handles GET /module/Core/api/tables
func (h *CoreHandler) GetTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.Tables(r.Context())
	if err != nil {
		h.coreError(w, r, "tables", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   tables,
		"count":  len(tables),
	})
}

// RefreshTables handles POST /module/Core/api/tables/refresh
func (h *CoreHandler) RefreshTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.RefreshTables(r.Context())
	if err != nil {
		h.coreError(w, r, "refresh tables", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   tables,
		"count":  len(tables),
	})
}

// GetTopTables handles GET /module/Core/api/top
func (h *CoreHandler) GetTopTables(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.params.ValidateInt(w, r, "limit", 1, maxTopTables, defaultTopTables)
	if !ok {
		return
	}
	req := api.TopTablesRequest{Limit: limit}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	top, err := h.service.TopTables(r.Context(), req.Limit)
	if err != nil {
		h.coreError(w, r, "top tables", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   top,
		"count":  len(top),
	})
}

// GetPreview handles GET /module/Core/api/preview
func (h *CoreHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.params.ValidateInt(w, r, "limit", 1, maxPreviewLimit, defaultPreviewLimit)
	if !ok {
		return
	}
	req := api.TablePreviewRequest{
		Table: strings.TrimSpace(r.URL.Query().Get("table")),
		Limit: limit,
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	preview, err := h.service.Preview(r.Context(), req.Table, req.Limit)
	if err != nil {
		h.coreError(w, r, "preview", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   preview,
	})
}
