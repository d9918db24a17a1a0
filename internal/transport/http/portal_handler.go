package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"fusionbi/internal/auth"
	apierrors "fusionbi/internal/errors"
	"fusionbi/internal/services"
	"fusionbi/pkg/contracts/domain"
)

var moduleMissingTemplate = template.Must(template.New("module_missing").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.}} - Fusion BI</title></head>
<body>
<p>The {{.}} module is not installed on this server.</p>
<a href="/">Back to Home</a>
</body>
</html>
`))

// PortalHandler serves the landing page and module entry points
type PortalHandler struct {
	service      PortalServiceInterface
	users        CurrentUserResolver
	sessions     SessionCookies
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewPortalHandler creates a new portal handler
func NewPortalHandler(service PortalServiceInterface, users CurrentUserResolver, sessions SessionCookies, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PortalHandler {
	return &PortalHandler{
		service:      service,
		users:        users,
		sessions:     sessions,
		logger:       logger.With(slog.String("component", "portal_handler")),
		errorHandler: errorHandler,
	}
}

// Routes mounts the JSON portal endpoints under /api/portal
func (h *PortalHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/home", h.GetHome)

	return r
}

// currentUser resolves the session user. On failure the response has been
// written and ok is false.
func (h *PortalHandler) currentUser(w http.ResponseWriter, r *http.Request, page bool) (*domain.User, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		return nil, false
	}

	user, err := h.users.CurrentUser(r.Context(), claims)
	switch {
	case err == nil:
		return user, true
	case errors.Is(err, services.ErrSessionInvalid):
		h.sessions.ClearCookie(w)
		if page {
			http.Redirect(w, r, "/login", http.StatusFound)
		} else {
			h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		}
	default:
		h.errorHandler.HandleError(w, r, apierrors.ErrLoginUnavailable)
	}
	return nil, false
}

// GetHome handles GET /api/portal/home
func (h *PortalHandler) GetHome(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, false)
	if !ok {
		return
	}

	home, err := h.service.Home(r.Context(), user)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load home page",
			slog.String("error", err.Error()),
			slog.Int64("user_id", user.ID),
		)
		h.errorHandler.HandleError(w, r, apierrors.ErrServiceUnavailable)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   home,
	})
}

// HomePage handles GET /
func (h *PortalHandler) HomePage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r, true)
	if !ok {
		return
	}

	home, err := h.service.Home(r.Context(), user)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load home page",
			slog.String("error", err.Error()),
			slog.Int64("user_id", user.ID),
		)
		h.errorHandler.HandleError(w, r, apierrors.ErrServiceUnavailable)
		return
	}

	renderPage(w, h.logger, r, http.StatusOK, homeTemplate, home)
}

// ModulePage handles module URLs that no installed module serves.
// Access has already been checked by the module middleware.
func (h *PortalHandler) ModulePage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, h.logger, r, http.StatusNotFound, moduleMissingTemplate, chi.URLParam(r, "module"))
}

// CoreRedirect handles GET /module/Core
func CoreRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/module/Core/", http.StatusFound)
}
