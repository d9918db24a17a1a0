package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"fusionbi/internal/auth"
	apierrors "fusionbi/internal/errors"
	"fusionbi/internal/services"
	api "fusionbi/pkg/contracts/api/v1"
)

// StructValidator validates decoded request structs
type StructValidator interface {
	ValidateStruct(v interface{}) error
}

// AuthHandler handles sign-in, sign-out and the current user
type AuthHandler struct {
	service      AuthServiceInterface
	sessions     SessionCookies
	validator    StructValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service AuthServiceInterface, sessions SessionCookies, validator StructValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AuthHandler {
	return &AuthHandler{
		service:      service,
		sessions:     sessions,
		validator:    validator,
		logger:       logger.With(slog.String("component", "auth_handler")),
		errorHandler: errorHandler,
	}
}

// LoginPage handles GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, h.logger, r, http.StatusOK, loginTemplate, loginPage{
		Next: safeNext(r.URL.Query().Get("next")),
	})
}

// Login handles POST /login. JSON callers get the user back, form posts are
// redirected to the page they came from.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	isJSON := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")

	var req api.LoginRequest
	next := "/"
	if isJSON {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		req.Login = r.PostForm.Get("login")
		if req.Login == "" {
			req.Login = r.PostForm.Get("username")
		}
		req.Password = r.PostForm.Get("password")
		next = safeNext(r.PostForm.Get("next"))
	}
	req.Login = strings.TrimSpace(req.Login)

	if req.Login == "" || req.Password == "" {
		h.loginFailed(w, r, isJSON, req.Login, next, apierrors.ErrMissingLogin)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.Login(ctx, req.Login, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login rejected",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(ctx)),
			slog.String("remote_addr", r.RemoteAddr),
		)
		h.loginFailed(w, r, isJSON, req.Login, next, loginError(err))
		return
	}

	h.sessions.SetCookie(w, result.Token)

	if !isJSON {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result.User,
	})
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, isJSON bool, login, next string, apiErr *apierrors.APIError) {
	if isJSON {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}
	renderPage(w, h.logger, r, apiErr.StatusCode, loginTemplate, loginPage{
		Error: apiErr.Message,
		Login: login,
		Next:  next,
	})
}

func loginError(err error) *apierrors.APIError {
	switch {
	case errors.Is(err, services.ErrMissingCredentials):
		return apierrors.ErrMissingLogin
	case errors.Is(err, services.ErrAccountInactive):
		return apierrors.ErrAccountInactive
	case errors.Is(err, services.ErrInvalidCredentials):
		return apierrors.ErrInvalidCredentials
	case errors.Is(err, services.ErrLoginUnavailable):
		return apierrors.ErrLoginUnavailable
	default:
		return apierrors.ErrInternalServer
	}
}

// Logout handles GET and POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		render.JSON(w, r, map[string]string{"status": "success"})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Me handles GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		return
	}

	user, err := h.service.CurrentUser(ctx, claims)
	if err != nil {
		if errors.Is(err, services.ErrSessionInvalid) {
			h.sessions.ClearCookie(w)
			h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
			return
		}
		h.errorHandler.HandleError(w, r, loginError(err))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"user":         user,
			"display_name": user.DisplayName(),
		},
	})
}
