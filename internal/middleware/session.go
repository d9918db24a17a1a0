package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"fusionbi/internal/auth"
	apierrors "fusionbi/internal/errors"
	"fusionbi/internal/infrastructure"
)

// SessionValidator extracts and validates session tokens.
type SessionValidator interface {
	TokenFromRequest(r *http.Request) (string, error)
	Validate(token string) (*auth.Claims, error)
}

// ModuleAccessChecker decides whether a user may open a module URL.
type ModuleAccessChecker interface {
	CanAccessURL(ctx context.Context, userID int64, url string) (bool, error)
}

// RequireSession rejects requests without a valid session. API requests get
// a 401 problem response, page requests are redirected to the login page.
func RequireSession(sessions SessionValidator, errHandler *apierrors.ErrorHandler, logger *slog.Logger) func(next http.Handler) http.Handler {
	logger = infrastructure.WithComponent(logger, "session")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, err := sessions.TokenFromRequest(r)
			var claims *auth.Claims
			if err == nil {
				claims, err = sessions.Validate(token)
				if err != nil {
					logger.WarnContext(ctx, "invalid session token",
						slog.String("error", err.Error()),
						slog.String("path", r.URL.Path),
						slog.String("remote_addr", r.RemoteAddr),
					)
				}
			}
			if err != nil {
				if wantsJSON(r) {
					errHandler.HandleError(w, r, apierrors.ErrUnauthorized)
					return
				}
				http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(ctx, claims)))
		})
	}
}

// RequireModule checks that the signed-in user holds a grant for the module
// named by the {module} route parameter. It must run after RequireSession.
func RequireModule(checker ModuleAccessChecker, errHandler *apierrors.ErrorHandler, logger *slog.Logger) func(next http.Handler) http.Handler {
	return requireModule(checker, errHandler, logger, func(r *http.Request) string {
		return "/module/" + chi.URLParam(r, "module")
	})
}

// RequireModuleURL is RequireModule for routes that serve one fixed module.
func RequireModuleURL(checker ModuleAccessChecker, moduleURL string, errHandler *apierrors.ErrorHandler, logger *slog.Logger) func(next http.Handler) http.Handler {
	return requireModule(checker, errHandler, logger, func(*http.Request) string {
		return moduleURL
	})
}

func requireModule(checker ModuleAccessChecker, errHandler *apierrors.ErrorHandler, logger *slog.Logger, moduleOf func(r *http.Request) string) func(next http.Handler) http.Handler {
	logger = infrastructure.WithComponent(logger, "module_access")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims, ok := auth.ClaimsFromContext(ctx)
			if !ok {
				errHandler.HandleError(w, r, apierrors.ErrUnauthorized)
				return
			}

			moduleURL := moduleOf(r)
			allowed, err := checker.CanAccessURL(ctx, claims.UserID, moduleURL)
			if err != nil {
				logger.ErrorContext(ctx, "module access check failed",
					slog.String("error", err.Error()),
					slog.Int64("user_id", claims.UserID),
					slog.String("module_url", moduleURL),
				)
				errHandler.HandleError(w, r, apierrors.ErrServiceUnavailable)
				return
			}
			if !allowed {
				logger.WarnContext(ctx, "module access denied",
					slog.Int64("user_id", claims.UserID),
					slog.String("module_url", moduleURL),
				)
				errHandler.HandleError(w, r, apierrors.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// wantsJSON reports whether the client is an API caller rather than a browser
// navigating to a page.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
