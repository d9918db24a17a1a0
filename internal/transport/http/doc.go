// Package http implements the HTTP handlers of the Fusion BI portal.
// Handlers are a thin layer between chi routes and the services package:
// they parse and validate the request, call one service method and render
// the result.
//
// # Handlers
//
//	AuthHandler       GET/POST /login, /logout, GET /api/me
//	PortalHandler     GET /, GET /api/portal/home, unknown module pages
//	CoreHandler       /module/Core/ page and its JSON API
//	DashboardHandler  /api/dashboard months, exports and cache control
//	WebSocketHandler  /api/dashboard/ws refresh events
//	HealthHandler     /healthz, /api/health, /api/version
//
// # Responses
//
// JSON responses wrap their payload:
//
//	{"status": "success", "data": ..., "count": 3}
//
// Errors are never written directly. Service errors are mapped to
// errors.APIError values and passed to errors.ErrorHandler, which renders
// RFC 7807 problem details:
//
//	{
//	    "type": "/errors/unauthorized",
//	    "title": "Unauthorized",
//	    "status": 401,
//	    "detail": "Invalid credentials.",
//	    "instance": "/login",
//	    "error_code": "INVALID_CREDENTIALS"
//	}
//
// Browser form posts to /login get the login page back with the message
// instead.
//
// # Routing
//
// Each handler exposes Routes() returning a chi.Router that the app package
// mounts. Route-level concerns such as sessions and module grants are
// applied by the app package, not by handlers.
package http
