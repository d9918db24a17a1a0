// Package services implements the business logic of the portal. Handlers in
// internal/transport/http call into services, services call repositories and
// the reporting caches, and nothing below this layer knows about HTTP.
//
// # Services
//
//	AuthService       sign-in, session issue and current user lookup
//	PortalService     landing page data and module access checks
//	CoreService       Core database explorer
//	DashboardService  month snapshots, aggregates, cache control, export
//	HealthService     liveness, readiness and version information
//
// # Errors
//
// Services return the sentinel errors declared in errors.go, wrapped with %w
// when a cause is worth keeping. Reporting and store errors pass through
// unchanged so the error handler can map them to responses.
//
// # Logging
//
// Every service logs through a slog.Logger tagged with its component name.
// Context-aware variants are used so trace IDs reach the log lines.
package services
