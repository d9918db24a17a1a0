package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"fusionbi/internal/auth"
	"fusionbi/internal/config"
	apierrors "fusionbi/internal/errors"
	"fusionbi/internal/infrastructure"
	customMiddleware "fusionbi/internal/middleware"
	"fusionbi/internal/reporting"
	"fusionbi/internal/scheduler"
	"fusionbi/internal/services"
	"fusionbi/internal/store"
	handlers "fusionbi/internal/transport/http"
	ws "fusionbi/internal/websocket"
	"fusionbi/pkg/contracts"
)

// coreModuleURL is the ADM.Modules URL guarding the Core explorer.
const coreModuleURL = "/module/Core"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	DB            *store.DB
	CoreDB        *store.DB
	Sessions      *auth.SessionManager
	MonthCache    *reporting.MonthCache
	WebSocketHub  *ws.Hub
	Scheduler     *scheduler.Scheduler
	Services      *ServiceContainer

	errorHandler *apierrors.ErrorHandler
	validation   *customMiddleware.ValidationMiddleware
	serveErr     chan error
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Auth      *services.AuthService
	Portal    *services.PortalService
	Core      *services.CoreService
	Dashboard *services.DashboardService
	Health    *services.HealthService
}

// NewApplication loads the configuration and logger, then builds the
// application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(ctx, cfg, logger)
}

// New wires every component from cfg. The database must be reachable; the
// optional Core database only degrades the Core explorer when it is not.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("build", contracts.GetFullVersionString()),
		slog.String("database_driver", cfg.Database.Driver),
	)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		otelProviders.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		errorHandler:  apierrors.NewErrorHandler(logger, isDevelopment()),
		serveErr:      make(chan error, 1),
	}
	a.validation = customMiddleware.NewValidationMiddleware(logger, a.errorHandler)

	if err := a.initializeStores(ctx); err != nil {
		a.closeStores()
		otelProviders.Shutdown(ctx)
		return nil, err
	}

	if err := a.initializeServices(); err != nil {
		a.closeStores()
		otelProviders.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeStores opens the portal/reporting database and the Core database.
func (a *Application) initializeStores(ctx context.Context) error {
	db, err := store.Open(ctx, a.Config.Database, "", a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.DB = db

	switch {
	case !db.Dialect().IsSQLServer():
		// The Core explorer needs SQL Server catalog views; on SQLite it
		// answers "not supported" from the main database.
		a.CoreDB = db
	case a.Config.Database.CoreDatabase == "":
		a.Logger.WarnContext(ctx, "core database not configured, Core explorer disabled")
	default:
		coreDB, err := store.Open(ctx, a.Config.Database, a.Config.Database.CoreDatabase, a.Logger)
		if err != nil {
			a.Logger.WarnContext(ctx, "core database unavailable, Core explorer disabled",
				slog.String("database", a.Config.Database.CoreDatabase),
				slog.String("error", err.Error()),
			)
			return nil
		}
		a.CoreDB = coreDB
	}
	return nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	sessions, err := auth.NewSessionManager(a.Config.Security.Session, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize sessions: %w", err)
	}
	a.Sessions = sessions

	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.Logger, ws.WithMetrics(wsMetrics))

	movements := store.NewMovementRepository(a.DB, a.Config.Reporting.Breaker, a.Logger)
	portal := store.NewPortalRepository(a.DB, a.Logger)
	core := store.NewCoreRepository(a.CoreDB, a.Logger)

	expected := reporting.NewExpectedIndexCache(movements, a.Logger)
	a.MonthCache = reporting.NewMonthCache(movements, expected,
		reporting.WithCapacity(a.Config.Reporting.MonthCacheCapacity),
		reporting.WithLogger(a.Logger),
		reporting.WithObserver(a.Metrics),
	)

	opts := reporting.AggregateOptions{
		TopInterfaces: a.Config.Reporting.TopInterfaces,
		TopErrors:     a.Config.Reporting.TopErrors,
		TopCompletion: a.Config.Reporting.TopCompletion,
	}
	dashboard := services.NewDashboardService(a.MonthCache, opts, a.WebSocketHub, a.Logger)

	a.Scheduler, err = scheduler.New(a.Config.Reporting.ExpectedRefresh, dashboard, a.Metrics, a.Logger)
	if err != nil {
		return err
	}

	a.Services = &ServiceContainer{
		Auth:      services.NewAuthService(portal, sessions, a.Metrics, a.Logger),
		Portal:    services.NewPortalService(portal, a.Logger),
		Core:      services.NewCoreService(core, a.Logger),
		Dashboard: dashboard,
		Health: services.NewHealthService(contracts.Version, services.HealthDependencies{
			Database: a.DB,
			Breaker:  movements,
			Hub:      a.WebSocketHub,
			Cache:    a.MonthCache,
		}, a.Logger),
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Order: RequestID, RealIP, OTel, Logger, Recoverer, then headers and limits
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	if otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics); err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(a.errorHandler))
	r.Use(customMiddleware.SecurityHeaders)
	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins:   a.Config.Security.AllowedOrigins,
			AllowCredentials: true,
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
			Logger:           a.Logger,
		}))
	}
	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	authHandler := handlers.NewAuthHandler(a.Services.Auth, a.Sessions, a.validation, a.Logger, a.errorHandler)
	portalHandler := handlers.NewPortalHandler(a.Services.Portal, a.Services.Auth, a.Sessions, a.Logger, a.errorHandler)
	coreHandler := handlers.NewCoreHandler(a.Services.Core, a.validation, a.Logger, a.errorHandler)
	dashboardHandler := handlers.NewDashboardHandler(a.Services.Dashboard, a.validation, a.Logger, a.errorHandler)
	wsHandler := handlers.NewWebSocketHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger)

	// Public routes
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}
	r.Get("/healthz", healthHandler.HealthCheck)
	r.Get("/api/version", healthHandler.Version)
	r.Mount("/api/health", healthHandler.Routes())

	r.Get("/login", authHandler.LoginPage)
	r.With(a.loginLimiter(), a.validation.ValidateRequest).Post("/login", authHandler.Login)
	r.Get("/logout", authHandler.Logout)
	r.Post("/logout", authHandler.Logout)
	r.Get(coreModuleURL, handlers.CoreRedirect)

	// Signed-in routes
	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.RequireSession(a.Sessions, a.errorHandler, a.Logger))

		r.Get("/", portalHandler.HomePage)

		r.Route("/api", func(r chi.Router) {
			r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Get("/dashboard/ws", wsHandler.ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
				r.Use(a.validation.ValidateRequest)

				r.Get("/me", authHandler.Me)
				r.Mount("/portal", portalHandler.Routes())
				r.Mount("/dashboard", dashboardHandler.Routes())
			})
		})

		r.With(
			customMiddleware.RequireModuleURL(a.Services.Portal, coreModuleURL, a.errorHandler, a.Logger),
			customMiddleware.Timeout(a.Config.Server.RequestTimeout),
		).Mount(coreModuleURL+"/", coreHandler.Routes())

		r.With(customMiddleware.RequireModule(a.Services.Portal, a.errorHandler, a.Logger)).
			Get("/module/{module}/*", portalHandler.ModulePage)
	})

	a.Router = r
}

// loginLimiter throttles sign-in attempts per client IP.
func (a *Application) loginLimiter() func(http.Handler) http.Handler {
	limit := a.Config.Security.LoginRateLimit
	if limit.Requests <= 0 || limit.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit.Requests, limit.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			a.Logger.WarnContext(r.Context(), "login rate limit exceeded",
				slog.String("remote_addr", r.RemoteAddr),
			)
			apierrors.WriteError(w, apierrors.ErrRateLimitExceeded)
		}),
	)
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the background services and the HTTP server. Serve errors
// are reported on Errors.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level),
	)

	a.WebSocketHub.Start()
	a.Scheduler.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			a.serveErr <- err
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)),
		slog.Time("next_expected_refresh", a.Scheduler.Next()),
	)
	return nil
}

// Errors reports a failure of the HTTP server after Start.
func (a *Application) Errors() <-chan error {
	return a.serveErr
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if err := a.Scheduler.Stop(shutdownCtx); err != nil {
		a.Logger.WarnContext(ctx, "Scheduler did not stop in time", slog.String("error", err.Error()))
	}
	a.WebSocketHub.Stop()
	a.closeStores()

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")

	// Last, so the shutdown lines above still reach the file.
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}
	return errors.Join(errs...)
}

func (a *Application) closeStores() {
	if a.CoreDB != nil && a.CoreDB != a.DB {
		if err := a.CoreDB.Close(); err != nil {
			a.Logger.Warn("Error closing core database", slog.String("error", err.Error()))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("Error closing database", slog.String("error", err.Error()))
		}
	}
}

// Run runs the application until interrupted or the server fails
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case serveErr = <-a.Errors():
	}

	// The signal context is already done; shutdown gets a fresh one.
	stopCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+5*time.Second)
	defer cancel()
	return errors.Join(serveErr, a.Stop(stopCtx))
}

func isDevelopment() bool {
	env := os.Getenv("ENVIRONMENT")
	return env == "" || env == "development"
}
