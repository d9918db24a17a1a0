package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"fusionbi/internal/infrastructure"
	"fusionbi/internal/reporting"
	"fusionbi/pkg/contracts"
)

// Pinger checks a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes a circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}

// ClientCounter counts connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// CacheReporter exposes month cache counters.
type CacheReporter interface {
	Stats() reporting.CacheStats
}

// HealthDependencies are the components readiness looks at. Nil members
// are skipped.
type HealthDependencies struct {
	Database Pinger
	Breaker  BreakerReporter
	Hub      ClientCounter
	Cache    CacheReporter
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	deps      HealthDependencies
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

const (
	statusReady    = "ready"
	statusNotReady = "not_ready"
)

// NewHealthService creates a new health service
func NewHealthService(version string, deps HealthDependencies, logger *slog.Logger) *HealthService {
	logger = infrastructure.WithComponent(logger, "health_service")
	logger.Info("HealthService initialized", slog.String("version", version))

	return &HealthService{
		version:   version,
		deps:      deps,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    statusReady,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	if hs.deps.Database != nil {
		status.Services["database"] = hs.checkDatabase(ctx)
	}
	if hs.deps.Breaker != nil {
		status.Services["movement_store"] = hs.checkBreaker()
	}
	if hs.deps.Hub != nil {
		status.Services["websocket"] = ServiceHealth{
			Status:  statusReady,
			Message: fmt.Sprintf("%d clients connected", hs.deps.Hub.ClientCount()),
			Uptime:  time.Since(hs.startTime).String(),
		}
	}
	if hs.deps.Cache != nil {
		stats := hs.deps.Cache.Stats()
		status.Services["month_cache"] = ServiceHealth{
			Status:  statusReady,
			Message: fmt.Sprintf("%d of %d months cached", stats.Entries, stats.Capacity),
		}
	}

	for name, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != statusReady {
			status.Status = statusNotReady
			hs.logger.WarnContext(ctx, "service not ready",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}

	return status
}

func (hs *HealthService) checkDatabase(ctx context.Context) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := hs.deps.Database.Ping(ctx); err != nil {
		return ServiceHealth{
			Status:  statusNotReady,
			Message: "database unreachable",
		}
	}
	return ServiceHealth{Status: statusReady, Message: "database reachable"}
}

func (hs *HealthService) checkBreaker() ServiceHealth {
	state := hs.deps.Breaker.BreakerState()
	if state == "open" {
		return ServiceHealth{Status: statusNotReady, Message: "circuit breaker open"}
	}
	return ServiceHealth{Status: statusReady, Message: "circuit breaker " + state}
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      hs.version,
		"api_version":  info.APIVersion,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}
