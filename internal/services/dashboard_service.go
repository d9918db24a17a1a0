package services

import (
	"context"
	"log/slog"

	"fusionbi/internal/exporter"
	"fusionbi/internal/infrastructure"
	"fusionbi/internal/reporting"
	"fusionbi/pkg/contracts/events"
)

// Notifier pushes events to connected websocket clients.
type Notifier interface {
	Broadcast(messageType string, data interface{})
}

// Refresh reasons carried in ReportingRefreshed events.
const (
	ReasonManual    = "manual"
	ReasonScheduled = "scheduled"
)

// DashboardService answers the dashboard API from the month cache.
type DashboardService struct {
	cache    *reporting.MonthCache
	opts     reporting.AggregateOptions
	notifier Notifier
	logger   *slog.Logger
}

// NewDashboardService creates the service. notifier may be nil.
func NewDashboardService(cache *reporting.MonthCache, opts reporting.AggregateOptions, notifier Notifier, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		cache:    cache,
		opts:     opts,
		notifier: notifier,
		logger:   infrastructure.WithComponent(logger, "dashboard_service"),
	}
}

// AvailableMonths lists the months with movements, newest first.
func (s *DashboardService) AvailableMonths(ctx context.Context) ([]string, error) {
	return s.cache.AvailableMonths(ctx)
}

// Aggregate returns KPIs and breakdowns for a month.
func (s *DashboardService) Aggregate(ctx context.Context, month string, filter reporting.Filter) (*reporting.AggregateResult, error) {
	snap, err := s.cache.Load(ctx, month)
	if err != nil {
		return nil, err
	}
	return reporting.Aggregate(snap, filter, s.opts), nil
}

// Options returns the filter choices of a month.
func (s *DashboardService) Options(ctx context.Context, month, principal string) (reporting.FilterOptions, error) {
	snap, err := s.cache.Load(ctx, month)
	if err != nil {
		return reporting.FilterOptions{}, err
	}
	return reporting.Options(snap, principal), nil
}

// Completeness returns the route completeness rows inside filter.
func (s *DashboardService) Completeness(ctx context.Context, month string, filter reporting.Filter) ([]reporting.RouteCompleteness, error) {
	snap, err := s.cache.Load(ctx, month)
	if err != nil {
		return nil, err
	}
	return reporting.FilterCompleteness(snap, filter), nil
}

// Records returns the movement records inside filter.
func (s *DashboardService) Records(ctx context.Context, month string, filter reporting.Filter) ([]reporting.MovementRecord, error) {
	snap, err := s.cache.Load(ctx, month)
	if err != nil {
		return nil, err
	}
	return reporting.FilterRecords(snap, filter), nil
}

// Export prepares the XLSX export of a month.
func (s *DashboardService) Export(ctx context.Context, month string, filter reporting.Filter) (*exporter.MonthReport, error) {
	snap, err := s.cache.Load(ctx, month)
	if err != nil {
		return nil, err
	}
	report := exporter.NewMonthReport(snap, filter, s.opts)
	s.logger.InfoContext(ctx, "month export prepared",
		slog.String("month", report.Month),
		slog.Int("records", len(report.Records)))
	return report, nil
}

// Stats reports the month cache counters.
func (s *DashboardService) Stats() reporting.CacheStats {
	return s.cache.Stats()
}

// Invalidate drops one month, or every month and the expected index when
// month is empty, and tells connected clients to reload.
func (s *DashboardService) Invalidate(ctx context.Context, month string) error {
	event := events.ReportingRefreshed{Reason: ReasonManual}

	if month == "" {
		s.cache.InvalidateAll()
		s.cache.Expected().Invalidate()
		event.Expected = true
	} else {
		rng, err := reporting.ParseMonthKey(month)
		if err != nil {
			return err
		}
		if err := s.cache.Invalidate(rng.Key); err != nil {
			return err
		}
		event.Month = rng.Key
	}

	s.logger.InfoContext(ctx, "report cache invalidated",
		slog.String("month", event.Month),
		slog.Bool("expected_index", event.Expected))
	s.broadcast(events.MessageTypeReportingRefreshed, event)
	return nil
}

// RefreshExpected reloads the expected index and drops every cached month,
// since their completeness was classified against the old index.
func (s *DashboardService) RefreshExpected(ctx context.Context) (*reporting.ExpectedSnapshot, error) {
	snap, err := s.cache.Expected().Refresh(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "expected index refresh failed", slog.String("error", err.Error()))
		s.broadcast(events.MessageTypeExpectedRefreshed, events.ExpectedRefreshed{Error: "expected index refresh failed"})
		return nil, err
	}

	s.cache.InvalidateAll()
	s.broadcast(events.MessageTypeExpectedRefreshed, events.ExpectedRefreshed{
		Routes: len(snap.Index),
		Rows:   len(snap.Rows),
	})
	s.broadcast(events.MessageTypeReportingRefreshed, events.ReportingRefreshed{
		Expected: true,
		Reason:   ReasonScheduled,
	})
	return snap, nil
}

func (s *DashboardService) broadcast(t events.MessageType, data interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Broadcast(string(t), data)
}
