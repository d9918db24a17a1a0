// Package scheduler periodically reloads the expected movement index so
// configuration changes reach the dashboard without a manual cache flush.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"fusionbi/internal/infrastructure"
	"fusionbi/internal/reporting"
)

// DefaultJobTimeout bounds one refresh.
const DefaultJobTimeout = 2 * time.Minute

// Refresher reloads the expected index.
type Refresher interface {
	RefreshExpected(ctx context.Context) (*reporting.ExpectedSnapshot, error)
}

// Scheduler runs the expected index refresh on a cron spec.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	entry     cron.EntryID
	refresher Refresher
	metrics   *infrastructure.BusinessMetrics
	timeout   time.Duration
	logger    *slog.Logger
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New schedules refresher on spec, which takes five or six fields or a
// descriptor such as "@hourly". An empty spec disables the job. metrics may
// be nil.
func New(spec string, refresher Refresher, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) (*Scheduler, error) {
	logger = infrastructure.WithComponent(logger, "scheduler")
	s := &Scheduler{
		spec:      strings.TrimSpace(spec),
		refresher: refresher,
		metrics:   metrics,
		timeout:   DefaultJobTimeout,
		logger:    logger,
	}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	if s.spec == "" {
		return s, nil
	}

	id, err := s.cron.AddFunc(s.spec, func() { s.RunNow(context.Background()) })
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", s.spec, err)
	}
	s.entry = id
	return s, nil
}

// Enabled reports whether a schedule was configured.
func (s *Scheduler) Enabled() bool {
	return s.entry != 0
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	if !s.Enabled() {
		s.logger.Info("expected index refresh disabled")
		return
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		slog.String("spec", s.spec),
		slog.Time("next_run", s.Next()))
}

// Stop stops the schedule and waits for a running job, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run, zero when disabled or not started.
func (s *Scheduler) Next() time.Time {
	if !s.Enabled() {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// RunNow performs one refresh with its own trace ID and timeout.
func (s *Scheduler) RunNow(ctx context.Context) error {
	ctx = infrastructure.WithTraceID(ctx, infrastructure.GenerateTraceID())
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	snap, err := s.refresher.RefreshExpected(ctx)
	s.metrics.RecordExpectedRefresh(ctx, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled expected index refresh failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return err
	}

	s.logger.InfoContext(ctx, "scheduled expected index refresh",
		slog.Int("rows", len(snap.Rows)),
		slog.Int("routes", len(snap.Index)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err.Error())...)
}
