package services

import (
	"context"
	"log/slog"
	"time"

	"fusionbi/internal/infrastructure"
	"fusionbi/pkg/contracts/domain"
)

// CoreStore reads catalog data from the Core database.
type CoreStore interface {
	ObjectCounts(ctx context.Context) (domain.ObjectCounts, error)
	Tables(ctx context.Context) ([]string, error)
	RefreshTables(ctx context.Context) ([]string, error)
	TopTables(ctx context.Context, limit int) ([]domain.TableRowCount, error)
	Preview(ctx context.Context, table string, limit int) (*domain.TablePreview, error)
}

// CoreOverview is the first screen of the Core explorer.
type CoreOverview struct {
	Counts    domain.ObjectCounts    `json:"counts"`
	TopTables []domain.TableRowCount `json:"top_tables"`
	Tables    []string               `json:"tables"`
}

// CoreService backs the Core explorer module.
type CoreService struct {
	store  CoreStore
	logger *slog.Logger
}

// NewCoreService creates the service.
func NewCoreService(store CoreStore, logger *slog.Logger) *CoreService {
	return &CoreService{
		store:  store,
		logger: infrastructure.WithComponent(logger, "core_service"),
	}
}

// Overview returns object counts, the largest tables and the table list.
func (s *CoreService) Overview(ctx context.Context, topLimit int) (*CoreOverview, error) {
	counts, err := s.store.ObjectCounts(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.store.TopTables(ctx, topLimit)
	if err != nil {
		return nil, err
	}
	tables, err := s.store.Tables(ctx)
	if err != nil {
		return nil, err
	}
	return &CoreOverview{Counts: counts, TopTables: top, Tables: tables}, nil
}

// Tables returns the cached table list.
func (s *CoreService) Tables(ctx context.Context) ([]string, error) {
	return s.store.Tables(ctx)
}

// RefreshTables reloads the table list from the catalog.
func (s *CoreService) RefreshTables(ctx context.Context) ([]string, error) {
	tables, err := s.store.RefreshTables(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "core table list refreshed", slog.Int("tables", len(tables)))
	return tables, nil
}

// TopTables returns the largest tables by row count.
func (s *CoreService) TopTables(ctx context.Context, limit int) ([]domain.TableRowCount, error) {
	return s.store.TopTables(ctx, limit)
}

// Preview returns the first rows of an allow-listed table.
func (s *CoreService) Preview(ctx context.Context, table string, limit int) (*domain.TablePreview, error) {
	start := time.Now()
	preview, err := s.store.Preview(ctx, table, limit)
	if err != nil {
		s.logger.WarnContext(ctx, "table preview failed",
			slog.String("table", table),
			slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.DebugContext(ctx, "table preview",
		slog.String("table", table),
		slog.Int("rows", len(preview.Rows)),
		slog.Duration("duration", time.Since(start)))
	return preview, nil
}
