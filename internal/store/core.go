package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"fusionbi/internal/infrastructure"
	"fusionbi/pkg/contracts/domain"
)

const (
	DefaultTopTables    = 10
	MaxTopTables        = 100
	DefaultPreviewLimit = 100
	MaxPreviewLimit     = 500
)

// CoreRepository explores the Core database through the SQL Server catalog
// views. Previews are restricted to tables present in the catalog listing.
type CoreRepository struct {
	db     *DB
	logger *slog.Logger

	mu       sync.RWMutex
	tables   []string
	tableSet map[string]struct{}
}

// NewCoreRepository creates a repository on db. A nil db yields a repository
// whose calls fail with ErrCoreNotConfigured.
func NewCoreRepository(db *DB, logger *slog.Logger) *CoreRepository {
	return &CoreRepository{
		db:     db,
		logger: infrastructure.WithComponent(logger, "core_repository"),
	}
}

func (r *CoreRepository) ready() error {
	if r.db == nil {
		return ErrCoreNotConfigured
	}
	if !r.db.Dialect().IsSQLServer() {
		return ErrUnsupported
	}
	return nil
}

// ObjectCounts counts user tables, views and stored procedures.
func (r *CoreRepository) ObjectCounts(ctx context.Context) (domain.ObjectCounts, error) {
	var counts domain.ObjectCounts
	if err := r.ready(); err != nil {
		return counts, err
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	const query = `SELECT
	SUM(CASE WHEN type = 'U' THEN 1 ELSE 0 END),
	SUM(CASE WHEN type = 'V' THEN 1 ELSE 0 END),
	SUM(CASE WHEN type = 'P' THEN 1 ELSE 0 END)
FROM sys.objects
WHERE is_ms_shipped = 0`

	var tables, views, procs *int
	if err := r.db.QueryRowContext(ctx, query).Scan(&tables, &views, &procs); err != nil {
		return counts, fmt.Errorf("count core objects: %w", err)
	}
	counts.Tables = deref(tables)
	counts.Views = deref(views)
	counts.Procedures = deref(procs)
	return counts, nil
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// Tables returns the "schema.table" names of the Core database, loading and
// caching them on first use.
func (r *CoreRepository) Tables(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	cached := r.tables
	r.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return r.RefreshTables(ctx)
}

// RefreshTables reloads the table listing from the catalog.
func (r *CoreRepository) RefreshTables(ctx context.Context) ([]string, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	const query = `SELECT s.name + '.' + t.name
FROM sys.tables t
JOIN sys.schemas s ON s.schema_id = t.schema_id
ORDER BY s.name, t.name`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list core tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	set := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan core table: %w", err)
		}
		tables = append(tables, name)
		set[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list core tables: %w", err)
	}

	r.mu.Lock()
	r.tables = tables
	r.tableSet = set
	r.mu.Unlock()

	r.logger.Debug("core tables loaded",
		slog.Int("count", len(tables)),
		slog.Duration("took", time.Since(start)),
	)
	return tables, nil
}

// TopTables lists the largest tables by row count.
func (r *CoreRepository) TopTables(ctx context.Context, limit int) ([]domain.TableRowCount, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	limit = clamp(limit, DefaultTopTables, MaxTopTables)

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	query := `SELECT TOP (` + strconv.Itoa(limit) + `)
	QUOTENAME(s.name) + '.' + QUOTENAME(t.name) AS table_name,
	SUM(p.rows) AS row_count
FROM sys.tables t
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.partitions p ON p.object_id = t.object_id AND p.index_id IN (0, 1)
GROUP BY s.name, t.name
ORDER BY row_count DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list top core tables: %w", err)
	}
	defer rows.Close()

	out := []domain.TableRowCount{}
	for rows.Next() {
		var t domain.TableRowCount
		if err := rows.Scan(&t.Table, &t.Rows); err != nil {
			return nil, fmt.Errorf("scan top core table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Preview returns up to limit rows of a table from the catalog listing.
func (r *CoreRepository) Preview(ctx context.Context, table string, limit int) (*domain.TablePreview, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if _, err := r.Tables(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	_, known := r.tableSet[table]
	r.mu.RUnlock()
	if !known {
		return nil, ErrInvalidTable
	}
	schema, name, _ := strings.Cut(table, ".")
	limit = clamp(limit, DefaultPreviewLimit, MaxPreviewLimit)

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	query := `SELECT TOP (` + strconv.Itoa(limit) + `) * FROM ` + quoteIdent(schema) + `.` + quoteIdent(name)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", table, err)
	}

	preview := &domain.TablePreview{
		Table:   table,
		Columns: columns,
		Rows:    []map[string]interface{}{},
	}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan preview row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		preview.Rows = append(preview.Rows, row)
	}
	return preview, rows.Err()
}

// quoteIdent brackets an identifier the way QUOTENAME does.
func quoteIdent(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
