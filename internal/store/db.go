// Package store implements the relational data access of the portal and the
// reporting dashboard on SQL Server, with SQLite for development and tests.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"fusionbi/internal/config"
	"fusionbi/internal/infrastructure"
)

// DB is a connection pool bound to one database and its dialect.
type DB struct {
	*sql.DB
	dialect      Dialect
	name         string
	queryTimeout time.Duration
}

// Open connects to database (the configured default when empty) and checks
// the connection. SQLite databases get the schema created on first use.
func Open(ctx context.Context, cfg config.DatabaseConfig, database string, logger *slog.Logger) (*DB, error) {
	if database == "" {
		database = cfg.Name
	}
	logger = infrastructure.WithComponent(logger, "store")

	dialect := DialectFor(cfg.Driver)
	sqlDB, err := sql.Open(dialect.Driver(), cfg.DSN(database))
	if err != nil {
		return nil, fmt.Errorf("open %s database %s: %w", cfg.Driver, database, err)
	}

	maxOpen := cfg.MaxOpenConns
	if !dialect.IsSQLServer() {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxOpen)
	}
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect to %s database %s: %w", cfg.Driver, database, err)
	}

	db := &DB{
		DB:           sqlDB,
		dialect:      dialect,
		name:         database,
		queryTimeout: cfg.QueryTimeout,
	}

	if !dialect.IsSQLServer() {
		if err := db.bootstrap(ctx); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("bootstrap sqlite schema: %w", err)
		}
	}

	logger.Info("database connected",
		slog.String("driver", cfg.Driver),
		slog.String("database", database),
		slog.Int("max_open_conns", maxOpen),
	)
	return db, nil
}

// Dialect returns the SQL dialect of the connection.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Name returns the database name the pool is bound to.
func (db *DB) Name() string {
	return db.name
}

// withTimeout bounds a single query by the configured query timeout.
func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, db.queryTimeout)
}

// Ping checks the connection within the query timeout.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	return db.PingContext(ctx)
}
