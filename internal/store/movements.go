package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"fusionbi/internal/config"
	"fusionbi/internal/infrastructure"
	"fusionbi/internal/reporting"
)

// MovementRepository reads the movement log and its configuration. Every
// fetch goes through a circuit breaker so an unreachable server fails fast.
type MovementRepository struct {
	db      *DB
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger

	movementsSQL string
	expectedSQL  string
	monthsSQL    string
}

var _ reporting.MovementSource = (*MovementRepository)(nil)

// NewMovementRepository creates a repository on db.
func NewMovementRepository(db *DB, cfg config.BreakerConfig, logger *slog.Logger) *MovementRepository {
	logger = infrastructure.WithComponent(logger, "movement_repository")
	d := db.Dialect()
	return &MovementRepository{
		db:      db,
		breaker: newBreaker("movement-store", cfg, logger),
		logger:  logger,

		movementsSQL: `SELECT
	rd.DetailID, rd.RunID, rd.MovementCode, rd.InterfaceCode, rd.Principal_Code,
	p.Principal, im.Interface, im.Type, im.Profile, im.Direction, rd.Direction,
	rd.FileName, rd.SourcePath, rd.DestinationPath, rd.FileSizeBytes,
	rd.Status, rd.ErrorMessage, rd.StartTime, rd.EndTime
FROM ` + d.Table("LOG", "RunDetail") + ` rd
LEFT JOIN ` + d.Table("REF", "Principals") + ` p
	ON rd.Principal_Code = p.Principal_Code
LEFT JOIN ` + d.Table("CFG", "Interface_Movements") + ` im
	ON rd.InterfaceCode = im.InterfaceCode
	AND rd.MovementCode = im.MovementCode
	AND rd.Principal_Code = im.Principal_Code
WHERE rd.StartTime >= ` + d.Param(1) + `
	AND rd.StartTime < ` + d.Param(2),

		expectedSQL: `SELECT
	InterfaceCode, Principal_Code, MovementCode, Variant, Type, Profile,
	Interface, Direction, FilePattern, File_Mask, Source, Destination, Active
FROM ` + d.Table("CFG", "Interface_Movements") + `
WHERE Active = 1`,

		monthsSQL: `SELECT DISTINCT ` + d.MonthKey("StartTime") + ` AS MonthKey
FROM ` + d.Table("LOG", "RunDetail") + `
WHERE StartTime IS NOT NULL
ORDER BY MonthKey DESC`,
	}
}

// BreakerState reports the breaker state for health checks.
func (r *MovementRepository) BreakerState() string {
	return r.breaker.State().String()
}

// FetchMovements returns the movement rows started in [start, end).
func (r *MovementRepository) FetchMovements(ctx context.Context, start, end time.Time) ([]reporting.RawMovement, error) {
	rows, err := guarded(r.breaker, func() ([]reporting.RawMovement, error) {
		return r.queryMovements(ctx, start, end)
	})
	if err != nil {
		return nil, &reporting.DataAccessError{Op: "fetch movements", Err: err}
	}
	r.logger.DebugContext(ctx, "movements fetched",
		slog.Time("start", start),
		slog.Time("end", end),
		slog.Int("rows", len(rows)),
	)
	return rows, nil
}

func (r *MovementRepository) queryMovements(ctx context.Context, start, end time.Time) ([]reporting.RawMovement, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	d := r.db.Dialect()
	rows, err := r.db.QueryContext(ctx, r.movementsSQL, d.Time(start), d.Time(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reporting.RawMovement
	for rows.Next() {
		var (
			m                                                              reporting.RawMovement
			runID, movementCode, interfaceCode, principalCode              sql.NullString
			interfaceType, interfaceProfile, configDirection, runDirection sql.NullString
			fileName, sourcePath, destinationPath, status                  sql.NullString
		)
		if err := rows.Scan(
			&m.DetailID, &runID, &movementCode, &interfaceCode, &principalCode,
			&m.PrincipalName, &m.InterfaceName, &interfaceType, &interfaceProfile, &configDirection, &runDirection,
			&fileName, &sourcePath, &destinationPath, &m.FileSizeBytes,
			&status, &m.ErrorMessage, &m.StartTime, &m.EndTime,
		); err != nil {
			return nil, err
		}
		m.RunID = runID.String
		m.MovementCode = movementCode.String
		m.InterfaceCode = interfaceCode.String
		m.PrincipalCode = principalCode.String
		m.InterfaceType = interfaceType.String
		m.InterfaceProfile = interfaceProfile.String
		m.ConfigDirection = configDirection.String
		m.RunDirection = runDirection.String
		m.FileName = fileName.String
		m.SourcePath = sourcePath.String
		m.DestinationPath = destinationPath.String
		m.Status = status.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// FetchActiveExpected returns the active movement configuration rows.
func (r *MovementRepository) FetchActiveExpected(ctx context.Context) ([]reporting.ExpectedMovement, error) {
	rows, err := guarded(r.breaker, func() ([]reporting.ExpectedMovement, error) {
		return r.queryExpected(ctx)
	})
	if err != nil {
		return nil, &reporting.DataAccessError{Op: "fetch expected movements", Err: err}
	}
	return rows, nil
}

func (r *MovementRepository) queryExpected(ctx context.Context) ([]reporting.ExpectedMovement, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.expectedSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reporting.ExpectedMovement
	for rows.Next() {
		var (
			e                                       reporting.ExpectedMovement
			iface, principal, code, variant, typ    sql.NullString
			profile, name, direction, pattern, mask sql.NullString
			source, destination                     sql.NullString
		)
		if err := rows.Scan(
			&iface, &principal, &code, &variant, &typ, &profile,
			&name, &direction, &pattern, &mask, &source, &destination, &e.Active,
		); err != nil {
			return nil, err
		}
		e.InterfaceCode = iface.String
		e.PrincipalCode = principal.String
		e.MovementCode = code.String
		e.Variant = variant.String
		e.Type = typ.String
		e.Profile = profile.String
		e.InterfaceName = name.String
		e.Direction = direction.String
		e.FilePattern = pattern.String
		e.FileMask = mask.String
		e.Source = source.String
		e.Destination = destination.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// FetchMonths returns the "YYYY-MM" keys that have movements, newest first.
func (r *MovementRepository) FetchMonths(ctx context.Context) ([]string, error) {
	months, err := guarded(r.breaker, func() ([]string, error) {
		ctx, cancel := r.db.withTimeout(ctx)
		defer cancel()

		rows, err := r.db.QueryContext(ctx, r.monthsSQL)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []string
		for rows.Next() {
			var key sql.NullString
			if err := rows.Scan(&key); err != nil {
				return nil, err
			}
			if key.Valid && key.String != "" {
				out = append(out, key.String)
			}
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, &reporting.DataAccessError{Op: "list months", Err: err}
	}
	return months, nil
}
