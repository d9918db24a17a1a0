package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fusionbi/internal/infrastructure"
	"fusionbi/internal/reporting"
	"fusionbi/pkg/contracts/domain"
)

// PortalRepository reads and writes the ADM schema: accounts, profiles and
// module grants.
type PortalRepository struct {
	db     *DB
	logger *slog.Logger
}

// NewPortalRepository creates a repository on db.
func NewPortalRepository(db *DB, logger *slog.Logger) *PortalRepository {
	return &PortalRepository{
		db:     db,
		logger: infrastructure.WithComponent(logger, "portal_repository"),
	}
}

const userColumns = `user_id, username, email, password_hash, first_name, last_name, role, is_active, last_login`

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u                 domain.User
		first, last, role sql.NullString
		lastLogin         reporting.LooseTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &first, &last, &role, &u.IsActive, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.FirstName = first.String
	u.LastName = last.String
	u.Role = role.String
	if u.Role == "" {
		u.Role = domain.DefaultRole
	}
	u.LastLogin = lastLogin.Ptr()
	return &u, nil
}

// UserByLogin finds the account whose username or email equals login.
func (r *PortalRepository) UserByLogin(ctx context.Context, login string) (*domain.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	d := r.db.Dialect()
	query := `SELECT ` + d.Top(1) + userColumns + `
FROM ` + d.Table("ADM", "Users") + `
WHERE username = ` + d.Param(1) + ` OR email = ` + d.Param(2) + d.Limit(1)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, login, login))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, err
}

// UserByID loads an account by its id.
func (r *PortalRepository) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	d := r.db.Dialect()
	query := `SELECT ` + userColumns + `
FROM ` + d.Table("ADM", "Users") + `
WHERE user_id = ` + d.Param(1)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return u, err
}

// UpdateLastLogin stamps a successful sign-in.
func (r *PortalRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	d := r.db.Dialect()
	query := `UPDATE ` + d.Table("ADM", "Users") + `
SET last_login = ` + d.Param(1) + `
WHERE user_id = ` + d.Param(2)

	if _, err := r.db.ExecContext(ctx, query, d.Time(at), id); err != nil {
		return fmt.Errorf("update last login for user %d: %w", id, err)
	}
	return nil
}

// Profile returns the stored preferences, or the defaults when the user has
// no profile row.
func (r *PortalRepository) Profile(ctx context.Context, userID int64) (domain.UserProfile, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	d := r.db.Dialect()
	query := `SELECT theme, default_module, landing_layout, kpi_preferences
FROM ` + d.Table("ADM", "UserProfile") + `
WHERE user_id = ` + d.Param(1)

	var theme, module, layout, kpis sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&theme, &module, &layout, &kpis)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultProfile(), nil
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("load profile for user %d: %w", userID, err)
	}

	profile := domain.UserProfile{
		Theme:          theme.String,
		DefaultModule:  nullable(module),
		LandingLayout:  nullable(layout),
		KPIPreferences: nullable(kpis),
	}
	if profile.Theme == "" {
		profile.Theme = domain.DefaultTheme
	}
	return profile, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// ModulesForUser lists the active modules the user may view, by name.
func (r *PortalRepository) ModulesForUser(ctx context.Context, userID int64) ([]domain.Module, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	d := r.db.Dialect()
	query := `SELECT m.module_name, m.module_url, m.icon
FROM ` + d.Table("ADM", "Modules") + ` m
JOIN ` + d.Table("ADM", "UserModuleAccess") + ` a ON a.module_id = m.module_id
WHERE a.user_id = ` + d.Param(1) + ` AND a.can_view = 1 AND m.is_active = 1
ORDER BY m.module_name`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list modules for user %d: %w", userID, err)
	}
	defer rows.Close()

	modules := []domain.Module{}
	for rows.Next() {
		var (
			m    domain.Module
			icon sql.NullString
		)
		if err := rows.Scan(&m.Name, &m.URL, &icon); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		m.Icon = icon.String
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// CanAccessURL reports whether the user holds an active view grant on the
// module mounted at url. Both "/x" and "/x/" forms match.
func (r *PortalRepository) CanAccessURL(ctx context.Context, userID int64, url string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	bare := strings.TrimRight(url, "/")
	d := r.db.Dialect()
	query := `SELECT COUNT(*)
FROM ` + d.Table("ADM", "Modules") + ` m
JOIN ` + d.Table("ADM", "UserModuleAccess") + ` a ON a.module_id = m.module_id
WHERE a.user_id = ` + d.Param(1) + ` AND a.can_view = 1 AND m.is_active = 1
	AND (m.module_url = ` + d.Param(2) + ` OR m.module_url = ` + d.Param(3) + `)`

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID, bare, bare+"/").Scan(&n); err != nil {
		return false, fmt.Errorf("check module access for user %d: %w", userID, err)
	}
	return n > 0, nil
}

// CreateUser inserts an account and returns its id.
func (r *PortalRepository) CreateUser(ctx context.Context, nu domain.NewUser) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if nu.Role == "" {
		nu.Role = domain.DefaultRole
	}

	d := r.db.Dialect()
	params := make([]string, 7)
	for i := range params {
		params[i] = d.Param(i + 1)
	}
	values := strings.Join(params, ", ")

	var query string
	if d.IsSQLServer() {
		query = `INSERT INTO ` + d.Table("ADM", "Users") + ` (username, email, password_hash, first_name, last_name, role, is_active)
OUTPUT INSERTED.user_id
VALUES (` + values + `)`
	} else {
		query = `INSERT INTO ` + d.Table("ADM", "Users") + ` (username, email, password_hash, first_name, last_name, role, is_active)
VALUES (` + values + `)
RETURNING user_id`
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		nu.Username, nu.Email, nu.PasswordHash,
		nullString(nu.FirstName), nullString(nu.LastName),
		nu.Role, nu.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create user %s: %w", nu.Username, err)
	}

	r.logger.Info("user created",
		slog.Int64("user_id", id),
		slog.String("username", nu.Username),
		slog.String("role", nu.Role),
	)
	return id, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
