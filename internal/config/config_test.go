package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad tests the Load function with various scenarios
func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with sqlserver credentials from env",
			env: map[string]string{
				"FUSION_DATABASE_LOGIN":    "report",
				"FUSION_DATABASE_PASSWORD": "secret",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8050, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, DriverSQLServer, cfg.Database.Driver)
				assert.Equal(t, DefaultDatabaseName, cfg.Database.Name)
				assert.Equal(t, "report", cfg.Database.User)
				assert.Equal(t, 24, cfg.Reporting.MonthCacheCapacity)
				assert.Equal(t, 12, cfg.Reporting.TopInterfaces)
				assert.Equal(t, 15, cfg.Reporting.TopCompletion)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Equal(t, DefaultCookieName, cfg.Security.Session.CookieName)
			},
		},
		{
			name: "file values are overridden by env",
			env: map[string]string{
				"FUSION_SERVER_PORT":                    "9090",
				"FUSION_REPORTING_MONTH_CACHE_CAPACITY": "6",
			},
			file: `
server:
  port: 7070
  read_timeout: 5s
database:
  driver: sqlite
  sqlite_path: /tmp/fusion.db
reporting:
  month_cache_capacity: 3
  top_errors: 5
logging:
  output: nonsense
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, DriverSQLite, cfg.Database.Driver)
				assert.Equal(t, "/tmp/fusion.db", cfg.Database.SQLitePath)
				assert.Equal(t, 6, cfg.Reporting.MonthCacheCapacity)
				assert.Equal(t, 5, cfg.Reporting.TopErrors)
				assert.Equal(t, "console", cfg.Logging.Output, "unknown output falls back to console")
			},
		},
		{
			name:    "sqlserver without credentials",
			env:     map[string]string{"FUSION_DATABASE_SERVER": "db01"},
			wantErr: "requires server, user and password",
		},
		{
			name: "unknown driver",
			env: map[string]string{
				"FUSION_DATABASE_DRIVER": "oracle",
			},
			wantErr: "unknown database driver",
		},
		{
			name: "short session secret",
			env: map[string]string{
				"FUSION_DATABASE_DRIVER":         "sqlite",
				"FUSION_SECURITY_SESSION_SECRET": "too-short",
			},
			wantErr: "session secret",
		},
		{
			name: "invalid port",
			env: map[string]string{
				"FUSION_DATABASE_DRIVER": "sqlite",
				"FUSION_SERVER_PORT":     "70000",
			},
			wantErr: "invalid server port",
		},
		{
			name: "zero cache capacity",
			env: map[string]string{
				"FUSION_DATABASE_DRIVER":                "sqlite",
				"FUSION_REPORTING_MONTH_CACHE_CAPACITY": "0",
			},
			wantErr: "month cache capacity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			configFile := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(configFile, []byte(tt.file), 0o600))
			t.Setenv("FUSION_CONFIG_FILE", configFile)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	t.Run("sqlserver url", func(t *testing.T) {
		db := Default().Database
		db.User = "report"
		db.Password = "p@ss word"
		db.Server = "sql01"

		dsn := db.DSN("")
		u, err := url.Parse(dsn)
		require.NoError(t, err)

		assert.Equal(t, "sqlserver", u.Scheme)
		assert.Equal(t, "sql01:1433", u.Host)
		assert.Equal(t, "report", u.User.Username())
		pass, _ := u.User.Password()
		assert.Equal(t, "p@ss word", pass)
		assert.Equal(t, DefaultDatabaseName, u.Query().Get("database"))
		assert.Equal(t, "true", u.Query().Get("TrustServerCertificate"))
		assert.Equal(t, "5", u.Query().Get("connection timeout"))

		core, err := url.Parse(db.DSN("CORE_DB"))
		require.NoError(t, err)
		assert.Equal(t, "CORE_DB", core.Query().Get("database"))
	})

	t.Run("sqlite file", func(t *testing.T) {
		db := DatabaseConfig{Driver: DriverSQLite, SQLitePath: "data/fusion.db"}
		assert.Equal(t, "file:data/fusion.db?_pragma=busy_timeout(5000)&_time_format=sqlite", db.DSN(""))

		db.SQLitePath = ":memory:"
		assert.Equal(t, "file::memory:?cache=shared&_time_format=sqlite", db.DSN(""))
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = DriverSQLite
	require.NoError(t, cfg.validate())
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, SessionTimeout, cfg.Security.Session.TTL)
	assert.Equal(t, uint32(5), cfg.Reporting.Breaker.FailureThreshold)
}
