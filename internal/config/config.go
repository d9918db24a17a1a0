package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. FUSION_SERVER_PORT.
const EnvPrefix = "FUSION"

// Supported database drivers.
const (
	DriverSQLServer = "sqlserver"
	DriverSQLite    = "sqlite"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Reporting ReportingConfig `yaml:"reporting" envconfig:"REPORTING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string         `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool             `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig  `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	LoginRateLimit LoginLimitConfig `yaml:"login_rate_limit" envconfig:"LOGIN_RATE_LIMIT"`
	Session        SessionConfig    `yaml:"session" envconfig:"SESSION"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoginLimitConfig throttles login attempts per client IP.
type LoginLimitConfig struct {
	Requests int           `yaml:"requests" envconfig:"REQUESTS"`
	Window   time.Duration `yaml:"window" envconfig:"WINDOW"`
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	Secret       string        `yaml:"secret" envconfig:"SECRET"`
	TTL          time.Duration `yaml:"ttl" envconfig:"TTL"`
	CookieName   string        `yaml:"cookie_name" envconfig:"COOKIE_NAME"`
	SecureCookie bool          `yaml:"secure_cookie" envconfig:"SECURE_COOKIE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// DatabaseConfig describes the relational store.
type DatabaseConfig struct {
	Driver                 string        `yaml:"driver" envconfig:"DRIVER"`
	Server                 string        `yaml:"server" envconfig:"SERVER"`
	Port                   int           `yaml:"port" envconfig:"SERVER_PORT"`
	Name                   string        `yaml:"name" envconfig:"NAME"`
	User                   string        `yaml:"user" envconfig:"LOGIN"`
	Password               string        `yaml:"password" envconfig:"PASSWORD"`
	Encrypt                bool          `yaml:"encrypt" envconfig:"ENCRYPT"`
	TrustServerCertificate bool          `yaml:"trust_server_certificate" envconfig:"TRUST_SERVER_CERTIFICATE"`
	CoreDatabase           string        `yaml:"core_database" envconfig:"CORE_DATABASE"`
	ConnectTimeout         time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`
	QueryTimeout           time.Duration `yaml:"query_timeout" envconfig:"QUERY_TIMEOUT"`
	SQLitePath             string        `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	MaxOpenConns           int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
}

// ReportingConfig tunes the reporting dashboard.
type ReportingConfig struct {
	MonthCacheCapacity int           `yaml:"month_cache_capacity" envconfig:"MONTH_CACHE_CAPACITY"`
	TopInterfaces      int           `yaml:"top_interfaces" envconfig:"TOP_INTERFACES"`
	TopErrors          int           `yaml:"top_errors" envconfig:"TOP_ERRORS"`
	TopCompletion      int           `yaml:"top_completion" envconfig:"TOP_COMPLETION"`
	ExpectedRefresh    string        `yaml:"expected_refresh" envconfig:"EXPECTED_REFRESH"`
	Breaker            BreakerConfig `yaml:"breaker" envconfig:"BREAKER"`
}

// BreakerConfig configures the circuit breaker around data fetches.
type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold" envconfig:"FAILURE_THRESHOLD"`
	OpenTimeout      time.Duration `yaml:"open_timeout" envconfig:"OPEN_TIMEOUT"`
}

// TelemetryConfig selects trace and metric exporters.
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// Load builds the configuration from defaults, then the config file if one
// exists, then environment variables. Later sources win.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without a matching variable keep their current value. envconfig
	// also falls back to the bare tag name, so database keys avoid USER/PORT.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if s := c.Security.Session.Secret; s != "" && len(s) < MinSessionSecretLength {
		return fmt.Errorf("session secret must be at least %d bytes", MinSessionSecretLength)
	}

	if c.Security.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if err := c.Database.validate(); err != nil {
		return err
	}

	if c.Reporting.MonthCacheCapacity <= 0 {
		return fmt.Errorf("month cache capacity must be positive")
	}

	return nil
}

func (d *DatabaseConfig) validate() error {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	switch d.Driver {
	case DriverSQLServer:
		if d.Server == "" || d.User == "" || d.Password == "" {
			return fmt.Errorf("sqlserver driver requires server, user and password")
		}
	case DriverSQLite:
		if d.SQLitePath == "" {
			return fmt.Errorf("sqlite driver requires sqlite_path")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", d.Driver)
	}
	if d.Name == "" {
		return fmt.Errorf("database name must be specified")
	}
	return nil
}

// DSN returns the driver-specific data source name. When database is empty
// the configured default database is used.
func (d DatabaseConfig) DSN(database string) string {
	if database == "" {
		database = d.Name
	}

	if d.Driver == DriverSQLite {
		if d.SQLitePath == ":memory:" {
			return "file::memory:?cache=shared&_time_format=sqlite"
		}
		return "file:" + d.SQLitePath + "?_pragma=busy_timeout(5000)&_time_format=sqlite"
	}

	host := d.Server
	if d.Port > 0 {
		host = host + ":" + strconv.Itoa(d.Port)
	}
	q := url.Values{}
	q.Set("database", database)
	q.Set("encrypt", strconv.FormatBool(d.Encrypt))
	q.Set("TrustServerCertificate", strconv.FormatBool(d.TrustServerCertificate))
	if d.ConnectTimeout > 0 {
		q.Set("connection timeout", strconv.Itoa(int(d.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(d.User, d.Password),
		Host:     host,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8050,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  DefaultRequestTimeout,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8050"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
			LoginRateLimit: LoginLimitConfig{
				Requests: MaxLoginAttempts,
				Window:   LoginWindow,
			},
			Session: SessionConfig{
				TTL:        SessionTimeout,
				CookieName: DefaultCookieName,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Database: DatabaseConfig{
			Driver:                 DriverSQLServer,
			Server:                 "localhost",
			Port:                   1433,
			Name:                   DefaultDatabaseName,
			TrustServerCertificate: true,
			ConnectTimeout:         5 * time.Second,
			QueryTimeout:           30 * time.Second,
			SQLitePath:             "data/fusion.db",
			MaxOpenConns:           10,
		},
		Reporting: ReportingConfig{
			MonthCacheCapacity: DefaultMonthCacheCapacity,
			TopInterfaces:      12,
			TopErrors:          12,
			TopCompletion:      15,
			ExpectedRefresh:    "0 */15 * * * *",
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
