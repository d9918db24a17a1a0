package config

import "time"

// Application constants
const (
	AppName    = "fusion-bi"
	AppVersion = "1.4.0"

	// Database
	DefaultDatabaseName = "Fusion_Dashboard"

	// Security
	MaxLoginAttempts       = 10
	LoginWindow            = time.Minute
	SessionTimeout         = 12 * time.Hour
	DefaultCookieName      = "fusion_session"
	MinSessionSecretLength = 32

	// Reporting
	DefaultMonthCacheCapacity = 24

	// HTTP
	DefaultRequestTimeout = 60 * time.Second
)
