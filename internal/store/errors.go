package store

import "errors"

var (
	// ErrUserNotFound is returned when no account matches a lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUnsupported is returned for Core explorer calls on a database
	// that has no SQL Server catalog views.
	ErrUnsupported = errors.New("operation not supported by this database")

	// ErrCoreNotConfigured is returned when no Core database name is set.
	ErrCoreNotConfigured = errors.New("core database is not configured")

	// ErrInvalidTable is returned when a preview names a table outside the
	// Core table list.
	ErrInvalidTable = errors.New("invalid table selection")
)
