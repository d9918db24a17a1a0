// Package shared holds code used across fusionbi packages that belongs to no
// single layer.
//
// The testutil subpackage provides a capturing slog handler and fixtures for
// movement rows and month snapshots. Production code must not import it.
package shared
