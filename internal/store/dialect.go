package store

import (
	"strconv"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"fusionbi/internal/config"
)

// Dialect renders the few SQL fragments that differ between SQL Server and
// the SQLite development database.
type Dialect struct {
	driver string
}

// DialectFor returns the dialect of a configured driver.
func DialectFor(driver string) Dialect {
	return Dialect{driver: driver}
}

// Driver returns the database/sql driver name.
func (d Dialect) Driver() string {
	return d.driver
}

// IsSQLServer reports whether the dialect targets SQL Server.
func (d Dialect) IsSQLServer() bool {
	return d.driver == config.DriverSQLServer
}

// Table qualifies a table name. SQLite has no schemas, so the schema becomes
// a name prefix there.
func (d Dialect) Table(schema, name string) string {
	if d.IsSQLServer() {
		return schema + "." + name
	}
	return schema + "_" + name
}

// Param returns the placeholder for the n-th (1-based) argument.
func (d Dialect) Param(n int) string {
	if d.IsSQLServer() {
		return "@p" + strconv.Itoa(n)
	}
	return "?"
}

// Top returns the "TOP (n) " select prefix, empty on SQLite.
func (d Dialect) Top(n int) string {
	if d.IsSQLServer() {
		return "TOP (" + strconv.Itoa(n) + ") "
	}
	return ""
}

// Limit returns the " LIMIT n" suffix, empty on SQL Server.
func (d Dialect) Limit(n int) string {
	if d.IsSQLServer() {
		return ""
	}
	return " LIMIT " + strconv.Itoa(n)
}

// MonthKey renders an expression turning a timestamp column into "YYYY-MM".
func (d Dialect) MonthKey(column string) string {
	if d.IsSQLServer() {
		return "CONVERT(char(7), " + column + ", 120)"
	}
	return "substr(" + column + ", 1, 7)"
}

// Time wraps a timestamp argument. SQL Server compares it as datetime so the
// month window is not shifted by an offset conversion.
func (d Dialect) Time(t time.Time) any {
	if d.IsSQLServer() {
		return mssql.DateTime1(t)
	}
	return t
}
