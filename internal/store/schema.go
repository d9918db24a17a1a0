package store

import (
	"context"
)

// sqliteSchema mirrors the SQL Server tables the portal reads. Schema names
// are folded into table name prefixes.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS REF_Principals (
		Principal_Code TEXT PRIMARY KEY,
		Principal TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS CFG_Interface_Movements (
		InterfaceCode TEXT NOT NULL,
		Principal_Code TEXT NOT NULL,
		MovementCode TEXT,
		Variant TEXT,
		Type TEXT,
		Profile TEXT,
		Interface TEXT,
		Direction TEXT,
		FilePattern TEXT,
		File_Mask TEXT,
		Source TEXT,
		Destination TEXT,
		Active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS LOG_RunDetail (
		DetailID INTEGER PRIMARY KEY AUTOINCREMENT,
		RunID TEXT,
		MovementCode TEXT,
		InterfaceCode TEXT,
		Principal_Code TEXT,
		Direction TEXT,
		FileName TEXT,
		SourcePath TEXT,
		DestinationPath TEXT,
		FileSizeBytes NUMERIC,
		Status TEXT,
		ErrorMessage TEXT,
		StartTime DATETIME,
		EndTime DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS IX_RunDetail_StartTime ON LOG_RunDetail(StartTime)`,
	`CREATE TABLE IF NOT EXISTS ADM_Users (
		user_id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		role TEXT NOT NULL DEFAULT 'User',
		is_active INTEGER NOT NULL DEFAULT 1,
		last_login DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS ADM_UserProfile (
		user_id INTEGER PRIMARY KEY,
		theme TEXT,
		default_module TEXT,
		landing_layout TEXT,
		kpi_preferences TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS ADM_Modules (
		module_id INTEGER PRIMARY KEY AUTOINCREMENT,
		module_name TEXT NOT NULL,
		module_url TEXT NOT NULL,
		icon TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS ADM_UserModuleAccess (
		user_id INTEGER NOT NULL,
		module_id INTEGER NOT NULL,
		can_view INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (user_id, module_id)
	)`,
}

func (db *DB) bootstrap(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
