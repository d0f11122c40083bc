package database

import (
	"database/sql"
	"fmt"
)

type migration struct {
	name string
	up   string
}

// migrations run in order and are recorded by name, so each one runs once.
var migrations = []migration{
	{"create_devices_table", `CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		device_key TEXT NOT NULL,
		name TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		is_host BOOLEAN NOT NULL DEFAULT FALSE,
		last_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, name)
	)`},
	{"create_devices_user_index", `CREATE INDEX IF NOT EXISTS idx_devices_user_id ON devices(user_id)`},
	// at most one host per account
	{"create_devices_host_index", `CREATE UNIQUE INDEX IF NOT EXISTS idx_devices_one_host ON devices(user_id) WHERE is_host = 1`},

	{"create_packs_table", `CREATE TABLE IF NOT EXISTS packs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		app_ids TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`},
	{"create_packs_user_index", `CREATE INDEX IF NOT EXISTS idx_packs_user_id ON packs(user_id)`},

	{"create_account_usage_table", `CREATE TABLE IF NOT EXISTS account_usage (
		user_id TEXT PRIMARY KEY,
		pack_deletes INTEGER NOT NULL DEFAULT 0
	)`},

	{"create_audit_logs_table", `CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT,
		email TEXT,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT,
		ip_address TEXT,
		user_agent TEXT,
		details TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`},
	{"create_audit_logs_user_index", `CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id, created_at)`},
}

func runMigrations(db *sql.DB) error {
	if err := createMigrationsTable(db); err != nil {
		return err
	}

	var batch int
	if err := db.QueryRow(`SELECT COALESCE(MAX(batch), 0) + 1 FROM migrations`).Scan(&batch); err != nil {
		return err
	}

	for _, m := range migrations {
		done, err := hasMigrationRun(db, m.name)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		if _, err := db.Exec(m.up); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		if err := recordMigration(db, m.name, batch); err != nil {
			return err
		}
	}
	return nil
}

func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		migration TEXT UNIQUE NOT NULL,
		batch INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func hasMigrationRun(db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM migrations WHERE migration = ?`, name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func recordMigration(db *sql.DB, name string, batch int) error {
	_, err := db.Exec(`INSERT INTO migrations (migration, batch) VALUES (?, ?)`, name, batch)
	return err
}
