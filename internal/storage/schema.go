package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 1

func (db *DB) initializeSchema() error {
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createBuildsTable(tx); err != nil {
			return err
		}
		if err := createModulesTable(tx); err != nil {
			return err
		}
		if err := createDefinitionsTable(tx); err != nil {
			return err
		}
		if err := createProblemsTable(tx); err != nil {
			return err
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Catalog schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Catalog schema is up to date", "version", version)
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("catalog schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	db.logger.Info("Running catalog migrations",
		"from_version", version,
		"to_version", currentSchemaVersion,
	)
	return nil
}

func (db *DB) getSchemaVersion() (int, error) {
	var version int
	err := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("failed to clear schema version: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

func createBuildsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS builds (
			build_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			files_scanned INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			saved_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create builds table: %w", err)
	}
	return nil
}

func createModulesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS modules (
			fullname TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			parent TEXT,
			origin TEXT NOT NULL,
			path TEXT NOT NULL,
			file_count INTEGER NOT NULL,
			position INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create modules table: %w", err)
	}
	return nil
}

// definitions.id is the rowid the full-text index points at.
func createDefinitionsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS definitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			identifier TEXT UNIQUE NOT NULL,
			module TEXT NOT NULL REFERENCES modules(fullname),
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			display_name TEXT NOT NULL,
			signature TEXT NOT NULL,
			file_path TEXT NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			doc TEXT,
			doc_truncated INTEGER NOT NULL DEFAULT 0,
			markup TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create definitions table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_definitions_module ON definitions(module)",
		"CREATE INDEX IF NOT EXISTS idx_definitions_kind ON definitions(kind)",
		"CREATE INDEX IF NOT EXISTS idx_definitions_file ON definitions(file_path)",
	}
	for _, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func createProblemsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS problems (
			build_id TEXT NOT NULL REFERENCES builds(build_id) ON DELETE CASCADE,
			category TEXT NOT NULL,
			code TEXT NOT NULL,
			message TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create problems table: %w", err)
	}
	return nil
}
