//go:build !wasm

package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// CreateSchema creates the database schema if it doesn't exist.
func CreateSchema(db *sql.DB) error {
	// Create schema_version table
	if err := createSchemaVersionTable(db); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	// Create main tables
	if err := createDocumentsTable(db); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}

	if err := createSourcesTable(db); err != nil {
		return fmt.Errorf("creating sources table: %w", err)
	}

	if err := createAnalysesTable(db); err != nil {
		return fmt.Errorf("creating analyses table: %w", err)
	}

	if err := createFindingsTable(db); err != nil {
		return fmt.Errorf("creating findings table: %w", err)
	}

	return nil
}

func createSchemaVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Insert version if table is empty
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	return nil
}

func createDocumentsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY NOT NULL,
			runes INTEGER NOT NULL
		)
	`)
	return err
}

func createSourcesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL REFERENCES documents(id),
			path TEXT NOT NULL,
			UNIQUE(document_id, path)
		)
	`)
	if err != nil {
		return err
	}

	// Create index for efficient source lookup by document_id
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sources_document_id ON sources(document_id)
	`)
	return err
}

func createAnalysesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS analyses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL REFERENCES documents(id),
			profile TEXT NOT NULL,
			total REAL NOT NULL,
			detected INTEGER NOT NULL,
			truncated INTEGER NOT NULL,
			score_json TEXT NOT NULL,
			entities_json TEXT NOT NULL,
			diagnostics_json TEXT,
			UNIQUE(document_id, profile)
		)
	`)
	return err
}

func createFindingsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS findings (
			id TEXT NOT NULL,
			document_id TEXT NOT NULL REFERENCES documents(id),
			profile TEXT NOT NULL,
			label TEXT NOT NULL,
			pattern_index INTEGER NOT NULL,
			category TEXT,
			severity TEXT,
			offset_start INTEGER NOT NULL,
			offset_end INTEGER NOT NULL,
			start_line INTEGER,
			start_column INTEGER,
			end_line INTEGER,
			end_column INTEGER,
			text TEXT NOT NULL,
			groups_json TEXT,
			context_json TEXT,
			PRIMARY KEY(id, profile)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_findings_document_id ON findings(document_id)
	`)
	return err
}
