//go:build !wasm

package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	DocumentsMerged    int
	SourcesMerged      int
	AnalysesMerged     int
	FindingsMerged     int
	DatabasesProcessed int
}

// Merge combines multiple sift databases into one.
// Deduplication is handled via INSERT OR IGNORE on unique keys.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	// Open/create destination database
	destDB, err := sql.Open("sqlite", cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer destDB.Close()
	destDB.SetMaxOpenConns(1)

	// Initialize schema on destination
	if err := CreateSchema(destDB); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	stats := &MergeStats{}

	// Process each source database
	for _, sourcePath := range cfg.SourcePaths {
		sourceStats, err := mergeFrom(destDB, sourcePath)
		if err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.DocumentsMerged += sourceStats.DocumentsMerged
		stats.SourcesMerged += sourceStats.SourcesMerged
		stats.AnalysesMerged += sourceStats.AnalysesMerged
		stats.FindingsMerged += sourceStats.FindingsMerged
		stats.DatabasesProcessed++
	}

	return stats, nil
}

// mergeTable describes how one table is copied.
type mergeTable struct {
	name    string
	columns string
	count   func(*MergeStats) *int
}

var mergeTables = []mergeTable{
	{"documents", "id, runes", func(s *MergeStats) *int { return &s.DocumentsMerged }},
	{"sources", "document_id, path", func(s *MergeStats) *int { return &s.SourcesMerged }},
	{"analyses", "document_id, profile, total, detected, truncated, score_json, entities_json, diagnostics_json", func(s *MergeStats) *int { return &s.AnalysesMerged }},
	{"findings", "id, document_id, profile, label, pattern_index, category, severity, offset_start, offset_end, start_line, start_column, end_line, end_column, text, groups_json, context_json", func(s *MergeStats) *int { return &s.FindingsMerged }},
}

// mergeFrom copies data from a source database to the destination.
func mergeFrom(destDB *sql.DB, sourcePath string) (*MergeStats, error) {
	// Open source database
	sourceDB, err := sql.Open("sqlite", sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source database: %w", err)
	}
	defer sourceDB.Close()

	stats := &MergeStats{}

	// Start transaction for efficiency
	tx, err := destDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range mergeTables {
		n, err := mergeRows(tx, sourceDB, t)
		if err != nil {
			return nil, fmt.Errorf("merging %s: %w", t.name, err)
		}
		*t.count(stats) = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return stats, nil
}

// mergeRows copies every row of one table, ordered by rowid so insertion
// order survives the merge.
func mergeRows(tx *sql.Tx, sourceDB *sql.DB, t mergeTable) (int, error) {
	rows, err := sourceDB.Query(fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", t.columns, t.name))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	placeholders := "?"
	for i := 1; i < len(cols); i++ {
		placeholders += ", ?"
	}

	stmt, err := tx.Prepare(fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", t.name, t.columns, placeholders))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		result, err := stmt.Exec(values...)
		if err != nil {
			return count, err
		}
		affected, _ := result.RowsAffected()
		if affected > 0 {
			count++
		}
	}
	return count, rows.Err()
}
