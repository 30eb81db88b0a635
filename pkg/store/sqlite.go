//go:build !wasm

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/sift/pkg/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers from concurrent analyses.
	db.SetMaxOpenConns(1)

	// Initialize schema
	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// AddAnalysis stores an analysis with its document, source and findings.
func (s *SQLiteStore) AddAnalysis(a *types.Analysis) error {
	if a == nil {
		return fmt.Errorf("analysis is nil")
	}
	doc := a.DocumentID.Hex()

	scoreJSON, err := json.Marshal(a.Score)
	if err != nil {
		return fmt.Errorf("marshaling score: %w", err)
	}
	entitiesJSON, err := json.Marshal(a.Entities)
	if err != nil {
		return fmt.Errorf("marshaling entities: %w", err)
	}
	diagnosticsJSON, err := json.Marshal(a.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshaling diagnostics: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT OR IGNORE INTO documents (id, runes) VALUES (?, ?)", doc, a.Runes); err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	if a.Source != "" {
		if _, err := tx.Exec("INSERT OR IGNORE INTO sources (document_id, path) VALUES (?, ?)", doc, a.Source); err != nil {
			return fmt.Errorf("inserting source: %w", err)
		}
	}

	var total float64
	var detected bool
	if a.Score != nil {
		total, detected = a.Score.Total, a.Score.Detected
	}
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO analyses (document_id, profile, total, detected, truncated, score_json, entities_json, diagnostics_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		doc,
		a.Profile,
		total,
		boolInt(detected),
		boolInt(a.Truncated),
		string(scoreJSON),
		string(entitiesJSON),
		string(diagnosticsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting analysis: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		// Already analyzed under this profile
		return tx.Commit()
	}

	for _, f := range a.Findings {
		if err := insertFinding(tx, doc, a.Profile, f); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertFinding(tx *sql.Tx, doc, profile string, f types.Finding) error {
	groupsJSON, err := json.Marshal(f.Match.Groups)
	if err != nil {
		return fmt.Errorf("marshaling groups: %w", err)
	}
	contextJSON, err := json.Marshal(f.Match.Context)
	if err != nil {
		return fmt.Errorf("marshaling context: %w", err)
	}

	_, err = tx.Exec(`
		INSERT OR IGNORE INTO findings
		(id, document_id, profile, label, pattern_index, category, severity,
		 offset_start, offset_end, start_line, start_column, end_line, end_column,
		 text, groups_json, context_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.ID,
		doc,
		profile,
		f.Match.Label,
		f.Match.Index,
		f.Category,
		f.Severity,
		f.Location.Offset.Start,
		f.Location.Offset.End,
		f.Location.Source.Start.Line,
		f.Location.Source.Start.Column,
		f.Location.Source.End.Line,
		f.Location.Source.End.Column,
		f.Match.Text,
		string(groupsJSON),
		string(contextJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting finding: %w", err)
	}
	return nil
}

// AnalysisExists checks if a document was already analyzed under profile.
func (s *SQLiteStore) AnalysisExists(doc types.DocumentID, profile string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM analyses WHERE document_id = ? AND profile = ?", doc.Hex(), profile).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking analysis existence: %w", err)
	}
	return count > 0, nil
}

// GetAnalyses retrieves every analysis in insertion order.
// Source is the first source the document was seen at.
func (s *SQLiteStore) GetAnalyses() ([]*types.Analysis, error) {
	rows, err := s.db.Query(`
		SELECT a.document_id, a.profile, d.runes, a.truncated, a.score_json, a.entities_json, a.diagnostics_json,
		       COALESCE((SELECT path FROM sources src WHERE src.document_id = a.document_id ORDER BY src.id LIMIT 1), '')
		FROM analyses a
		JOIN documents d ON d.id = a.document_id
		ORDER BY a.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}

	var analyses []*types.Analysis
	for rows.Next() {
		var a types.Analysis
		var docHex, scoreJSON, entitiesJSON string
		var diagnosticsJSON sql.NullString
		var truncated int

		err := rows.Scan(&docHex, &a.Profile, &a.Runes, &truncated, &scoreJSON, &entitiesJSON, &diagnosticsJSON, &a.Source)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning analysis: %w", err)
		}

		if a.DocumentID, err = types.ParseDocumentID(docHex); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parsing document ID: %w", err)
		}
		a.Truncated = truncated != 0
		if err := json.Unmarshal([]byte(scoreJSON), &a.Score); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unmarshaling score: %w", err)
		}
		if err := json.Unmarshal([]byte(entitiesJSON), &a.Entities); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unmarshaling entities: %w", err)
		}
		if diagnosticsJSON.Valid {
			if err := json.Unmarshal([]byte(diagnosticsJSON.String), &a.Diagnostics); err != nil {
				rows.Close()
				return nil, fmt.Errorf("unmarshaling diagnostics: %w", err)
			}
		}
		analyses = append(analyses, &a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating analyses: %w", err)
	}
	// Findings are loaded after the cursor closes; the pool holds one connection.
	rows.Close()

	for _, a := range analyses {
		findings, err := s.queryFindings("WHERE document_id = ? AND profile = ?", a.DocumentID.Hex(), a.Profile)
		if err != nil {
			return nil, err
		}
		a.Findings = findings
	}
	return analyses, nil
}

// GetFindings retrieves the findings of one document across profiles,
// deduplicated by ID.
func (s *SQLiteStore) GetFindings(doc types.DocumentID) ([]types.Finding, error) {
	return s.queryFindings("WHERE rowid IN (SELECT MIN(rowid) FROM findings WHERE document_id = ? GROUP BY id)", doc.Hex())
}

func (s *SQLiteStore) queryFindings(where string, args ...interface{}) ([]types.Finding, error) {
	rows, err := s.db.Query(`
		SELECT id, label, pattern_index, category, severity, offset_start, offset_end,
		       start_line, start_column, end_line, end_column, text, groups_json, context_json
		FROM findings `+where+`
		ORDER BY rowid
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	findings := []types.Finding{}
	for rows.Next() {
		var f types.Finding
		var category, severity, groupsJSON, contextJSON sql.NullString

		err := rows.Scan(
			&f.ID,
			&f.Match.Label,
			&f.Match.Index,
			&category,
			&severity,
			&f.Location.Offset.Start,
			&f.Location.Offset.End,
			&f.Location.Source.Start.Line,
			&f.Location.Source.Start.Column,
			&f.Location.Source.End.Line,
			&f.Location.Source.End.Column,
			&f.Match.Text,
			&groupsJSON,
			&contextJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		f.Category = category.String
		f.Severity = severity.String
		f.Match.Span = f.Location.Offset

		if groupsJSON.Valid {
			if err := json.Unmarshal([]byte(groupsJSON.String), &f.Match.Groups); err != nil {
				return nil, fmt.Errorf("unmarshaling groups: %w", err)
			}
		}
		if contextJSON.Valid {
			if err := json.Unmarshal([]byte(contextJSON.String), &f.Match.Context); err != nil {
				return nil, fmt.Errorf("unmarshaling context: %w", err)
			}
		}
		findings = append(findings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating findings: %w", err)
	}
	return findings, nil
}

// GetSources retrieves every source a document was seen at.
func (s *SQLiteStore) GetSources(doc types.DocumentID) ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM sources WHERE document_id = ? ORDER BY id", doc.Hex())
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	sources := []string{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, path)
	}
	return sources, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
