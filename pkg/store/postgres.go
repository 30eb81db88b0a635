//go:build !wasm

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/praetorian-inc/sift/pkg/types"
)

// IsPostgresURL reports whether path names a Postgres database.
func IsPostgresURL(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		runes INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sources (
		id BIGSERIAL PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		path TEXT NOT NULL,
		UNIQUE(document_id, path)
	)`,
	`CREATE TABLE IF NOT EXISTS analyses (
		id BIGSERIAL PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		profile TEXT NOT NULL,
		total DOUBLE PRECISION NOT NULL,
		detected BOOLEAN NOT NULL,
		truncated BOOLEAN NOT NULL,
		score_json JSONB NOT NULL,
		entities_json JSONB NOT NULL,
		diagnostics_json JSONB,
		UNIQUE(document_id, profile)
	)`,
	`CREATE TABLE IF NOT EXISTS findings (
		seq BIGSERIAL,
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
		groups_json JSONB,
		context_json JSONB,
		PRIMARY KEY(id, profile)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sources_document_id ON sources(document_id)`,
	`CREATE INDEX IF NOT EXISTS idx_findings_document_id ON findings(document_id)`,
}

// PostgresStore implements Store on a Postgres connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database at url and creates the schema.
func NewPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

// AddAnalysis stores an analysis with its document, source and findings.
func (s *PostgresStore) AddAnalysis(a *types.Analysis) error {
	if a == nil {
		return fmt.Errorf("analysis is nil")
	}
	ctx := context.Background()
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "INSERT INTO documents (id, runes) VALUES ($1, $2) ON CONFLICT DO NOTHING", doc, a.Runes); err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	if a.Source != "" {
		if _, err := tx.Exec(ctx, "INSERT INTO sources (document_id, path) VALUES ($1, $2) ON CONFLICT DO NOTHING", doc, a.Source); err != nil {
			return fmt.Errorf("inserting source: %w", err)
		}
	}

	var total float64
	var detected bool
	if a.Score != nil {
		total, detected = a.Score.Total, a.Score.Detected
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO analyses (document_id, profile, total, detected, truncated, score_json, entities_json, diagnostics_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`, doc, a.Profile, total, detected, a.Truncated, string(scoreJSON), string(entitiesJSON), string(diagnosticsJSON))
	if err != nil {
		return fmt.Errorf("inserting analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already analyzed under this profile
		return tx.Commit(ctx)
	}

	batch := &pgx.Batch{}
	for _, f := range a.Findings {
		groupsJSON, err := json.Marshal(f.Match.Groups)
		if err != nil {
			return fmt.Errorf("marshaling groups: %w", err)
		}
		contextJSON, err := json.Marshal(f.Match.Context)
		if err != nil {
			return fmt.Errorf("marshaling context: %w", err)
		}
		batch.Queue(`
			INSERT INTO findings
			(id, document_id, profile, label, pattern_index, category, severity,
			 offset_start, offset_end, start_line, start_column, end_line, end_column,
			 text, groups_json, context_json)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT DO NOTHING
		`,
			f.ID, doc, a.Profile, f.Match.Label, f.Match.Index, f.Category, f.Severity,
			f.Location.Offset.Start, f.Location.Offset.End,
			f.Location.Source.Start.Line, f.Location.Source.Start.Column,
			f.Location.Source.End.Line, f.Location.Source.End.Column,
			f.Match.Text, string(groupsJSON), string(contextJSON),
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting findings: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// AnalysisExists checks if a document was already analyzed under profile.
func (s *PostgresStore) AnalysisExists(doc types.DocumentID, profile string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM analyses WHERE document_id = $1 AND profile = $2)",
		doc.Hex(), profile).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking analysis existence: %w", err)
	}
	return exists, nil
}

// GetAnalyses retrieves every analysis in insertion order.
// Source is the first source the document was seen at.
func (s *PostgresStore) GetAnalyses() ([]*types.Analysis, error) {
	ctx := context.Background()
	rows, err := s.pool.Query(ctx, `
		SELECT a.document_id, a.profile, d.runes, a.truncated, a.score_json, a.entities_json, a.diagnostics_json,
		       COALESCE((SELECT path FROM sources src WHERE src.document_id = a.document_id ORDER BY src.id LIMIT 1), '')
		FROM analyses a
		JOIN documents d ON d.id = a.document_id
		ORDER BY a.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*types.Analysis
	for rows.Next() {
		var a types.Analysis
		var docHex string
		var scoreJSON, entitiesJSON, diagnosticsJSON []byte

		if err := rows.Scan(&docHex, &a.Profile, &a.Runes, &a.Truncated, &scoreJSON, &entitiesJSON, &diagnosticsJSON, &a.Source); err != nil {
			return nil, fmt.Errorf("scanning analysis: %w", err)
		}
		if a.DocumentID, err = types.ParseDocumentID(docHex); err != nil {
			return nil, fmt.Errorf("parsing document ID: %w", err)
		}
		if err := json.Unmarshal(scoreJSON, &a.Score); err != nil {
			return nil, fmt.Errorf("unmarshaling score: %w", err)
		}
		if err := json.Unmarshal(entitiesJSON, &a.Entities); err != nil {
			return nil, fmt.Errorf("unmarshaling entities: %w", err)
		}
		if diagnosticsJSON != nil {
			if err := json.Unmarshal(diagnosticsJSON, &a.Diagnostics); err != nil {
				return nil, fmt.Errorf("unmarshaling diagnostics: %w", err)
			}
		}
		analyses = append(analyses, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating analyses: %w", err)
	}
	rows.Close()

	for _, a := range analyses {
		findings, err := s.queryFindings(ctx, "WHERE document_id = $1 AND profile = $2", a.DocumentID.Hex(), a.Profile)
		if err != nil {
			return nil, err
		}
		a.Findings = findings
	}
	return analyses, nil
}

// GetFindings retrieves the findings of one document across profiles,
// deduplicated by ID.
func (s *PostgresStore) GetFindings(doc types.DocumentID) ([]types.Finding, error) {
	return s.queryFindings(context.Background(),
		"WHERE seq IN (SELECT MIN(seq) FROM findings WHERE document_id = $1 GROUP BY id)", doc.Hex())
}

func (s *PostgresStore) queryFindings(ctx context.Context, where string, args ...interface{}) ([]types.Finding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, pattern_index, category, severity, offset_start, offset_end,
		       start_line, start_column, end_line, end_column, text, groups_json, context_json
		FROM findings `+where+`
		ORDER BY seq
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	findings := []types.Finding{}
	for rows.Next() {
		var f types.Finding
		var category, severity *string
		var groupsJSON, contextJSON []byte

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
		if category != nil {
			f.Category = *category
		}
		if severity != nil {
			f.Severity = *severity
		}
		f.Match.Span = f.Location.Offset

		if groupsJSON != nil {
			if err := json.Unmarshal(groupsJSON, &f.Match.Groups); err != nil {
				return nil, fmt.Errorf("unmarshaling groups: %w", err)
			}
		}
		if contextJSON != nil {
			if err := json.Unmarshal(contextJSON, &f.Match.Context); err != nil {
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
func (s *PostgresStore) GetSources(doc types.DocumentID) ([]string, error) {
	rows, err := s.pool.Query(context.Background(), "SELECT path FROM sources WHERE document_id = $1 ORDER BY id", doc.Hex())
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	sources, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning sources: %w", err)
	}
	if sources == nil {
		sources = []string{}
	}
	return sources, nil
}

// reset empties every table. Tests share one database.
func (s *PostgresStore) reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE findings, analyses, sources, documents")
	return err
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
