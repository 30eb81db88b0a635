// Package store persists analysis results for the CLI.
package store

import (
	"github.com/praetorian-inc/sift/pkg/types"
)

// Store provides persistence for analysis results.
// This interface abstracts the underlying storage implementation,
// allowing for different backends (SQLite, in-memory).
type Store interface {
	// AddAnalysis stores an analysis. A document already analyzed under
	// the same profile only gains the new source.
	AddAnalysis(a *types.Analysis) error

	// AnalysisExists checks if a document was already analyzed under profile.
	AnalysisExists(doc types.DocumentID, profile string) (bool, error)

	// GetAnalyses retrieves every analysis in insertion order (for reporting).
	GetAnalyses() ([]*types.Analysis, error)

	// GetFindings retrieves the findings of one document across profiles.
	GetFindings(doc types.DocumentID) ([]types.Finding, error)

	// GetSources retrieves every source a document was seen at.
	GetSources(doc types.DocumentID) ([]string, error)

	// Close closes the database connection.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path is the database file path.
	// Use ":memory:" for an in-memory store (useful for testing).
	Path string
}

// MemoryPath selects the in-memory store.
const MemoryPath = ":memory:"
