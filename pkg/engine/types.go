package engine

import (
	"github.com/praetorian-inc/sift/pkg/extract"
	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Handle identifies a compiled matcher registered with an Engine.
type Handle int

// MatchRequest matches a pattern list against one text.
type MatchRequest struct {
	Text     string              `json:"text"`
	Patterns []types.PatternSpec `json:"patterns,omitempty"`
	// Set appends the built-in catalog patterns of the named set.
	Set     string          `json:"set,omitempty"`
	Strict  bool            `json:"strict,omitempty"`
	Options matcher.Options `json:"options"`
}

// CompileRequest compiles a pattern list into a reusable handle.
type CompileRequest struct {
	Patterns []types.PatternSpec `json:"patterns,omitempty"`
	Set      string              `json:"set,omitempty"`
	Strict   bool                `json:"strict,omitempty"`
}

// CompileResult describes a registered handle.
type CompileResult struct {
	Handle      Handle             `json:"handle"`
	Patterns    int                `json:"patterns"`
	Diagnostics []types.Diagnostic `json:"diagnostics,omitempty"`
}

// MatchCompiledRequest matches a registered handle against one text.
type MatchCompiledRequest struct {
	Handle  Handle          `json:"handle"`
	Text    string          `json:"text"`
	Options matcher.Options `json:"options"`
}

// ExtractRequest extracts entities from one text. A nil Config uses the
// built-in extraction, which includes the relationship rules.
type ExtractRequest struct {
	Text    string          `json:"text"`
	Config  *extract.Config `json:"config,omitempty"`
	Options extract.Options `json:"options"`
}

// KeywordsRequest lists the vocabulary words present in one text. Empty
// Keywords uses the built-in vocabulary.
type KeywordsRequest struct {
	Text     string   `json:"text"`
	Keywords []string `json:"keywords,omitempty"`
}

// KeywordsResult holds the distinct words found, lower-cased and sorted.
type KeywordsResult struct {
	Keywords []string `json:"keywords"`
}

// ScoreRequest scores one text either against a named built-in profile or
// against explicit criteria.
type ScoreRequest struct {
	Text      string            `json:"text"`
	Profile   string            `json:"profile,omitempty"`
	Criteria  []types.Criterion `json:"criteria,omitempty"`
	Reduction types.Reduction   `json:"reduction,omitempty"`
	Threshold *float64          `json:"threshold,omitempty"`
	// Extraction configures entity criteria. Nil uses the built-in extraction.
	Extraction *extract.Config `json:"extraction,omitempty"`
	Matches    []types.Match   `json:"matches,omitempty"`
	// Entities replaces extraction when present.
	Entities []types.Entity `json:"entities,omitempty"`
}

// ContentItem represents a content item to analyze
type ContentItem struct {
	Source   string            `json:"source"`             // e.g., "file:notes/today.txt", "message:42"
	Content  string            `json:"content"`            // the actual content to analyze
	Metadata map[string]string `json:"metadata,omitempty"` // copied onto the item's analysis
}

// AnalyzeRequest runs a profile's patterns, the extractor and the profile's
// scorer over one text.
type AnalyzeRequest struct {
	Source  string          `json:"source"`
	Text    string          `json:"text"`
	Profile string          `json:"profile,omitempty"`
	Options matcher.Options `json:"options"`
	// Metadata is copied onto the resulting analysis.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// BatchAnalysis represents batch analysis results
type BatchAnalysis struct {
	Results []*types.Analysis `json:"results"`
	// Detected counts the results whose score crossed the profile threshold.
	Detected int `json:"detected"`
	// Errors holds per-item failures keyed by source.
	Errors map[string]string `json:"errors,omitempty"`
}

// DebugLogger provides platform-specific logging
type DebugLogger interface {
	Log(format string, args ...interface{})
}

// NoopLogger is a no-op logger
type NoopLogger struct{}

func (NoopLogger) Log(format string, args ...interface{}) {}
