package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Match is a single pattern occurrence in a text buffer.
type Match struct {
	Label string `json:"pattern_label"`
	// Index is the registration index of the pattern that produced the match.
	Index int    `json:"index"`
	Span  Span   `json:"span"`
	Text  string `json:"matched_text"`
	// Groups holds named regex captures that participated in the match.
	Groups  map[string]Span `json:"groups,omitempty"`
	Context *Context        `json:"context,omitempty"`
}

// Context is the text surrounding a match.
type Context struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// ComputeID computes a location-based ID:
// SHA-1(pattern_structural_id + '\0' + doc_id + '\0' + start + '\0' + end).
func (m *Match) ComputeID(patternStructuralID string, doc DocumentID) string {
	h := sha1.New()
	h.Write([]byte(patternStructuralID))
	h.Write([]byte{0})
	h.Write(doc[:])
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(m.Span.Start)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(m.Span.End)))
	return hex.EncodeToString(h.Sum(nil))
}

// MatchResult is the outcome of matching one buffer.
type MatchResult struct {
	Matches []Match `json:"matches"`
	// Truncated is set when max_matches or the scan budget stopped the scan
	// while more matches were available.
	Truncated   bool         `json:"truncated"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}
