package types

// Finding is a match located in an analyzed document.
type Finding struct {
	// ID is Match.ComputeID over the pattern's structural ID and the document.
	ID       string   `json:"id"`
	Match    Match    `json:"match"`
	Location Location `json:"location"`
	Category string   `json:"category,omitempty"`
	Severity string   `json:"severity,omitempty"`
}

// Analysis combines matching, extraction and scoring of one document.
type Analysis struct {
	Source      string       `json:"source"`
	DocumentID  DocumentID   `json:"document_id"`
	Runes       int          `json:"runes"`
	Profile     string       `json:"profile"`
	Findings    []Finding    `json:"findings"`
	Entities    []Entity     `json:"entities"`
	Score       *ScoreResult `json:"score"`
	Truncated   bool         `json:"truncated,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	// Metadata is caller-supplied context carried through unchanged.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Matches returns the matches of every finding.
func (a *Analysis) Matches() []Match {
	out := make([]Match, len(a.Findings))
	for i, f := range a.Findings {
		out[i] = f.Match
	}
	return out
}
