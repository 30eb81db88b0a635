package types

// SourcePoint is line:column position (1-based, columns counted in codepoints).
type SourcePoint struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SourceSpan is start-end line:column range.
type SourceSpan struct {
	Start SourcePoint `json:"start"`
	End   SourcePoint `json:"end"`
}

// Location combines codepoint offsets and source positions.
type Location struct {
	Offset Span       `json:"offset"`
	Source SourceSpan `json:"source"`
}

// Locate resolves a span into a Location over runes.
func Locate(runes []rune, span Span) Location {
	sl, sc := ComputeLineColumn(runes, span.Start)
	el, ec := ComputeLineColumn(runes, span.End)
	return Location{
		Offset: span,
		Source: SourceSpan{
			Start: SourcePoint{Line: sl, Column: sc},
			End:   SourcePoint{Line: el, Column: ec},
		},
	}
}
