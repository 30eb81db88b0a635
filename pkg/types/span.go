package types

import "fmt"

// Span is a half-open codepoint range [Start, End) into a text buffer.
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of codepoints covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Empty reports whether the span is zero-width.
func (s Span) Empty() bool {
	return s.End == s.Start
}

// Valid reports whether 0 <= Start <= End <= n.
func (s Span) Valid(n int) bool {
	return s.Start >= 0 && s.Start <= s.End && s.End <= n
}

// Overlaps reports whether two spans share at least one codepoint.
// Identical zero-width spans are considered overlapping.
func (s Span) Overlaps(o Span) bool {
	if s == o {
		return true
	}
	return s.Start < o.End && o.Start < s.End
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}
