package matcher

import "time"

// CompileOptions configures Compile.
type CompileOptions struct {
	// Strict fails Compile on the first invalid pattern. Otherwise invalid
	// patterns are skipped and reported through Diagnostics.
	Strict bool `json:"strict,omitempty" yaml:"strict,omitempty"`

	// RegexTimeout bounds one regex evaluation. Zero uses DefaultRegexTimeout.
	RegexTimeout time.Duration `json:"-" yaml:"-"`
}

// Options configures a single Match call.
type Options struct {
	// Overlapping reports every occurrence of every pattern. When false,
	// matches are resolved leftmost-longest with ties going to the pattern
	// registered first.
	Overlapping bool `json:"overlapping,omitempty" yaml:"overlapping,omitempty"`

	// MaxMatches caps the result. Zero means unlimited.
	MaxMatches int `json:"max_matches,omitempty" yaml:"max_matches,omitempty"`

	// MaxSteps caps the number of codepoints the scan may advance over,
	// summed across the literal pass and every regex. Zero means unlimited.
	MaxSteps int64 `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`

	// Timeout converts to a deadline when the scan starts. Deadline wins
	// when both are set.
	Timeout  time.Duration `json:"-" yaml:"-"`
	Deadline time.Time     `json:"-" yaml:"-"`

	// TimeoutMillis is the wire form of Timeout.
	TimeoutMillis int64 `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`

	// ContextLines attaches this many lines of surrounding text to each match.
	ContextLines int `json:"context_lines,omitempty" yaml:"context_lines,omitempty"`
}

// deadline resolves the effective deadline relative to now.
func (o Options) deadline(now time.Time) time.Time {
	switch {
	case !o.Deadline.IsZero():
		return o.Deadline
	case o.Timeout > 0:
		return now.Add(o.Timeout)
	case o.TimeoutMillis > 0:
		return now.Add(time.Duration(o.TimeoutMillis) * time.Millisecond)
	}
	return time.Time{}
}
