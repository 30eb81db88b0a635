// Package matcher finds literal and regex pattern occurrences in a text buffer.
//
// Literals are matched with a codepoint Aho-Corasick automaton; regexes are
// evaluated with regexp2 and gated by a keyword prefilter. All offsets are
// codepoint indices.
package matcher

import (
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/sift/pkg/prefilter"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Matcher scans buffers for pattern matches.
type Matcher interface {
	// Match scans buf and returns matches ordered by start offset.
	Match(buf *textbuf.Buffer, opts Options) (*types.MatchResult, error)

	// Patterns returns the specs in registration order.
	Patterns() []types.PatternSpec

	// Diagnostics lists patterns skipped at compile time.
	Diagnostics() []types.Diagnostic
}

type compiledPattern struct {
	spec         types.PatternSpec
	index        int
	structuralID string
	re           *regexp2.Regexp
	groups       []string
	usable       bool
}

// Compiled is an immutable compiled pattern set. It is safe for concurrent use.
type Compiled struct {
	patterns    []compiledPattern
	exact       *runeAutomaton
	folded      *runeAutomaton
	maxLiteral  int
	regexes     []int
	prefilter   *prefilter.Prefilter
	diagnostics []types.Diagnostic
}

var _ Matcher = (*Compiled)(nil)

// Compile builds a matcher from specs. Registration order is the slice order
// and decides ties between equally long matches at the same start.
//
// A spec with an empty label or unknown kind fails with
// types.KindInvalidConfiguration. A pattern that cannot be compiled fails
// with types.KindPatternCompile in strict mode and is otherwise skipped and
// reported through Diagnostics. An empty spec list yields a matcher that
// never matches.
func Compile(specs []types.PatternSpec, opts CompileOptions) (*Compiled, error) {
	c := &Compiled{
		patterns: make([]compiledPattern, len(specs)),
		exact:    newRuneAutomaton(false),
		folded:   newRuneAutomaton(true),
	}

	var entries []prefilter.Entry
	for i, spec := range specs {
		if spec.Label == "" {
			return nil, types.NewError(types.KindInvalidConfiguration, "", "pattern %d has an empty label", i)
		}
		if !spec.Kind.Valid() {
			return nil, types.NewError(types.KindInvalidConfiguration, spec.Label, "unknown pattern kind %q", spec.Kind)
		}

		p := compiledPattern{
			spec:         spec,
			index:        i,
			structuralID: spec.ComputeStructuralID(),
		}

		if err := c.compileOne(&p, opts.RegexTimeout); err != nil {
			if opts.Strict {
				return nil, err
			}
			c.diagnostics = append(c.diagnostics, types.DiagnosticFrom(err, "compile"))
			c.patterns[i] = p
			continue
		}
		p.usable = true

		if p.re != nil {
			c.regexes = append(c.regexes, i)
			entries = append(entries, prefilter.Entry{ID: i, Keywords: spec.Keywords})
		}
		c.patterns[i] = p
	}

	c.exact.build()
	c.folded.build()
	if len(c.regexes) > 0 {
		c.prefilter = prefilter.New(entries)
	}
	return c, nil
}

func (c *Compiled) compileOne(p *compiledPattern, timeout time.Duration) error {
	spec := p.spec
	if spec.Pattern == "" {
		return types.WrapError(types.KindPatternCompile, spec.Label, errEmptyPattern)
	}
	if !utf8.ValidString(spec.Pattern) {
		return types.NewError(types.KindPatternCompile, spec.Label, "pattern is not valid UTF-8")
	}

	switch spec.EffectiveKind() {
	case types.PatternLiteral:
		runes := []rune(spec.Pattern)
		if spec.IsCaseSensitive() {
			c.exact.add(runes, p.index)
		} else {
			c.folded.add(runes, p.index)
		}
		if len(runes) > c.maxLiteral {
			c.maxLiteral = len(runes)
		}
	case types.PatternRegex:
		re, err := compileRegex(spec.Pattern, spec.IsCaseSensitive(), timeout)
		if err != nil {
			return types.WrapError(types.KindPatternCompile, spec.Label, err)
		}
		p.re = re
		p.groups = namedGroups(re)
	}
	return nil
}

// Patterns returns the specs in registration order.
func (c *Compiled) Patterns() []types.PatternSpec {
	out := make([]types.PatternSpec, len(c.patterns))
	for i, p := range c.patterns {
		out[i] = p.spec
	}
	return out
}

// Len returns the number of registered patterns, including skipped ones.
func (c *Compiled) Len() int {
	return len(c.patterns)
}

// StructuralID returns the structural ID of the pattern at index.
func (c *Compiled) StructuralID(index int) string {
	if index < 0 || index >= len(c.patterns) {
		return ""
	}
	return c.patterns[index].structuralID
}

// Diagnostics lists patterns skipped at compile time.
func (c *Compiled) Diagnostics() []types.Diagnostic {
	return append([]types.Diagnostic(nil), c.diagnostics...)
}

// GroupNames returns the named capture groups of the regex at index.
func (c *Compiled) GroupNames(index int) []string {
	if index < 0 || index >= len(c.patterns) {
		return nil
	}
	return append([]string(nil), c.patterns[index].groups...)
}
