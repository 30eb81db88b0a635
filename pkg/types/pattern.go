package types

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
)

// PatternKind selects how a PatternSpec is compiled.
type PatternKind string

const (
	// PatternLiteral matches the pattern text exactly (optionally case-folded).
	PatternLiteral PatternKind = "literal"
	// PatternRegex compiles the pattern text as a regular expression.
	PatternRegex PatternKind = "regex"
)

// Valid reports whether k is a known kind. The empty kind is treated as literal.
func (k PatternKind) Valid() bool {
	switch k {
	case "", PatternLiteral, PatternRegex:
		return true
	}
	return false
}

// PatternSpec describes one pattern to compile into a matcher.
type PatternSpec struct {
	Label   string      `json:"label" yaml:"label"`
	Pattern string      `json:"pattern_text" yaml:"pattern"`
	Kind    PatternKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	// CaseSensitive defaults to true when absent.
	CaseSensitive *bool `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`

	// Keywords gate regex evaluation: a regex with keywords only runs when
	// at least one keyword occurs in the text.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	Weight      float64    `json:"weight,omitempty" yaml:"weight,omitempty"`
	Severity    string     `json:"severity,omitempty" yaml:"severity,omitempty"`
	Category    string     `json:"category,omitempty" yaml:"category,omitempty"`
	EntityType  EntityType `json:"entity_type,omitempty" yaml:"entity_type,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// Literal builds a case-sensitive literal pattern.
func Literal(label, text string) PatternSpec {
	return PatternSpec{Label: label, Pattern: text, Kind: PatternLiteral}
}

// Regex builds a case-sensitive regex pattern.
func Regex(label, expr string) PatternSpec {
	return PatternSpec{Label: label, Pattern: expr, Kind: PatternRegex}
}

// IgnoreCase returns a copy of p that matches case-insensitively.
func (p PatternSpec) IgnoreCase() PatternSpec {
	f := false
	p.CaseSensitive = &f
	return p
}

// IsCaseSensitive resolves the CaseSensitive default.
func (p PatternSpec) IsCaseSensitive() bool {
	return p.CaseSensitive == nil || *p.CaseSensitive
}

// EffectiveKind resolves the empty kind to PatternLiteral.
func (p PatternSpec) EffectiveKind() PatternKind {
	if p.Kind == "" {
		return PatternLiteral
	}
	return p.Kind
}

// namedGroupRe matches named capture groups like (?P<name>...) or (?<name>...)
// and replaces them with plain groups so renaming a group keeps the ID stable.
var namedGroupRe = regexp.MustCompile(`\(\?P?<[^>]+>`)

// ComputeStructuralID computes SHA-1 over kind, case mode and normalized pattern.
func (p PatternSpec) ComputeStructuralID() string {
	normalized := p.Pattern
	if p.EffectiveKind() == PatternRegex {
		normalized = namedGroupRe.ReplaceAllString(p.Pattern, "(")
	}
	h := sha1.New()
	h.Write([]byte(p.EffectiveKind()))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(p.IsCaseSensitive())))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	return hex.EncodeToString(h.Sum(nil))
}
