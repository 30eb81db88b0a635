package extract

import (
	"math"

	"github.com/praetorian-inc/sift/pkg/types"
)

// Dictionary lists known surface forms of one entity type.
type Dictionary struct {
	Name    string           `json:"name,omitempty" yaml:"name,omitempty"`
	Type    types.EntityType `json:"type" yaml:"type"`
	Entries []string         `json:"entries" yaml:"entries"`
	// CaseSensitive disables Unicode simple case folding for this dictionary.
	CaseSensitive bool `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
}

// CustomRule is a host-supplied regex recognizer run with the pattern classes.
type CustomRule struct {
	Name    string           `json:"name" yaml:"name"`
	Type    types.EntityType `json:"type" yaml:"type"`
	Pattern string           `json:"pattern" yaml:"pattern"`
	// CaseSensitive defaults to true when absent.
	CaseSensitive *bool `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
	// Group names the capture group whose span becomes the entity span.
	// Empty uses the whole match.
	Group      string            `json:"group,omitempty" yaml:"group,omitempty"`
	Keywords   []string          `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	// Annotate adds pronoun and sentiment cues found near the match.
	Annotate bool `json:"annotate,omitempty" yaml:"annotate,omitempty"`
}

// HeuristicConfig holds the weights of the heuristic confidence formula:
//
//	min(MaxConfidence, Base + PerExtraToken*(n-1) + Designator*d + Title*t - SentenceStart*s)
//
// where n is the number of capitalized tokens, d and t are 1 when a
// designator or title is present, and s is 1 for a lone token opening a
// sentence.
type HeuristicConfig struct {
	Base          float64 `json:"base" yaml:"base"`
	PerExtraToken float64 `json:"per_extra_token" yaml:"per_extra_token"`
	Designator    float64 `json:"designator" yaml:"designator"`
	Title         float64 `json:"title" yaml:"title"`
	SentenceStart float64 `json:"sentence_start" yaml:"sentence_start"`
	MaxConfidence float64 `json:"max_confidence" yaml:"max_confidence"`

	// Extra vocabulary merged into the built-in lists.
	Stopwords   []string `json:"stopwords,omitempty" yaml:"stopwords,omitempty"`
	Designators []string `json:"designators,omitempty" yaml:"designators,omitempty"`
	Titles      []string `json:"titles,omitempty" yaml:"titles,omitempty"`
}

// DefaultHeuristics returns the default heuristic weights.
func DefaultHeuristics() HeuristicConfig {
	return HeuristicConfig{
		Base:          0.3,
		PerExtraToken: 0.2,
		Designator:    0.3,
		Title:         0.3,
		SentenceStart: 0.2,
		MaxConfidence: 0.95,
	}
}

// Config configures an Extractor.
type Config struct {
	Dictionaries []Dictionary `json:"dictionaries,omitempty" yaml:"dictionaries,omitempty"`
	// EnabledClasses selects built-in pattern classes. Empty enables none.
	EnabledClasses    []types.EntityType `json:"enabled_classes,omitempty" yaml:"enabled_classes,omitempty"`
	HeuristicsEnabled bool               `json:"heuristics_enabled" yaml:"heuristics_enabled"`
	// Heuristics is nil for DefaultHeuristics.
	Heuristics  *HeuristicConfig `json:"heuristics,omitempty" yaml:"heuristics,omitempty"`
	CustomRules []CustomRule     `json:"custom_rules,omitempty" yaml:"custom_rules,omitempty"`
	// MinConfidence drops heuristic candidates scoring below it. Nil uses
	// DefaultMinConfidence; an explicit 0 keeps every candidate.
	MinConfidence *float64 `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
}

// DefaultMinConfidence is used when Config.MinConfidence is nil.
const DefaultMinConfidence = 0.4

// DefaultConfig enables every built-in class and the heuristic recognizer.
func DefaultConfig() Config {
	return Config{
		EnabledClasses:    BuiltinClasses(),
		HeuristicsEnabled: true,
	}
}

func (c Config) heuristics() HeuristicConfig {
	if c.Heuristics == nil {
		return DefaultHeuristics()
	}
	return *c.Heuristics
}

func (c Config) minConfidence() float64 {
	if c.MinConfidence == nil {
		return DefaultMinConfidence
	}
	return *c.MinConfidence
}

func invalid(label, format string, args ...interface{}) error {
	return types.NewError(types.KindInvalidConfiguration, label, format, args...)
}

func badNumber(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// Validate checks the structural validity of c.
func (c Config) Validate() error {
	for i, d := range c.Dictionaries {
		if !d.Type.Valid() {
			return invalid(d.Name, "dictionary %d has invalid entity type %q", i, d.Type)
		}
	}

	known := make(map[types.EntityType]bool)
	for _, t := range BuiltinClasses() {
		known[t] = true
	}
	for _, t := range c.EnabledClasses {
		if !known[t] {
			return invalid(string(t), "unknown pattern class %q", t)
		}
	}

	seen := make(map[string]bool)
	for i, r := range c.CustomRules {
		if r.Name == "" {
			return invalid("", "custom rule %d has an empty name", i)
		}
		if seen[r.Name] {
			return invalid(r.Name, "duplicate custom rule name")
		}
		seen[r.Name] = true
		if !r.Type.Valid() {
			return invalid(r.Name, "invalid entity type %q", r.Type)
		}
		if r.Pattern == "" {
			return invalid(r.Name, "custom rule has an empty pattern")
		}
	}

	h := c.heuristics()
	weights := []struct {
		name string
		w    float64
	}{
		{"base", h.Base},
		{"per_extra_token", h.PerExtraToken},
		{"designator", h.Designator},
		{"title", h.Title},
		{"sentence_start", h.SentenceStart},
	}
	for _, hw := range weights {
		if badNumber(hw.w) || hw.w < 0 {
			return invalid("heuristics", "weight %s must be a non-negative number, got %v", hw.name, hw.w)
		}
	}
	if badNumber(h.MaxConfidence) || h.MaxConfidence <= 0 || h.MaxConfidence >= 1 {
		return invalid("heuristics", "max_confidence must be in (0,1), got %v", h.MaxConfidence)
	}
	if mc := c.minConfidence(); badNumber(mc) || mc < 0 || mc > 1 {
		return invalid("min_confidence", "min_confidence must be in [0,1], got %v", mc)
	}
	return nil
}
