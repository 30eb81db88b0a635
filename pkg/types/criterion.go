package types

// CriterionKind selects the evaluator used for a criterion.
type CriterionKind string

const (
	KindKeywordPresence CriterionKind = "keyword_presence"
	KindPatternDensity  CriterionKind = "pattern_density"
	KindEntityPresence  CriterionKind = "entity_presence"
	KindLengthRatio     CriterionKind = "length_ratio"
	KindSignalWeight    CriterionKind = "signal_weight"
	KindCustom          CriterionKind = "custom"
)

// Valid reports whether k is a known evaluator kind.
func (k CriterionKind) Valid() bool {
	switch k {
	case KindKeywordPresence, KindPatternDensity, KindEntityPresence,
		KindLengthRatio, KindSignalWeight, KindCustom:
		return true
	}
	return false
}

// Criterion is one weighted scoring rule.
type Criterion struct {
	Name   string          `json:"name" yaml:"name"`
	Weight float64         `json:"weight" yaml:"weight"`
	Kind   CriterionKind   `json:"evaluator_kind" yaml:"kind"`
	Params CriterionParams `json:"parameters" yaml:"params,omitempty"`
}

// CriterionParams holds the kind-specific parameters. Only the fields
// relevant to the criterion's kind are read.
type CriterionParams struct {
	// keyword_presence
	Keywords      []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	CaseSensitive bool     `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
	WholeWord     bool     `json:"whole_word,omitempty" yaml:"whole_word,omitempty"`

	// Mode selects the raw value shape: fraction, count, presence or density.
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// pattern_density, signal_weight. Overlapping counts every occurrence of
	// every pattern instead of the leftmost-longest resolution.
	Patterns    []PatternSpec `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Overlapping bool          `json:"overlapping,omitempty" yaml:"overlapping,omitempty"`

	// entity_presence
	EntityTypes []EntityType `json:"entity_types,omitempty" yaml:"entity_types,omitempty"`

	// length_ratio; Unit is "runes" (default) or "words".
	MinLength int    `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Unit      string `json:"unit,omitempty" yaml:"unit,omitempty"`

	// custom
	Function string             `json:"function,omitempty" yaml:"function,omitempty"`
	Args     map[string]float64 `json:"args,omitempty" yaml:"args,omitempty"`
}
