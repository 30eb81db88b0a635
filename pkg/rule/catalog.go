package rule

import (
	"github.com/praetorian-inc/sift/pkg/extract"
	"github.com/praetorian-inc/sift/pkg/score"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Pattern is a catalog entry: a pattern spec plus the examples it is
// validated against.
type Pattern struct {
	Spec             types.PatternSpec
	StructuralID     string
	Examples         []string
	NegativeExamples []string
	References       []string
}

// Specs returns the pattern specs in catalog order.
func Specs(patterns []*Pattern) []types.PatternSpec {
	specs := make([]types.PatternSpec, len(patterns))
	for i, p := range patterns {
		specs[i] = p.Spec
	}
	return specs
}

// Set is a named selection of catalog patterns by category or label.
type Set struct {
	ID          string
	Name        string
	Description string
	Categories  []string
	Labels      []string
}

// Select returns the patterns the set includes, in catalog order.
func (s *Set) Select(patterns []*Pattern) []*Pattern {
	cats := make(map[string]bool, len(s.Categories))
	for _, c := range s.Categories {
		cats[c] = true
	}
	labels := make(map[string]bool, len(s.Labels))
	for _, l := range s.Labels {
		labels[l] = true
	}

	var out []*Pattern
	for _, p := range patterns {
		if cats[p.Spec.Category] || labels[p.Spec.Label] {
			out = append(out, p)
		}
	}
	return out
}

// Profile is a named scoring configuration.
type Profile struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// PatternSet fills pattern-based criteria that list no patterns.
	PatternSet string            `json:"pattern_set,omitempty" yaml:"pattern_set,omitempty"`
	Reduction  types.Reduction   `json:"reduction,omitempty" yaml:"reduction,omitempty"`
	Threshold  *float64          `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Criteria   []types.Criterion `json:"criteria" yaml:"criteria"`
	Extraction *extract.Config   `json:"extraction,omitempty" yaml:"extraction,omitempty"`
}

func usesPatterns(k types.CriterionKind) bool {
	return k == types.KindSignalWeight || k == types.KindPatternDensity
}

// Resolve returns the profile's criteria with every pattern-based criterion
// that lists no patterns filled from the profile's pattern set.
func (p *Profile) Resolve(patterns []*Pattern, sets []*Set) ([]types.Criterion, error) {
	criteria := make([]types.Criterion, len(p.Criteria))
	copy(criteria, p.Criteria)

	var selected []types.PatternSpec
	resolved := false
	for i, c := range criteria {
		if !usesPatterns(c.Kind) || len(c.Params.Patterns) > 0 {
			continue
		}
		if p.PatternSet == "" {
			continue
		}
		if !resolved {
			set := FindSet(sets, p.PatternSet)
			if set == nil {
				return nil, types.NewError(types.KindInvalidConfiguration, p.Name, "unknown pattern set %q", p.PatternSet)
			}
			selected = Specs(set.Select(patterns))
			resolved = true
		}
		criteria[i].Params.Patterns = selected
	}
	return criteria, nil
}

// FindSet returns the set with the given ID, or nil.
func FindSet(sets []*Set, id string) *Set {
	for _, s := range sets {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ScoreConfig returns the scorer configuration of the profile.
func (p *Profile) ScoreConfig() score.Config {
	return score.Config{
		Reduction:  p.Reduction,
		Threshold:  p.Threshold,
		Extraction: p.Extraction,
	}
}

// Scorer resolves the profile against the catalog and builds its scorer.
func (p *Profile) Scorer(patterns []*Pattern, sets []*Set, funcs map[string]score.Func) (*score.Scorer, error) {
	criteria, err := p.Resolve(patterns, sets)
	if err != nil {
		return nil, err
	}
	cfg := p.ScoreConfig()
	cfg.Functions = funcs
	return score.New(criteria, cfg)
}

// FindProfile returns the profile named name, or nil.
func FindProfile(profiles []*Profile, name string) *Profile {
	for _, p := range profiles {
		if p.Name == name {
			return p
		}
	}
	return nil
}
