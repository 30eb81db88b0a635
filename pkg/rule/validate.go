package rule

import (
	"fmt"

	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/score"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// ValidatePattern checks required fields, compiles the pattern and runs it
// against its examples. Every example must match and no negative example
// may match.
func ValidatePattern(p *Pattern) error {
	if p == nil {
		return fmt.Errorf("pattern is nil")
	}
	if p.Spec.Label == "" {
		return fmt.Errorf("pattern label is required")
	}
	if p.Spec.Pattern == "" {
		return fmt.Errorf("pattern %s has an empty pattern", p.Spec.Label)
	}
	if p.Spec.Weight < 0 {
		return fmt.Errorf("pattern %s has a negative weight", p.Spec.Label)
	}

	m, err := matcher.Compile([]types.PatternSpec{p.Spec}, matcher.CompileOptions{Strict: true})
	if err != nil {
		return fmt.Errorf("invalid pattern %s: %w", p.Spec.Label, err)
	}

	expectedID := p.Spec.ComputeStructuralID()
	if p.StructuralID != "" && p.StructuralID != expectedID {
		return fmt.Errorf("pattern %s has inconsistent StructuralID: got %s, expected %s",
			p.Spec.Label, p.StructuralID, expectedID)
	}

	for _, ex := range p.Examples {
		found, err := matches(m, ex)
		if err != nil {
			return fmt.Errorf("pattern %s: %w", p.Spec.Label, err)
		}
		if !found {
			return fmt.Errorf("pattern %s does not match example %q", p.Spec.Label, ex)
		}
	}
	for _, ex := range p.NegativeExamples {
		found, err := matches(m, ex)
		if err != nil {
			return fmt.Errorf("pattern %s: %w", p.Spec.Label, err)
		}
		if found {
			return fmt.Errorf("pattern %s matches negative example %q", p.Spec.Label, ex)
		}
	}
	return nil
}

func matches(m *matcher.Compiled, text string) (bool, error) {
	buf, err := textbuf.New(text)
	if err != nil {
		return false, err
	}
	res, err := m.Match(buf, matcher.Options{MaxMatches: 1})
	if err != nil {
		return false, err
	}
	return len(res.Matches) > 0, nil
}

// ValidateCatalog validates every pattern and rejects duplicate labels.
func ValidateCatalog(patterns []*Pattern) error {
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		if err := ValidatePattern(p); err != nil {
			return err
		}
		if seen[p.Spec.Label] {
			return fmt.Errorf("duplicate pattern label: %s", p.Spec.Label)
		}
		seen[p.Spec.Label] = true
	}
	return nil
}

// ValidateSet checks set consistency and required fields.
// patterns supplies the known labels and categories for reference checking;
// nil skips the reference check.
func ValidateSet(s *Set, patterns []*Pattern) error {
	if s == nil {
		return fmt.Errorf("set is nil")
	}
	if s.ID == "" {
		return fmt.Errorf("set ID is required")
	}
	if s.Name == "" {
		return fmt.Errorf("set name is required")
	}
	if len(s.Categories) == 0 && len(s.Labels) == 0 {
		return fmt.Errorf("set %s must include at least one category or label", s.ID)
	}

	if patterns != nil {
		categories := make(map[string]bool)
		labels := make(map[string]bool)
		for _, p := range patterns {
			categories[p.Spec.Category] = true
			labels[p.Spec.Label] = true
		}
		for _, c := range s.Categories {
			if !categories[c] {
				return fmt.Errorf("set %s references unknown category: %s", s.ID, c)
			}
		}
		for _, l := range s.Labels {
			if !labels[l] {
				return fmt.Errorf("set %s references unknown label: %s", s.ID, l)
			}
		}
	}

	seen := make(map[string]bool)
	for _, c := range s.Categories {
		if seen[c] {
			return fmt.Errorf("set %s contains duplicate category: %s", s.ID, c)
		}
		seen[c] = true
	}
	return nil
}

// ValidateProfile resolves the profile against the catalog and builds its
// scorer, surfacing any configuration error.
func ValidateProfile(p *Profile, patterns []*Pattern, sets []*Set) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if len(p.Criteria) == 0 {
		return fmt.Errorf("profile %s has no criteria", p.Name)
	}
	if _, err := p.Scorer(patterns, sets, map[string]score.Func{}); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return nil
}
