package rule

import (
	"sort"
	"strings"

	"github.com/praetorian-inc/sift/pkg/extract"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Relationship is a named relation ("sister", "boss") and the regex
// fragments that spell it.
type Relationship struct {
	Name     string
	Category string
	Aliases  []string
}

// properName is one or two capitalized words.
const properName = `(?P<name>\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)?)`

// Rules expands r into two custom rules, "my sister Sarah" and
// "Sarah, my sister". Both report the name as a PERSON carrying the
// relationship and its category.
func (r Relationship) Rules() []extract.CustomRule {
	aliases := append([]string(nil), r.Aliases...)
	// Longer alternatives first so "ex-husband" is not cut short by "ex".
	sort.SliceStable(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
	alt := strings.Join(aliases, "|")

	attrs := map[string]string{
		"relationship": r.Name,
		"category":     r.Category,
	}
	forward := extract.CustomRule{
		Name:       "relationship." + r.Name,
		Type:       types.EntityPerson,
		Pattern:    `\b(?i:my\s+(?:` + alt + `))\b\s*,?\s*` + properName + `\b`,
		Group:      "name",
		Keywords:   []string{"my"},
		Attributes: attrs,
		Annotate:   true,
	}
	reverse := extract.CustomRule{
		Name:       "relationship." + r.Name + ".reverse",
		Type:       types.EntityPerson,
		Pattern:    `\b` + properName + `(?:,\s*|\s+who\s+is\s+|\s+who's\s+)(?i:my\s+(?:` + alt + `))\b`,
		Group:      "name",
		Keywords:   []string{"my"},
		Attributes: copyMap(attrs),
		Annotate:   true,
	}
	return []extract.CustomRule{forward, reverse}
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// RelationshipRules expands every relationship into custom rules.
func RelationshipRules(rels []Relationship) []extract.CustomRule {
	rules := make([]extract.CustomRule, 0, 2*len(rels))
	for _, r := range rels {
		rules = append(rules, r.Rules()...)
	}
	return rules
}

// BuiltinExtraction returns extract.DefaultConfig extended with the
// built-in relationship rules.
func BuiltinExtraction() (extract.Config, error) {
	rels, err := NewLoader().LoadBuiltinRelationships()
	if err != nil {
		return extract.Config{}, err
	}
	cfg := extract.DefaultConfig()
	cfg.CustomRules = RelationshipRules(rels)
	return cfg, nil
}
