package rule

import "github.com/praetorian-inc/sift/pkg/types"

// yamlPattern is the on-disk form of a catalog pattern.
type yamlPattern struct {
	Label            string            `yaml:"label"`
	Pattern          string            `yaml:"pattern"`
	Kind             types.PatternKind `yaml:"kind,omitempty"`
	CaseSensitive    *bool             `yaml:"case_sensitive,omitempty"`
	Keywords         []string          `yaml:"keywords,omitempty"`
	Category         string            `yaml:"category,omitempty"`
	Severity         string            `yaml:"severity,omitempty"`
	Weight           float64           `yaml:"weight,omitempty"`
	EntityType       types.EntityType  `yaml:"entity_type,omitempty"`
	Description      string            `yaml:"description,omitempty"`
	Examples         []string          `yaml:"examples,omitempty"`
	NegativeExamples []string          `yaml:"negative_examples,omitempty"`
	References       []string          `yaml:"references,omitempty"`
}

// yamlPatternsFile is the top-level structure of a pattern catalog file.
type yamlPatternsFile struct {
	Patterns []yamlPattern `yaml:"patterns"`
}

type yamlSet struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Categories  []string `yaml:"include_categories,omitempty"`
	Labels      []string `yaml:"include_labels,omitempty"`
}

type yamlSetsFile struct {
	Sets []yamlSet `yaml:"sets"`
}

type yamlProfilesFile struct {
	Profiles []*Profile `yaml:"profiles"`
}

type yamlRelationship struct {
	Relationship string   `yaml:"relationship"`
	Category     string   `yaml:"category"`
	Aliases      []string `yaml:"aliases"`
}

type yamlRelationshipsFile struct {
	Relationships []yamlRelationship `yaml:"relationships"`
}

type yamlKeywordsFile struct {
	Keywords []string `yaml:"keywords"`
}
