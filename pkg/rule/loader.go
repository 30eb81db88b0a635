package rule

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/sift/pkg/extract"
	"github.com/praetorian-inc/sift/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	patternsDir       = "catalog/patterns"
	setsDir           = "catalog/sets"
	profilesDir       = "catalog/profiles"
	relationshipsFile = "catalog/relationships.yml"
	keywordsFile      = "catalog/keywords.yml"
)

// Loader handles loading catalogs and configurations from YAML files.
type Loader struct {
	fs fs.FS // catalog filesystem laid out like the embedded one
}

// NewLoader creates a loader over the embedded built-in catalog.
func NewLoader() *Loader {
	return &Loader{
		fs: builtinFS,
	}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// LoadPatterns loads every pattern in a catalog document.
// Returns error if YAML is invalid or no patterns are present.
func (l *Loader) LoadPatterns(data []byte) ([]*Pattern, error) {
	var yamlFile yamlPatternsFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(yamlFile.Patterns) == 0 {
		return nil, fmt.Errorf("no patterns found in YAML")
	}

	patterns := make([]*Pattern, len(yamlFile.Patterns))
	for i, yp := range yamlFile.Patterns {
		patterns[i] = convertYAMLPattern(yp)
	}
	return patterns, nil
}

// LoadPatternFile loads patterns from a YAML file path.
func (l *Loader) LoadPatternFile(path string) ([]*Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.LoadPatterns(data)
}

// LoadSets loads pattern sets from YAML bytes.
func (l *Loader) LoadSets(data []byte) ([]*Set, error) {
	var yamlFile yamlSetsFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(yamlFile.Sets) == 0 {
		return nil, fmt.Errorf("no sets found in YAML")
	}

	sets := make([]*Set, len(yamlFile.Sets))
	for i, ys := range yamlFile.Sets {
		sets[i] = convertYAMLSet(ys)
	}
	return sets, nil
}

// LoadProfiles loads scoring profiles from YAML bytes.
func (l *Loader) LoadProfiles(data []byte) ([]*Profile, error) {
	var yamlFile yamlProfilesFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(yamlFile.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles found in YAML")
	}
	return yamlFile.Profiles, nil
}

// LoadProfileFile loads scoring profiles from a YAML file path.
func (l *Loader) LoadProfileFile(path string) ([]*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.LoadProfiles(data)
}

// LoadExtraction parses an extraction configuration. The document is the
// YAML form of extract.Config; it is validated before being returned.
func (l *Loader) LoadExtraction(data []byte) (*extract.Config, error) {
	var cfg extract.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadExtractionFile loads an extraction configuration from a YAML file path.
func (l *Loader) LoadExtractionFile(path string) (*extract.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.LoadExtraction(data)
}

// LoadBuiltinPatterns loads every pattern under catalog/patterns.
func (l *Loader) LoadBuiltinPatterns() ([]*Pattern, error) {
	var patterns []*Pattern
	err := walkYAML(l.fs, patternsDir, func(path string, data []byte) error {
		var yamlFile yamlPatternsFile
		if err := yaml.Unmarshal(data, &yamlFile); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for _, yp := range yamlFile.Patterns {
			patterns = append(patterns, convertYAMLPattern(yp))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return patterns, nil
}

// LoadBuiltinSets loads every pattern set under catalog/sets.
func (l *Loader) LoadBuiltinSets() ([]*Set, error) {
	var sets []*Set
	err := walkYAML(l.fs, setsDir, func(path string, data []byte) error {
		var yamlFile yamlSetsFile
		if err := yaml.Unmarshal(data, &yamlFile); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for _, ys := range yamlFile.Sets {
			sets = append(sets, convertYAMLSet(ys))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sets, nil
}

// LoadBuiltinProfiles loads every scoring profile under catalog/profiles.
func (l *Loader) LoadBuiltinProfiles() ([]*Profile, error) {
	var profiles []*Profile
	err := walkYAML(l.fs, profilesDir, func(path string, data []byte) error {
		var yamlFile yamlProfilesFile
		if err := yaml.Unmarshal(data, &yamlFile); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		profiles = append(profiles, yamlFile.Profiles...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// LoadBuiltinRelationships loads the relationship vocabulary.
func (l *Loader) LoadBuiltinRelationships() ([]Relationship, error) {
	data, err := fs.ReadFile(l.fs, relationshipsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", relationshipsFile, err)
	}
	var yamlFile yamlRelationshipsFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", relationshipsFile, err)
	}

	rels := make([]Relationship, len(yamlFile.Relationships))
	for i, yr := range yamlFile.Relationships {
		rels[i] = Relationship{Name: yr.Relationship, Category: yr.Category, Aliases: yr.Aliases}
	}
	return rels, nil
}

// LoadBuiltinKeywords loads the keyword vocabulary.
func (l *Loader) LoadBuiltinKeywords() ([]string, error) {
	data, err := fs.ReadFile(l.fs, keywordsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", keywordsFile, err)
	}
	var yamlFile yamlKeywordsFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", keywordsFile, err)
	}
	if len(yamlFile.Keywords) == 0 {
		return nil, fmt.Errorf("%s lists no keywords", keywordsFile)
	}
	return yamlFile.Keywords, nil
}

// walkYAML calls fn for every .yml file under dir in lexical order.
func walkYAML(fsys fs.FS, dir string, fn func(path string, data []byte) error) error {
	return fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		return fn(path, data)
	})
}

// convertYAMLPattern converts yamlPattern to a Pattern and computes its StructuralID.
func convertYAMLPattern(yp yamlPattern) *Pattern {
	p := &Pattern{
		Spec: types.PatternSpec{
			Label:         yp.Label,
			Pattern:       yp.Pattern,
			Kind:          yp.Kind,
			CaseSensitive: yp.CaseSensitive,
			Keywords:      yp.Keywords,
			Weight:        yp.Weight,
			Severity:      yp.Severity,
			Category:      yp.Category,
			EntityType:    yp.EntityType,
			Description:   yp.Description,
		},
		Examples:         yp.Examples,
		NegativeExamples: yp.NegativeExamples,
		References:       yp.References,
	}
	p.StructuralID = p.Spec.ComputeStructuralID()
	return p
}

// convertYAMLSet converts yamlSet to a Set.
func convertYAMLSet(ys yamlSet) *Set {
	return &Set{
		ID:          ys.ID,
		Name:        ys.Name,
		Description: ys.Description,
		Categories:  ys.Categories,
		Labels:      ys.Labels,
	}
}
