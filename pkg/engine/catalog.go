package engine

import (
	"fmt"
	"sync"

	"github.com/praetorian-inc/sift/pkg/extract"
	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/rule"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Catalog is the built-in pattern catalog with its sets and profiles, the
// extraction configuration and the keyword vocabulary.
type Catalog struct {
	Patterns   []*rule.Pattern
	Sets       []*rule.Set
	Profiles   []*rule.Profile
	Extraction extract.Config
	Keywords   []string

	// extractor and keywords are compiled once per process.
	extractor *extract.Extractor
	keywords  *matcher.Compiled
}

var (
	// cachedCatalog holds the builtin catalog loaded once per process
	cachedCatalog    *Catalog
	cachedCatalogErr error
	catalogOnce      sync.Once
)

// loadCatalogCached loads the builtin catalog once and caches it
func loadCatalogCached() (*Catalog, error) {
	catalogOnce.Do(func() {
		cachedCatalog, cachedCatalogErr = loadCatalog(rule.NewLoader())
	})
	return cachedCatalog, cachedCatalogErr
}

func loadCatalog(loader *rule.Loader) (*Catalog, error) {
	patterns, err := loader.LoadBuiltinPatterns()
	if err != nil {
		return nil, fmt.Errorf("loading builtin patterns: %w", err)
	}
	sets, err := loader.LoadBuiltinSets()
	if err != nil {
		return nil, fmt.Errorf("loading builtin sets: %w", err)
	}
	profiles, err := loader.LoadBuiltinProfiles()
	if err != nil {
		return nil, fmt.Errorf("loading builtin profiles: %w", err)
	}
	rels, err := loader.LoadBuiltinRelationships()
	if err != nil {
		return nil, fmt.Errorf("loading builtin relationships: %w", err)
	}
	keywords, err := loader.LoadBuiltinKeywords()
	if err != nil {
		return nil, fmt.Errorf("loading builtin keywords: %w", err)
	}
	km, err := matcher.Compile([]types.PatternSpec{rule.KeywordPattern(keywords)}, matcher.CompileOptions{Strict: true})
	if err != nil {
		return nil, fmt.Errorf("compiling builtin keywords: %w", err)
	}

	cfg := extract.DefaultConfig()
	cfg.CustomRules = rule.RelationshipRules(rels)
	ex, err := extract.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("compiling builtin extraction: %w", err)
	}

	return &Catalog{
		Patterns:   patterns,
		Sets:       sets,
		Profiles:   profiles,
		Extraction: cfg,
		Keywords:   keywords,
		extractor:  ex,
		keywords:   km,
	}, nil
}

// BuiltinCatalog returns the built-in catalog (cached).
func BuiltinCatalog() (*Catalog, error) {
	return loadCatalogCached()
}

// GetBuiltinPatterns returns the built-in pattern specs (cached)
func GetBuiltinPatterns() ([]types.PatternSpec, error) {
	cat, err := loadCatalogCached()
	if err != nil {
		return nil, err
	}
	return rule.Specs(cat.Patterns), nil
}

// setPatterns returns the specs selected by the named set.
func (c *Catalog) setPatterns(id string) ([]types.PatternSpec, error) {
	patterns, err := c.SelectSet(id)
	if err != nil {
		return nil, err
	}
	return rule.Specs(patterns), nil
}

// SelectSet returns the catalog patterns of the named set.
func (c *Catalog) SelectSet(id string) ([]*rule.Pattern, error) {
	s := rule.FindSet(c.Sets, id)
	if s == nil {
		return nil, types.NewError(types.KindInvalidConfiguration, "", "unknown pattern set %q", id)
	}
	return s.Select(c.Patterns), nil
}

// profile returns the named profile.
func (c *Catalog) profile(name string) (*rule.Profile, error) {
	p := rule.FindProfile(c.Profiles, name)
	if p == nil {
		return nil, types.NewError(types.KindInvalidConfiguration, "", "unknown profile %q", name)
	}
	return p, nil
}
