// Package sift finds signals in text: it matches pattern catalogs,
// extracts people and other entities, and scores documents against
// profiles.
//
// # Basic Usage
//
// Create a sifter with the built-in catalog and analyze content:
//
//	s, err := sift.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	a, err := s.AnalyzeString("It's all your fault.")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, f := range a.Findings {
//	    fmt.Printf("Found %s at offset %d\n", f.Match.Label, f.Match.Span.Start)
//	}
//
// # Custom Criteria
//
// Register a custom evaluator for use by "custom" criteria:
//
//	s, err := sift.New(sift.WithFunction("exclaim", func(in score.Input) (float64, error) {
//	    return float64(strings.Count(in.Buffer.String(), "!")), nil
//	}))
//
// Offsets are Unicode code points. Lines and columns are 1-based.
package sift

import (
	"fmt"
	"os"
	"time"

	"github.com/praetorian-inc/sift/pkg/engine"
	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/rule"
	"github.com/praetorian-inc/sift/pkg/score"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/sift" without subpackages.
type (
	// Analysis is the result of analyzing one document with a profile.
	Analysis = types.Analysis

	// Finding is a match resolved to a location in its document.
	Finding = types.Finding

	// Match is a single pattern occurrence.
	Match = types.Match

	// MatchResult holds the matches of one scan.
	MatchResult = types.MatchResult

	// Entity is a recognized span such as a person or an email address.
	Entity = types.Entity

	// ExtractionResult holds the entities of one extraction.
	ExtractionResult = types.ExtractionResult

	// ScoreResult is a total with its per-criterion breakdown.
	ScoreResult = types.ScoreResult

	// PatternSpec defines one literal or regex pattern.
	PatternSpec = types.PatternSpec

	// Span is a half-open range of code point offsets.
	Span = types.Span

	// ContentItem is a source, its text and caller metadata.
	ContentItem = engine.ContentItem
)

// Sifter runs analyses with one profile.
type Sifter struct {
	engine *engine.Engine
	config *sifterConfig
}

// sifterConfig holds sifter configuration.
type sifterConfig struct {
	profile      string
	contextLines int
	maxMatches   int
	timeout      time.Duration
	functions    map[string]score.Func
}

// Option configures a Sifter.
type Option func(*sifterConfig)

// WithProfile selects the built-in profile used by Analyze and Score.
// Default is "default".
func WithProfile(name string) Option {
	return func(c *sifterConfig) {
		c.profile = name
	}
}

// WithContextLines sets the number of context lines to include around matches.
// Default is 1 line before and after.
func WithContextLines(lines int) Option {
	return func(c *sifterConfig) {
		c.contextLines = lines
	}
}

// WithMaxMatches caps matches per scan. Zero means unlimited.
func WithMaxMatches(n int) Option {
	return func(c *sifterConfig) {
		c.maxMatches = n
	}
}

// WithTimeout bounds each scan. Results found before the deadline are
// returned and marked truncated.
func WithTimeout(d time.Duration) Option {
	return func(c *sifterConfig) {
		c.timeout = d
	}
}

// WithFunction registers a custom evaluator for "custom" criteria.
func WithFunction(name string, fn score.Func) Option {
	return func(c *sifterConfig) {
		if c.functions == nil {
			c.functions = make(map[string]score.Func)
		}
		c.functions[name] = fn
	}
}

// New creates a Sifter with the given options. The profile is compiled
// up front, so an unknown profile fails here.
func New(opts ...Option) (*Sifter, error) {
	config := &sifterConfig{
		profile:      engine.DefaultProfile,
		contextLines: 1,
	}
	for _, opt := range opts {
		opt(config)
	}

	e, err := engine.New(engine.Config{Functions: config.functions})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	if err := e.Prepare(config.profile); err != nil {
		e.Close()
		return nil, err
	}

	return &Sifter{engine: e, config: config}, nil
}

func (s *Sifter) options() matcher.Options {
	return matcher.Options{
		MaxMatches:   s.config.maxMatches,
		Timeout:      s.config.timeout,
		ContextLines: s.config.contextLines,
	}
}

// Profile returns the profile name the sifter analyzes with.
func (s *Sifter) Profile() string {
	return s.config.profile
}

// AnalyzeString matches, extracts and scores content with the profile.
func (s *Sifter) AnalyzeString(content string) (*Analysis, error) {
	return s.analyze("", content, nil)
}

// AnalyzeFile reads and analyzes a file. The path is recorded as the
// analysis source.
func (s *Sifter) AnalyzeFile(path string) (*Analysis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return s.analyze(path, string(content), nil)
}

// AnalyzeItem analyzes one content item. The item's metadata is copied
// onto the analysis.
func (s *Sifter) AnalyzeItem(item ContentItem) (*Analysis, error) {
	return s.analyze(item.Source, item.Content, item.Metadata)
}

func (s *Sifter) analyze(source, content string, metadata map[string]string) (*Analysis, error) {
	return s.engine.Analyze(engine.AnalyzeRequest{
		Source:   source,
		Text:     content,
		Profile:  s.config.profile,
		Options:  s.options(),
		Metadata: metadata,
	})
}

// Match runs patterns against content. An empty set name matches only
// the given patterns; otherwise the built-in set is appended.
func (s *Sifter) Match(content string, patterns []PatternSpec, set string) (*MatchResult, error) {
	return s.engine.MatchPatterns(engine.MatchRequest{
		Text:     content,
		Patterns: patterns,
		Set:      set,
		Options:  s.options(),
	})
}

// Extract runs the built-in entity extractor over content.
func (s *Sifter) Extract(content string) (*ExtractionResult, error) {
	return s.engine.ExtractEntities(engine.ExtractRequest{Text: content})
}

// Keywords returns the built-in vocabulary words found in content,
// lower-cased, deduplicated and sorted.
func (s *Sifter) Keywords(content string) ([]string, error) {
	res, err := s.engine.ExtractKeywords(engine.KeywordsRequest{Text: content})
	if err != nil {
		return nil, err
	}
	return res.Keywords, nil
}

// Score scores content with the profile.
func (s *Sifter) Score(content string) (*ScoreResult, error) {
	return s.engine.ScoreText(engine.ScoreRequest{Text: content, Profile: s.config.profile})
}

// Close releases sifter resources.
func (s *Sifter) Close() error {
	s.engine.Close()
	return nil
}

// LoadPatternsFromFile loads pattern definitions from a YAML file.
// Use the result with Match.
//
// Example:
//
//	patterns, err := sift.LoadPatternsFromFile("/path/to/patterns.yaml")
//	if err != nil {
//	    return err
//	}
//	res, err := s.Match(text, patterns, "")
func LoadPatternsFromFile(path string) ([]PatternSpec, error) {
	patterns, err := rule.NewLoader().LoadPatternFile(path)
	if err != nil {
		return nil, err
	}
	return rule.Specs(patterns), nil
}

// BuiltinPatterns returns every pattern of the built-in catalog.
func BuiltinPatterns() ([]PatternSpec, error) {
	cat, err := engine.BuiltinCatalog()
	if err != nil {
		return nil, err
	}
	return rule.Specs(cat.Patterns), nil
}
