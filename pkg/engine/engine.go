// Package engine exposes matching, extraction and scoring as plain-data
// operations for hosts that cannot hold Go values: the NDJSON server, the
// WASM binding and the CLI. Compiled matchers can be kept across calls
// through opaque handles.
package engine

import (
	"strings"
	"sync"

	"github.com/praetorian-inc/sift/pkg/extract"
	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/rule"
	"github.com/praetorian-inc/sift/pkg/score"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// DefaultProfile is used when a request names no profile.
const DefaultProfile = "default"

// Config configures an Engine.
type Config struct {
	Logger DebugLogger
	// Functions are the custom evaluators available to score criteria.
	Functions map[string]score.Func
}

// Engine runs boundary operations and owns the handle registry.
type Engine struct {
	catalog *Catalog
	funcs   map[string]score.Func
	logger  DebugLogger

	mu      sync.RWMutex
	handles map[Handle]*matcher.Compiled
	nextID  Handle

	profMu   sync.Mutex
	profiles map[string]*profileState
}

// profileState is a built-in profile compiled for reuse.
type profileState struct {
	name      string
	matcher   *matcher.Compiled
	patterns  []types.PatternSpec
	extractor *extract.Extractor
	scorer    *score.Scorer
}

// New creates an Engine over the built-in catalog.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = NoopLogger{}
	}

	logger.Log("Loading builtin catalog (cached)...")
	cat, err := loadCatalogCached()
	if err != nil {
		logger.Log("loadCatalogCached failed: %v", err)
		return nil, err
	}
	logger.Log("Loaded %d builtin patterns, %d sets, %d profiles", len(cat.Patterns), len(cat.Sets), len(cat.Profiles))

	return &Engine{
		catalog:  cat,
		funcs:    cfg.Functions,
		logger:   logger,
		handles:  make(map[Handle]*matcher.Compiled),
		profiles: make(map[string]*profileState),
	}, nil
}

// Catalog returns the built-in catalog the engine serves.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

func (e *Engine) resolvePatterns(patterns []types.PatternSpec, set string) ([]types.PatternSpec, error) {
	if set == "" {
		return patterns, nil
	}
	fromSet, err := e.catalog.setPatterns(set)
	if err != nil {
		return nil, err
	}
	specs := make([]types.PatternSpec, 0, len(patterns)+len(fromSet))
	specs = append(specs, patterns...)
	return append(specs, fromSet...), nil
}

// MatchPatterns compiles the request's patterns and matches them once.
func (e *Engine) MatchPatterns(req MatchRequest) (*types.MatchResult, error) {
	buf, err := textbuf.New(req.Text)
	if err != nil {
		return nil, err
	}
	specs, err := e.resolvePatterns(req.Patterns, req.Set)
	if err != nil {
		return nil, err
	}
	m, err := matcher.Compile(specs, matcher.CompileOptions{Strict: req.Strict})
	if err != nil {
		e.logger.Log("matcher.Compile failed: %v", err)
		return nil, err
	}
	return m.Match(buf, req.Options)
}

// Compile registers a compiled matcher and returns its handle.
func (e *Engine) Compile(req CompileRequest) (*CompileResult, error) {
	specs, err := e.resolvePatterns(req.Patterns, req.Set)
	if err != nil {
		return nil, err
	}
	m, err := matcher.Compile(specs, matcher.CompileOptions{Strict: req.Strict})
	if err != nil {
		e.logger.Log("matcher.Compile failed: %v", err)
		return nil, err
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handles[id] = m
	e.mu.Unlock()

	e.logger.Log("Registered handle %d with %d patterns", id, m.Len())
	return &CompileResult{
		Handle:      id,
		Patterns:    m.Len(),
		Diagnostics: m.Diagnostics(),
	}, nil
}

func (e *Engine) lookup(h Handle) (*matcher.Compiled, error) {
	e.mu.RLock()
	m, ok := e.handles[h]
	e.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.KindInvalidConfiguration, "", "unknown handle %d", h)
	}
	return m, nil
}

// MatchCompiled matches a registered handle against the request text.
func (e *Engine) MatchCompiled(req MatchCompiledRequest) (*types.MatchResult, error) {
	m, err := e.lookup(req.Handle)
	if err != nil {
		return nil, err
	}
	buf, err := textbuf.New(req.Text)
	if err != nil {
		return nil, err
	}
	return m.Match(buf, req.Options)
}

// Release drops a handle. Releasing an unknown handle is an error.
func (e *Engine) Release(h Handle) error {
	e.mu.Lock()
	_, ok := e.handles[h]
	delete(e.handles, h)
	e.mu.Unlock()

	if !ok {
		return types.NewError(types.KindInvalidConfiguration, "", "unknown handle %d", h)
	}
	e.logger.Log("Released handle %d", h)
	return nil
}

// Handles returns the number of live handles.
func (e *Engine) Handles() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handles)
}

// ExtractEntities runs the extractor described by the request.
func (e *Engine) ExtractEntities(req ExtractRequest) (*types.ExtractionResult, error) {
	buf, err := textbuf.New(req.Text)
	if err != nil {
		return nil, err
	}
	ex := e.catalog.extractor
	if req.Config != nil {
		ex, err = extract.New(*req.Config)
		if err != nil {
			return nil, err
		}
	}
	return ex.Extract(buf, req.Options)
}

// ExtractKeywords reports which words of the keyword vocabulary occur in
// the text, lower-cased, deduplicated and sorted. Request keywords replace
// the built-in vocabulary.
func (e *Engine) ExtractKeywords(req KeywordsRequest) (*KeywordsResult, error) {
	buf, err := textbuf.New(req.Text)
	if err != nil {
		return nil, err
	}
	m := e.catalog.keywords
	if len(req.Keywords) > 0 {
		if !hasWord(req.Keywords) {
			return &KeywordsResult{Keywords: []string{}}, nil
		}
		m, err = matcher.Compile([]types.PatternSpec{rule.KeywordPattern(req.Keywords)}, matcher.CompileOptions{Strict: true})
		if err != nil {
			return nil, err
		}
	}
	words, err := rule.Keywords(m, buf)
	if err != nil {
		return nil, err
	}
	return &KeywordsResult{Keywords: words}, nil
}

func hasWord(words []string) bool {
	for _, w := range words {
		if strings.TrimSpace(w) != "" {
			return true
		}
	}
	return false
}

// ScoreText scores the request text against a built-in profile or the
// request's criteria. Naming both is an error.
func (e *Engine) ScoreText(req ScoreRequest) (*types.ScoreResult, error) {
	if req.Profile != "" && len(req.Criteria) > 0 {
		return nil, types.NewError(types.KindInvalidConfiguration, "", "profile and criteria are mutually exclusive")
	}
	buf, err := textbuf.New(req.Text)
	if err != nil {
		return nil, err
	}
	feats := score.Features{Matches: req.Matches, Entities: req.Entities}

	if req.Profile != "" {
		st, err := e.profileState(req.Profile)
		if err != nil {
			return nil, err
		}
		return st.scorer.Score(buf, feats)
	}

	cfg := score.Config{
		Reduction:  req.Reduction,
		Threshold:  req.Threshold,
		Extraction: req.Extraction,
		Functions:  e.funcs,
	}
	if cfg.Extraction == nil {
		builtin := e.catalog.Extraction
		cfg.Extraction = &builtin
	}
	s, err := score.New(req.Criteria, cfg)
	if err != nil {
		return nil, err
	}
	return s.Score(buf, feats)
}

// profileState compiles the named built-in profile on first use.
func (e *Engine) profileState(name string) (*profileState, error) {
	if name == "" {
		name = DefaultProfile
	}

	e.profMu.Lock()
	defer e.profMu.Unlock()
	if st, ok := e.profiles[name]; ok {
		return st, nil
	}

	p, err := e.catalog.profile(name)
	if err != nil {
		return nil, err
	}
	st, err := e.compileProfile(p)
	if err != nil {
		e.logger.Log("compiling profile %s failed: %v", name, err)
		return nil, err
	}
	e.profiles[name] = st
	e.logger.Log("Compiled profile %s with %d patterns", name, len(st.patterns))
	return st, nil
}

func (e *Engine) compileProfile(p *rule.Profile) (*profileState, error) {
	criteria, err := p.Resolve(e.catalog.Patterns, e.catalog.Sets)
	if err != nil {
		return nil, err
	}

	cfg := p.ScoreConfig()
	cfg.Functions = e.funcs
	ex := e.catalog.extractor
	if p.Extraction != nil {
		if ex, err = extract.New(*p.Extraction); err != nil {
			return nil, err
		}
	} else {
		builtin := e.catalog.Extraction
		cfg.Extraction = &builtin
	}
	s, err := score.New(criteria, cfg)
	if err != nil {
		return nil, err
	}

	var specs []types.PatternSpec
	if p.PatternSet != "" {
		if specs, err = e.catalog.setPatterns(p.PatternSet); err != nil {
			return nil, err
		}
	}
	m, err := matcher.Compile(specs, matcher.CompileOptions{Strict: true})
	if err != nil {
		return nil, err
	}

	return &profileState{
		name:      p.Name,
		matcher:   m,
		patterns:  specs,
		extractor: ex,
		scorer:    s,
	}, nil
}

// Close releases every handle and cached profile.
func (e *Engine) Close() {
	e.mu.Lock()
	e.handles = make(map[Handle]*matcher.Compiled)
	e.mu.Unlock()

	e.profMu.Lock()
	e.profiles = make(map[string]*profileState)
	e.profMu.Unlock()
}
