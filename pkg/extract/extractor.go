// Package extract finds typed entities in text by layering a dictionary
// recognizer, built-in and custom pattern classes, and a capitalization
// heuristic, then resolving their candidates into a non-overlapping set.
package extract

import (
	"errors"
	"strings"
	"time"

	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Options bounds one Extract call.
type Options struct {
	// MaxEntities caps the resolved result. Zero means unlimited.
	MaxEntities int `json:"max_entities,omitempty" yaml:"max_entities,omitempty"`
	// MaxSteps is the step budget of each pattern scan.
	MaxSteps      int64         `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	Timeout       time.Duration `json:"-" yaml:"-"`
	TimeoutMillis int64         `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
}

func (o Options) matchOptions(now time.Time) matcher.Options {
	mo := matcher.Options{
		Overlapping: true,
		MaxSteps:    o.MaxSteps,
	}
	switch {
	case o.Timeout > 0:
		mo.Deadline = now.Add(o.Timeout)
	case o.TimeoutMillis > 0:
		mo.Deadline = now.Add(time.Duration(o.TimeoutMillis) * time.Millisecond)
	}
	return mo
}

// Extractor is an immutable, validated extraction pipeline. It is safe for
// concurrent use.
type Extractor struct {
	cfg         Config
	dict        *dictionaryRecognizer
	classes     *matcher.Compiled
	enabled     map[types.EntityType]bool
	custom      *matcher.Compiled
	rules       []CustomRule
	heuristic   *heuristicRecognizer
	diagnostics []types.Diagnostic
}

// New validates cfg and compiles every recognizer.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Extractor{
		cfg:     cfg,
		enabled: make(map[types.EntityType]bool, len(cfg.EnabledClasses)),
		rules:   cfg.CustomRules,
	}

	dict, diags, err := newDictionaryRecognizer(cfg.Dictionaries)
	if err != nil {
		return nil, types.WrapError(types.KindInvalidConfiguration, "dictionary", err)
	}
	e.dict = dict
	e.diagnostics = diags

	if len(cfg.EnabledClasses) > 0 {
		classes, err := sharedClasses()
		if err != nil {
			return nil, err
		}
		e.classes = classes
		for _, t := range cfg.EnabledClasses {
			e.enabled[t] = true
		}
	}

	if len(cfg.CustomRules) > 0 {
		specs := make([]types.PatternSpec, len(cfg.CustomRules))
		for i, r := range cfg.CustomRules {
			specs[i] = types.PatternSpec{
				Label:         r.Name,
				Pattern:       r.Pattern,
				Kind:          types.PatternRegex,
				CaseSensitive: r.CaseSensitive,
				Keywords:      r.Keywords,
				EntityType:    r.Type,
			}
		}
		custom, err := matcher.Compile(specs, matcher.CompileOptions{Strict: true})
		if err != nil {
			var label string
			var te *types.Error
			if errors.As(err, &te) {
				label = te.Label
			}
			return nil, types.WrapError(types.KindInvalidConfiguration, label, err)
		}
		for i, r := range cfg.CustomRules {
			if r.Group != "" && !contains(custom.GroupNames(i), r.Group) {
				return nil, invalid(r.Name, "pattern has no capture group named %q", r.Group)
			}
		}
		e.custom = custom
	}

	if cfg.HeuristicsEnabled {
		e.heuristic = newHeuristicRecognizer(cfg.heuristics(), cfg.minConfidence())
	}
	return e, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Config returns the configuration the extractor was built from.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Diagnostics lists dictionary entries skipped at setup.
func (e *Extractor) Diagnostics() []types.Diagnostic {
	return append([]types.Diagnostic(nil), e.diagnostics...)
}

// Extract runs every enabled stage over buf and resolves the candidates.
// Entities are non-overlapping and ordered by start offset.
func (e *Extractor) Extract(buf *textbuf.Buffer, opts Options) (*types.ExtractionResult, error) {
	if buf == nil {
		return nil, invalid("", "nil buffer")
	}
	if opts.MaxEntities < 0 || opts.MaxSteps < 0 {
		return nil, invalid("", "max_entities and max_steps must not be negative")
	}

	mopts := opts.matchOptions(time.Now())
	result := &types.ExtractionResult{Diagnostics: e.Diagnostics()}

	var cands []candidate
	emit := func(c candidate) {
		c.seq = len(cands)
		cands = append(cands, c)
	}

	truncated, err := e.dict.recognize(buf, mopts, emit)
	if err != nil {
		return nil, err
	}
	result.Truncated = truncated

	if e.classes != nil {
		res, err := e.classes.Match(buf, mopts)
		if err != nil {
			return nil, err
		}
		e.emitClasses(buf, res, emit)
		result.Truncated = result.Truncated || res.Truncated
		result.Diagnostics = append(result.Diagnostics, restage(res.Diagnostics, types.StagePatternClass)...)
	}

	var toks []textbuf.Token
	if e.custom != nil {
		res, err := e.custom.Match(buf, mopts)
		if err != nil {
			return nil, err
		}
		toks = buf.Tokens()
		e.emitCustom(buf, toks, res, emit)
		result.Truncated = result.Truncated || res.Truncated
		result.Diagnostics = append(result.Diagnostics, restage(res.Diagnostics, types.StagePatternClass)...)
	}

	if e.heuristic != nil {
		result.Diagnostics = append(result.Diagnostics, e.heuristic.recognize(buf, emit)...)
	}

	resolved := resolve(cands)
	if opts.MaxEntities > 0 && len(resolved) > opts.MaxEntities {
		resolved = resolved[:opts.MaxEntities]
		result.Truncated = true
	}

	result.Entities = make([]types.Entity, len(resolved))
	for i, c := range resolved {
		result.Entities[i] = types.Entity{
			Type:       c.entityType,
			Span:       c.span,
			Text:       strings.Clone(buf.Slice(c.span)),
			Confidence: c.confidence,
			Stage:      c.stage,
			Source:     c.source,
			Attributes: c.attributes,
		}
	}
	return result, nil
}

func (e *Extractor) emitClasses(buf *textbuf.Buffer, res *types.MatchResult, emit func(candidate)) {
	runes := buf.Runes()
	for _, m := range res.Matches {
		spec := classSpecs[m.Index]
		if !e.enabled[spec.EntityType] {
			continue
		}
		span, ok := refineClassMatch(runes, spec.EntityType, m.Span)
		if !ok {
			continue
		}
		emit(candidate{
			entityType: spec.EntityType,
			span:       span,
			stage:      types.StagePatternClass,
			confidence: 1,
			source:     spec.Label,
		})
	}
}

func (e *Extractor) emitCustom(buf *textbuf.Buffer, toks []textbuf.Token, res *types.MatchResult, emit func(candidate)) {
	for _, m := range res.Matches {
		rule := e.rules[m.Index]
		span := m.Span
		if rule.Group != "" {
			g, ok := m.Groups[rule.Group]
			if !ok || g.Empty() {
				continue
			}
			span = g
		}
		attrs := rule.Attributes
		if rule.Annotate {
			attrs = contextCues(buf, toks, span, attrs)
		} else if len(attrs) > 0 {
			attrs = copyAttrs(attrs)
		}
		emit(candidate{
			entityType: rule.Type,
			span:       span,
			stage:      types.StagePatternClass,
			confidence: 1,
			source:     rule.Name,
			attributes: attrs,
		})
	}
}

func copyAttrs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func restage(diags []types.Diagnostic, stage types.Stage) []types.Diagnostic {
	for i := range diags {
		diags[i].Stage = stage.String()
	}
	return diags
}
