package score

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/praetorian-inc/sift/pkg/extract"
	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Raw value shapes selected by CriterionParams.Mode.
const (
	ModeFraction = "fraction"
	ModeCount    = "count"
	ModePresence = "presence"
	ModeDensity  = "density"
)

// Length units for length_ratio.
const (
	UnitRunes = "runes"
	UnitWords = "words"
)

var errNonFinite = errors.New("evaluator returned a non-finite value")

type evaluator interface {
	evaluate(ctx *evalContext) (float64, error)
}

// evalContext carries one Score call's inputs and memoizes derived views.
type evalContext struct {
	buf       *textbuf.Buffer
	feats     Features
	extractor *extract.Extractor

	tokens     []textbuf.Token
	haveTokens bool
	stats      *textbuf.Stats

	entities     []types.Entity
	entitiesErr  error
	haveEntities bool
}

func (c *evalContext) words() int {
	if !c.haveTokens {
		c.tokens = c.buf.Tokens()
		c.haveTokens = true
	}
	return len(c.tokens)
}

func (c *evalContext) bufferStats() textbuf.Stats {
	if c.stats == nil {
		s := c.buf.Stats()
		c.stats = &s
	}
	return *c.stats
}

func (c *evalContext) entityList() ([]types.Entity, error) {
	if c.feats.Entities != nil {
		return c.feats.Entities, nil
	}
	if !c.haveEntities {
		c.haveEntities = true
		if c.extractor != nil {
			res, err := c.extractor.Extract(c.buf, extract.Options{})
			if err != nil {
				c.entitiesErr = fmt.Errorf("extracting entities: %w", err)
			} else {
				c.entities = res.Entities
			}
		}
	}
	return c.entities, c.entitiesErr
}

// failedEvaluator reports a parameter problem found at compile time.
type failedEvaluator struct{ err error }

func (f failedEvaluator) evaluate(*evalContext) (float64, error) {
	return math.NaN(), f.err
}

func paramError(c types.Criterion, format string, args ...interface{}) evaluator {
	return failedEvaluator{err: types.NewError(types.KindPartialEvaluation, c.Name, format, args...)}
}

func compileCriterion(c types.Criterion, cfg Config) evaluator {
	switch c.Kind {
	case types.KindKeywordPresence:
		return newKeywordEvaluator(c)
	case types.KindPatternDensity:
		return newDensityEvaluator(c, cfg.RegexTimeout)
	case types.KindEntityPresence:
		return newEntityEvaluator(c)
	case types.KindLengthRatio:
		return newLengthEvaluator(c)
	case types.KindSignalWeight:
		return newSignalEvaluator(c, cfg.RegexTimeout)
	case types.KindCustom:
		return newCustomEvaluator(c, cfg.Functions)
	}
	return paramError(c, "unknown criterion kind %q", c.Kind)
}

func modeOrDefault(mode, def string, allowed ...string) (string, bool) {
	if mode == "" {
		return def, true
	}
	for _, m := range allowed {
		if mode == m {
			return mode, true
		}
	}
	return "", false
}

// keywordEvaluator counts literal keyword occurrences.
type keywordEvaluator struct {
	keywords  int
	m         *matcher.Compiled
	mode      string
	wholeWord bool
}

func newKeywordEvaluator(c types.Criterion) evaluator {
	p := c.Params
	if len(p.Keywords) == 0 {
		return paramError(c, "keyword_presence requires keywords")
	}
	mode, ok := modeOrDefault(p.Mode, ModeFraction, ModeFraction, ModeCount, ModePresence, ModeDensity)
	if !ok {
		return paramError(c, "unknown keyword_presence mode %q", p.Mode)
	}

	specs := make([]types.PatternSpec, len(p.Keywords))
	for i, kw := range p.Keywords {
		spec := types.Literal(fmt.Sprintf("%s/%d", c.Name, i), kw)
		if !p.CaseSensitive {
			spec = spec.IgnoreCase()
		}
		specs[i] = spec
	}
	m, err := matcher.Compile(specs, matcher.CompileOptions{Strict: true})
	if err != nil {
		return failedEvaluator{err: types.WrapError(types.KindPartialEvaluation, c.Name, err)}
	}
	return &keywordEvaluator{keywords: len(specs), m: m, mode: mode, wholeWord: p.WholeWord}
}

func (k *keywordEvaluator) evaluate(ctx *evalContext) (float64, error) {
	matches, err := matchAll(k.m, ctx, matcher.Options{Overlapping: true})
	if err != nil {
		return math.NaN(), err
	}

	runes := ctx.buf.Runes()
	found := make(map[int]bool, k.keywords)
	count := 0
	for _, m := range matches {
		if k.wholeWord && !wholeWord(runes, m.Span) {
			continue
		}
		found[m.Index] = true
		count++
	}

	switch k.mode {
	case ModeCount:
		return float64(count), nil
	case ModePresence:
		return boolValue(count > 0), nil
	case ModeDensity:
		return perWord(count, ctx.words()), nil
	}
	return float64(len(found)) / float64(k.keywords), nil
}

func wholeWord(runes []rune, span types.Span) bool {
	if span.Start > 0 && textbuf.IsWordRune(runes[span.Start-1]) {
		return false
	}
	return span.End >= len(runes) || !textbuf.IsWordRune(runes[span.End])
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func perWord(count, words int) float64 {
	if words == 0 {
		return 0
	}
	return float64(count) / float64(words)
}

// densityEvaluator counts pattern matches, non-overlapping unless the
// criterion asks for every occurrence.
type densityEvaluator struct {
	m    *matcher.Compiled
	mode string
	opts matcher.Options
}

func compilePatterns(c types.Criterion, timeout time.Duration) (*matcher.Compiled, evaluator) {
	if len(c.Params.Patterns) == 0 {
		return nil, paramError(c, "%s requires patterns", c.Kind)
	}
	m, err := matcher.Compile(c.Params.Patterns, matcher.CompileOptions{Strict: true, RegexTimeout: timeout})
	if err != nil {
		return nil, failedEvaluator{err: types.WrapError(types.KindPartialEvaluation, c.Name, err)}
	}
	return m, nil
}

// matchAll runs m over the buffer. A pattern that failed during the scan
// fails the criterion, since a partial count would read as a clean value.
func matchAll(m *matcher.Compiled, ctx *evalContext, opts matcher.Options) ([]types.Match, error) {
	res, err := m.Match(ctx.buf, opts)
	if err != nil {
		return nil, err
	}
	for _, d := range res.Diagnostics {
		if d.Kind == types.KindPartialEvaluation {
			return nil, types.NewError(types.KindPartialEvaluation, d.Label, "%s", d.Message)
		}
	}
	return res.Matches, nil
}

func newDensityEvaluator(c types.Criterion, timeout time.Duration) evaluator {
	mode, ok := modeOrDefault(c.Params.Mode, ModeDensity, ModeDensity, ModeCount, ModePresence)
	if !ok {
		return paramError(c, "unknown pattern_density mode %q", c.Params.Mode)
	}
	m, failed := compilePatterns(c, timeout)
	if failed != nil {
		return failed
	}
	return &densityEvaluator{m: m, mode: mode, opts: matcher.Options{Overlapping: c.Params.Overlapping}}
}

func (d *densityEvaluator) evaluate(ctx *evalContext) (float64, error) {
	matches, err := matchAll(d.m, ctx, d.opts)
	if err != nil {
		return math.NaN(), err
	}
	n := len(matches)
	switch d.mode {
	case ModeCount:
		return float64(n), nil
	case ModePresence:
		return boolValue(n > 0), nil
	}
	return perWord(n, ctx.words()), nil
}

// entityEvaluator checks for required entity types.
type entityEvaluator struct {
	wanted []types.EntityType
	mode   string
}

func newEntityEvaluator(c types.Criterion) evaluator {
	if len(c.Params.EntityTypes) == 0 {
		return paramError(c, "entity_presence requires entity_types")
	}
	for _, t := range c.Params.EntityTypes {
		if !t.Valid() {
			return paramError(c, "invalid entity type %q", t)
		}
	}
	mode, ok := modeOrDefault(c.Params.Mode, ModePresence, ModePresence, ModeCount, ModeFraction)
	if !ok {
		return paramError(c, "unknown entity_presence mode %q", c.Params.Mode)
	}
	return &entityEvaluator{wanted: c.Params.EntityTypes, mode: mode}
}

func (e *entityEvaluator) evaluate(ctx *evalContext) (float64, error) {
	entities, err := ctx.entityList()
	if err != nil {
		return math.NaN(), err
	}

	wanted := make(map[types.EntityType]bool, len(e.wanted))
	for _, t := range e.wanted {
		wanted[t] = true
	}
	seen := make(map[types.EntityType]bool, len(wanted))
	count := 0
	for _, ent := range entities {
		if wanted[ent.Type] {
			seen[ent.Type] = true
			count++
		}
	}

	switch e.mode {
	case ModeCount:
		return float64(count), nil
	case ModeFraction:
		return float64(len(seen)) / float64(len(wanted)), nil
	}
	return boolValue(len(seen) == len(wanted)), nil
}

// lengthEvaluator scores how well the buffer length fits a target range:
// 1 inside the range, len/min below it and max/len above it.
type lengthEvaluator struct {
	min, max int
	words    bool
}

func newLengthEvaluator(c types.Criterion) evaluator {
	p := c.Params
	if p.MinLength < 0 || p.MaxLength < 0 {
		return paramError(c, "length bounds must not be negative")
	}
	if p.MinLength == 0 && p.MaxLength == 0 {
		return paramError(c, "length_ratio requires min_length or max_length")
	}
	if p.MaxLength > 0 && p.MinLength > p.MaxLength {
		return paramError(c, "min_length %d exceeds max_length %d", p.MinLength, p.MaxLength)
	}
	switch p.Unit {
	case "", UnitRunes, UnitWords:
	default:
		return paramError(c, "unknown length unit %q", p.Unit)
	}
	return &lengthEvaluator{min: p.MinLength, max: p.MaxLength, words: p.Unit == UnitWords}
}

func (l *lengthEvaluator) evaluate(ctx *evalContext) (float64, error) {
	n := ctx.buf.RuneLen()
	if l.words {
		n = ctx.words()
	}
	switch {
	case l.min > 0 && n < l.min:
		return float64(n) / float64(l.min), nil
	case l.max > 0 && n > l.max:
		return float64(l.max) / float64(n), nil
	}
	return 1, nil
}

// signalEvaluator sums the weights of matched signal patterns, damped by
// the number of matches and capped at 1. Patterns without a weight count
// as 1.
type signalEvaluator struct {
	m       *matcher.Compiled
	weights []float64
	opts    matcher.Options
}

func newSignalEvaluator(c types.Criterion, timeout time.Duration) evaluator {
	m, failed := compilePatterns(c, timeout)
	if failed != nil {
		return failed
	}
	weights := make([]float64, len(c.Params.Patterns))
	for i, p := range c.Params.Patterns {
		if math.IsNaN(p.Weight) || math.IsInf(p.Weight, 0) || p.Weight < 0 {
			return paramError(c, "pattern %q has an invalid weight %v", p.Label, p.Weight)
		}
		weights[i] = p.Weight
		if weights[i] == 0 {
			weights[i] = 1
		}
	}
	return &signalEvaluator{m: m, weights: weights, opts: matcher.Options{Overlapping: c.Params.Overlapping}}
}

func (s *signalEvaluator) evaluate(ctx *evalContext) (float64, error) {
	matches, err := matchAll(s.m, ctx, s.opts)
	if err != nil {
		return math.NaN(), err
	}
	return SignalScore(matches, s.weights), nil
}

// SignalScore computes min(1, Σw / (1 + 0.1·n)) over matches, where w is
// the weight of each match's pattern index. No matches score 0.
func SignalScore(matches []types.Match, weights []float64) float64 {
	if len(matches) == 0 {
		return 0
	}
	var total float64
	for _, m := range matches {
		if m.Index >= 0 && m.Index < len(weights) {
			total += weights[m.Index]
		}
	}
	return math.Min(1, total/(1+0.1*float64(len(matches))))
}
