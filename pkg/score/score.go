// Package score reduces a text buffer to a weighted numeric score with a
// per-criterion breakdown.
//
// Criteria are validated and compiled once by New. A criterion whose
// parameters are unusable is kept and reported as a failed breakdown slot on
// every Score call, so one misconfigured rule never blanks the whole score.
package score

import (
	"math"
	"time"

	"github.com/praetorian-inc/sift/pkg/extract"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Config configures a Scorer.
type Config struct {
	// Reduction combines weighted values. Empty means sum.
	Reduction types.Reduction `json:"reduction,omitempty" yaml:"reduction,omitempty"`

	// Threshold enables detection: Detected is set when Total exceeds it.
	Threshold *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`

	// Extraction configures the extractor used by entity criteria when the
	// caller does not supply entities. Nil uses extract.DefaultConfig.
	Extraction *extract.Config `json:"extraction,omitempty" yaml:"extraction,omitempty"`

	// Functions holds the host-supplied custom evaluators by name.
	Functions map[string]Func `json:"-" yaml:"-"`

	// RegexTimeout bounds one regex evaluation in pattern criteria. Zero
	// uses matcher.DefaultRegexTimeout.
	RegexTimeout time.Duration `json:"-" yaml:"-"`
}

// Features are precomputed analysis results a caller may hand to Score.
type Features struct {
	// Matches are passed through to custom functions.
	Matches []types.Match
	// Entities replaces extraction when non-nil.
	Entities []types.Entity
}

// Scorer is an immutable, validated criteria set. It is safe for concurrent use.
type Scorer struct {
	criteria   []types.Criterion
	evaluators []evaluator
	reduction  types.Reduction
	threshold  *float64
	extractor  *extract.Extractor
}

// New validates criteria and cfg and compiles every criterion.
//
// A negative or non-finite weight, an empty or duplicate name, an unknown
// kind or an unknown reduction fails with types.KindInvalidConfiguration.
func New(criteria []types.Criterion, cfg Config) (*Scorer, error) {
	if !cfg.Reduction.Valid() {
		return nil, types.NewError(types.KindInvalidConfiguration, string(cfg.Reduction), "unknown reduction %q", cfg.Reduction)
	}
	if cfg.Threshold != nil && (math.IsNaN(*cfg.Threshold) || math.IsInf(*cfg.Threshold, 0)) {
		return nil, types.NewError(types.KindInvalidConfiguration, "threshold", "threshold must be finite")
	}

	seen := make(map[string]bool, len(criteria))
	for i, c := range criteria {
		if c.Name == "" {
			return nil, types.NewError(types.KindInvalidConfiguration, "", "criterion %d has an empty name", i)
		}
		if seen[c.Name] {
			return nil, types.NewError(types.KindInvalidConfiguration, c.Name, "duplicate criterion name")
		}
		seen[c.Name] = true
		if math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) || c.Weight < 0 {
			return nil, types.NewError(types.KindInvalidConfiguration, c.Name, "weight must be a non-negative number, got %v", c.Weight)
		}
		if !c.Kind.Valid() {
			return nil, types.NewError(types.KindInvalidConfiguration, c.Name, "unknown criterion kind %q", c.Kind)
		}
	}

	s := &Scorer{
		criteria:   append([]types.Criterion(nil), criteria...),
		evaluators: make([]evaluator, len(criteria)),
		reduction:  cfg.Reduction,
		threshold:  cfg.Threshold,
	}
	if s.reduction == "" {
		s.reduction = types.ReduceSum
	}

	if needsEntities(criteria) {
		ecfg := extract.DefaultConfig()
		if cfg.Extraction != nil {
			ecfg = *cfg.Extraction
		}
		ex, err := extract.New(ecfg)
		if err != nil {
			return nil, err
		}
		s.extractor = ex
	}

	for i, c := range criteria {
		s.evaluators[i] = compileCriterion(c, cfg)
	}
	return s, nil
}

func needsEntities(criteria []types.Criterion) bool {
	for _, c := range criteria {
		if c.Kind == types.KindEntityPresence || c.Kind == types.KindCustom {
			return true
		}
	}
	return false
}

// Criteria returns the criteria in evaluation order.
func (s *Scorer) Criteria() []types.Criterion {
	return append([]types.Criterion(nil), s.criteria...)
}

// Reduction returns the effective reduction.
func (s *Scorer) Reduction() types.Reduction {
	return s.reduction
}

// Score evaluates every criterion against buf. Failed criteria carry NaN
// values and are left out of the reduction.
func (s *Scorer) Score(buf *textbuf.Buffer, feats Features) (*types.ScoreResult, error) {
	if buf == nil {
		return nil, types.NewError(types.KindInvalidConfiguration, "", "nil buffer")
	}

	ctx := &evalContext{buf: buf, feats: feats, extractor: s.extractor}
	result := &types.ScoreResult{
		Reduction: s.reduction,
		Breakdown: make([]types.BreakdownEntry, len(s.criteria)),
		Threshold: s.threshold,
	}

	for i, c := range s.criteria {
		entry := types.BreakdownEntry{Name: c.Name, Kind: c.Kind}
		raw, err := evaluate(s.evaluators[i], ctx)
		if err == nil && (math.IsNaN(raw) || math.IsInf(raw, 0)) {
			err = errNonFinite
		}
		if err != nil {
			entry.RawValue = math.NaN()
			entry.WeightedValue = math.NaN()
			entry.Failed = true
			entry.Error = err.Error()
		} else {
			entry.RawValue = raw
			entry.WeightedValue = raw * c.Weight
		}
		result.Breakdown[i] = entry
	}

	result.Total = reduce(s.reduction, result.Breakdown)
	if s.threshold != nil {
		result.Detected = result.Total > *s.threshold
	}
	return result, nil
}

// evaluate runs ev with panics converted to errors.
func evaluate(ev evaluator, ctx *evalContext) (raw float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw, err = math.NaN(), panicError(r)
		}
	}()
	return ev.evaluate(ctx)
}

// reduce combines the weighted values of non-failed entries in breakdown
// order. No usable entries reduce to 0.
func reduce(r types.Reduction, entries []types.BreakdownEntry) float64 {
	var sum, best float64
	n := 0
	for _, e := range entries {
		if e.Failed {
			continue
		}
		sum += e.WeightedValue
		if n == 0 || e.WeightedValue > best {
			best = e.WeightedValue
		}
		n++
	}
	if n == 0 {
		return 0
	}
	switch r {
	case types.ReduceAverage:
		return sum / float64(n)
	case types.ReduceMax:
		return best
	}
	return sum
}
