package score

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/praetorian-inc/sift/pkg/extract"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyword(name string, weight float64, kws ...string) types.Criterion {
	return types.Criterion{
		Name:   name,
		Weight: weight,
		Kind:   types.KindKeywordPresence,
		Params: types.CriterionParams{Keywords: kws},
	}
}

func mustScore(t *testing.T, criteria []types.Criterion, cfg Config, text string, feats Features) *types.ScoreResult {
	t.Helper()
	s, err := New(criteria, cfg)
	require.NoError(t, err)
	res, err := s.Score(textbuf.MustNew(text), feats)
	require.NoError(t, err)
	return res
}

func TestScore_UrgentKeyword(t *testing.T) {
	res := mustScore(t, []types.Criterion{keyword("kw", 2, "urgent")}, Config{}, "this is urgent", Features{})

	require.Len(t, res.Breakdown, 1)
	entry := res.Breakdown[0]
	assert.Equal(t, "kw", entry.Name)
	assert.Equal(t, 1.0, entry.RawValue)
	assert.Equal(t, 2.0, entry.WeightedValue)
	assert.False(t, entry.Failed)
	assert.Equal(t, 2.0, res.Total)
	assert.Equal(t, types.ReduceSum, res.Reduction)
	assert.Nil(t, res.Threshold)
}

func TestScore_WeightLinearity(t *testing.T) {
	text := "Urgent: reply now, or it is too late"
	single := mustScore(t, []types.Criterion{keyword("kw", 1.5, "urgent", "asap")}, Config{}, text, Features{})
	double := mustScore(t, []types.Criterion{keyword("kw", 3, "urgent", "asap")}, Config{}, text, Features{})

	assert.Equal(t, single.Breakdown[0].RawValue, double.Breakdown[0].RawValue)
	assert.Equal(t, 2*single.Breakdown[0].WeightedValue, double.Breakdown[0].WeightedValue)
	assert.InDelta(t, 0.75, single.Breakdown[0].WeightedValue, 1e-12)
}

func TestScore_PartialFailureIsolation(t *testing.T) {
	criteria := []types.Criterion{
		keyword("broken", 1),
		keyword("kw", 2, "urgent"),
		{Name: "len", Weight: 1, Kind: types.KindLengthRatio},
	}
	res := mustScore(t, criteria, Config{}, "this is urgent", Features{})

	require.Len(t, res.Breakdown, 3)
	broken := res.Breakdown[0]
	assert.True(t, broken.Failed)
	assert.True(t, math.IsNaN(broken.RawValue))
	assert.True(t, math.IsNaN(broken.WeightedValue))
	assert.Contains(t, broken.Error, "requires keywords")

	assert.False(t, res.Breakdown[1].Failed)
	assert.True(t, res.Breakdown[2].Failed)
	assert.Contains(t, res.Breakdown[2].Error, "min_length or max_length")

	assert.Equal(t, 2.0, res.Total)
	assert.True(t, res.Partial())
}

func TestNew_GlobalValidation(t *testing.T) {
	tests := []struct {
		name     string
		criteria []types.Criterion
		cfg      Config
	}{
		{name: "negative weight", criteria: []types.Criterion{keyword("kw", -1, "a")}},
		{name: "NaN weight", criteria: []types.Criterion{keyword("kw", math.NaN(), "a")}},
		{name: "infinite weight", criteria: []types.Criterion{keyword("kw", math.Inf(1), "a")}},
		{name: "empty name", criteria: []types.Criterion{keyword("", 1, "a")}},
		{name: "duplicate name", criteria: []types.Criterion{keyword("kw", 1, "a"), keyword("kw", 1, "b")}},
		{name: "unknown kind", criteria: []types.Criterion{{Name: "x", Weight: 1, Kind: "sentiment"}}},
		{name: "unknown reduction", criteria: []types.Criterion{keyword("kw", 1, "a")}, cfg: Config{Reduction: "median"}},
		{name: "NaN threshold", criteria: []types.Criterion{keyword("kw", 1, "a")}, cfg: Config{Threshold: ptr(math.NaN())}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.criteria, tt.cfg)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
		})
	}
}

func TestNew_InvalidExtractionConfig(t *testing.T) {
	criteria := []types.Criterion{{
		Name: "ents", Weight: 1, Kind: types.KindEntityPresence,
		Params: types.CriterionParams{EntityTypes: []types.EntityType{types.EntityEmail}},
	}}
	_, err := New(criteria, Config{Extraction: &extract.Config{EnabledClasses: []types.EntityType{"NOPE"}}})
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func ptr(f float64) *float64 { return &f }

func TestScore_Reductions(t *testing.T) {
	criteria := []types.Criterion{
		keyword("a", 1, "alpha"),
		keyword("b", 3, "beta"),
		keyword("missing", 5, "gamma"),
		keyword("broken", 10),
	}
	text := "alpha beta"

	tests := []struct {
		reduction types.Reduction
		want      float64
	}{
		{types.ReduceSum, 4},
		{types.ReduceAverage, 4.0 / 3.0},
		{types.ReduceMax, 3},
	}
	for _, tt := range tests {
		t.Run(string(tt.reduction), func(t *testing.T) {
			res := mustScore(t, criteria, Config{Reduction: tt.reduction}, text, Features{})
			assert.InDelta(t, tt.want, res.Total, 1e-12)
			assert.Equal(t, tt.reduction, res.Reduction)
		})
	}
}

func TestScore_AllFailedReducesToZero(t *testing.T) {
	res := mustScore(t, []types.Criterion{keyword("broken", 1)}, Config{Reduction: types.ReduceMax}, "text", Features{})
	assert.Equal(t, 0.0, res.Total)
	assert.True(t, res.Breakdown[0].Failed)
}

func TestScore_Threshold(t *testing.T) {
	criteria := []types.Criterion{keyword("kw", 2, "urgent")}

	res := mustScore(t, criteria, Config{Threshold: ptr(1.5)}, "this is urgent", Features{})
	assert.True(t, res.Detected)
	require.NotNil(t, res.Threshold)
	assert.Equal(t, 1.5, *res.Threshold)

	res = mustScore(t, criteria, Config{Threshold: ptr(2)}, "this is urgent", Features{})
	assert.False(t, res.Detected, "detection requires exceeding the threshold")
}

func TestKeywordPresence_Modes(t *testing.T) {
	text := "Urgent: reply now, urgent!"
	tests := []struct {
		name   string
		params types.CriterionParams
		want   float64
	}{
		{name: "fraction", params: types.CriterionParams{Keywords: []string{"urgent", "asap"}}, want: 0.5},
		{name: "count", params: types.CriterionParams{Keywords: []string{"urgent", "asap"}, Mode: ModeCount}, want: 2},
		{name: "presence", params: types.CriterionParams{Keywords: []string{"urgent", "asap"}, Mode: ModePresence}, want: 1},
		{name: "density", params: types.CriterionParams{Keywords: []string{"urgent"}, Mode: ModeDensity}, want: 0.5},
		{name: "case sensitive", params: types.CriterionParams{Keywords: []string{"urgent"}, Mode: ModeCount, CaseSensitive: true}, want: 1},
		{name: "absent", params: types.CriterionParams{Keywords: []string{"asap"}, Mode: ModePresence}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := types.Criterion{Name: "kw", Weight: 1, Kind: types.KindKeywordPresence, Params: tt.params}
			res := mustScore(t, []types.Criterion{c}, Config{}, text, Features{})
			require.False(t, res.Breakdown[0].Failed, res.Breakdown[0].Error)
			assert.InDelta(t, tt.want, res.Breakdown[0].RawValue, 1e-12)
		})
	}
}

func TestKeywordPresence_WholeWord(t *testing.T) {
	base := types.CriterionParams{Keywords: []string{"cat"}, Mode: ModeCount}
	loose := types.Criterion{Name: "loose", Weight: 1, Kind: types.KindKeywordPresence, Params: base}
	strict := loose
	strict.Name = "strict"
	strict.Params.WholeWord = true

	res := mustScore(t, []types.Criterion{loose, strict}, Config{}, "cat concatenate (cat)", Features{})
	assert.Equal(t, 3.0, res.Breakdown[0].RawValue)
	assert.Equal(t, 2.0, res.Breakdown[1].RawValue)
}

func TestKeywordPresence_BadParams(t *testing.T) {
	tests := []struct {
		name   string
		params types.CriterionParams
		errMsg string
	}{
		{name: "unknown mode", params: types.CriterionParams{Keywords: []string{"a"}, Mode: "ratio"}, errMsg: "unknown keyword_presence mode"},
		{name: "empty keyword", params: types.CriterionParams{Keywords: []string{"a", ""}}, errMsg: "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := types.Criterion{Name: "kw", Weight: 1, Kind: types.KindKeywordPresence, Params: tt.params}
			res := mustScore(t, []types.Criterion{c}, Config{}, "a b c", Features{})
			assert.True(t, res.Breakdown[0].Failed)
			assert.Contains(t, res.Breakdown[0].Error, tt.errMsg)
		})
	}
}

func TestPatternDensity(t *testing.T) {
	digits := []types.PatternSpec{types.Regex("digits", `\d+`)}
	density := types.Criterion{Name: "density", Weight: 1, Kind: types.KindPatternDensity, Params: types.CriterionParams{Patterns: digits}}
	count := types.Criterion{Name: "count", Weight: 1, Kind: types.KindPatternDensity, Params: types.CriterionParams{Patterns: digits, Mode: ModeCount}}
	bad := types.Criterion{Name: "bad", Weight: 1, Kind: types.KindPatternDensity, Params: types.CriterionParams{Patterns: []types.PatternSpec{types.Regex("open", `(`)}}}
	none := types.Criterion{Name: "none", Weight: 1, Kind: types.KindPatternDensity}

	res := mustScore(t, []types.Criterion{density, count, bad, none}, Config{}, "a 1 b 22", Features{})
	assert.Equal(t, 0.5, res.Breakdown[0].RawValue)
	assert.Equal(t, 2.0, res.Breakdown[1].RawValue)
	assert.True(t, res.Breakdown[2].Failed)
	assert.Contains(t, res.Breakdown[2].Error, "open")
	assert.True(t, res.Breakdown[3].Failed)
	assert.Contains(t, res.Breakdown[3].Error, "requires patterns")
	assert.Equal(t, 2.5, res.Total)
}

func TestPatternCriteria_RegexTimeoutFailsSlot(t *testing.T) {
	nested := []types.PatternSpec{types.Regex("nested", `(a+)+$`)}
	criteria := []types.Criterion{
		{Name: "density", Weight: 1, Kind: types.KindPatternDensity, Params: types.CriterionParams{Patterns: nested}},
		{Name: "signals", Weight: 1, Kind: types.KindSignalWeight, Params: types.CriterionParams{Patterns: nested}},
		keyword("kw", 1, "aaa"),
	}
	text := strings.Repeat("a", 40) + "!"

	res := mustScore(t, criteria, Config{RegexTimeout: 20 * time.Millisecond}, text, Features{})

	for _, entry := range res.Breakdown[:2] {
		assert.True(t, entry.Failed, entry.Name)
		assert.True(t, math.IsNaN(entry.RawValue), entry.Name)
		assert.Contains(t, entry.Error, "timed out", entry.Name)
	}
	assert.False(t, res.Breakdown[2].Failed)
	assert.Equal(t, 1.0, res.Breakdown[2].RawValue)
	assert.True(t, res.Partial())
	assert.Equal(t, 1.0, res.Total)
}

func entityCriterion(name, mode string, ts ...types.EntityType) types.Criterion {
	return types.Criterion{
		Name:   name,
		Weight: 1,
		Kind:   types.KindEntityPresence,
		Params: types.CriterionParams{EntityTypes: ts, Mode: mode},
	}
}

func TestEntityPresence_FromExtractor(t *testing.T) {
	criteria := []types.Criterion{
		entityCriterion("both", "", types.EntityEmail, types.EntityDate),
		entityCriterion("with-url", "", types.EntityEmail, types.EntityURL),
		entityCriterion("fraction", ModeFraction, types.EntityEmail, types.EntityURL),
		entityCriterion("count", ModeCount, types.EntityEmail),
	}
	res := mustScore(t, criteria, Config{}, "mail bob@example.com or ann@example.org on 2024-01-15", Features{})

	assert.Equal(t, 1.0, res.Breakdown[0].RawValue)
	assert.Equal(t, 0.0, res.Breakdown[1].RawValue)
	assert.Equal(t, 0.5, res.Breakdown[2].RawValue)
	assert.Equal(t, 2.0, res.Breakdown[3].RawValue)
}

func TestEntityPresence_FromFeatures(t *testing.T) {
	criteria := []types.Criterion{entityCriterion("person", ModeCount, types.EntityPerson)}
	feats := Features{Entities: []types.Entity{
		{Type: types.EntityPerson, Span: types.Span{Start: 0, End: 4}},
		{Type: types.EntityPerson, Span: types.Span{Start: 5, End: 9}},
		{Type: types.EntityOrg, Span: types.Span{Start: 10, End: 14}},
	}}
	res := mustScore(t, criteria, Config{}, "no names in this text", feats)
	assert.Equal(t, 2.0, res.Breakdown[0].RawValue, "supplied entities replace extraction")

	limited := extract.Config{EnabledClasses: []types.EntityType{types.EntityURL}}
	res = mustScore(t, []types.Criterion{entityCriterion("email", "", types.EntityEmail)}, Config{Extraction: &limited}, "bob@example.com", Features{})
	assert.Equal(t, 0.0, res.Breakdown[0].RawValue, "configured extractor has no email class")
}

func TestEntityPresence_BadParams(t *testing.T) {
	criteria := []types.Criterion{
		entityCriterion("none", ""),
		entityCriterion("lower", "", "person"),
		entityCriterion("mode", "ratio", types.EntityEmail),
	}
	res := mustScore(t, criteria, Config{}, "text", Features{})
	for _, e := range res.Breakdown {
		assert.True(t, e.Failed, e.Name)
	}
}

func TestLengthRatio(t *testing.T) {
	runes := types.Criterion{Name: "runes", Weight: 1, Kind: types.KindLengthRatio, Params: types.CriterionParams{MinLength: 10, MaxLength: 20}}
	words := types.Criterion{Name: "words", Weight: 1, Kind: types.KindLengthRatio, Params: types.CriterionParams{MinLength: 4, Unit: UnitWords}}

	tests := []struct {
		text      string
		wantRunes float64
		wantWords float64
	}{
		{text: "short", wantRunes: 0.5, wantWords: 0.25},
		{text: "just right ok", wantRunes: 1, wantWords: 0.75},
		{text: "this sentence is forty codepoints long!!", wantRunes: 0.5, wantWords: 1},
		{text: "", wantRunes: 0, wantWords: 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := mustScore(t, []types.Criterion{runes, words}, Config{}, tt.text, Features{})
			assert.InDelta(t, tt.wantRunes, res.Breakdown[0].RawValue, 1e-12)
			assert.InDelta(t, tt.wantWords, res.Breakdown[1].RawValue, 1e-12)
		})
	}
}

func TestLengthRatio_CodepointLength(t *testing.T) {
	c := types.Criterion{Name: "len", Weight: 1, Kind: types.KindLengthRatio, Params: types.CriterionParams{MaxLength: 2}}
	res := mustScore(t, []types.Criterion{c}, Config{}, "日本語本", Features{})
	assert.Equal(t, 0.5, res.Breakdown[0].RawValue)
}

func TestLengthRatio_BadParams(t *testing.T) {
	tests := []types.CriterionParams{
		{},
		{MinLength: -1, MaxLength: 5},
		{MinLength: 10, MaxLength: 5},
		{MinLength: 1, Unit: "bytes"},
	}
	for _, p := range tests {
		c := types.Criterion{Name: "len", Weight: 1, Kind: types.KindLengthRatio, Params: p}
		res := mustScore(t, []types.Criterion{c}, Config{}, "text", Features{})
		assert.True(t, res.Breakdown[0].Failed, "%+v", p)
	}
}

func TestSignalWeight(t *testing.T) {
	signals := []types.PatternSpec{
		{Label: "judgment", Pattern: `you're (lazy|useless)`, Kind: types.PatternRegex, Weight: 0.8, CaseSensitive: ptrBool(false)},
		{Label: "absolute", Pattern: "always", Weight: 0.9},
	}
	c := types.Criterion{Name: "signals", Weight: 1, Kind: types.KindSignalWeight, Params: types.CriterionParams{Patterns: signals}}

	res := mustScore(t, []types.Criterion{c}, Config{}, "You're lazy", Features{})
	assert.InDelta(t, 0.8/1.1, res.Breakdown[0].RawValue, 1e-12)

	res = mustScore(t, []types.Criterion{c}, Config{}, "You're lazy and you always do this", Features{})
	assert.Equal(t, 1.0, res.Breakdown[0].RawValue, "capped at 1")

	res = mustScore(t, []types.Criterion{c}, Config{}, "a calm message", Features{})
	assert.Equal(t, 0.0, res.Breakdown[0].RawValue)
}

func TestSignalWeight_Overlapping(t *testing.T) {
	signals := []types.PatternSpec{
		{Label: "judgment", Pattern: `you're lazy`, Kind: types.PatternRegex, Weight: 0.2},
		{Label: "trait", Pattern: "lazy", Weight: 0.2},
	}
	c := types.Criterion{Name: "signals", Weight: 1, Kind: types.KindSignalWeight, Params: types.CriterionParams{Patterns: signals}}

	res := mustScore(t, []types.Criterion{c}, Config{}, "you're lazy", Features{})
	assert.InDelta(t, 0.2/1.1, res.Breakdown[0].RawValue, 1e-12, "the longer match hides the nested one")

	c.Params.Overlapping = true
	res = mustScore(t, []types.Criterion{c}, Config{}, "you're lazy", Features{})
	assert.InDelta(t, 0.4/1.2, res.Breakdown[0].RawValue, 1e-12)

	density := types.Criterion{Name: "density", Weight: 1, Kind: types.KindPatternDensity, Params: types.CriterionParams{Patterns: signals, Mode: ModeCount, Overlapping: true}}
	res = mustScore(t, []types.Criterion{density}, Config{}, "you're lazy", Features{})
	assert.Equal(t, 2.0, res.Breakdown[0].RawValue)
}

func ptrBool(b bool) *bool { return &b }

func TestSignalScore(t *testing.T) {
	assert.Equal(t, 0.0, SignalScore(nil, nil))
	matches := []types.Match{{Index: 0}, {Index: 1}, {Index: 1}}
	assert.InDelta(t, 0.9/1.3, SignalScore(matches, []float64{0.3, 0.3}), 1e-12)
	assert.InDelta(t, 0.3/1.2, SignalScore([]types.Match{{Index: 0}, {Index: 7}}, []float64{0.3}), 1e-12)
}

func TestCustom(t *testing.T) {
	funcs := map[string]Func{
		"words": func(in Input) (float64, error) {
			return float64(in.Stats.Words) * in.Args["scale"], nil
		},
		"matches": func(in Input) (float64, error) {
			return float64(len(in.Matches)), nil
		},
		"persons": func(in Input) (float64, error) {
			n := 0
			for _, e := range in.Entities {
				if e.Type == types.EntityPerson {
					n++
				}
			}
			return float64(n), nil
		},
		"fails":  func(Input) (float64, error) { return 0, errors.New("upstream unavailable") },
		"nan":    func(Input) (float64, error) { return math.NaN(), nil },
		"panics": func(Input) (float64, error) { panic("boom") },
	}
	custom := func(name, fn string) types.Criterion {
		return types.Criterion{
			Name:   name,
			Weight: 1,
			Kind:   types.KindCustom,
			Params: types.CriterionParams{Function: fn, Args: map[string]float64{"scale": 0.5}},
		}
	}
	criteria := []types.Criterion{
		custom("words", "words"),
		custom("matches", "matches"),
		custom("persons", "persons"),
		custom("fails", "fails"),
		custom("nan", "nan"),
		custom("panics", "panics"),
		custom("unregistered", "nope"),
		custom("unnamed", ""),
	}
	feats := Features{
		Matches:  []types.Match{{Label: "m"}},
		Entities: []types.Entity{{Type: types.EntityPerson}},
	}
	res := mustScore(t, criteria, Config{Functions: funcs}, "one two three four", feats)

	assert.Equal(t, 2.0, res.Breakdown[0].RawValue)
	assert.Equal(t, 1.0, res.Breakdown[1].RawValue)
	assert.Equal(t, 1.0, res.Breakdown[2].RawValue)
	assert.Contains(t, res.Breakdown[3].Error, "upstream unavailable")
	assert.Contains(t, res.Breakdown[4].Error, "non-finite")
	assert.Contains(t, res.Breakdown[5].Error, "boom")
	assert.Contains(t, res.Breakdown[6].Error, "not registered")
	assert.Contains(t, res.Breakdown[7].Error, "requires function")
	for _, e := range res.Breakdown[3:] {
		assert.True(t, e.Failed, e.Name)
	}
	assert.Equal(t, 4.0, res.Total)
}

func TestScore_Deterministic(t *testing.T) {
	criteria := []types.Criterion{
		keyword("kw", 0.7, "urgent", "now"),
		entityCriterion("ents", ModeFraction, types.EntityEmail, types.EntityPhone),
		{Name: "len", Weight: 0.3, Kind: types.KindLengthRatio, Params: types.CriterionParams{MinLength: 5, MaxLength: 40}},
	}
	s, err := New(criteria, Config{Reduction: types.ReduceAverage})
	require.NoError(t, err)

	buf := textbuf.MustNew("Reply now to ops@example.com, it is urgent. Call (555) 123-4567.")
	first, err := s.Score(buf, Features{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Score(buf, Features{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScore_NilBuffer(t *testing.T) {
	s, err := New([]types.Criterion{keyword("kw", 1, "a")}, Config{})
	require.NoError(t, err)
	_, err = s.Score(nil, Features{})
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestScorer_Accessors(t *testing.T) {
	criteria := []types.Criterion{keyword("kw", 1, "a")}
	s, err := New(criteria, Config{})
	require.NoError(t, err)
	assert.Equal(t, types.ReduceSum, s.Reduction())

	got := s.Criteria()
	got[0].Name = "changed"
	assert.Equal(t, "kw", s.Criteria()[0].Name)
}

func TestScore_EmptyCriteria(t *testing.T) {
	res := mustScore(t, nil, Config{}, "anything", Features{})
	assert.Empty(t, res.Breakdown)
	assert.Equal(t, 0.0, res.Total)
}

func TestScore_Concurrent(t *testing.T) {
	s, err := New([]types.Criterion{
		keyword("kw", 2, "urgent"),
		entityCriterion("email", "", types.EntityEmail),
	}, Config{})
	require.NoError(t, err)

	buf := textbuf.MustNew("urgent: write to help@example.com")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Score(buf, Features{})
			if assert.NoError(t, err) {
				assert.Equal(t, 3.0, res.Total)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkScore(b *testing.B) {
	s, err := New([]types.Criterion{
		keyword("kw", 1, "urgent", "asap", "immediately"),
		{Name: "len", Weight: 1, Kind: types.KindLengthRatio, Params: types.CriterionParams{MinLength: 20, MaxLength: 400}},
	}, Config{})
	require.NoError(b, err)
	buf := textbuf.MustNew("Please respond asap, this is urgent and must be handled immediately.")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Score(buf, Features{})
	}
}
