package engine

import (
	"strings"
	"sync"
	"testing"

	"github.com/praetorian-inc/sift/pkg/extract"
	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/score"
	"github.com/praetorian-inc/sift/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Log(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, format)
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestNew_LogsCatalog(t *testing.T) {
	logger := &recordingLogger{}
	e, err := New(Config{Logger: logger})
	require.NoError(t, err)
	defer e.Close()

	assert.NotEmpty(t, logger.lines)
	assert.NotEmpty(t, e.Catalog().Patterns)
	assert.NotEmpty(t, e.Catalog().Extraction.CustomRules, "relationship rules are part of the builtin extraction")
}

func TestMatchPatterns_CodepointOffsets(t *testing.T) {
	e := newEngine(t)

	res, err := e.MatchPatterns(MatchRequest{
		Text: "café naïve café",
		Patterns: []types.PatternSpec{
			types.Literal("cafe", "café"),
			types.Regex("naive", `na.ve`),
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)

	assert.Equal(t, types.Span{Start: 0, End: 4}, res.Matches[0].Span)
	assert.Equal(t, "naive", res.Matches[1].Label)
	assert.Equal(t, types.Span{Start: 5, End: 10}, res.Matches[1].Span)
	assert.Equal(t, "naïve", res.Matches[1].Text)
	assert.Equal(t, types.Span{Start: 11, End: 15}, res.Matches[2].Span)
	assert.False(t, res.Truncated)
}

func TestMatchPatterns_Set(t *testing.T) {
	e := newEngine(t)

	res, err := e.MatchPatterns(MatchRequest{
		Text:     "Honestly, you're overreacting.",
		Patterns: []types.PatternSpec{types.Literal("honest", "Honestly")},
		Set:      "default",
	})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "honest", res.Matches[0].Label)
	assert.Equal(t, 0, res.Matches[0].Index, "explicit patterns come first")
	assert.Equal(t, "sift.gaslighting.3", res.Matches[1].Label)

	_, err = e.MatchPatterns(MatchRequest{Text: "x", Set: "missing"})
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestMatchPatterns_Errors(t *testing.T) {
	e := newEngine(t)
	bad := []types.PatternSpec{types.Literal("ok", "ok"), types.Regex("bad", `(unclosed`)}

	_, err := e.MatchPatterns(MatchRequest{Text: "ok \xff", Patterns: bad[:1]})
	require.ErrorIs(t, err, types.ErrInvalidEncoding)
	var te *types.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Offset)

	_, err = e.MatchPatterns(MatchRequest{Text: "ok", Patterns: bad, Strict: true})
	assert.ErrorIs(t, err, types.ErrPatternCompile)

	res, err := e.MatchPatterns(MatchRequest{Text: "ok", Patterns: bad})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "bad", res.Diagnostics[0].Label)
}

func TestHandles_Lifecycle(t *testing.T) {
	e := newEngine(t)

	compiled, err := e.Compile(CompileRequest{
		Patterns: []types.PatternSpec{types.Literal("a", "apple").IgnoreCase()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, compiled.Patterns)
	assert.Equal(t, 1, e.Handles())

	second, err := e.Compile(CompileRequest{Set: "hostility"})
	require.NoError(t, err)
	assert.NotEqual(t, compiled.Handle, second.Handle)
	assert.Equal(t, 2, e.Handles())

	res, err := e.MatchCompiled(MatchCompiledRequest{
		Handle:  compiled.Handle,
		Text:    "Apple, apple, APPLE",
		Options: matcher.Options{MaxMatches: 2},
	})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
	assert.True(t, res.Truncated)

	require.NoError(t, e.Release(compiled.Handle))
	assert.Equal(t, 1, e.Handles())

	_, err = e.MatchCompiled(MatchCompiledRequest{Handle: compiled.Handle, Text: "apple"})
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
	assert.ErrorIs(t, e.Release(compiled.Handle), types.ErrInvalidConfiguration)

	e.Close()
	assert.Equal(t, 0, e.Handles())
}

func TestHandles_StrictCompile(t *testing.T) {
	e := newEngine(t)

	_, err := e.Compile(CompileRequest{Patterns: []types.PatternSpec{types.Regex("bad", `[`)}, Strict: true})
	assert.ErrorIs(t, err, types.ErrPatternCompile)
	assert.Equal(t, 0, e.Handles())

	res, err := e.Compile(CompileRequest{Patterns: []types.PatternSpec{types.Regex("bad", `[`)}})
	require.NoError(t, err)
	assert.Len(t, res.Diagnostics, 1)
}

func TestHandles_Concurrent(t *testing.T) {
	e := newEngine(t)
	compiled, err := e.Compile(CompileRequest{Set: "default"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.MatchCompiled(MatchCompiledRequest{Handle: compiled.Handle, Text: "calm down, it's all your fault"})
			assert.NoError(t, err)
			assert.Len(t, res.Matches, 2)
		}()
	}
	wg.Wait()
}

func TestExtractEntities(t *testing.T) {
	e := newEngine(t)

	res, err := e.ExtractEntities(ExtractRequest{Text: "Ask my brother Tom at tom@example.com"})
	require.NoError(t, err)

	byType := map[types.EntityType][]types.Entity{}
	for _, ent := range res.Entities {
		byType[ent.Type] = append(byType[ent.Type], ent)
	}
	require.Len(t, byType[types.EntityPerson], 1)
	assert.Equal(t, "Tom", byType[types.EntityPerson][0].Text)
	assert.Equal(t, "brother", byType[types.EntityPerson][0].Attributes["relationship"])
	require.Len(t, byType[types.EntityEmail], 1)
	assert.Equal(t, "tom@example.com", byType[types.EntityEmail][0].Text)

	cfg := extract.Config{EnabledClasses: []types.EntityType{types.EntityEmail}}
	res, err = e.ExtractEntities(ExtractRequest{Text: "Ask my brother Tom at tom@example.com", Config: &cfg})
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, types.EntityEmail, res.Entities[0].Type)

	bad := extract.Config{EnabledClasses: []types.EntityType{"SHOE_SIZE"}}
	_, err = e.ExtractEntities(ExtractRequest{Text: "x", Config: &bad})
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestScoreText_Profile(t *testing.T) {
	e := newEngine(t)

	res, err := e.ScoreText(ScoreRequest{
		Text:    "You always forget. It's all your fault and you're overreacting.",
		Profile: "default",
	})
	require.NoError(t, err)
	assert.True(t, res.Detected)
	assert.Equal(t, types.ReduceSum, res.Reduction)
	require.Len(t, res.Breakdown, 3)
	assert.Equal(t, 1.0, res.Breakdown[0].RawValue)
	assert.Equal(t, 1.0, res.Breakdown[1].RawValue)
	assert.False(t, res.Partial())

	_, err = e.ScoreText(ScoreRequest{Text: "x", Profile: "missing"})
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)

	_, err = e.ScoreText(ScoreRequest{
		Text:     "x",
		Profile:  "default",
		Criteria: []types.Criterion{{Name: "len", Weight: 1, Kind: types.KindLengthRatio}},
	})
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestScoreText_Criteria(t *testing.T) {
	e, err := New(Config{Functions: map[string]score.Func{
		"exclaim": func(in score.Input) (float64, error) {
			return float64(strings.Count(in.Buffer.String(), "!")), nil
		},
	}})
	require.NoError(t, err)
	defer e.Close()

	threshold := 3.0
	res, err := e.ScoreText(ScoreRequest{
		Text: "My sister Sarah said hi!!",
		Criteria: []types.Criterion{
			{Name: "bang", Weight: 2, Kind: types.KindCustom, Params: types.CriterionParams{Function: "exclaim"}},
			{Name: "people", Weight: 1, Kind: types.KindEntityPresence, Params: types.CriterionParams{EntityTypes: []types.EntityType{types.EntityPerson}}},
		},
		Threshold: &threshold,
	})
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Breakdown[0].WeightedValue)
	assert.Equal(t, 1.0, res.Breakdown[1].RawValue, "builtin relationship rules find Sarah")
	assert.Equal(t, 5.0, res.Total)
	assert.True(t, res.Detected)

	// Supplied entities replace extraction.
	res, err = e.ScoreText(ScoreRequest{
		Text:     "My sister Sarah said hi!!",
		Criteria: []types.Criterion{{Name: "people", Weight: 1, Kind: types.KindEntityPresence, Params: types.CriterionParams{EntityTypes: []types.EntityType{types.EntityPerson}}}},
		Entities: []types.Entity{{Type: types.EntityEmail, Span: types.Span{Start: 0, End: 2}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Total)
}

func TestAnalyze(t *testing.T) {
	e := newEngine(t)
	text := "Hi.\nYou always forget. It's all your fault."

	a, err := e.Analyze(AnalyzeRequest{Source: "note.txt", Text: text})
	require.NoError(t, err)

	assert.Equal(t, "note.txt", a.Source)
	assert.Equal(t, DefaultProfile, a.Profile)
	assert.Equal(t, types.ComputeDocumentID([]byte(text)), a.DocumentID)
	assert.Equal(t, len([]rune(text)), a.Runes)
	require.Len(t, a.Findings, 2)

	first := a.Findings[0]
	assert.Equal(t, "sift.absolute_statement.1", first.Match.Label)
	assert.Equal(t, "absolute_statement", first.Category)
	assert.Equal(t, types.Span{Start: 4, End: 21}, first.Location.Offset)
	assert.Equal(t, types.SourcePoint{Line: 2, Column: 1}, first.Location.Source.Start)
	assert.Len(t, first.ID, 40)
	assert.Equal(t, "sift.displacement.1", a.Findings[1].Match.Label)

	require.NotNil(t, a.Score)
	assert.True(t, a.Score.Detected)
	assert.GreaterOrEqual(t, a.Score.Total, 1.2)
	assert.Len(t, a.Matches(), 2)

	again, err := e.Analyze(AnalyzeRequest{Source: "note.txt", Text: text})
	require.NoError(t, err)
	assert.Equal(t, a, again, "analysis is deterministic")
}

func TestAnalyzeBatch(t *testing.T) {
	e := newEngine(t)

	batch, err := e.AnalyzeBatch([]ContentItem{
		{Source: "s1", Content: "It's all your fault and you're overreacting."},
		{Source: "s2", Content: "Thanks, see you soon."},
		{Source: "bad", Content: "broken \xff"},
	}, "")
	require.NoError(t, err)

	require.Len(t, batch.Results, 2)
	assert.Equal(t, 1, batch.Detected)
	assert.Contains(t, batch.Errors["bad"], "InvalidEncoding")

	_, err = e.AnalyzeBatch(nil, "missing")
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestExtractKeywords(t *testing.T) {
	e := newEngine(t)

	res, err := e.ExtractKeywords(KeywordsRequest{Text: "You are always so lazy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"always", "lazy", "you"}, res.Keywords)

	res, err = e.ExtractKeywords(KeywordsRequest{Text: "Your fault. YOUR blame! yours truly"})
	require.NoError(t, err)
	assert.Equal(t, []string{"blame", "fault", "your"}, res.Keywords, "whole words only")

	res, err = e.ExtractKeywords(KeywordsRequest{Text: "Deadline ASAP, deadline!", Keywords: []string{"deadline", "asap", "c++"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"asap", "deadline"}, res.Keywords)

	res, err = e.ExtractKeywords(KeywordsRequest{Text: "you always", Keywords: []string{" ", ""}})
	require.NoError(t, err)
	assert.Empty(t, res.Keywords)

	res, err = e.ExtractKeywords(KeywordsRequest{Text: "a calm note"})
	require.NoError(t, err)
	assert.NotNil(t, res.Keywords)
	assert.Empty(t, res.Keywords)

	_, err = e.ExtractKeywords(KeywordsRequest{Text: "broken \xff"})
	assert.ErrorIs(t, err, types.ErrInvalidEncoding)
}

func TestAnalyze_Metadata(t *testing.T) {
	e := newEngine(t)

	batch, err := e.AnalyzeBatch([]ContentItem{
		{Source: "m1", Content: "It's all your fault", Metadata: map[string]string{"channel": "sms"}},
		{Source: "m2", Content: "see you soon"},
	}, "")
	require.NoError(t, err)
	require.Len(t, batch.Results, 2)
	assert.Equal(t, map[string]string{"channel": "sms"}, batch.Results[0].Metadata)
	assert.Nil(t, batch.Results[1].Metadata)
}

func TestGetBuiltinPatterns(t *testing.T) {
	specs, err := GetBuiltinPatterns()
	require.NoError(t, err)
	require.NotEmpty(t, specs)
	for _, s := range specs {
		assert.True(t, strings.HasPrefix(s.Label, "sift."), s.Label)
	}
}

func BenchmarkAnalyze(b *testing.B) {
	e, err := New(Config{})
	require.NoError(b, err)
	text := strings.Repeat("You always forget. My sister Anna says it's all your fault. ", 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Analyze(AnalyzeRequest{Text: text}); err != nil {
			b.Fatal(err)
		}
	}
}
