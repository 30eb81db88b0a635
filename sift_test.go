package sift

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/praetorian-inc/sift/pkg/score"
	"github.com/praetorian-inc/sift/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "default", s.Profile())
}

func TestNew_UnknownProfile(t *testing.T) {
	_, err := New(WithProfile("missing"))
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestAnalyzeString(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	a, err := s.AnalyzeString("Hi.\nYou always forget. It's all your fault.")
	require.NoError(t, err)

	require.Len(t, a.Findings, 2)
	f := a.Findings[0]
	assert.Equal(t, "sift.absolute_statement.1", f.Match.Label)
	assert.Equal(t, Span{Start: 4, End: 21}, f.Match.Span)
	assert.Equal(t, 2, f.Location.Source.Start.Line)
	require.NotNil(t, f.Match.Context)
	assert.Equal(t, "Hi.\n", f.Match.Context.Before)
	assert.True(t, a.Score.Detected)
	assert.Empty(t, a.Source)
}

func TestAnalyzeString_NoMatches(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	a, err := s.AnalyzeString("Hello, world! This is just regular text.")
	require.NoError(t, err)
	assert.Empty(t, a.Findings)
	assert.False(t, a.Score.Detected)
}

func TestAnalyzeString_InvalidEncoding(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.AnalyzeString("bad \xff")
	assert.ErrorIs(t, err, types.ErrInvalidEncoding)
}

func TestAnalyzeFile(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("It's all your fault."), 0644))

	a, err := s.AnalyzeFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, a.Source)
	require.Len(t, a.Findings, 1)
	assert.Equal(t, "sift.displacement.1", a.Findings[0].Match.Label)

	_, err = s.AnalyzeFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestMatch(t *testing.T) {
	s, err := New(WithMaxMatches(1))
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Match("calm down, it's all your fault", nil, "default")
	require.NoError(t, err)
	assert.Len(t, res.Matches, 1)
	assert.True(t, res.Truncated)

	custom := []PatternSpec{{Label: "test.cafe", Pattern: "café", Kind: types.PatternLiteral}}
	res, err = s.Match("un café", custom, "")
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, Span{Start: 3, End: 7}, res.Matches[0].Span)
}

func TestWithTimeout(t *testing.T) {
	s, err := New(WithTimeout(time.Nanosecond))
	require.NoError(t, err)
	defer s.Close()

	time.Sleep(time.Millisecond)
	res, err := s.Match(strings.Repeat("you are being dramatic. ", 2000), nil, "default")
	require.NoError(t, err)
	assert.True(t, res.Truncated)
}

func TestExtract(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Extract("Ask my brother Tom at tom@example.com")
	require.NoError(t, err)

	var people []Entity
	for _, e := range res.Entities {
		if e.Type == types.EntityPerson {
			people = append(people, e)
		}
	}
	require.Len(t, people, 1)
	assert.Equal(t, "Tom", people[0].Text)
}

func TestScore(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Score("You always forget. It's all your fault and you're overreacting.")
	require.NoError(t, err)
	assert.InDelta(t, 1.2, res.Total, 1e-9)
	assert.True(t, res.Detected)
}

func TestWithFunction(t *testing.T) {
	called := false
	s, err := New(WithFunction("noop", func(in score.Input) (float64, error) {
		called = true
		return 0, nil
	}))
	require.NoError(t, err)
	defer s.Close()

	// The default profile does not reference custom functions.
	_, err = s.Score("text")
	require.NoError(t, err)
	assert.False(t, called)
}

func TestLoadPatternsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`patterns:
  - label: test.calm
    kind: regex
    pattern: '\bcalm\s+down\b'
`), 0644))

	patterns, err := LoadPatternsFromFile(path)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "test.calm", patterns[0].Label)

	_, err = LoadPatternsFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuiltinPatterns(t *testing.T) {
	patterns, err := BuiltinPatterns()
	require.NoError(t, err)
	assert.Greater(t, len(patterns), 20)

	labels := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		labels[p.Label] = true
	}
	assert.True(t, labels["sift.gaslighting.3"])
}

func TestAnalyzeItem_Metadata(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	meta := map[string]string{"channel": "sms", "thread": "42"}
	a, err := s.AnalyzeItem(ContentItem{Source: "message:42", Content: "It's all your fault", Metadata: meta})
	require.NoError(t, err)
	assert.Equal(t, "message:42", a.Source)
	assert.Equal(t, meta, a.Metadata)

	meta["channel"] = "email"
	assert.Equal(t, "sms", a.Metadata["channel"], "the analysis holds its own copy")

	plain, err := s.AnalyzeString("It's all your fault")
	require.NoError(t, err)
	assert.Nil(t, plain.Metadata)
}

func TestKeywords(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	words, err := s.Keywords("You are ALWAYS so lazy. You never listen, you liar.")
	require.NoError(t, err)
	assert.Equal(t, []string{"always", "lazy", "liar", "never", "you"}, words)

	words, err = s.Keywords("Thanks for lunch")
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestSignalsProfile(t *testing.T) {
	s, err := New(WithProfile("signals"))
	require.NoError(t, err)
	defer s.Close()

	a, err := s.AnalyzeString("They are just a plague of vermin")
	require.NoError(t, err)
	assert.True(t, a.Score.Detected)

	categories := make(map[string]bool)
	for _, f := range a.Findings {
		categories[f.Category] = true
	}
	assert.True(t, categories["dehumanization"])

	calm, err := s.AnalyzeString("Thanks for the update, see you tomorrow.")
	require.NoError(t, err)
	assert.False(t, calm.Score.Detected)
}
