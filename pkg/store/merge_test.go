//go:build !wasm

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_EmptySources(t *testing.T) {
	_, err := Merge(MergeConfig{
		SourcePaths: []string{},
		DestPath:    filepath.Join(t.TempDir(), "dest.db"),
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no source databases")
}

func TestMerge_NoDestination(t *testing.T) {
	_, err := Merge(MergeConfig{
		SourcePaths: []string{filepath.Join(t.TempDir(), "source.db")},
		DestPath:    "",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "destination path is required")
}

func writeDB(t *testing.T, path string, add func(s *SQLiteStore)) {
	t.Helper()
	s, err := NewSQLite(path)
	require.NoError(t, err)
	add(s)
	require.NoError(t, s.Close())
}

func TestMerge_MultipleSources(t *testing.T) {
	tmpDir := t.TempDir()
	first := filepath.Join(tmpDir, "first.db")
	second := filepath.Join(tmpDir, "second.db")
	dest := filepath.Join(tmpDir, "dest.db")

	shared := sampleAnalysis("a.txt", "calm down now, Ann", "default")
	writeDB(t, first, func(s *SQLiteStore) {
		require.NoError(t, s.AddAnalysis(shared))
	})
	writeDB(t, second, func(s *SQLiteStore) {
		require.NoError(t, s.AddAnalysis(sampleAnalysis("b.txt", "calm down now, Ann", "default")))
		require.NoError(t, s.AddAnalysis(sampleAnalysis("c.txt", "calm down later", "default")))
	})

	stats, err := Merge(MergeConfig{SourcePaths: []string{first, second}, DestPath: dest})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DatabasesProcessed)
	assert.Equal(t, 2, stats.DocumentsMerged)
	assert.Equal(t, 3, stats.SourcesMerged)
	assert.Equal(t, 2, stats.AnalysesMerged)
	assert.Equal(t, 2, stats.FindingsMerged)

	merged, err := NewSQLite(dest)
	require.NoError(t, err)
	defer merged.Close()

	analyses, err := merged.GetAnalyses()
	require.NoError(t, err)
	require.Len(t, analyses, 2)
	assert.Equal(t, "a.txt", analyses[0].Source)
	assert.Equal(t, shared.Findings, analyses[0].Findings)

	sources, err := merged.GetSources(shared.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, sources)

	// Merging again adds nothing.
	stats, err = Merge(MergeConfig{SourcePaths: []string{first}, DestPath: dest})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DocumentsMerged+stats.SourcesMerged+stats.AnalysesMerged+stats.FindingsMerged)
}
