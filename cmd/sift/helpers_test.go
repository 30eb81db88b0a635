package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every command flag and the shared config.
func resetFlags() {
	cfg = defaultConfig()
	logger = zerolog.Nop()

	matchSet, matchPatternsPath, matchInclude, matchExclude = "default", "", "", ""
	matchOverlapping, matchStrict = false, false
	matchMaxMatches, matchContextLines, matchTimeoutMS = -1, -1, -1
	matchFormat = "human"

	extractConfigPath, extractMaxEntities, extractFormat = "", 0, "human"

	keywordsFormat = "human"

	scoreProfile, scoreProfilesPath, scoreFormat = "", "", "human"

	analyzeProfile, analyzeOutputPath, analyzeFormat = "", "", "human"
	analyzeWorkers, analyzeIncremental, analyzeIncludeHidden = 0, false, false
	analyzeMaxFileSize, analyzeExtractDocuments = 0, ""

	reportDatastore, reportFormat, reportColor = "", "human", "never"
	reportDetectedOnly, reportMaxFindings = false, 3

	patternsPath, patternsSet, patternsInclude, patternsExclude, patternsFormat = "", "default", "", "", "table"

	mergeOutput = "merged.db"
}

// run invokes a command's RunE with stdin and captures stdout.
func run(t *testing.T, fn func(*cobra.Command, []string) error, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := fn(cmd, args)
	return out.String(), err
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
