package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/praetorian-inc/sift/pkg/engine"
	"github.com/praetorian-inc/sift/pkg/sarif"
	"github.com/praetorian-inc/sift/pkg/store"
	"github.com/praetorian-inc/sift/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	reportDatastore    string
	reportFormat       string
	reportColor        string
	reportDetectedOnly bool
	reportMaxFindings  int
)

// styles holds the color formatters of the human report
type styles struct {
	documentHeading *color.Color
	id              *color.Color
	patternName     *color.Color
	heading         *color.Color
	match           *color.Color
	metadata        *color.Color
	detected        *color.Color
	failed          *color.Color
}

// newStyles creates color formatters for report output
// enabled=false respects --color=never and the NO_COLOR env var
func newStyles(enabled bool) *styles {
	s := &styles{
		documentHeading: color.New(color.Bold, color.FgHiWhite),
		id:              color.New(color.FgHiGreen),
		patternName:     color.New(color.Bold, color.FgHiBlue),
		heading:         color.New(color.Bold),
		match:           color.New(color.FgYellow),
		metadata:        color.New(color.FgHiBlue),
		detected:        color.New(color.Bold, color.FgHiRed),
		failed:          color.New(color.FgRed),
	}

	if !enabled {
		for _, c := range []*color.Color{s.documentHeading, s.id, s.patternName, s.heading, s.match, s.metadata, s.detected, s.failed} {
			c.DisableColor()
		}
	}

	return s
}

// snippetParts holds separated snippet components for colored output
type snippetParts struct {
	prefix   string // "..." if truncated at start
	before   string
	matching string
	after    string
	suffix   string // "..." if truncated at end
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from analysis results",
	Long:  "Read analyses from a database written by \"sift analyze\" and output a report",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDatastore, "datastore", "", "Path or postgres:// URL of the analysis database (default from config)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json, sarif")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().BoolVar(&reportDetectedOnly, "detected-only", false, "Only report documents whose score crossed the threshold")
	reportCmd.Flags().IntVar(&reportMaxFindings, "max-findings", 3, "Findings shown per document in human output (0 = all)")
}

func runReport(cmd *cobra.Command, args []string) error {
	storePath := reportDatastore
	if storePath == "" {
		storePath = cfg.Store
	}

	// Check if it's :memory: (invalid for report)
	if storePath == store.MemoryPath {
		return fmt.Errorf("cannot report from in-memory store")
	}
	if !store.IsPostgresURL(storePath) {
		if _, err := os.Stat(storePath); err != nil {
			return fmt.Errorf("datastore not found: %s", storePath)
		}
	}

	s, err := store.New(store.Config{Path: storePath})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer s.Close()

	analyses, err := s.GetAnalyses()
	if err != nil {
		return fmt.Errorf("retrieving analyses: %w", err)
	}
	if reportDetectedOnly {
		analyses = detectedOnly(analyses)
	}
	logger.Debug().Str("datastore", storePath).Int("analyses", len(analyses)).Msg("report loaded")

	switch reportFormat {
	case "json":
		return writeJSON(cmd, analyses)
	case "human":
		return outputReportHuman(cmd, s, analyses)
	case "sarif":
		return outputReportSARIF(cmd, analyses)
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

func detectedOnly(analyses []*types.Analysis) []*types.Analysis {
	var out []*types.Analysis
	for _, a := range analyses {
		if a.Score != nil && a.Score.Detected {
			out = append(out, a)
		}
	}
	return out
}

// outputReportSARIF outputs findings in SARIF 2.1.0 format with the
// built-in catalog as the rule list
func outputReportSARIF(cmd *cobra.Command, analyses []*types.Analysis) error {
	cat, err := engine.BuiltinCatalog()
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	report := sarif.NewReport()
	for _, p := range cat.Patterns {
		report.AddRule(p)
	}
	for _, a := range analyses {
		report.AddAnalysis(a)
	}

	jsonBytes, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(jsonBytes); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}

// colorEnabled resolves the --color flag.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default: // "auto"
		// Check if stdout is a TTY and NO_COLOR is not set
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

func outputReportHuman(cmd *cobra.Command, s store.Store, analyses []*types.Analysis) error {
	out := cmd.OutOrStdout()

	color.NoColor = !colorEnabled(reportColor)
	st := newStyles(!color.NoColor)

	if len(analyses) == 0 {
		fmt.Fprintf(out, "No analyses.\n")
		return nil
	}

	for i, a := range analyses {
		// Document header - "Document N/M" in heading style, "(id xyz)" with ID in id style
		fmt.Fprintf(out, "%s (%s %s)\n",
			st.documentHeading.Sprintf("Document %d/%d", i+1, len(analyses)),
			st.heading.Sprint("id"),
			st.id.Sprint(a.DocumentID.Hex()))

		sources, err := s.GetSources(a.DocumentID)
		if err != nil {
			return fmt.Errorf("retrieving sources: %w", err)
		}
		for _, src := range sources {
			fmt.Fprintf(out, "%s %s\n", st.heading.Sprint("Source:"), st.metadata.Sprint(src))
		}

		fmt.Fprintf(out, "%s %s\n", st.heading.Sprint("Profile:"), a.Profile)
		if a.Score != nil {
			verdict := ""
			if a.Score.Detected {
				verdict = " " + st.detected.Sprint("DETECTED")
			}
			fmt.Fprintf(out, "%s %.3f (%s)%s\n", st.heading.Sprint("Score:"), a.Score.Total, a.Score.Reduction, verdict)
			for _, b := range a.Score.Breakdown {
				if b.Failed {
					fmt.Fprintf(out, "    %s %s\n", st.failed.Sprintf("criterion %s failed:", b.Name), b.Error)
				}
			}
		}
		if a.Truncated {
			fmt.Fprintf(out, "%s results were truncated by the scan budget\n", st.heading.Sprint("Note:"))
		}

		findings := a.Findings
		if reportMaxFindings > 0 && len(findings) > reportMaxFindings {
			fmt.Fprintf(out, "Showing %d/%d findings:\n", reportMaxFindings, len(findings))
			findings = findings[:reportMaxFindings]
		}

		for k, f := range findings {
			// Finding header - "Finding N/M" in heading style, "(id xyz)" with ID in id style
			fmt.Fprintf(out, "\n    %s (%s %s)\n",
				st.heading.Sprintf("Finding %d/%d", k+1, len(a.Findings)),
				st.heading.Sprint("id"),
				st.id.Sprint(f.ID))

			name := f.Match.Label
			if f.Category != "" {
				name += " [" + f.Category + "]"
			}
			fmt.Fprintf(out, "    %s %s\n", st.heading.Sprint("Pattern:"), st.patternName.Sprint(name))

			if f.Location.Source.Start.Line > 0 {
				fmt.Fprintf(out, "    %s %d:%d-%d:%d\n",
					st.heading.Sprint("Lines:"),
					f.Location.Source.Start.Line, f.Location.Source.Start.Column,
					f.Location.Source.End.Line, f.Location.Source.End.Column)
			}

			// Context snippet with colored matching portion
			var before, after string
			if f.Match.Context != nil {
				before, after = f.Match.Context.Before, f.Match.Context.After
			}
			parts := formatSnippetWithParts(before, f.Match.Text, after, 200)
			fmt.Fprintf(out, "\n        %s%s%s%s%s\n",
				parts.prefix,
				flatten(parts.before),
				st.match.Sprint(flatten(parts.matching)),
				flatten(parts.after),
				parts.suffix)
		}

		if len(a.Entities) > 0 {
			fmt.Fprintf(out, "\n    %s %s\n", st.heading.Sprint("Entities:"), summarizeEntities(a.Entities))
		}

		fmt.Fprintf(out, "\n\n")
	}

	return nil
}

// flatten keeps a snippet on one line.
func flatten(s string) string {
	return strings.ReplaceAll(s, "\n", "⏎")
}

func summarizeEntities(entities []types.Entity) string {
	parts := make([]string, 0, len(entities))
	for _, e := range entities {
		parts = append(parts, fmt.Sprintf("%s %q", e.Type, e.Text))
	}
	return strings.Join(parts, ", ")
}

// formatSnippetWithParts windows before/matching/after to at most maxLen
// code points, centered on the match.
func formatSnippetWithParts(before, matching, after string, maxLen int) snippetParts {
	b, m, a := []rune(before), []rune(matching), []rune(after)
	full := make([]rune, 0, len(b)+len(m)+len(a))
	full = append(append(append(full, b...), m...), a...)

	// Short snippet - no truncation needed
	if len(full) <= maxLen {
		return snippetParts{before: before, matching: matching, after: after}
	}

	// If match itself exceeds maxLen, show truncated match
	if len(m) >= maxLen {
		return snippetParts{
			prefix:   "...",
			matching: string(m[:maxLen-6]),
			suffix:   "...",
		}
	}

	matchStart := len(b)
	matchEnd := matchStart + len(m)

	// Reserve 6 for potential "..." on each side
	halfContext := (maxLen - len(m) - 6) / 2
	if halfContext < 0 {
		halfContext = 0
	}
	start := matchStart - halfContext
	end := matchEnd + halfContext

	// Adjust if we're near boundaries
	if start < 0 {
		end -= start
		start = 0
	}
	if end > len(full) {
		start -= end - len(full)
		if start < 0 {
			start = 0
		}
		end = len(full)
	}

	parts := snippetParts{
		before:   string(full[start:matchStart]),
		matching: matching,
		after:    string(full[matchEnd:end]),
	}
	if start > 0 {
		parts.prefix = "..."
	}
	if end < len(full) {
		parts.suffix = "..."
	}
	return parts
}
