package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/praetorian-inc/sift/pkg/engine"
	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/rule"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
	"github.com/spf13/cobra"
)

var (
	matchSet          string
	matchPatternsPath string
	matchInclude      string
	matchExclude      string
	matchOverlapping  bool
	matchStrict       bool
	matchMaxMatches   int
	matchContextLines int
	matchTimeoutMS    int64
	matchFormat       string
)

var matchCmd = &cobra.Command{
	Use:   "match [file|-]",
	Short: "Match patterns against text",
	Long: `Match a pattern set from the built-in catalog, or patterns from a YAML
file, against a file or stdin. Offsets are code points.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchSet, "set", "default", "Built-in pattern set")
	matchCmd.Flags().StringVar(&matchPatternsPath, "patterns", "", "Path to a pattern YAML file (replaces --set)")
	matchCmd.Flags().StringVar(&matchInclude, "include", "", "Include patterns whose label matches regex (comma-separated)")
	matchCmd.Flags().StringVar(&matchExclude, "exclude", "", "Exclude patterns whose label matches regex (comma-separated)")
	matchCmd.Flags().BoolVar(&matchOverlapping, "overlapping", false, "Report every occurrence instead of resolving overlaps")
	matchCmd.Flags().BoolVar(&matchStrict, "strict", false, "Fail on the first pattern that does not compile")
	matchCmd.Flags().IntVar(&matchMaxMatches, "max-matches", -1, "Maximum matches to report (default from config, 0 = unlimited)")
	matchCmd.Flags().IntVar(&matchContextLines, "context-lines", -1, "Lines of context around matches (default from config)")
	matchCmd.Flags().Int64Var(&matchTimeoutMS, "timeout-ms", -1, "Scan time budget in milliseconds (default from config)")
	matchCmd.Flags().StringVar(&matchFormat, "format", "human", "Output format: human, json")
}

// flagOr returns v unless it is negative (unset), else the fallback.
func flagOr[T int | int64](v, fallback T) T {
	if v < 0 {
		return fallback
	}
	return v
}

func runMatch(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	patterns, err := selectPatterns(e.Catalog(), matchSet, matchPatternsPath, matchInclude, matchExclude)
	if err != nil {
		return err
	}

	res, err := e.MatchPatterns(engine.MatchRequest{
		Text:     text,
		Patterns: rule.Specs(patterns),
		Strict:   matchStrict,
		Options: matcher.Options{
			Overlapping:   matchOverlapping,
			MaxMatches:    flagOr(matchMaxMatches, cfg.Match.MaxMatches),
			MaxSteps:      cfg.Match.MaxSteps,
			TimeoutMillis: flagOr(matchTimeoutMS, cfg.Match.TimeoutMS),
			ContextLines:  flagOr(matchContextLines, cfg.Match.ContextLines),
		},
	})
	if err != nil {
		return err
	}
	logger.Debug().Int("patterns", len(patterns)).Int("matches", len(res.Matches)).Bool("truncated", res.Truncated).Msg("match complete")
	for _, d := range res.Diagnostics {
		logger.Warn().Str("label", d.Label).Str("kind", string(d.Kind)).Msg(d.Message)
	}

	switch matchFormat {
	case "json":
		return writeJSON(cmd, res)
	case "human":
		return outputMatchesHuman(cmd, text, res)
	default:
		return fmt.Errorf("unknown output format: %s", matchFormat)
	}
}

// selectPatterns loads patterns from path, or the named built-in set, then
// applies the include and exclude filters.
func selectPatterns(cat *engine.Catalog, set, path, include, exclude string) ([]*rule.Pattern, error) {
	var patterns []*rule.Pattern
	var err error
	if path != "" {
		patterns, err = rule.NewLoader().LoadPatternFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading patterns: %w", err)
		}
	} else {
		patterns, err = cat.SelectSet(set)
		if err != nil {
			return nil, err
		}
	}

	// Apply filtering if patterns specified
	if include != "" || exclude != "" {
		patterns, err = rule.Filter(patterns, rule.FilterConfig{
			Include: rule.ParsePatterns(include),
			Exclude: rule.ParsePatterns(exclude),
		})
		if err != nil {
			return nil, fmt.Errorf("filtering patterns: %w", err)
		}
	}
	return patterns, nil
}

func outputMatchesHuman(cmd *cobra.Command, text string, res *types.MatchResult) error {
	out := cmd.OutOrStdout()
	if len(res.Matches) == 0 {
		fmt.Fprintf(out, "No matches.\n")
		return nil
	}

	buf, err := textbuf.New(text)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Label\tSpan\tLocation\tText\n")
	fmt.Fprintf(w, "-----\t----\t--------\t----\n")
	for _, m := range res.Matches {
		loc := buf.Locate(m.Span)
		fmt.Fprintf(w, "%s\t%s\t%d:%d\t%q\n", m.Label, m.Span, loc.Source.Start.Line, loc.Source.Start.Column, m.Text)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d matches", len(res.Matches))
	if res.Truncated {
		fmt.Fprintf(out, " (truncated)")
	}
	fmt.Fprintf(out, "\n")
	return nil
}
