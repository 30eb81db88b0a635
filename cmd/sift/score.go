package main

import (
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/praetorian-inc/sift/pkg/engine"
	"github.com/praetorian-inc/sift/pkg/rule"
	"github.com/praetorian-inc/sift/pkg/score"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
	"github.com/spf13/cobra"
)

var (
	scoreProfile      string
	scoreProfilesPath string
	scoreFormat       string
)

var scoreCmd = &cobra.Command{
	Use:   "score [file|-]",
	Short: "Score text against a profile",
	Long: `Score a file or stdin against a built-in profile, or a profile from a
YAML file. Criteria that fail to evaluate are reported and excluded
from the total.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreProfile, "profile", "", "Profile name (default from config)")
	scoreCmd.Flags().StringVar(&scoreProfilesPath, "profiles", "", "Path to a profiles YAML file")
	scoreCmd.Flags().StringVar(&scoreFormat, "format", "human", "Output format: human, json")
}

func runScore(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	name := scoreProfile
	if name == "" {
		name = cfg.Profile
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	var res *types.ScoreResult
	if scoreProfilesPath != "" {
		res, err = scoreWithFile(e.Catalog(), scoreProfilesPath, scoreProfile, text)
	} else {
		res, err = e.ScoreText(engine.ScoreRequest{Text: text, Profile: name})
	}
	if err != nil {
		return err
	}
	logger.Debug().Float64("total", res.Total).Bool("partial", res.Partial()).Msg("score complete")

	switch scoreFormat {
	case "json":
		return writeJSON(cmd, res)
	case "human":
		return outputScoreHuman(cmd, res)
	default:
		return fmt.Errorf("unknown output format: %s", scoreFormat)
	}
}

// scoreWithFile scores text with a profile loaded from path. An empty name
// selects the file's first profile.
func scoreWithFile(cat *engine.Catalog, path, name, text string) (*types.ScoreResult, error) {
	profiles, err := rule.NewLoader().LoadProfileFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	p := profiles[0]
	if name != "" {
		if p = rule.FindProfile(profiles, name); p == nil {
			return nil, types.NewError(types.KindInvalidConfiguration, "", "unknown profile %q in %s", name, path)
		}
	}
	if err := rule.ValidateProfile(p, cat.Patterns, cat.Sets); err != nil {
		return nil, err
	}
	if p.Extraction == nil {
		builtin := cat.Extraction
		p.Extraction = &builtin
	}

	s, err := p.Scorer(cat.Patterns, cat.Sets, nil)
	if err != nil {
		return nil, err
	}
	buf, err := textbuf.New(text)
	if err != nil {
		return nil, err
	}
	return s.Score(buf, score.Features{})
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}

func outputScoreHuman(cmd *cobra.Command, res *types.ScoreResult) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Total: %.3f (%s)\n", res.Total, res.Reduction)
	if res.Threshold != nil {
		verdict := "not detected"
		if res.Detected {
			verdict = "detected"
		}
		fmt.Fprintf(out, "Threshold: %.3f, %s\n", *res.Threshold, verdict)
	}
	fmt.Fprintf(out, "\n")

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Criterion\tKind\tRaw\tWeighted\tStatus\n")
	fmt.Fprintf(w, "---------\t----\t---\t--------\t------\n")
	for _, b := range res.Breakdown {
		status := "ok"
		if b.Failed {
			status = "failed: " + b.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.Name, b.Kind, formatValue(b.RawValue), formatValue(b.WeightedValue), status)
	}
	return w.Flush()
}
