package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/praetorian-inc/sift/pkg/engine"
	"github.com/praetorian-inc/sift/pkg/rule"
	"github.com/spf13/cobra"
)

var (
	patternsPath    string
	patternsSet     string
	patternsInclude string
	patternsExclude string
	patternsFormat  string
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect pattern catalogs",
	Long:  "Commands for listing and validating pattern catalogs, sets and profiles",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available patterns",
	Long:  "Display catalog patterns with their labels, categories and weights",
	Args:  cobra.NoArgs,
	RunE:  runPatternsList,
}

var patternsValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a pattern file",
	Long: `Compile every pattern in a YAML file and check it against its examples
and negative examples.`,
	Args: cobra.ExactArgs(1),
	RunE: runPatternsValidate,
}

var patternsProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List built-in profiles and pattern sets",
	Args:  cobra.NoArgs,
	RunE:  runPatternsProfiles,
}

func init() {
	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsValidateCmd)
	patternsCmd.AddCommand(patternsProfilesCmd)
	patternsListCmd.Flags().StringVar(&patternsPath, "patterns", "", "Path to a pattern YAML file")
	patternsListCmd.Flags().StringVar(&patternsSet, "set", "default", "Built-in pattern set")
	patternsListCmd.Flags().StringVar(&patternsInclude, "include", "", "Include patterns whose label matches regex (comma-separated)")
	patternsListCmd.Flags().StringVar(&patternsExclude, "exclude", "", "Exclude patterns whose label matches regex (comma-separated)")
	patternsListCmd.Flags().StringVar(&patternsFormat, "format", "table", "Output format: table, json")
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	cat, err := engine.BuiltinCatalog()
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	patterns, err := selectPatterns(cat, patternsSet, patternsPath, patternsInclude, patternsExclude)
	if err != nil {
		return err
	}

	switch patternsFormat {
	case "json":
		return writeJSON(cmd, rule.Specs(patterns))
	case "table":
		return outputPatternsTable(cmd, patterns)
	default:
		return fmt.Errorf("unknown output format: %s", patternsFormat)
	}
}

func outputPatternsTable(cmd *cobra.Command, patterns []*rule.Pattern) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Label\tCategory\tKind\tWeight\tSeverity\n")
	fmt.Fprintf(w, "-----\t--------\t----\t------\t--------\n")

	for _, p := range patterns {
		kind := p.Spec.Kind
		if kind == "" {
			kind = "literal"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", p.Spec.Label, p.Spec.Category, kind, p.Spec.Weight, p.Spec.Severity)
	}

	return nil
}

func runPatternsValidate(cmd *cobra.Command, args []string) error {
	patterns, err := rule.NewLoader().LoadPatternFile(args[0])
	if err != nil {
		return err
	}

	failed := 0
	for _, p := range patterns {
		if err := rule.ValidatePattern(p); err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", p.Spec.Label, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", p.Spec.Label)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d patterns failed validation", failed, len(patterns))
	}
	// Patterns are individually valid; this catches duplicate labels.
	return rule.ValidateCatalog(patterns)
}

func runPatternsProfiles(cmd *cobra.Command, args []string) error {
	cat, err := engine.BuiltinCatalog()
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Profile\tSet\tReduction\tThreshold\tCriteria\n")
	fmt.Fprintf(w, "-------\t---\t---------\t---------\t--------\n")
	for _, p := range cat.Profiles {
		threshold := "-"
		if p.Threshold != nil {
			threshold = fmt.Sprintf("%.2f", *p.Threshold)
		}
		names := make([]string, len(p.Criteria))
		for i, c := range p.Criteria {
			names[i] = c.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.PatternSet, p.Reduction, threshold, strings.Join(names, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n")
	w = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Set\tName\tPatterns\n")
	fmt.Fprintf(w, "---\t----\t--------\n")
	for _, s := range cat.Sets {
		fmt.Fprintf(w, "%s\t%s\t%d\n", s.ID, s.Name, len(s.Select(cat.Patterns)))
	}
	return w.Flush()
}
