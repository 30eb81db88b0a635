package main

import (
	"fmt"
	"strings"

	"github.com/praetorian-inc/sift/pkg/engine"
	"github.com/spf13/cobra"
)

var keywordsFormat string

var keywordsCmd = &cobra.Command{
	Use:   "keywords [file|-]",
	Short: "List vocabulary keywords found in text",
	Long: `Report which words of the built-in keyword vocabulary occur in a file
or stdin. Words are matched whole and case-insensitively, then printed
lower-cased, deduplicated and sorted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKeywords,
}

func init() {
	keywordsCmd.Flags().StringVar(&keywordsFormat, "format", "human", "Output format: human, json")
}

func runKeywords(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.ExtractKeywords(engine.KeywordsRequest{Text: text})
	if err != nil {
		return err
	}

	switch keywordsFormat {
	case "json":
		return writeJSON(cmd, res.Keywords)
	case "human":
		if len(res.Keywords) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No keywords.\n")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(res.Keywords, ", "))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", keywordsFormat)
	}
}
