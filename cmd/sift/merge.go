package main

import (
	"fmt"

	"github.com/praetorian-inc/sift/pkg/store"
	"github.com/spf13/cobra"
)

var (
	mergeOutput string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source1.db> <source2.db> [source3.db...]",
	Short: "Merge multiple sift databases",
	Long: `Merge multiple sift databases into a single output database.

This is useful for combining results from analyses run on different
machines or over different directories.

Deduplication is automatic - a document analyzed under the same profile
in several databases is stored once, with every source it was seen at.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output database path")
}

func runMerge(cmd *cobra.Command, args []string) error {
	stats, err := store.Merge(store.MergeConfig{
		SourcePaths: args,
		DestPath:    mergeOutput,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	logger.Debug().Int("databases", stats.DatabasesProcessed).Msg("merge complete")

	fmt.Fprintf(cmd.OutOrStdout(), "Merge complete:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  Databases processed: %d\n", stats.DatabasesProcessed)
	fmt.Fprintf(cmd.OutOrStdout(), "  Documents merged: %d\n", stats.DocumentsMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Sources merged: %d\n", stats.SourcesMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Analyses merged: %d\n", stats.AnalysesMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Findings merged: %d\n", stats.FindingsMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", mergeOutput)

	return nil
}
