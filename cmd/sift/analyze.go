package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/praetorian-inc/sift/pkg/engine"
	"github.com/praetorian-inc/sift/pkg/enum"
	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/store"
	"github.com/praetorian-inc/sift/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	analyzeProfile          string
	analyzeOutputPath       string
	analyzeFormat           string
	analyzeWorkers          int
	analyzeIncremental      bool
	analyzeIncludeHidden    bool
	analyzeMaxFileSize      int64
	analyzeExtractDocuments string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path> [path...]",
	Short: "Analyze files and store the results",
	Long: `Analyze every text file under the given paths with a profile: match the
profile's pattern set, extract entities and score each document.
Results are stored in a SQLite database for "sift report".

Files listed in a root's .gitignore are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeProfile, "profile", "", "Profile name (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeOutputPath, "output", "", "Output database path or postgres:// URL (default from config, :memory: for none)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "human", "Output format: human, json")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "Concurrent analyses (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeIncremental, "incremental", false, "Skip documents already analyzed with the profile")
	analyzeCmd.Flags().BoolVar(&analyzeIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	analyzeCmd.Flags().Int64Var(&analyzeMaxFileSize, "max-file-size", 0, "Maximum file size to analyze in bytes (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeExtractDocuments, "extract-documents", "", "Extract text from docx,odt,pdf,eml (comma-separated or 'all')")
}

// analyzeStats counts documents as they are processed.
type analyzeStats struct {
	documents atomic.Int64
	detected  atomic.Int64
	findings  atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	for _, target := range args {
		if _, err := os.Stat(target); err != nil {
			return fmt.Errorf("target does not exist: %s", target)
		}
	}

	profile := analyzeProfile
	if profile == "" {
		profile = cfg.Profile
	}
	outputPath := analyzeOutputPath
	if outputPath == "" {
		outputPath = cfg.Store
	}
	workers := analyzeWorkers
	if workers <= 0 {
		workers = cfg.Analyze.Workers
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.Prepare(profile); err != nil {
		return err
	}

	s, err := store.New(store.Config{Path: outputPath})
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log := logger.With().Str("profile", profile).Logger()
	log.Info().Strs("targets", args).Int("workers", workers).Msg("analyzing")

	stats := &analyzeStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	opts := matcher.Options{
		MaxMatches:    cfg.Match.MaxMatches,
		MaxSteps:      cfg.Match.MaxSteps,
		TimeoutMillis: cfg.Match.TimeoutMS,
		ContextLines:  cfg.Match.ContextLines,
	}

	enumErr := createEnumerator(args).Enumerate(gctx, func(doc enum.Document) error {
		if analyzeIncremental {
			exists, err := s.AnalysisExists(doc.ID, profile)
			if err != nil {
				return fmt.Errorf("checking analysis: %w", err)
			}
			if exists {
				stats.skipped.Add(1)
				return nil
			}
		}

		g.Go(func() error {
			a, err := e.Analyze(engine.AnalyzeRequest{
				Source:  doc.Source,
				Text:    string(doc.Content),
				Profile: profile,
				Options: opts,
			})
			if err != nil {
				if types.KindOf(err) == types.KindInvalidEncoding {
					log.Warn().Str("source", doc.Source).Err(err).Msg("skipping document")
					stats.failed.Add(1)
					return nil
				}
				return fmt.Errorf("analyzing %s: %w", doc.Source, err)
			}
			if err := s.AddAnalysis(a); err != nil {
				return fmt.Errorf("storing analysis: %w", err)
			}

			stats.documents.Add(1)
			stats.findings.Add(int64(len(a.Findings)))
			if a.Score != nil && a.Score.Detected {
				stats.detected.Add(1)
			}
			log.Debug().Str("source", doc.Source).Int("findings", len(a.Findings)).Bool("truncated", a.Truncated).Msg("document analyzed")
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if enumErr != nil {
		return fmt.Errorf("enumerating: %w", enumErr)
	}

	// Summary goes to stderr when stdout carries JSON
	summary := cmd.OutOrStdout()
	if analyzeFormat == "json" {
		summary = cmd.ErrOrStderr()
	}
	fmt.Fprintf(summary, "Analysis complete: %d documents, %d detected, %d findings",
		stats.documents.Load(), stats.detected.Load(), stats.findings.Load())
	if n := stats.skipped.Load(); n > 0 {
		fmt.Fprintf(summary, " (%d skipped)", n)
	}
	if n := stats.failed.Load(); n > 0 {
		fmt.Fprintf(summary, " (%d failed)", n)
	}
	fmt.Fprintf(summary, "\n")
	if outputPath != store.MemoryPath {
		fmt.Fprintf(summary, "Results stored in: %s\n", outputPath)
	}

	switch analyzeFormat {
	case "human":
		return nil
	case "json":
		analyses, err := s.GetAnalyses()
		if err != nil {
			return fmt.Errorf("retrieving analyses: %w", err)
		}
		return writeJSON(cmd, analyses)
	default:
		return fmt.Errorf("unknown output format: %s", analyzeFormat)
	}
}

func createEnumerator(targets []string) enum.Enumerator {
	maxSize := analyzeMaxFileSize
	if maxSize <= 0 {
		maxSize = cfg.Analyze.MaxFileSize
	}
	extractDocs := analyzeExtractDocuments
	if extractDocs == "" {
		extractDocs = cfg.Analyze.ExtractDocuments
	}

	enumerators := make([]enum.Enumerator, len(targets))
	for i, target := range targets {
		enumerators[i] = enum.NewFilesystemEnumerator(enum.Config{
			Root:             target,
			IncludeHidden:    analyzeIncludeHidden || cfg.Analyze.IncludeHidden,
			MaxFileSize:      maxSize,
			ExtractDocuments: extractDocs,
		})
	}
	return enum.NewCombinedEnumerator(enumerators...)
}
