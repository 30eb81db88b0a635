package main

import (
	"github.com/praetorian-inc/sift/pkg/engine"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	quiet      bool
	logFormat  string

	// cfg and logger are set before any command runs.
	cfg    = defaultConfig()
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "sift",
	Short: "Sift - text matching, entity extraction and scoring",
	Long: `Sift finds signals in text: it matches pattern catalogs, extracts
people and other entities, and scores documents against profiles.

Offsets are reported in Unicode code points; lines and columns are 1-based.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console, json")

	// Add subcommands
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(keywordsCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the configuration and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := loaded.Log.Level
	switch {
	case quiet:
		level = "error"
	case verbose:
		level = "debug"
	}
	format := loaded.Log.Format
	if logFormat != "" {
		format = logFormat
	}

	l, err := newLogger(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return err
	}
	cfg, logger = loaded, l
	logger.Debug().Str("config", configPath).Msg("configuration loaded")
	return nil
}

// newEngine creates an engine that logs through the CLI logger.
func newEngine() (*engine.Engine, error) {
	return engine.New(engine.Config{Logger: engineLogger{log: logger}})
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
