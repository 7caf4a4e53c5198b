// Package cmd provides the CLI commands for itihasa.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ayodhya-labs/itihasa/internal/logging"
	"github.com/ayodhya-labs/itihasa/pkg/version"
)

var (
	debugMode      bool
	projectDir     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the itihasa CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "itihasa",
		Short: "Question answering over the Hindu epics",
		Long: `Itihasa answers natural-language questions about the Ramayana and the
Mahabharata using hybrid lexical+semantic retrieval over a local corpus.

Put the epic text files in a docs/ directory, run 'itihasa index' once,
then ask away:

  itihasa ask "Who killed Ravana?"
  itihasa search "game of dice" --limit 5
  itihasa ask "Compare Rama and Krishna as leaders" --deep`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("itihasa version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.itihasa/logs/")
	cmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "Project directory holding the corpus and .itihasa.yaml")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging routes slog to the log file; debug mode raises the level
// and echoes to stderr.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
