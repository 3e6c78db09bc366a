// Package cmd provides the CLI commands for waykb.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/waycore/waykb/internal/logging"
	"github.com/waycore/waykb/pkg/version"
)

var (
	verbose        bool
	noColor        bool
	logFile        string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the waykb CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waykb",
		Short: "Offline knowledge-base index builder",
		Long: `waykb builds a portable, verifiable knowledge index from a tree of
source documents (PDF manuals, JSON and CSV databases).

A build produces three artifacts: a SQLite database with an FTS5
full-text index, an HNSW vector index for semantic search, and a
manifest with content hashes for offline verification.`,
		Version:      version.Version,
		SilenceUsage: true,
	}

	cmd.SetVersionTemplate("waykb version {{.Version}}\n")

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newManifestCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if verbose {
		cfg = logging.DebugConfig()
	}
	cfg.FilePath = logFile

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
