package cmd

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/waycore/waykb/internal/config"
	"github.com/waycore/waykb/internal/index"
	"github.com/waycore/waykb/internal/manifest"
	"github.com/waycore/waykb/internal/ui"
	"github.com/waycore/waykb/pkg/version"
)

// newBuildCmd creates the build command.
func newBuildCmd() *cobra.Command {
	var (
		sourcesDir string
		outputDir  string
		model      string
		noManifest bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the knowledge index from source documents",
		Long: `Build scans the sources directory (one subdirectory per category),
extracts entries from PDF, JSON and CSV files, and produces the
database, vector index and manifest in the output directory.

Builds are not incremental: existing artifacts are replaced.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := ui.NewPrinter(cmd.OutOrStdout(), noColor)

			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			if model != "" {
				cfg.Embedding.Model = model
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			out.Header("Building knowledge index")
			out.Info("sources: %s", sourcesDir)
			out.Info("output:  %s", outputDir)

			builder := index.NewBuilder(cfg, slog.Default())
			stats, err := builder.Build(cmd.Context(), sourcesDir, outputDir)
			if err != nil {
				out.Fail("build failed: %v", err)
				return err
			}

			out.Success("processed %d files (%d skipped)", stats.FilesProcessed, stats.FilesSkipped)
			out.Success("indexed %d entries with %s in %s",
				stats.TotalEntries, stats.EmbeddingModel, stats.Duration.Round(time.Millisecond))

			categories := make([]string, 0, len(stats.Categories))
			for c := range stats.Categories {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			for _, c := range categories {
				out.Line("  %-12s %d", c, stats.Categories[c])
			}

			if noManifest {
				return nil
			}

			srcHash, err := manifest.SourceHash(sourcesDir)
			if err != nil {
				return err
			}
			m, err := manifest.Generate(cmd.Context(), outputDir, manifest.Params{
				Version:        version.Version,
				SourceHash:     srcHash,
				EmbeddingModel: stats.EmbeddingModel,
				Dimensions:     stats.Dimensions,
			})
			if err != nil {
				return err
			}
			out.Success("wrote manifest (%s, %d entries)", m.Version, m.TotalEntries)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourcesDir, "sources-dir", "sources", "Directory containing source documents")
	cmd.Flags().StringVar(&outputDir, "output-dir", "generated", "Directory for the built artifacts")
	cmd.Flags().StringVar(&model, "model", "", fmt.Sprintf("Embedding model (default %q)", config.Default().Embedding.Model))
	cmd.Flags().BoolVar(&noManifest, "no-manifest", false, "Skip manifest generation")

	return cmd
}
