package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/waycore/waykb/internal/config"
	"github.com/waycore/waykb/internal/manifest"
	"github.com/waycore/waykb/internal/ui"
	"github.com/waycore/waykb/pkg/version"
)

// newManifestCmd creates the manifest command. build writes a manifest
// itself; this command regenerates one for artifacts that already
// exist, for example after copying them to a device.
func newManifestCmd() *cobra.Command {
	var (
		outputDir  string
		sourcesDir string
		kbVersion  string
		sourceHash string
	)

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Regenerate the manifest for built artifacts",
		Long: `Manifest hashes the database and vector index in the output
directory and writes a fresh manifest.json next to them.

The source hash is taken from --source-hash, or computed from
--sources-dir when given; otherwise it is recorded as unknown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := ui.NewPrinter(cmd.OutOrStdout(), noColor)

			cfg, err := config.Load(".")
			if err != nil {
				return err
			}

			if sourceHash == "" && sourcesDir != "" {
				sourceHash, err = manifest.SourceHash(sourcesDir)
				if err != nil {
					return err
				}
			}

			m, err := manifest.Generate(cmd.Context(), outputDir, manifest.Params{
				Version:        kbVersion,
				SourceHash:     sourceHash,
				EmbeddingModel: cfg.Embedding.Model,
				Dimensions:     cfg.Embedding.Dimensions,
			})
			if err != nil {
				out.Fail("manifest generation failed: %v", err)
				return err
			}

			out.Success("wrote %s", config.ManifestFile)
			out.Info("version: %s", m.Version)
			out.Info("entries: %d", m.TotalEntries)
			names := make([]string, 0, len(m.Files))
			for name := range m.Files {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fi := m.Files[name]
				out.Line("  %-14s %10d bytes  %s", name, fi.SizeBytes, fi.SHA256[:12])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "generated", "Directory containing the built artifacts")
	cmd.Flags().StringVar(&sourcesDir, "sources-dir", "", "Compute the source hash from this directory")
	cmd.Flags().StringVar(&kbVersion, "kb-version", version.Version, "Knowledge base version to record")
	cmd.Flags().StringVar(&sourceHash, "source-hash", "", "Source hash to record verbatim")

	return cmd
}
