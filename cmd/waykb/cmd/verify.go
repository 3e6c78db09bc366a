package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/waycore/waykb/internal/config"
	kberrors "github.com/waycore/waykb/internal/errors"
	"github.com/waycore/waykb/internal/ui"
	"github.com/waycore/waykb/internal/verify"
)

// newVerifyCmd creates the verify command.
func newVerifyCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a built index directory",
		Long: `Verify checks the artifacts in the output directory: the manifest
hashes, the database structure, the vector index metadata, the
entry/vector consistency, and a battery of sample queries.

A category mismatch on a sample query is reported as a warning and
does not fail verification. The command exits non-zero on failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := ui.NewPrinter(cmd.OutOrStdout(), noColor)

			cfg, err := config.Load(".")
			if err != nil {
				return err
			}

			out.Header("Verifying %s", outputDir)
			report, err := verify.New(cfg, slog.Default()).Run(cmd.Context(), outputDir)
			if err != nil {
				return err
			}

			for _, c := range report.Checks {
				switch c.Status {
				case verify.StatusPass:
					out.Success("[%s] %s", c.Name, c.Message)
				case verify.StatusWarn:
					out.Warn("[%s] %s", c.Name, c.Message)
				default:
					out.Fail("[%s] %s", c.Name, c.Message)
				}
			}

			if !report.Passed() {
				out.Line("")
				out.Fail("verification failed")
				return kberrors.VerificationMismatch("artifacts in " + outputDir + " failed verification")
			}
			out.Line("")
			out.Success("verification passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "generated", "Directory containing the built artifacts")

	return cmd
}
