package cmd

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/waycore/waykb/internal/config"
	"github.com/waycore/waykb/internal/embed"
	"github.com/waycore/waykb/internal/entry"
	"github.com/waycore/waykb/internal/store"
	"github.com/waycore/waykb/internal/ui"
)

// newSearchCmd creates the search command, a quick way to poke at a
// built index without a consuming application.
func newSearchCmd() *cobra.Command {
	var (
		outputDir string
		limit     int
		textOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a built index",
		Long: `Search embeds the query and returns the nearest entries from the
vector index. With --text it runs a full-text match against the
FTS5 index instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ui.NewPrinter(cmd.OutOrStdout(), noColor)
			query := strings.Join(args, " ")

			cfg, err := config.Load(".")
			if err != nil {
				return err
			}

			st, err := store.Open(filepath.Join(outputDir, config.DatabaseFile))
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if textOnly {
				return runTextSearch(cmd, out, st, query, limit)
			}
			return runVectorSearch(cmd, out, cfg, st, outputDir, query, limit)
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "generated", "Directory containing the built artifacts")
	cmd.Flags().IntVarP(&limit, "limit", "k", 5, "Maximum number of results")
	cmd.Flags().BoolVar(&textOnly, "text", false, "Use full-text search instead of vector search")

	return cmd
}

func runTextSearch(cmd *cobra.Command, out *ui.Printer, st *store.Store, query string, limit int) error {
	hits, err := st.SearchText(cmd.Context(), query, limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		out.Info("no results")
		return nil
	}
	for i, h := range hits {
		e, err := st.EntryByRowID(cmd.Context(), h.RowID)
		if err != nil {
			slog.Warn("entry lookup failed", "rowid", h.RowID, "error", err)
			continue
		}
		printResult(out, i+1, e, 0)
	}
	return nil
}

func runVectorSearch(cmd *cobra.Command, out *ui.Printer, cfg config.Config, st *store.Store, outputDir, query string, limit int) error {
	embedder, err := embed.New(cmd.Context(), cfg.Embedding)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	vidx, err := store.LoadVectorIndex(filepath.Join(outputDir, config.VectorsFile))
	if err != nil {
		return err
	}
	defer func() { _ = vidx.Close() }()

	vec, err := embedder.Embed(cmd.Context(), query)
	if err != nil {
		return err
	}
	hits, err := vidx.Search(vec, limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		out.Info("no results")
		return nil
	}
	for i, h := range hits {
		e, err := st.EntryByRowID(cmd.Context(), h.RowID)
		if err != nil {
			slog.Warn("entry lookup failed", "rowid", h.RowID, "error", err)
			continue
		}
		printResult(out, i+1, e, h.Score)
	}
	return nil
}

func printResult(out *ui.Printer, rank int, e *entry.Entry, score float32) {
	if score > 0 {
		out.Line("%d. %s  [%s]  score=%.3f", rank, e.Title, e.Category, score)
	} else {
		out.Line("%d. %s  [%s]", rank, e.Title, e.Category)
	}
	if e.SafetyLevel != entry.SafetySafe {
		out.Warn("safety: %s", e.SafetyLevel)
	}
	out.Info("   %s", snippet(e.Content, 160))
}

// snippet trims content to a display length at a rune boundary.
func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
