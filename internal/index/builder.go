// Package index orchestrates the two-phase build: phase 1 populates
// the SQLite store (the FTS5 shadow follows via triggers), phase 2
// reads the rows back in rowid order and builds the HNSW vector index
// over the exact same set.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/waycore/waykb/internal/chunk"
	"github.com/waycore/waykb/internal/config"
	"github.com/waycore/waykb/internal/embed"
	"github.com/waycore/waykb/internal/entry"
	kberrors "github.com/waycore/waykb/internal/errors"
	"github.com/waycore/waykb/internal/source"
	"github.com/waycore/waykb/internal/store"
)

// BuildStats summarizes a completed build.
type BuildStats struct {
	FilesProcessed int
	FilesSkipped   int
	TotalEntries   int
	Categories     map[string]int
	EmbeddingModel string
	Dimensions     int
	Duration       time.Duration
}

// Builder runs index builds. It owns no artifact state between runs;
// every Build starts from an empty output.
type Builder struct {
	cfg      config.Config
	log      *slog.Logger
	embedder embed.Embedder
	pdf      source.PageExtractor
}

// Option configures a Builder.
type Option func(*Builder)

// WithPageExtractor overrides the PDF text extractor.
func WithPageExtractor(ex source.PageExtractor) Option {
	return func(b *Builder) { b.pdf = ex }
}

// WithEmbedder overrides the configured embedder.
func WithEmbedder(e embed.Embedder) Option {
	return func(b *Builder) { b.embedder = e }
}

// NewBuilder creates a Builder for the given configuration.
func NewBuilder(cfg config.Config, log *slog.Logger, opts ...Option) *Builder {
	if log == nil {
		log = slog.Default()
	}
	b := &Builder{
		cfg: cfg,
		log: log,
		pdf: source.PDFExtractor{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs a full build: lock the output directory, drop stale
// artifacts, run both phases, release the lock. The database is always
// closed before returning.
func (b *Builder) Build(ctx context.Context, sourcesDir, outputDir string) (*BuildStats, error) {
	started := time.Now()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "create output directory", err)
	}

	// One builder per output directory. A stale lock from a crashed
	// build is released by the OS, so TryLock failing means a live
	// process owns the directory.
	lock := flock.New(filepath.Join(outputDir, config.LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeBuildLocked, "acquire build lock", err)
	}
	if !locked {
		return nil, kberrors.New(kberrors.ErrCodeBuildLocked,
			fmt.Sprintf("another build holds the lock on %s", outputDir), nil)
	}
	defer func() { _ = lock.Unlock() }()

	// Builds are not incremental: stale artifacts are removed
	// unconditionally so a failed run can never leave a mix of old and
	// new index files.
	b.removeArtifacts(outputDir)

	embedder := b.embedder
	if embedder == nil {
		embedder, err = embed.New(ctx, b.cfg.Embedding)
		if err != nil {
			return nil, err
		}
		defer func() { _ = embedder.Close() }()
	}

	st, err := store.Open(filepath.Join(outputDir, config.DatabaseFile))
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	stats, err := b.phase1(ctx, st, sourcesDir)
	if err != nil {
		return nil, err
	}

	if err := b.phase2(ctx, st, embedder, filepath.Join(outputDir, config.VectorsFile)); err != nil {
		return nil, err
	}

	stats.EmbeddingModel = embedder.ModelName()
	stats.Dimensions = embedder.Dimensions()
	stats.Duration = time.Since(started)
	return stats, nil
}

func (b *Builder) removeArtifacts(outputDir string) {
	for _, name := range []string{
		config.DatabaseFile,
		config.DatabaseFile + "-wal",
		config.DatabaseFile + "-shm",
		config.VectorsFile,
		config.VectorsFile + ".meta",
		config.ManifestFile,
	} {
		_ = os.Remove(filepath.Join(outputDir, name))
	}
}

// phase1 scans the source tree and inserts every extracted entry.
// Per-file errors are logged and skipped; an empty corpus is fatal.
func (b *Builder) phase1(ctx context.Context, st *store.Store, sourcesDir string) (*BuildStats, error) {
	files, err := source.NewScanner(b.log).Scan(sourcesDir)
	if err != nil {
		return nil, kberrors.Wrap(kberrors.ErrCodeSourceRead, err)
	}

	normalizer := entry.NewNormalizer(b.cfg)
	b.log.Debug("extraction rules", slog.Any("rules", normalizer.Rules()))
	chunker := chunk.New(chunk.Params{
		TargetSize: b.cfg.Chunking.TargetSize,
		Overlap:    b.cfg.Chunking.Overlap,
		MinSize:    b.cfg.Chunking.MinSize,
	})

	stats := &BuildStats{Categories: make(map[string]int)}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := b.extractFile(f, normalizer, chunker)
		if err != nil {
			b.log.Warn("skipping source file",
				slog.String("file", f.Name),
				slog.String("category", f.Category),
				slog.String("error", err.Error()))
			stats.FilesSkipped++
			continue
		}

		for _, e := range entries {
			if _, err := st.InsertEntry(ctx, e); err != nil {
				return nil, err
			}
			stats.Categories[f.Category]++
			stats.TotalEntries++
		}
		stats.FilesProcessed++
		b.log.Info("processed source file",
			slog.String("file", f.Name),
			slog.String("category", f.Category),
			slog.Int("entries", len(entries)))
	}

	if stats.TotalEntries == 0 {
		return nil, kberrors.EmptyCorpusError()
	}
	return stats, nil
}

// extractFile converts one source file into entries.
func (b *Builder) extractFile(f source.File, normalizer *entry.Normalizer, chunker *chunk.Chunker) ([]*entry.Entry, error) {
	switch f.Kind {
	case source.KindPDF:
		doc, err := source.ReadPDF(f.Path, b.pdf)
		if err != nil {
			return nil, err
		}
		var entries []*entry.Entry
		for text := range chunker.Split(doc.Text) {
			entries = append(entries, normalizer.FromChunk(text, entry.ChunkMeta{
				Category:   f.Category,
				SourceFile: f.Name,
				Page:       doc.PageFor(text),
			}))
		}
		return entries, nil

	case source.KindJSON, source.KindCSV:
		var (
			records []entry.Record
			err     error
		)
		if f.Kind == source.KindJSON {
			records, err = source.ParseJSON(f.Path)
		} else {
			records, err = source.ParseCSV(f.Path)
		}
		if err != nil {
			return nil, err
		}
		meta := entry.SourceMeta{Category: f.Category, SourceFile: f.Name}
		var entries []*entry.Entry
		for _, rec := range records {
			if e, ok := normalizer.FromRecord(rec, meta); ok {
				entries = append(entries, e)
			}
		}
		return entries, nil

	default:
		return nil, fmt.Errorf("unknown source kind %q", f.Kind)
	}
}

// phase2 reads every row back in rowid order, embeds the contents in
// batches, and persists the vector index. Batch boundaries are a
// throughput knob only: the concatenated result is checked against the
// row count before anything is written to disk.
func (b *Builder) phase2(ctx context.Context, st *store.Store, embedder embed.Embedder, vectorsPath string) error {
	rows, err := st.Contents(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return kberrors.EmptyCorpusError()
	}

	batchSize := b.cfg.Embedding.BatchSize
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}

	rowids := make([]int64, 0, len(rows))
	vectors := make([][]float32, 0, len(rows))
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		batch := rows[start:end]

		texts := make([]string, len(batch))
		for i, rc := range batch {
			rowids = append(rowids, rc.RowID)
			texts[i] = rc.Content
		}

		embedded, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return kberrors.New(kberrors.ErrCodeEmbedder,
				fmt.Sprintf("embed batch at row %d", batch[0].RowID), err)
		}
		vectors = append(vectors, embedded...)

		b.log.Info("embedded batch",
			slog.Int("done", end),
			slog.Int("total", len(rows)))
	}

	if len(vectors) != len(rows) {
		return kberrors.IndexConsistencyError(len(rows), len(vectors))
	}

	vidx, err := store.NewVectorIndex(embedder.Dimensions(), b.cfg.Vector.M, b.cfg.Vector.EfSearch)
	if err != nil {
		return err
	}
	defer func() { _ = vidx.Close() }()

	if err := vidx.Add(rowids, vectors); err != nil {
		return err
	}
	return vidx.Save(vectorsPath)
}
