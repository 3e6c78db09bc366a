// Package verify validates a built index directory: structural checks
// on both artifacts, manifest hash verification, and a battery of
// sample queries that exercise the full search path.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/waycore/waykb/internal/config"
	"github.com/waycore/waykb/internal/embed"
	"github.com/waycore/waykb/internal/manifest"
	"github.com/waycore/waykb/internal/store"
)

// Status is the outcome of one check.
type Status string

const (
	StatusPass Status = "pass"
	// StatusWarn marks a suspicious but non-failing result, such as a
	// sample query landing in an unexpected category.
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Check is one verification result.
type Check struct {
	Name    string
	Status  Status
	Message string
}

// Report aggregates all checks. Warnings do not fail the report.
type Report struct {
	Checks []Check
}

func (r *Report) add(name string, status Status, format string, args ...any) {
	r.Checks = append(r.Checks, Check{
		Name:    name,
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	})
}

// Passed reports whether no check failed.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			return false
		}
	}
	return true
}

// QueryCheck is one sample query and the category its best hit is
// expected to come from.
type QueryCheck struct {
	Query        string
	WantCategory string
}

// TestQueries is the standard verification battery. A category
// mismatch is a warning, not a failure: retrieval quality varies with
// the embedding model, membership and plumbing must not.
var TestQueries = []QueryCheck{
	{"how to start a fire without matches", "survival"},
	{"reading a topographic map", "navigation"},
	{"treating a bleeding wound", "first_aid"},
	{"tying a bowline knot", "knots"},
	{"identifying cloud types", "weather"},
}

// Verifier runs verification over an index directory.
type Verifier struct {
	cfg      config.Config
	log      *slog.Logger
	embedder embed.Embedder
	queries  []QueryCheck
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithEmbedder overrides the configured embedder.
func WithEmbedder(e embed.Embedder) Option {
	return func(v *Verifier) { v.embedder = e }
}

// WithQueries overrides the sample query battery.
func WithQueries(qs []QueryCheck) Option {
	return func(v *Verifier) { v.queries = qs }
}

// New creates a Verifier.
func New(cfg config.Config, log *slog.Logger, opts ...Option) *Verifier {
	if log == nil {
		log = slog.Default()
	}
	v := &Verifier{cfg: cfg, log: log, queries: TestQueries}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run executes all checks against the artifacts in dir. It returns an
// error only for setup failures; verification findings, including
// fatal ones, land in the report.
func (v *Verifier) Run(ctx context.Context, dir string) (*Report, error) {
	report := &Report{}

	dbPath := filepath.Join(dir, config.DatabaseFile)
	vecPath := filepath.Join(dir, config.VectorsFile)
	manPath := filepath.Join(dir, config.ManifestFile)

	missing := false
	for _, path := range []string{dbPath, vecPath, manPath} {
		if _, err := os.Stat(path); err != nil {
			report.add("artifacts", StatusFail, "missing artifact: %s", filepath.Base(path))
			missing = true
		}
	}
	if missing {
		return report, nil
	}
	report.add("artifacts", StatusPass, "all artifacts present")

	m, err := manifest.Load(manPath)
	if err != nil {
		report.add("manifest", StatusFail, "cannot parse manifest: %v", err)
		return report, nil
	}

	// Hash artifacts before anything opens them.
	v.checkHashes(report, dir, m)

	dbCount := v.checkDatabase(ctx, report, dbPath, m)
	vecCount, vidx := v.checkVectors(report, vecPath, m)
	if vidx != nil {
		defer func() { _ = vidx.Close() }()
	}

	if dbCount > 0 && vecCount > 0 {
		if dbCount == vecCount {
			report.add("consistency", StatusPass, "%d entries, %d vectors", dbCount, vecCount)
		} else {
			report.add("consistency", StatusFail,
				"entry count %d does not match vector count %d", dbCount, vecCount)
		}
	}

	// The battery always runs: earlier failures are aggregated, never
	// allowed to suppress later checks.
	v.checkSearch(ctx, report, dbPath, vidx)
	return report, nil
}

func (v *Verifier) checkHashes(report *Report, dir string, m *manifest.Manifest) {
	for _, name := range []string{config.DatabaseFile, config.VectorsFile} {
		want, ok := m.Files[name]
		if !ok {
			report.add("hashes", StatusFail, "manifest has no entry for %s", name)
			continue
		}
		got, err := manifest.HashFile(filepath.Join(dir, name))
		if err != nil {
			report.add("hashes", StatusFail, "cannot hash %s: %v", name, err)
			continue
		}
		if got.SHA256 != want.SHA256 {
			report.add("hashes", StatusFail, "%s hash mismatch: artifact changed since manifest", name)
			continue
		}
		if got.SizeBytes != want.SizeBytes {
			report.add("hashes", StatusFail, "%s size mismatch: manifest says %d, file is %d",
				name, want.SizeBytes, got.SizeBytes)
			continue
		}
		report.add("hashes", StatusPass, "%s matches manifest", name)
	}
}

func (v *Verifier) checkDatabase(ctx context.Context, report *Report, dbPath string, m *manifest.Manifest) int {
	st, err := store.Open(dbPath)
	if err != nil {
		report.add("database", StatusFail, "cannot open database: %v", err)
		return 0
	}
	defer func() { _ = st.Close() }()

	if err := st.IntegrityCheck(ctx); err != nil {
		report.add("database", StatusFail, "integrity check failed: %v", err)
		return 0
	}
	for _, table := range []string{"entries", "entries_fts"} {
		ok, err := st.HasTable(ctx, table)
		if err != nil || !ok {
			report.add("database", StatusFail, "table %s missing", table)
			return 0
		}
	}

	count, err := st.Count(ctx)
	if err != nil {
		report.add("database", StatusFail, "cannot count entries: %v", err)
		return 0
	}
	if count == 0 {
		report.add("database", StatusFail, "no entries in database")
		return 0
	}
	report.add("database", StatusPass, "database OK: %d entries", count)

	if m.TotalEntries != count {
		report.add("manifest", StatusFail,
			"entry count mismatch: manifest says %d, database has %d", m.TotalEntries, count)
	} else {
		report.add("manifest", StatusPass, "manifest OK: v%s, %d entries", m.Version, m.TotalEntries)
	}
	return count
}

// checkVectors loads the full graph, not just the sidecar: the graph's
// own node count is the truth, and a stale sidecar must not mask a
// truncated index. The loaded index is returned for the search battery.
func (v *Verifier) checkVectors(report *Report, vecPath string, m *manifest.Manifest) (int, *store.VectorIndex) {
	meta, err := store.ReadVectorMetadata(vecPath)
	if err != nil {
		report.add("vectors", StatusFail, "cannot read vector metadata: %v", err)
		return 0, nil
	}
	vidx, err := store.LoadVectorIndex(vecPath)
	if err != nil {
		report.add("vectors", StatusFail, "cannot load vector index: %v", err)
		return 0, nil
	}
	if vidx.Count() == 0 {
		report.add("vectors", StatusFail, "vector index is empty")
		return 0, vidx
	}
	if vidx.Count() != meta.Count {
		report.add("vectors", StatusFail,
			"graph has %d vectors, sidecar claims %d", vidx.Count(), meta.Count)
		return 0, vidx
	}
	if vidx.Dimensions() != m.EmbeddingDimensions {
		report.add("vectors", StatusFail,
			"dimension mismatch: index has %d, manifest says %d", vidx.Dimensions(), m.EmbeddingDimensions)
		return 0, vidx
	}
	report.add("vectors", StatusPass, "vector index OK: %d vectors, %d dimensions", vidx.Count(), vidx.Dimensions())
	return vidx.Count(), vidx
}

// checkSearch runs the sample query battery end to end: embed the
// query, take the nearest vector, resolve its rowid in the database.
func (v *Verifier) checkSearch(ctx context.Context, report *Report, dbPath string, vidx *store.VectorIndex) {
	if vidx == nil {
		report.add("search", StatusFail, "vector index unavailable, battery skipped")
		return
	}

	embedder := v.embedder
	if embedder == nil {
		var err error
		embedder, err = embed.New(ctx, v.cfg.Embedding)
		if err != nil {
			report.add("search", StatusFail, "cannot create embedder: %v", err)
			return
		}
		defer func() { _ = embedder.Close() }()
	}

	st, err := store.Open(dbPath)
	if err != nil {
		report.add("search", StatusFail, "cannot open database: %v", err)
		return
	}
	defer func() { _ = st.Close() }()

	for _, q := range v.queries {
		vec, err := embedder.Embed(ctx, q.Query)
		if err != nil {
			report.add("search", StatusFail, "%q: embed failed: %v", q.Query, err)
			continue
		}
		hits, err := vidx.Search(vec, 1)
		if err != nil {
			report.add("search", StatusFail, "%q: search failed: %v", q.Query, err)
			continue
		}
		if len(hits) == 0 {
			report.add("search", StatusFail, "%q: no results", q.Query)
			continue
		}
		e, err := st.EntryByRowID(ctx, hits[0].RowID)
		if err != nil {
			report.add("search", StatusFail,
				"%q: no entry for rowid %d", q.Query, hits[0].RowID)
			continue
		}
		if e.Category == q.WantCategory {
			report.add("search", StatusPass, "%q -> %s", q.Query, e.Category)
		} else {
			report.add("search", StatusWarn,
				"%q -> %s (expected %s)", q.Query, e.Category, q.WantCategory)
		}
	}
}
