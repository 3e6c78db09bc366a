package verify

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waycore/waykb/internal/config"
	"github.com/waycore/waykb/internal/index"
	"github.com/waycore/waykb/internal/manifest"
	"github.com/waycore/waykb/internal/store"
)

const testCorpus = `[
	{"name": "Friction Fire", "description": "Starting a fire without matches using a bow drill and dry tinder bundle."},
	{"name": "Solar Still", "description": "Collecting drinking water with a plastic sheet and a pit dug in moist ground."}
]`

// buildIndex produces a complete verified-buildable index directory.
func buildIndex(t *testing.T) string {
	t.Helper()
	sources := t.TempDir()
	output := t.TempDir()

	dir := filepath.Join(sources, "survival")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skills.json"), []byte(testCorpus), 0o644))

	cfg := config.Default()
	stats, err := index.NewBuilder(cfg, nil).Build(context.Background(), sources, output)
	require.NoError(t, err)

	_, err = manifest.Generate(context.Background(), output, manifest.Params{
		EmbeddingModel: stats.EmbeddingModel,
		Dimensions:     stats.Dimensions,
	})
	require.NoError(t, err)
	return output
}

func statuses(r *Report, name string) []Status {
	var out []Status
	for _, c := range r.Checks {
		if c.Name == name {
			out = append(out, c.Status)
		}
	}
	return out
}

func TestVerifier_PassesOnFreshBuild(t *testing.T) {
	output := buildIndex(t)

	// Queries scoped to the tiny corpus: membership and plumbing are
	// under test, not retrieval quality.
	v := New(config.Default(), nil, WithQueries([]QueryCheck{
		{"starting a fire with a bow drill", "survival"},
	}))
	report, err := v.Run(context.Background(), output)
	require.NoError(t, err)

	assert.True(t, report.Passed(), "report: %+v", report.Checks)
	assert.Contains(t, statuses(report, "artifacts"), StatusPass)
	assert.Contains(t, statuses(report, "database"), StatusPass)
	assert.Contains(t, statuses(report, "vectors"), StatusPass)
	assert.Contains(t, statuses(report, "consistency"), StatusPass)
	assert.NotEmpty(t, statuses(report, "search"))
}

func TestVerifier_MissingArtifacts(t *testing.T) {
	v := New(config.Default(), nil)
	report, err := v.Run(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.False(t, report.Passed())
	assert.Equal(t, []Status{StatusFail, StatusFail, StatusFail}, statuses(report, "artifacts"))
}

func TestVerifier_DetectsTamperedArtifact(t *testing.T) {
	output := buildIndex(t)

	// Append garbage to the vector index after the manifest was written.
	f, err := os.OpenFile(filepath.Join(output, config.VectorsFile), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("tampered")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	report, err := New(config.Default(), nil).Run(context.Background(), output)
	require.NoError(t, err)

	assert.False(t, report.Passed())
	assert.Contains(t, statuses(report, "hashes"), StatusFail)
}

// writeManifest overwrites a manifest file, bypassing Generate.
func writeManifest(t *testing.T, path string, m *manifest.Manifest) {
	t.Helper()
	data, err := json.MarshalIndent(m, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// A manifest whose hashes are right but whose count is wrong must fail:
// the count check guards against a manifest copied from another build.
func TestVerifier_DetectsManifestCountMismatch(t *testing.T) {
	output := buildIndex(t)
	path := filepath.Join(output, config.ManifestFile)

	m, err := manifest.Load(path)
	require.NoError(t, err)
	m.TotalEntries += 5
	writeManifest(t, path, m)

	report, err := New(config.Default(), nil).Run(context.Background(), output)
	require.NoError(t, err)

	assert.False(t, report.Passed())
	assert.Contains(t, statuses(report, "manifest"), StatusFail)
}

// Failures are aggregated: an earlier failing check must not suppress
// the sample-query battery.
func TestVerifier_RunsSearchBatteryDespiteEarlierFailure(t *testing.T) {
	output := buildIndex(t)
	path := filepath.Join(output, config.ManifestFile)

	m, err := manifest.Load(path)
	require.NoError(t, err)
	m.TotalEntries += 5
	writeManifest(t, path, m)

	report, err := New(config.Default(), nil, WithQueries([]QueryCheck{
		{"starting a fire with a bow drill", "survival"},
	})).Run(context.Background(), output)
	require.NoError(t, err)

	assert.False(t, report.Passed())
	assert.Contains(t, statuses(report, "manifest"), StatusFail)
	assert.NotEmpty(t, statuses(report, "search"), "search battery must still run")
}

// A sidecar claiming more vectors than the graph holds must fail the
// vectors check: the graph is counted directly, the sidecar is not
// trusted.
func TestVerifier_DetectsStaleSidecarCount(t *testing.T) {
	output := buildIndex(t)
	metaPath := filepath.Join(output, config.VectorsFile+".meta")

	meta, err := store.ReadVectorMetadata(filepath.Join(output, config.VectorsFile))
	require.NoError(t, err)
	meta.Count += 5

	f, err := os.Create(metaPath)
	require.NoError(t, err)
	require.NoError(t, gob.NewEncoder(f).Encode(meta))
	require.NoError(t, f.Close())

	report, err := New(config.Default(), nil).Run(context.Background(), output)
	require.NoError(t, err)

	assert.False(t, report.Passed())
	assert.Contains(t, statuses(report, "vectors"), StatusFail)
}

func TestVerifier_WarnsOnCategoryMismatch(t *testing.T) {
	output := buildIndex(t)

	v := New(config.Default(), nil, WithQueries([]QueryCheck{
		{"starting a fire with a bow drill", "navigation"}, // corpus has only survival
	}))
	report, err := v.Run(context.Background(), output)
	require.NoError(t, err)

	// A wrong category is a warning, and warnings do not fail the report.
	assert.Contains(t, statuses(report, "search"), StatusWarn)
	assert.True(t, report.Passed())
}

// Verification is read-only: the manifest must be byte-identical
// after a run.
func TestVerifier_DoesNotRewriteManifest(t *testing.T) {
	output := buildIndex(t)
	path := filepath.Join(output, config.ManifestFile)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = New(config.Default(), nil).Run(context.Background(), output)
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReport_Passed(t *testing.T) {
	r := &Report{}
	r.add("a", StatusPass, "ok")
	r.add("b", StatusWarn, "meh")
	assert.True(t, r.Passed())

	r.add("c", StatusFail, "broken")
	assert.False(t, r.Passed())
}

func TestTestQueries_CoverCoreCategories(t *testing.T) {
	categories := make(map[string]bool)
	for _, q := range TestQueries {
		categories[q.WantCategory] = true
	}
	for _, want := range []string{"survival", "navigation", "first_aid", "knots", "weather"} {
		assert.True(t, categories[want], want)
	}
}
