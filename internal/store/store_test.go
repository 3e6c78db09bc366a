package store

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waycore/waykb/internal/entry"
)

func testEntry(title, content, category string) *entry.Entry {
	return &entry.Entry{
		ID:          entry.NewID(),
		Title:       title,
		Content:     content,
		Category:    category,
		SafetyLevel: entry.SafetySafe,
		SourceFile:  "test.json",
		License:     "public_domain",
		Tags:        []string{category},
		CreatedAt:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestStore_InsertAndReadBack(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	e := testEntry("Bowline", "A knot that forms a fixed loop.", "knots")
	e.SourcePage = 12
	e.SafetyNotes = "note"

	rowid, err := s.InsertEntry(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rowid)

	got, err := s.EntryByRowID(ctx, rowid)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "Bowline", got.Title)
	assert.Equal(t, "knots", got.Category)
	assert.Equal(t, entry.SafetySafe, got.SafetyLevel)
	assert.Equal(t, 12, got.SourcePage)
	assert.Equal(t, []string{"knots"}, got.Tags)
	assert.Equal(t, e.CreatedAt, got.CreatedAt)
}

func TestStore_RowidsAreSequential(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		rowid, err := s.InsertEntry(ctx, testEntry("t", "c", "survival"))
		require.NoError(t, err)
		assert.Equal(t, int64(i), rowid)
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestStore_CountByCategory(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.InsertEntry(ctx, testEntry("t", "c", "survival"))
		require.NoError(t, err)
	}
	_, err = s.InsertEntry(ctx, testEntry("t", "c", "plants"))
	require.NoError(t, err)

	counts, err := s.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"survival": 3, "plants": 1}, counts)
}

func TestStore_ContentsOrderedByRowid(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		_, err := s.InsertEntry(ctx, testEntry("t", content, "knots"))
		require.NoError(t, err)
	}

	rows, err := s.Contents(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0].RowID)
	assert.Equal(t, "first", rows[0].Content)
	assert.Equal(t, int64(3), rows[2].RowID)
	assert.Equal(t, "third", rows[2].Content)
}

// The FTS shadow table is populated by triggers alone; inserting through
// the store must make the entry text-searchable with no extra write.
func TestStore_FTSTriggersKeepShadowInSync(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	_, err = s.InsertEntry(ctx, testEntry("Starting a Fire",
		"Use dry tinder and a ferro rod to start a fire in wet conditions.", "survival"))
	require.NoError(t, err)
	_, err = s.InsertEntry(ctx, testEntry("Reading Clouds",
		"Cumulonimbus clouds signal thunderstorms.", "weather"))
	require.NoError(t, err)

	hits, err := s.SearchText(ctx, "fire", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].RowID)
	assert.Equal(t, "Starting a Fire", hits[0].Title)

	hits, err = s.SearchText(ctx, "thunderstorms", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].RowID)
}

// Deletes and updates on the base table must flow through to the
// shadow table as well.
func TestStore_FTSTriggersFollowDeleteAndUpdate(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	rowid, err := s.InsertEntry(ctx, testEntry("Starting a Fire",
		"Use dry tinder and a ferro rod.", "survival"))
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx,
		`UPDATE entries SET content = 'Purify water by boiling.' WHERE rowid = ?`, rowid)
	require.NoError(t, err)

	hits, err := s.SearchText(ctx, "tinder", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.SearchText(ctx, "boiling", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	_, err = s.db.ExecContext(ctx, `DELETE FROM entries WHERE rowid = ?`, rowid)
	require.NoError(t, err)

	hits, err = s.SearchText(ctx, "boiling", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_HasTable(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	ok, err := s.HasTable(ctx, "entries")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasTable(ctx, "entries_fts")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasTable(ctx, "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_IntegrityCheck(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.NoError(t, s.IntegrityCheck(context.Background()))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.InsertEntry(ctx, testEntry("Bowline", "A fixed loop knot.", "knots"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	n, err := s2.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVectorIndex_AddAndSearch(t *testing.T) {
	v, err := NewVectorIndex(4, 16, 50)
	require.NoError(t, err)
	defer func() { _ = v.Close() }()

	err = v.Add(
		[]int64{1, 2, 3},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.9, 0.1, 0, 0},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Count())

	hits, err := v.Search([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].RowID)
	assert.Equal(t, int64(3), hits[1].RowID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	v, err := NewVectorIndex(4, 16, 50)
	require.NoError(t, err)
	defer func() { _ = v.Close() }()

	err = v.Add([]int64{1}, [][]float32{{1, 0}})
	assert.Error(t, err)

	_, err = v.Search([]float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestVectorIndex_LengthMismatch(t *testing.T) {
	v, err := NewVectorIndex(4, 16, 50)
	require.NoError(t, err)
	defer func() { _ = v.Close() }()

	err = v.Add([]int64{1, 2}, [][]float32{{1, 0, 0, 0}})
	assert.Error(t, err)
}

func TestVectorIndex_EmptySearch(t *testing.T) {
	v, err := NewVectorIndex(4, 16, 50)
	require.NoError(t, err)
	defer func() { _ = v.Close() }()

	hits, err := v.Search([]float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorIndex_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	v, err := NewVectorIndex(4, 16, 50)
	require.NoError(t, err)
	require.NoError(t, v.Add(
		[]int64{10, 20},
		[][]float32{{1, 0, 0, 0}, {0, 0, 1, 0}},
	))
	require.NoError(t, v.Save(path))
	require.NoError(t, v.Close())

	assert.FileExists(t, path)
	assert.FileExists(t, path+".meta")

	loaded, err := LoadVectorIndex(path)
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()

	assert.Equal(t, 2, loaded.Count())
	assert.Equal(t, 4, loaded.Dimensions())

	hits, err := loaded.Search([]float32{0, 0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(20), hits[0].RowID)
}

// After a load the count comes from the imported graph, not from the
// sidecar, so a stale sidecar cannot misreport a truncated index.
func TestVectorIndex_LoadCountsGraphNotSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	v, err := NewVectorIndex(4, 16, 50)
	require.NoError(t, err)
	require.NoError(t, v.Add(
		[]int64{1, 2},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}},
	))
	require.NoError(t, v.Save(path))
	require.NoError(t, v.Close())

	// Overwrite the sidecar with an inflated count.
	f, err := os.Create(path + ".meta")
	require.NoError(t, err)
	require.NoError(t, gob.NewEncoder(f).Encode(vectorMetadata{
		Dimensions: 4, M: 16, EfSearch: 50, Count: 7, Space: VectorSpace,
	}))
	require.NoError(t, f.Close())

	loaded, err := LoadVectorIndex(path)
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()

	assert.Equal(t, 2, loaded.Count())

	meta, err := ReadVectorMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, 7, meta.Count)
}

func TestReadVectorMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	v, err := NewVectorIndex(384, 16, 50)
	require.NoError(t, err)
	require.NoError(t, v.Add([]int64{1}, [][]float32{make([]float32, 384)}))
	require.NoError(t, v.Save(path))

	meta, err := ReadVectorMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, 384, meta.Dimensions)
	assert.Equal(t, 16, meta.M)
	assert.Equal(t, 50, meta.EfSearch)
	assert.Equal(t, 1, meta.Count)
	assert.Equal(t, "cosine", meta.Space)
}
