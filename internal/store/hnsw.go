package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	kberrors "github.com/waycore/waykb/internal/errors"
)

// VectorIndex is the HNSW side of the dual index. Graph nodes are keyed
// directly by SQLite rowid, so a vector hit resolves to its entry with
// one relational lookup and no mapping table.
type VectorIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[int64]

	dims     int
	m        int
	efSearch int
	count    int

	closed bool
}

// vectorMetadata is the gob sidecar persisted next to the graph file.
// The graph export does not carry dimensions or build parameters.
type vectorMetadata struct {
	Dimensions int
	M          int
	EfSearch   int
	Count      int
	Space      string
}

// VectorSpace is the fixed distance space of the index.
const VectorSpace = "cosine"

// NewVectorIndex creates an empty cosine-distance HNSW index.
func NewVectorIndex(dims, m, efSearch int) (*VectorIndex, error) {
	if dims <= 0 {
		return nil, kberrors.New(kberrors.ErrCodeStore, "vector dimensions must be positive", nil)
	}
	if m <= 0 {
		m = 16
	}
	if efSearch <= 0 {
		efSearch = 50
	}

	graph := hnsw.NewGraph[int64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = m
	graph.EfSearch = efSearch
	graph.Ml = 0.25

	return &VectorIndex{
		graph:    graph,
		dims:     dims,
		m:        m,
		efSearch: efSearch,
	}, nil
}

// Add inserts vectors labeled by their rowids. Lengths must match and
// every vector must have the configured dimensionality.
func (v *VectorIndex) Add(rowids []int64, vectors [][]float32) error {
	if len(rowids) != len(vectors) {
		return kberrors.New(kberrors.ErrCodeStore,
			fmt.Sprintf("rowids and vectors length mismatch: %d vs %d", len(rowids), len(vectors)), nil)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return kberrors.New(kberrors.ErrCodeStore, "vector index is closed", nil)
	}
	for i, vec := range vectors {
		if len(vec) != v.dims {
			return kberrors.New(kberrors.ErrCodeStore,
				fmt.Sprintf("vector %d has %d dimensions, index wants %d", i, len(vec), v.dims), nil)
		}
	}

	for i, rowid := range rowids {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)
		v.graph.Add(hnsw.MakeNode(rowid, vec))
	}
	v.count += len(rowids)
	return nil
}

// VectorHit is one nearest-neighbor result.
type VectorHit struct {
	RowID    int64
	Distance float32
	// Score maps cosine distance onto [0, 1], 1 being identical.
	Score float32
}

// Search returns the k nearest neighbors of the query vector.
func (v *VectorIndex) Search(query []float32, k int) ([]VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return nil, kberrors.New(kberrors.ErrCodeStore, "vector index is closed", nil)
	}
	if len(query) != v.dims {
		return nil, kberrors.New(kberrors.ErrCodeStore,
			fmt.Sprintf("query has %d dimensions, index wants %d", len(query), v.dims), nil)
	}
	if v.graph.Len() == 0 {
		return []VectorHit{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	nodes := v.graph.Search(q, k)
	hits := make([]VectorHit, 0, len(nodes))
	for _, node := range nodes {
		distance := v.graph.Distance(q, node.Value)
		hits = append(hits, VectorHit{
			RowID:    node.Key,
			Distance: distance,
			Score:    1.0 - distance/2.0,
		})
	}
	return hits, nil
}

// Count returns the number of stored vectors.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.count
}

// Dimensions returns the configured vector width.
func (v *VectorIndex) Dimensions() int {
	return v.dims
}

// Save persists the graph and its metadata sidecar, both written to a
// temp file and renamed so a crash never leaves a torn artifact.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return kberrors.New(kberrors.ErrCodeStore, "vector index is closed", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return kberrors.New(kberrors.ErrCodeStore, "create output directory", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return kberrors.New(kberrors.ErrCodeStore, "create index file", err)
	}
	if err := v.graph.Export(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return kberrors.New(kberrors.ErrCodeStore, "export graph", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return kberrors.New(kberrors.ErrCodeStore, "close index file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return kberrors.New(kberrors.ErrCodeStore, "rename index file", err)
	}

	return v.saveMetadata(path + ".meta")
}

func (v *VectorIndex) saveMetadata(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return kberrors.New(kberrors.ErrCodeStore, "create metadata file", err)
	}
	meta := vectorMetadata{
		Dimensions: v.dims,
		M:          v.m,
		EfSearch:   v.efSearch,
		Count:      v.count,
		Space:      VectorSpace,
	}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return kberrors.New(kberrors.ErrCodeStore, "encode metadata", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return kberrors.New(kberrors.ErrCodeStore, "close metadata file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return kberrors.New(kberrors.ErrCodeStore, "rename metadata file", err)
	}
	return nil
}

// LoadVectorIndex reads a persisted index and its metadata sidecar.
func LoadVectorIndex(path string) (*VectorIndex, error) {
	meta, err := ReadVectorMetadata(path)
	if err != nil {
		return nil, err
	}

	v, err := NewVectorIndex(meta.Dimensions, meta.M, meta.EfSearch)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "open index file", err)
	}
	defer func() { _ = f.Close() }()

	// Import needs an io.ByteReader.
	if err := v.graph.Import(bufio.NewReader(f)); err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "import graph", err)
	}
	// The graph is the source of truth for the count; the sidecar only
	// claims one. Callers compare the two via ReadVectorMetadata.
	v.count = v.graph.Len()
	return v, nil
}

// VectorMetadata is the exported view of the persisted sidecar.
type VectorMetadata struct {
	Dimensions int
	M          int
	EfSearch   int
	Count      int
	Space      string
}

// ReadVectorMetadata reads just the sidecar, without loading the graph.
func ReadVectorMetadata(path string) (VectorMetadata, error) {
	f, err := os.Open(path + ".meta")
	if err != nil {
		return VectorMetadata{}, kberrors.New(kberrors.ErrCodeStore, "open metadata file", err)
	}
	defer func() { _ = f.Close() }()

	var meta vectorMetadata
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return VectorMetadata{}, kberrors.New(kberrors.ErrCodeStore, "decode metadata", err)
	}
	return VectorMetadata(meta), nil
}

// Close releases the graph.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	v.graph = nil
	return nil
}

// normalizeInPlace normalizes a vector to unit length in place.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
