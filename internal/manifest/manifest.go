// Package manifest generates and loads manifest.json, the signed
// summary of a build: artifact hashes, entry counts and the embedding
// parameters a consumer needs to query the index.
package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/waycore/waykb/internal/config"
	kberrors "github.com/waycore/waykb/internal/errors"
	"github.com/waycore/waykb/internal/store"
)

// FileInfo records the size and content hash of one artifact.
type FileInfo struct {
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Manifest is the on-disk manifest.json document.
type Manifest struct {
	Version             string              `json:"version"`
	BuildTimestamp      string              `json:"build_timestamp"`
	SourceHash          string              `json:"source_hash"`
	EmbeddingModel      string              `json:"embedding_model"`
	EmbeddingDimensions int                 `json:"embedding_dimensions"`
	TotalEntries        int                 `json:"total_entries"`
	Categories          map[string]int      `json:"categories"`
	Files               map[string]FileInfo `json:"files"`
	SchemaVersion       string              `json:"schema_version"`
	HNSWSpace           string              `json:"hnsw_space"`
}

// Params carries the build facts the generator cannot read from the
// artifacts themselves.
type Params struct {
	Version        string
	SourceHash     string
	EmbeddingModel string
	Dimensions     int
	// Now overrides the timestamp source; nil means time.Now.
	Now func() time.Time
}

// Generate inspects the artifacts in dir, hashes them, and writes
// manifest.json next to them. Both artifacts must exist; a manifest
// must never describe a partial build.
func Generate(ctx context.Context, dir string, p Params) (*Manifest, error) {
	dbPath := filepath.Join(dir, config.DatabaseFile)
	vecPath := filepath.Join(dir, config.VectorsFile)

	for _, path := range []string{dbPath, vecPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, kberrors.New(kberrors.ErrCodeStore,
				fmt.Sprintf("artifact missing: %s", path), err)
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	total, err := st.Count(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	categories, err := st.CountByCategory(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	// The store must be closed before hashing: closing checkpoints the
	// WAL so the hash covers the complete database file.
	if err := st.Close(); err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "close database", err)
	}

	files, err := hashFiles(ctx, dir, []string{config.DatabaseFile, config.VectorsFile})
	if err != nil {
		return nil, err
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	if p.Version == "" {
		p.Version = "1.0.0"
	}
	if p.SourceHash == "" {
		p.SourceHash = "unknown"
	}

	m := &Manifest{
		Version:             p.Version,
		BuildTimestamp:      now().UTC().Format(time.RFC3339),
		SourceHash:          p.SourceHash,
		EmbeddingModel:      p.EmbeddingModel,
		EmbeddingDimensions: p.Dimensions,
		TotalEntries:        total,
		Categories:          categories,
		Files:               files,
		SchemaVersion:       config.SchemaVersion,
		HNSWSpace:           store.VectorSpace,
	}

	if err := m.write(filepath.Join(dir, config.ManifestFile)); err != nil {
		return nil, err
	}
	return m, nil
}

// hashFiles hashes the named artifacts concurrently.
func hashFiles(ctx context.Context, dir string, names []string) (map[string]FileInfo, error) {
	var (
		mu    sync.Mutex
		files = make(map[string]FileInfo, len(names))
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := hashFile(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			mu.Lock()
			files[name] = info
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// HashFile computes the size and SHA256 of one file.
func HashFile(path string) (FileInfo, error) {
	return hashFile(path)
}

func hashFile(path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, kberrors.New(kberrors.ErrCodeStore, "open artifact", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return FileInfo{}, kberrors.New(kberrors.ErrCodeStore, "hash artifact", err)
	}
	return FileInfo{
		SizeBytes: n,
		SHA256:    hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// SourceHash hashes a source tree: every regular file's content digest,
// combined in path order so the result is independent of directory
// walk details.
func SourceHash(root string) (string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", kberrors.New(kberrors.ErrCodeSourceRead, "walk sources", err)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return "", kberrors.New(kberrors.ErrCodeSourceRead, "relativize path", err)
		}
		info, err := hashFile(path)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s\x00%s\n", filepath.ToSlash(rel), info.SHA256)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// write marshals the manifest with stable indentation and renames it
// into place.
func (m *Manifest) write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return kberrors.New(kberrors.ErrCodeStore, "encode manifest", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return kberrors.New(kberrors.ErrCodeStore, "write manifest", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return kberrors.New(kberrors.ErrCodeStore, "rename manifest", err)
	}
	return nil
}

// Load reads and decodes a manifest.json.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "read manifest", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "parse manifest", err)
	}
	return &m, nil
}
