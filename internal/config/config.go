// Package config defines the immutable build configuration for waykb.
// A Config value is constructed once and passed into the chunker,
// normalizer and builder; nothing in this package is mutable process-wide
// state, so builds with different parameters can coexist in one process.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	kberrors "github.com/waycore/waykb/internal/errors"
)

// Artifact file names inside the output directory.
const (
	DatabaseFile = "knowledge.db"
	VectorsFile  = "vectors.hnsw"
	ManifestFile = "manifest.json"
	LockFile     = ".waykb.lock"
)

// ConfigFileName is the optional per-tree override file.
const ConfigFileName = ".waykb.yaml"

// SchemaVersion identifies the on-disk layout of the artifacts.
const SchemaVersion = "1.0"

// Config is the complete build configuration.
type Config struct {
	Chunking   ChunkingConfig  `yaml:"chunking"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Safety     SafetyConfig    `yaml:"safety"`
	Extraction ExtractConfig   `yaml:"extraction"`
	Vector     VectorConfig    `yaml:"vector"`
}

// ChunkingConfig controls the text chunker.
type ChunkingConfig struct {
	// TargetSize is the soft maximum chunk size in characters.
	TargetSize int `yaml:"target_size"`
	// Overlap is the number of trailing characters carried into the
	// next chunk for continuity.
	Overlap int `yaml:"overlap"`
	// MinSize is the minimum chunk size; shorter trailing buffers are
	// dropped.
	MinSize int `yaml:"min_size"`
}

// EmbeddingConfig configures the embedding collaborator.
type EmbeddingConfig struct {
	// Model is the embedding model identifier.
	Model string `yaml:"model"`
	// Dimensions is the fixed vector dimensionality. Must match the
	// vector index's configured dimension.
	Dimensions int `yaml:"dimensions"`
	// BatchSize is a throughput knob for phase 2. Batch boundaries
	// never affect output.
	BatchSize int `yaml:"batch_size"`
	// OllamaHost is the Ollama API endpoint for non-static models.
	OllamaHost string `yaml:"ollama_host"`
	// CacheSize is the number of embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size"`
}

// SafetyConfig holds the fixed safety classification tables.
type SafetyConfig struct {
	// CategoryDefaults maps category to its default safety level.
	// Categories absent from the table default to "safe".
	CategoryDefaults map[string]string `yaml:"category_defaults"`
	// PlantRatings maps an edibility rating (0-5) to a safety level.
	// Missing ratings are treated as 0: unknown is dangerous.
	PlantRatings map[int]string `yaml:"plant_ratings"`
}

// ExtractConfig controls record extraction from JSON/CSV sources.
type ExtractConfig struct {
	// MinContentLength is the minimum assembled content length; records
	// below it are dropped, not emitted as degenerate entries.
	MinContentLength int `yaml:"min_content_length"`
	// TitleFields is the prioritized candidate list for record titles.
	TitleFields []string `yaml:"title_fields"`
	// DefaultLicense is attached to entries whose source declares none.
	DefaultLicense string `yaml:"default_license"`
}

// VectorConfig configures the HNSW index.
type VectorConfig struct {
	// M is the max connections per layer.
	M int `yaml:"m"`
	// EfSearch is the query-time search width.
	EfSearch int `yaml:"ef_search"`
}

// Default returns the canonical configuration. The values mirror the
// shipped knowledge-base builds and are the reference for all tests.
func Default() Config {
	return Config{
		Chunking: ChunkingConfig{
			TargetSize: 512,
			Overlap:    64,
			MinSize:    100,
		},
		Embedding: EmbeddingConfig{
			Model:      "static-384",
			Dimensions: 384,
			BatchSize:  100,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		Safety: SafetyConfig{
			CategoryDefaults: map[string]string{
				"survival":   "caution",
				"navigation": "safe",
				"first_aid":  "warning",
				"plants":     "danger",
				"knots":      "safe",
				"weather":    "safe",
				"comms":      "safe",
				"equipment":  "caution",
			},
			PlantRatings: map[int]string{
				5: "caution", // edible, still requires verification
				4: "caution", // edible with preparation
				3: "warning", // limited edibility
				2: "danger",  // potentially toxic
				1: "lethal",  // highly toxic
				0: "danger",  // unknown, assume dangerous
			},
		},
		Extraction: ExtractConfig{
			MinContentLength: 50,
			TitleFields:      []string{"name", "title", "common_name", "label", "heading"},
			DefaultLicense:   "public_domain",
		},
		Vector: VectorConfig{
			M:        16,
			EfSearch: 50,
		},
	}
}

// Load returns the default configuration overlaid with the optional
// .waykb.yaml found in dir. A missing file is not an error.
func Load(dir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, kberrors.ConfigError(fmt.Sprintf("cannot read %s", path), err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, kberrors.ConfigError(fmt.Sprintf("cannot parse %s", path), err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c Config) Validate() error {
	ch := c.Chunking
	if !(ch.Overlap < ch.MinSize && ch.MinSize < ch.TargetSize) {
		return kberrors.ConfigError(
			fmt.Sprintf("chunking requires overlap < min_size < target_size, got %d/%d/%d",
				ch.Overlap, ch.MinSize, ch.TargetSize), nil)
	}
	if ch.Overlap < 0 {
		return kberrors.ConfigError("chunking overlap must be >= 0", nil)
	}
	if c.Embedding.Dimensions <= 0 {
		return kberrors.ConfigError("embedding dimensions must be positive", nil)
	}
	if c.Embedding.BatchSize <= 0 {
		return kberrors.ConfigError("embedding batch_size must be positive", nil)
	}
	if c.Extraction.MinContentLength <= 0 {
		return kberrors.ConfigError("extraction min_content_length must be positive", nil)
	}
	return nil
}
