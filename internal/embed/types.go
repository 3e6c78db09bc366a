// Package embed turns entry text into fixed-dimension vectors. The
// default model is a deterministic hash-based embedder that needs no
// network or model files; an Ollama-backed embedder is available for
// higher-quality builds.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// StaticModelName selects the built-in hash embedder.
	StaticModelName = "static-384"

	// StaticDimensions is the built-in embedder's vector width.
	StaticDimensions = 384

	// DefaultBatchSize bounds one EmbedBatch call during index builds.
	DefaultBatchSize = 100

	// DefaultOllamaTimeout covers one Ollama embed request, including a
	// cold model load.
	DefaultOllamaTimeout = 120 * time.Second
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The result
	// has one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier recorded in the manifest.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length. Zero vectors are
// returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
