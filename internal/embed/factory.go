package embed

import (
	"context"
	"fmt"

	"github.com/waycore/waykb/internal/config"
)

// New constructs the embedder selected by the configuration, wrapped in
// an LRU cache. The static model never fails; Ollama models fail fast
// when the endpoint is unreachable.
func New(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)
	switch cfg.Model {
	case "", StaticModelName:
		inner = NewStaticEmbedder()
	default:
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
	}

	if inner.Dimensions() != cfg.Dimensions {
		_ = inner.Close()
		return nil, fmt.Errorf("model %s produces %d-dimensional vectors, config wants %d",
			inner.ModelName(), inner.Dimensions(), cfg.Dimensions)
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
