// Package embeddings turns text into fixed-dimension vectors.
package embeddings

import "context"

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// BatchEmbedder is implemented by backends that embed several inputs in a
// single request. Results are returned in input order.
type BatchEmbedder interface {
	Embedder

	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Named is implemented by embedders that can report their provider and
// model, used in error messages and cache keys.
type Named interface {
	ProviderName() string
	ModelName() string
}
