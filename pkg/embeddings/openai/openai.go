// Package openai implements the embeddings.Embedder contract with the OpenAI
// embeddings API. Setting BaseURL targets any OpenAI compatible server.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/davidhonghikim/griot-sub000/pkg/embeddings"
)

// DefaultEmbeddingModel is text-embedding-3-small (1536 dimensions).
const DefaultEmbeddingModel = string(goopenai.SmallEmbedding3)

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	// APIKey authenticates requests. Compatible servers may accept any value.
	APIKey string

	// BaseURL overrides the API base URL (e.g., "http://localhost:8000/v1").
	BaseURL string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions requests shortened vectors on models that support it.
	Dimensions int
}

// Embedder wraps the OpenAI embeddings API.
type Embedder struct {
	client     *goopenai.Client
	model      string
	dimensions int
}

// NewEmbedder creates a new OpenAI embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai API key is required")
	}
	if apiKey == "" {
		apiKey = "unused"
	}

	clientConfig := goopenai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: 60 * time.Second}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	return &Embedder{
		client:     goopenai.NewClientWithConfig(clientConfig),
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds several inputs in one request, preserving input order.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("calling openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

// ProviderName implements embeddings.Named.
func (e *Embedder) ProviderName() string { return "openai" }

// ModelName implements embeddings.Named.
func (e *Embedder) ModelName() string { return e.model }

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)
