// Package ollama implements the embeddings.Embedder contract on top of the
// Ollama embed API.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollamaapi "github.com/ollama/ollama/api"

	"github.com/davidhonghikim/griot-sub000/pkg/embeddings"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "nomic-embed-text"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// EmbedderConfig holds configuration for the Ollama embedder.
type EmbedderConfig struct {
	// BaseURL is the Ollama API URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the embedding model. Defaults to DefaultEmbeddingModel.
	Model string

	// HTTPClient overrides the default client (60s timeout).
	HTTPClient *http.Client
}

// Embedder wraps the Ollama embed API.
type Embedder struct {
	client *ollamaapi.Client
	model  string
}

// NewEmbedder creates a new embedder using Ollama's embedding API.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama URL %q: %w", baseURL, err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Embedder{
		client: ollamaapi.NewClient(u, httpClient),
		model:  model,
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

// EmbedMany embeds several inputs in one request.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	resp, err := e.client.Embed(ctx, &ollamaapi.EmbedRequest{
		Model: e.model,
		Input: input,
	})
	if err != nil {
		return nil, fmt.Errorf("calling ollama embed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 {
		return nil, errors.New("ollama returned no embeddings")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	return resp.Embeddings, nil
}

// ProviderName implements embeddings.Named.
func (e *Embedder) ProviderName() string { return "ollama" }

// ModelName implements embeddings.Named.
func (e *Embedder) ModelName() string { return e.model }

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var (
	_ embeddings.BatchEmbedder = (*Embedder)(nil)
	_ embeddings.Named         = (*Embedder)(nil)
)
