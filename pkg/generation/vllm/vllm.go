// Package vllm is a generation backend for a vLLM GPU cluster, driven
// through its OpenAI compatible API.
package vllm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/generation"
)

const (
	Name = "vllm"

	DefaultBaseURL = "http://localhost:8000/v1"
)

// Config configures the vLLM backend.
type Config struct {
	// BaseURL is the OpenAI compatible root, including /v1.
	BaseURL string

	// APIKey is sent as a bearer token when the server requires one.
	APIKey string

	// GPUMemoryFraction is the server's --gpu-memory-utilization. It is a
	// launch option, so it is only recorded and logged here.
	GPUMemoryFraction float64

	HTTPClient *http.Client
}

// Backend talks to vLLM's completions endpoint.
type Backend struct {
	client   *goopenai.Client
	endpoint string
}

// New creates a vLLM backend.
func New(c Config, logger *slog.Logger) *Backend {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	key := c.APIKey
	if key == "" {
		key = "unused"
	}

	clientConfig := goopenai.DefaultConfig(key)
	clientConfig.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.HTTPClient != nil {
		clientConfig.HTTPClient = c.HTTPClient
	}

	if c.GPUMemoryFraction > 0 {
		logger.Info("vllm gpu memory fraction configured",
			"endpoint", c.BaseURL,
			"gpu_memory_fraction", c.GPUMemoryFraction,
		)
	}

	return &Backend{
		client:   goopenai.NewClientWithConfig(clientConfig),
		endpoint: c.BaseURL,
	}
}

func (b *Backend) Name() string     { return Name }
func (b *Backend) Endpoint() string { return b.endpoint }

// CheckHealth uses a model listing as the liveness check.
func (b *Backend) CheckHealth(ctx context.Context) error {
	_, err := b.ListModels(ctx)
	return err
}

// ListModels returns the served model ids.
func (b *Backend) ListModels(ctx context.Context) ([]string, error) {
	list, err := b.client.ListModels(ctx)
	if err != nil {
		return nil, b.unavailable(err)
	}
	models := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, m.ID)
	}
	return models, nil
}

// Generate runs a text completion.
func (b *Backend) Generate(ctx context.Context, p generation.Prompt) (*generation.Completion, error) {
	req := goopenai.CompletionRequest{
		Model:       p.Model,
		Prompt:      p.Text,
		MaxTokens:   p.MaxTokens,
		Temperature: float32(p.Temperature),
		TopP:        float32(p.TopP),
	}
	if stop, ok := p.Extra["stop"].([]string); ok {
		req.Stop = stop
	}

	resp, err := b.client.CreateCompletion(ctx, req)
	if err != nil {
		return nil, b.classify(p.Model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &errdefs.BackendGenerationError{
			Backend: Name,
			Model:   p.Model,
			Err:     errors.New("no choices in completion"),
		}
	}

	return &generation.Completion{
		Text:             resp.Choices[0].Text,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (b *Backend) classify(model string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &errdefs.BackendGenerationError{Backend: Name, Model: model, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &errdefs.BackendGenerationError{
			Backend: Name,
			Model:   model,
			Err:     fmt.Errorf("status %d: %w", reqErr.HTTPStatusCode, err),
		}
	}
	return b.unavailable(err)
}

func (b *Backend) unavailable(err error) error {
	return &errdefs.BackendUnavailableError{Backend: Name, Endpoint: b.endpoint, Err: err}
}

func (b *Backend) Close() error { return nil }

var _ generation.Backend = (*Backend)(nil)
