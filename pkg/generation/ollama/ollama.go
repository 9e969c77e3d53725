// Package ollama is a generation backend for a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	ollamaapi "github.com/ollama/ollama/api"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/generation"
)

const (
	Name = "ollama"

	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
)

// Config configures the Ollama backend.
type Config struct {
	BaseURL string

	// ContextWindow and Threads map to num_ctx and num_thread. Zero leaves
	// the server default.
	ContextWindow int
	Threads       int

	HTTPClient *http.Client
}

// Backend talks to the Ollama generate API.
type Backend struct {
	client   *ollamaapi.Client
	endpoint string
	config   Config
}

// New creates an Ollama backend.
func New(c Config) (*Backend, error) {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama URL %q: %w", c.BaseURL, err)
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Backend{
		client:   ollamaapi.NewClient(u, httpClient),
		endpoint: c.BaseURL,
		config:   c,
	}, nil
}

func (b *Backend) Name() string     { return Name }
func (b *Backend) Endpoint() string { return b.endpoint }

// CheckHealth pings the server.
func (b *Backend) CheckHealth(ctx context.Context) error {
	if err := b.client.Heartbeat(ctx); err != nil {
		return b.unavailable(err)
	}
	return nil
}

// ListModels returns locally pulled model names.
func (b *Backend) ListModels(ctx context.Context) ([]string, error) {
	resp, err := b.client.List(ctx)
	if err != nil {
		return nil, b.unavailable(err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// Generate runs a non-streaming completion.
func (b *Backend) Generate(ctx context.Context, p generation.Prompt) (*generation.Completion, error) {
	stream := false
	req := &ollamaapi.GenerateRequest{
		Model:   p.Model,
		Prompt:  p.Text,
		Stream:  &stream,
		Options: b.options(p),
	}

	var out *generation.Completion
	err := b.client.Generate(ctx, req, func(r ollamaapi.GenerateResponse) error {
		out = &generation.Completion{
			Text:             r.Response,
			Model:            r.Model,
			PromptTokens:     r.PromptEvalCount,
			CompletionTokens: r.EvalCount,
			TotalTokens:      r.PromptEvalCount + r.EvalCount,
		}
		return nil
	})
	if err != nil {
		return nil, b.classify(p.Model, err)
	}
	if out == nil {
		return nil, &errdefs.BackendGenerationError{
			Backend: Name,
			Model:   p.Model,
			Err:     errors.New("no response from ollama"),
		}
	}
	return out, nil
}

func (b *Backend) options(p generation.Prompt) map[string]any {
	opts := map[string]any{
		"temperature": p.Temperature,
		"top_p":       p.TopP,
	}
	if p.MaxTokens > 0 {
		opts["num_predict"] = p.MaxTokens
	}
	if b.config.ContextWindow > 0 {
		opts["num_ctx"] = b.config.ContextWindow
	}
	if b.config.Threads > 0 {
		opts["num_thread"] = b.config.Threads
	}
	for k, v := range p.Extra {
		opts[k] = v
	}
	return opts
}

// classify separates a server that answered with an error status from one
// that could not be reached.
func (b *Backend) classify(model string, err error) error {
	var status ollamaapi.StatusError
	if errors.As(err, &status) {
		return &errdefs.BackendGenerationError{Backend: Name, Model: model, Err: err}
	}
	return b.unavailable(err)
}

func (b *Backend) unavailable(err error) error {
	return &errdefs.BackendUnavailableError{Backend: Name, Endpoint: b.endpoint, Err: err}
}

// Close is a no-op; the HTTP client is shared.
func (b *Backend) Close() error { return nil }

var _ generation.Backend = (*Backend)(nil)
