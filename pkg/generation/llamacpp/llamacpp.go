// Package llamacpp is a generation backend for the llama.cpp HTTP server.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/generation"
)

const (
	Name = "llamacpp"

	DefaultBaseURL = "http://localhost:8080"
)

// Config configures the llama.cpp backend.
type Config struct {
	BaseURL string

	// APIKey is sent as a bearer token when the server was started with
	// --api-key.
	APIKey string

	// Threads maps to n_threads. Zero leaves the server default.
	Threads int

	HTTPClient *http.Client
}

// Backend talks to the native llama.cpp server API.
type Backend struct {
	baseURL    string
	apiKey     string
	threads    int
	httpClient *http.Client
}

// New creates a llama.cpp backend.
func New(c Config) *Backend {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Backend{
		baseURL:    strings.TrimRight(c.BaseURL, "/"),
		apiKey:     c.APIKey,
		threads:    c.Threads,
		httpClient: httpClient,
	}
}

func (b *Backend) Name() string     { return Name }
func (b *Backend) Endpoint() string { return b.baseURL }

// CheckHealth reports unavailable until the server has loaded its model.
func (b *Backend) CheckHealth(ctx context.Context) error {
	var out healthResponse
	if err := b.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return b.unavailable(err)
	}
	if out.Status != "" && out.Status != "ok" {
		return b.unavailable(fmt.Errorf("server status %q", out.Status))
	}
	return nil
}

// ListModels returns the loaded model ids.
func (b *Backend) ListModels(ctx context.Context) ([]string, error) {
	var out modelsResponse
	if err := b.do(ctx, http.MethodGet, "/v1/models", nil, &out); err != nil {
		return nil, b.unavailable(err)
	}
	models := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// Generate runs a non-streaming completion.
func (b *Backend) Generate(ctx context.Context, p generation.Prompt) (*generation.Completion, error) {
	req := map[string]any{
		"prompt":      p.Text,
		"temperature": p.Temperature,
		"top_p":       p.TopP,
		"stream":      false,
	}
	if p.MaxTokens > 0 {
		req["n_predict"] = p.MaxTokens
	}
	if b.threads > 0 {
		req["n_threads"] = b.threads
	}
	for k, v := range p.Extra {
		req[k] = v
	}

	var out completionResponse
	if err := b.do(ctx, http.MethodPost, "/completion", req, &out); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, &errdefs.BackendGenerationError{Backend: Name, Model: p.Model, Err: err}
		}
		return nil, b.unavailable(err)
	}

	model := out.Model
	if model == "" {
		model = p.Model
	}
	return &generation.Completion{
		Text:             out.Content,
		Model:            model,
		PromptTokens:     out.TokensEvaluated,
		CompletionTokens: out.TokensPredicted,
		TotalTokens:      out.TokensEvaluated + out.TokensPredicted,
	}, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llama.cpp returned status %d: %s", e.code, e.body)
}

func (b *Backend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling llama.cpp %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding llama.cpp %s response: %w", path, err)
	}
	return nil
}

func (b *Backend) unavailable(err error) error {
	return &errdefs.BackendUnavailableError{Backend: Name, Endpoint: b.baseURL, Err: err}
}

func (b *Backend) Close() error { return nil }

type healthResponse struct {
	Status string `json:"status"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type completionResponse struct {
	Content         string `json:"content"`
	Model           string `json:"model"`
	TokensEvaluated int    `json:"tokens_evaluated"`
	TokensPredicted int    `json:"tokens_predicted"`
}

var _ generation.Backend = (*Backend)(nil)
