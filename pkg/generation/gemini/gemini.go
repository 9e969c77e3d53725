// Package gemini is a hosted inference generation backend using Google's
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/generation"
)

const (
	Name = "gemini"

	DefaultEndpoint = "generativelanguage.googleapis.com"
	DefaultModel    = "gemini-1.5-flash"

	// generateMethod marks models that can serve GenerateContent; the
	// listing also returns embedding-only models.
	generateMethod = "generateContent"
)

// Config configures the Gemini backend.
type Config struct {
	APIKey string

	// Endpoint overrides the API host.
	Endpoint string
}

// modelIterator yields listed models until iterator.Done.
type modelIterator interface {
	Next() (*genai.ModelInfo, error)
}

// client is the part of the genai SDK the backend calls.
type client interface {
	ListModels(ctx context.Context) modelIterator
	GenerateContent(ctx context.Context, p generation.Prompt) (*genai.GenerateContentResponse, error)
	Close() error
}

type sdkClient struct {
	genai *genai.Client
}

func (c *sdkClient) ListModels(ctx context.Context) modelIterator {
	return c.genai.ListModels(ctx)
}

func (c *sdkClient) GenerateContent(ctx context.Context, p generation.Prompt) (*genai.GenerateContentResponse, error) {
	model := c.genai.GenerativeModel(p.Model)
	model.SetTemperature(float32(p.Temperature))
	if p.TopP > 0 {
		model.SetTopP(float32(p.TopP))
	}
	if p.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(p.MaxTokens))
	}
	return model.GenerateContent(ctx, genai.Text(p.Text))
}

func (c *sdkClient) Close() error {
	return c.genai.Close()
}

// Backend generates content with a Gemini model.
type Backend struct {
	client   client
	endpoint string
}

// New creates a Gemini backend. The client is created eagerly; no request
// is made until the first call.
func New(ctx context.Context, c Config) (*Backend, error) {
	if c.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(c.APIKey)}
	endpoint := DefaultEndpoint
	if c.Endpoint != "" {
		endpoint = c.Endpoint
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	gc, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return newBackend(&sdkClient{genai: gc}, endpoint), nil
}

func newBackend(c client, endpoint string) *Backend {
	return &Backend{client: c, endpoint: endpoint}
}

func (b *Backend) Name() string     { return Name }
func (b *Backend) Endpoint() string { return b.endpoint }

// CheckHealth fetches the first model listing entry.
func (b *Backend) CheckHealth(ctx context.Context) error {
	it := b.client.ListModels(ctx)
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return b.unavailable(err)
	}
	return nil
}

// ListModels returns the names of models that support content generation,
// without the "models/" prefix.
func (b *Backend) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	it := b.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, b.unavailable(err)
		}
		if !slices.Contains(m.SupportedGenerationMethods, generateMethod) {
			continue
		}
		models = append(models, strings.TrimPrefix(m.Name, "models/"))
	}
	return models, nil
}

// Generate runs a single content generation. Blocked prompts and 4xx API
// errors are generation failures; anything else means the service is
// unavailable.
func (b *Backend) Generate(ctx context.Context, p generation.Prompt) (*generation.Completion, error) {
	resp, err := b.client.GenerateContent(ctx, p)
	if err != nil {
		var (
			apiErr  *googleapi.Error
			blocked *genai.BlockedError
		)
		if errors.As(err, &blocked) || (errors.As(err, &apiErr) && apiErr.Code < 500) {
			return nil, &errdefs.BackendGenerationError{Backend: Name, Model: p.Model, Err: err}
		}
		return nil, b.unavailable(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &errdefs.BackendGenerationError{
			Backend: Name,
			Model:   p.Model,
			Err:     errors.New("empty response"),
		}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	out := &generation.Completion{Text: text.String(), Model: p.Model}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.CompletionTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}

func (b *Backend) unavailable(err error) error {
	return &errdefs.BackendUnavailableError{Backend: Name, Endpoint: b.endpoint, Err: err}
}

// Close releases the gRPC connection.
func (b *Backend) Close() error {
	return b.client.Close()
}

var _ generation.Backend = (*Backend)(nil)
