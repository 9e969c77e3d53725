// Package anthropic is a hosted inference generation backend using the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/generation"
)

const (
	Name = "anthropic"

	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-haiku-latest"
)

// Config configures the Anthropic backend.
type Config struct {
	APIKey  string
	BaseURL string

	HTTPClient *http.Client
}

// Backend sends single-turn messages to Anthropic.
type Backend struct {
	client   anthropicsdk.Client
	endpoint string
}

// New creates an Anthropic backend.
func New(c Config) (*Backend, error) {
	if c.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(c.APIKey),
		option.WithBaseURL(c.BaseURL),
		option.WithMaxRetries(0),
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}

	return &Backend{
		client:   anthropicsdk.NewClient(opts...),
		endpoint: c.BaseURL,
	}, nil
}

func (b *Backend) Name() string     { return Name }
func (b *Backend) Endpoint() string { return b.endpoint }

// CheckHealth lists a single model to verify reachability and credentials.
func (b *Backend) CheckHealth(ctx context.Context) error {
	_, err := b.client.Models.List(ctx, anthropicsdk.ModelListParams{Limit: anthropicsdk.Int(1)})
	if err != nil {
		return b.unavailable(err)
	}
	return nil
}

// ListModels returns the first page of model ids.
func (b *Backend) ListModels(ctx context.Context) ([]string, error) {
	page, err := b.client.Models.List(ctx, anthropicsdk.ModelListParams{})
	if err != nil {
		return nil, b.unavailable(err)
	}
	models := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// Generate sends the prompt as one user message.
func (b *Backend) Generate(ctx context.Context, p generation.Prompt) (*generation.Completion, error) {
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = generation.DefaultMaxTokens
	}

	msg, err := b.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(p.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(p.Text)),
		},
		Temperature: anthropicsdk.Float(p.Temperature),
	})
	if err != nil {
		var apiErr *anthropicsdk.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return nil, &errdefs.BackendGenerationError{Backend: Name, Model: p.Model, Err: err}
		}
		return nil, b.unavailable(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}

	in := int(msg.Usage.InputTokens)
	out := int(msg.Usage.OutputTokens)
	return &generation.Completion{
		Text:             text.String(),
		Model:            string(msg.Model),
		PromptTokens:     in,
		CompletionTokens: out,
		TotalTokens:      in + out,
	}, nil
}

func (b *Backend) unavailable(err error) error {
	return &errdefs.BackendUnavailableError{Backend: Name, Endpoint: b.endpoint, Err: err}
}

func (b *Backend) Close() error { return nil }

var _ generation.Backend = (*Backend)(nil)
