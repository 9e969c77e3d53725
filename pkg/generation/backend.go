// Package generation turns retrieved persona context into model completions.
// A Backend translates one inference server's API; the Adapter owns the
// shared retrieve, augment and generate flow on top of any Backend.
package generation

import (
	"context"
	"time"
)

const (
	DefaultGenerationTimeout = 30 * time.Second
	DefaultHealthTimeout     = 5 * time.Second

	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
	DefaultMaxTokens   = 512
)

// Prompt is a single non-streaming completion request.
type Prompt struct {
	Model       string
	Text        string
	Temperature float64
	TopP        float64
	MaxTokens   int

	// Extra carries backend specific options, such as num_ctx for ollama.
	Extra map[string]any
}

// Completion is the normalized backend output. Token counts are zero when
// the backend does not report usage.
type Completion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Backend is a generation server. CheckHealth and ListModels return
// *errdefs.BackendUnavailableError; Generate returns
// *errdefs.BackendGenerationError when the server answered but failed.
type Backend interface {
	// Name is the backend kind, such as "ollama".
	Name() string

	// Endpoint is the base URL requests are sent to.
	Endpoint() string

	CheckHealth(ctx context.Context) error
	ListModels(ctx context.Context) ([]string, error)
	Generate(ctx context.Context, p Prompt) (*Completion, error)

	Close() error
}
