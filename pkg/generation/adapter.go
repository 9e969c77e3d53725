package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/retrieval"
)

const (
	DefaultBreakerMaxFailures = 3
	DefaultBreakerTimeout     = 30 * time.Second
	defaultBreakerHalfOpen    = 2
)

// Retriever is the retrieval surface the adapter needs. *retrieval.Engine
// implements it.
type Retriever interface {
	Query(ctx context.Context, req retrieval.Request) *retrieval.Response
}

// AdapterConfig holds generation defaults. Zero values use the package
// defaults.
type AdapterConfig struct {
	// Model is the default model. Initialize may replace it with the first
	// model the backend lists when it is absent.
	Model string

	Temperature float64
	TopP        float64
	MaxTokens   int

	// Extra is merged into every prompt's backend options.
	Extra map[string]any

	GenerationTimeout time.Duration
	HealthTimeout     time.Duration

	// BreakerMaxFailures is the number of consecutive backend failures that
	// open the circuit; BreakerTimeout is how long it stays open.
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration

	// CountTokens estimates usage when the backend reports none. Defaults to
	// a tiktoken counter for Model.
	CountTokens TokenCounter
}

// Request is a retrieval-augmented generation request.
type Request struct {
	Query               string                  `json:"query"`
	PersonaID           string                  `json:"persona_id,omitempty"`
	Filter              retrieval.PersonaFilter `json:"filter,omitempty"`
	Limit               *int                    `json:"limit,omitempty"`
	SimilarityThreshold *float64                `json:"similarity_threshold,omitempty"`

	Model       string         `json:"model,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	TopP        *float64       `json:"top_p,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// Metadata carries timings and usage for one generation.
type Metadata struct {
	RetrievalTime   time.Duration `json:"retrieval_time"`
	GenerationTime  time.Duration `json:"generation_time"`
	TotalTokens     int           `json:"total_tokens"`
	DocumentCount   int           `json:"document_count"`
	ModelUsed       string        `json:"model_used"`
	BackendEndpoint string        `json:"backend_endpoint"`
}

// Response is the tagged outcome of Adapter.Query.
type Response struct {
	Query              string             `json:"query"`
	Model              string             `json:"model"`
	Response           string             `json:"response"`
	RetrievedDocuments []retrieval.Result `json:"retrieved_documents"`
	Context            string             `json:"context"`
	Metadata           Metadata           `json:"metadata"`
	Success            bool               `json:"success"`
	Error              string             `json:"error,omitempty"`

	// Err is the underlying error for callers that need errors.Is.
	Err error `json:"-"`
}

// Adapter runs retrieve, augment and generate against one Backend.
type Adapter struct {
	backend   Backend
	retriever Retriever
	config    AdapterConfig
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger

	mu      sync.RWMutex
	model   string
	initErr error
}

// NewAdapter creates an adapter. Call Initialize before serving queries to
// resolve the default model.
func NewAdapter(b Backend, r Retriever, c AdapterConfig, logger *slog.Logger) *Adapter {
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.TopP == 0 {
		c.TopP = DefaultTopP
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = DefaultGenerationTimeout
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = DefaultHealthTimeout
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = DefaultBreakerMaxFailures
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = DefaultBreakerTimeout
	}
	if c.CountTokens == nil {
		c.CountTokens = NewTiktokenCounter(c.Model)
	}

	maxFailures := c.BreakerMaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "generation-" + b.Name(),
		MaxRequests: defaultBreakerHalfOpen,
		Timeout:     c.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("generation circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Adapter{
		backend:   b,
		retriever: r,
		config:    c,
		breaker:   breaker,
		logger:    logger,
		model:     c.Model,
	}
}

// Backend returns the wrapped backend.
func (a *Adapter) Backend() Backend { return a.backend }

// Model returns the current default model.
func (a *Adapter) Model() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// InitError returns the backend error recorded by the last Initialize, if
// any.
func (a *Adapter) InitError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.initErr
}

// Initialize health-checks the backend and resolves the default model. An
// unreachable backend is logged and recorded but never returned: the
// adapter stays usable and later queries surface the error.
func (a *Adapter) Initialize(ctx context.Context) error {
	if err := a.CheckHealth(ctx); err != nil {
		a.recordInit(err)
		a.logger.Warn("generation backend unavailable at startup",
			"backend", a.backend.Name(),
			"endpoint", a.backend.Endpoint(),
			"error", err,
		)
		return nil
	}

	models, err := a.GetAvailableModels(ctx)
	if err != nil {
		a.recordInit(err)
		a.logger.Warn("listing generation models failed",
			"backend", a.backend.Name(),
			"error", err,
		)
		return nil
	}
	a.recordInit(nil)

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(models) > 0 && !slices.Contains(models, a.model) {
		if a.model != "" {
			a.logger.Warn("configured model not available, using first listed model",
				"backend", a.backend.Name(),
				"configured", a.model,
				"substitute", models[0],
			)
		}
		a.model = models[0]
	}

	a.logger.Info("generation backend initialized",
		"backend", a.backend.Name(),
		"endpoint", a.backend.Endpoint(),
		"model", a.model,
		"available_models", len(models),
	)
	return nil
}

func (a *Adapter) recordInit(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initErr = err
}

// CheckHealth checks the backend within the health timeout.
func (a *Adapter) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.config.HealthTimeout)
	defer cancel()
	return a.backend.CheckHealth(ctx)
}

// GetAvailableModels lists backend models within the health timeout.
func (a *Adapter) GetAvailableModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.HealthTimeout)
	defer cancel()
	return a.backend.ListModels(ctx)
}

// Query retrieves personas for the request, builds the augmented prompt and
// generates an answer. Failures are reported on the response.
func (a *Adapter) Query(ctx context.Context, req Request) *Response {
	model := req.Model
	if model == "" {
		model = a.Model()
	}
	resp := &Response{
		Query:              req.Query,
		Model:              model,
		RetrievedDocuments: []retrieval.Result{},
		Metadata: Metadata{
			ModelUsed:       model,
			BackendEndpoint: a.backend.Endpoint(),
		},
	}

	if strings.TrimSpace(req.Query) == "" {
		return a.fail(resp, errdefs.ErrInvalidQuery)
	}

	retrievalStart := time.Now()
	rr := a.retriever.Query(ctx, retrieval.Request{
		Query:               req.Query,
		PersonaID:           req.PersonaID,
		Filter:              req.Filter,
		Limit:               req.Limit,
		SimilarityThreshold: req.SimilarityThreshold,
	})
	resp.Metadata.RetrievalTime = time.Since(retrievalStart)
	if !rr.Success {
		err := rr.Err
		if err == nil {
			err = errors.New(rr.Error)
		}
		return a.fail(resp, fmt.Errorf("retrieving context: %w", err))
	}

	resp.RetrievedDocuments = rr.Results
	resp.Metadata.DocumentCount = len(rr.Results)
	resp.Context = BuildContextBlock(rr.Results)

	prompt := a.prompt(req, model, BuildPrompt(resp.Context, req.Query))

	genStart := time.Now()
	comp, err := a.generate(ctx, prompt)
	resp.Metadata.GenerationTime = time.Since(genStart)
	if err != nil {
		return a.fail(resp, err)
	}

	if comp.Model != "" {
		resp.Model = comp.Model
		resp.Metadata.ModelUsed = comp.Model
	}
	resp.Response = comp.Text
	resp.Metadata.TotalTokens = a.totalTokens(prompt.Text, comp)
	resp.Success = true

	a.logger.Debug("generation completed",
		"backend", a.backend.Name(),
		"model", resp.Model,
		"documents", resp.Metadata.DocumentCount,
		"tokens", resp.Metadata.TotalTokens,
		"retrieval_time", resp.Metadata.RetrievalTime,
		"generation_time", resp.Metadata.GenerationTime,
	)
	return resp
}

func (a *Adapter) prompt(req Request, model, text string) Prompt {
	p := Prompt{
		Model:       model,
		Text:        text,
		Temperature: a.config.Temperature,
		TopP:        a.config.TopP,
		MaxTokens:   a.config.MaxTokens,
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		p.TopP = *req.TopP
	}
	if req.MaxTokens > 0 {
		p.MaxTokens = req.MaxTokens
	}

	if len(a.config.Extra) > 0 || len(req.Options) > 0 {
		p.Extra = make(map[string]any, len(a.config.Extra)+len(req.Options))
		for k, v := range a.config.Extra {
			p.Extra[k] = v
		}
		for k, v := range req.Options {
			p.Extra[k] = v
		}
	}
	return p
}

func (a *Adapter) generate(ctx context.Context, p Prompt) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.GenerationTimeout)
	defer cancel()

	out, err := a.breaker.Execute(func() (interface{}, error) {
		return a.backend.Generate(ctx, p)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &errdefs.BackendUnavailableError{
			Backend:  a.backend.Name(),
			Endpoint: a.backend.Endpoint(),
			Err:      err,
		}
	}
	if err != nil {
		return nil, err
	}
	comp, _ := out.(*Completion)
	if comp == nil {
		return nil, &errdefs.BackendGenerationError{
			Backend: a.backend.Name(),
			Model:   p.Model,
			Err:     errors.New("empty completion"),
		}
	}
	return comp, nil
}

func (a *Adapter) totalTokens(prompt string, c *Completion) int {
	if c.TotalTokens > 0 {
		return c.TotalTokens
	}
	if n := c.PromptTokens + c.CompletionTokens; n > 0 {
		return n
	}
	return a.config.CountTokens(prompt) + a.config.CountTokens(c.Text)
}

func (a *Adapter) fail(resp *Response, err error) *Response {
	resp.Success = false
	resp.Error = err.Error()
	resp.Err = err

	a.logger.Warn("generation query failed",
		"backend", a.backend.Name(),
		"query", resp.Query,
		"error", err,
	)
	return resp
}

// Close releases the backend.
func (a *Adapter) Close() error {
	return a.backend.Close()
}
