package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
)

const (
	// DefaultBatchSize is the chunk size for EmbedBatch, the ceiling most
	// hosted embedding APIs impose.
	DefaultBatchSize = 100

	// DefaultTimeout bounds each outbound embedding call.
	DefaultTimeout = 30 * time.Second
)

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	// Name identifies the backend in errors and logs. Derived from the
	// embedder when it implements Named.
	Name string

	// Timeout bounds every outbound call. Defaults to DefaultTimeout.
	Timeout time.Duration

	// BatchSize and InterBatchDelay are the defaults for EmbedBatch.
	BatchSize       int
	InterBatchDelay time.Duration

	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64
}

// BatchOptions overrides the provider defaults for a single EmbedBatch call.
type BatchOptions struct {
	BatchSize       int
	InterBatchDelay time.Duration
}

// Provider wraps an Embedder with input checks, output validation, typed
// errors, timeouts, throttling and sequential batching.
type Provider struct {
	embedder Embedder
	config   ProviderConfig
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewProvider wraps e.
func NewProvider(e Embedder, c ProviderConfig, logger *slog.Logger) *Provider {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Name == "" {
		if n, ok := e.(Named); ok {
			c.Name = n.ProviderName()
		} else {
			c.Name = "embedder"
		}
	}

	p := &Provider{
		embedder: e,
		config:   c,
		logger:   logger,
	}
	if c.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1)
	}
	return p
}

// Name returns the backend name.
func (p *Provider) Name() string {
	return p.config.Name
}

// Embed converts a single non-empty text into a validated vector.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text must not be empty", errdefs.ErrInvalidInput)
	}

	vecs, err := p.call(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in sequential chunks, sleeping InterBatchDelay
// between chunks. Any chunk failure fails the whole batch; nothing is
// cached. The i-th result equals Embed(texts[i]).
func (p *Provider) EmbedBatch(ctx context.Context, texts []string, opts BatchOptions) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: text at index %d must not be empty", errdefs.ErrInvalidInput, i)
		}
	}

	size := opts.BatchSize
	if size <= 0 {
		size = p.config.BatchSize
	}
	delay := opts.InterBatchDelay
	if delay <= 0 {
		delay = p.config.InterBatchDelay
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		if start > 0 && delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return nil, &errdefs.EmbeddingProviderError{Provider: p.config.Name, Err: err}
			}
		}

		end := min(start+size, len(texts))
		vecs, err := p.call(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		out = append(out, vecs...)

		p.logger.Debug("embedded batch",
			"provider", p.config.Name,
			"start", start,
			"end", end,
		)
	}

	return out, nil
}

// Close releases the wrapped embedder.
func (p *Provider) Close() error {
	return p.embedder.Close()
}

// call performs one outbound round for texts, using EmbedMany when the
// backend supports it.
func (p *Provider) call(ctx context.Context, texts []string) ([][]float32, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, &errdefs.EmbeddingProviderError{Provider: p.config.Name, Err: err}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	var (
		vecs [][]float32
		err  error
	)
	if be, ok := p.embedder.(BatchEmbedder); ok && len(texts) > 1 {
		vecs, err = be.EmbedMany(callCtx, texts)
	} else {
		vecs = make([][]float32, 0, len(texts))
		for _, t := range texts {
			var v []float32
			v, err = p.embedder.Embed(callCtx, t)
			if err != nil {
				break
			}
			vecs = append(vecs, v)
		}
	}
	if err != nil {
		return nil, &errdefs.EmbeddingProviderError{Provider: p.config.Name, Err: err}
	}

	if len(vecs) != len(texts) {
		return nil, &errdefs.EmbeddingProviderError{
			Provider: p.config.Name,
			Err:      fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs)),
		}
	}

	for i, v := range vecs {
		if err := ValidateEmbedding(v); err != nil {
			return nil, fmt.Errorf("validating embedding %d from %s: %w", i, p.config.Name, err)
		}
	}

	return vecs, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
