// Package generationutils is the generation backend utility package
package generationutils

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/davidhonghikim/griot-sub000/pkg/generation"
	"github.com/davidhonghikim/griot-sub000/pkg/generation/anthropic"
	"github.com/davidhonghikim/griot-sub000/pkg/generation/gemini"
	"github.com/davidhonghikim/griot-sub000/pkg/generation/llamacpp"
	"github.com/davidhonghikim/griot-sub000/pkg/generation/ollama"
	"github.com/davidhonghikim/griot-sub000/pkg/generation/vllm"
)

const (
	BackendOllama    = ollama.Name
	BackendVLLM      = vllm.Name
	BackendLlamaCPP  = llamacpp.Name
	BackendAnthropic = anthropic.Name
	BackendGemini    = gemini.Name
)

// SupportedBackends lists every backend NewBackend accepts.
var SupportedBackends = []string{
	BackendOllama,
	BackendVLLM,
	BackendLlamaCPP,
	BackendAnthropic,
	BackendGemini,
}

type NewBackendOpts struct {
	BackendType string
	TargetURL   string
	APIKey      string

	ContextWindow     int
	Threads           int
	GPUMemoryFraction float64

	// Timeout bounds each HTTP request. Zero uses the generation default.
	Timeout time.Duration

	Logger *slog.Logger
}

func NewBackend(ctx context.Context, o *NewBackendOpts) (generation.Backend, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = generation.DefaultGenerationTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	switch o.BackendType {
	case BackendOllama:
		b, err := ollama.New(ollama.Config{
			BaseURL:       o.TargetURL,
			ContextWindow: o.ContextWindow,
			Threads:       o.Threads,
			HTTPClient:    httpClient,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendVLLM:
		return vllm.New(vllm.Config{
			BaseURL:           o.TargetURL,
			APIKey:            o.APIKey,
			GPUMemoryFraction: o.GPUMemoryFraction,
			HTTPClient:        httpClient,
		}, o.Logger), nil
	case BackendLlamaCPP:
		return llamacpp.New(llamacpp.Config{
			BaseURL:    o.TargetURL,
			APIKey:     o.APIKey,
			Threads:    o.Threads,
			HTTPClient: httpClient,
		}), nil
	case BackendAnthropic:
		b, err := anthropic.New(anthropic.Config{
			APIKey:     o.APIKey,
			BaseURL:    o.TargetURL,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendGemini:
		b, err := gemini.New(ctx, gemini.Config{
			APIKey:   o.APIKey,
			Endpoint: o.TargetURL,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported generation backend: %s", o.BackendType)
	}
}
