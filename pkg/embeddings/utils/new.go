// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/davidhonghikim/griot-sub000/pkg/embeddings"
	"github.com/davidhonghikim/griot-sub000/pkg/embeddings/cache"
	"github.com/davidhonghikim/griot-sub000/pkg/embeddings/ollama"
	"github.com/davidhonghikim/griot-sub000/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   uint

	// CacheTarget enables the redis cache when set (host:port).
	CacheTarget string
	CacheTTL    time.Duration

	Logger *slog.Logger
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)

	switch o.ProviderType {
	case "ollama":
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		e, err = openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:     o.APIKey,
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: int(o.Dimensions),
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if o.CacheTarget == "" {
		return e, nil
	}

	cached, err := cache.New(e, cache.Config{
		Addr: o.CacheTarget,
		TTL:  o.CacheTTL,
	}, o.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return cached, nil
}
