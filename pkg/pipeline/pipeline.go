// Package pipeline wires the embedding provider, vector store, persona
// store, vectorization service, retrieval engine and generation adapter
// into one Orchestrator built from a config.Config.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidhonghikim/griot-sub000/pkg/config"
	"github.com/davidhonghikim/griot-sub000/pkg/embeddings"
	"github.com/davidhonghikim/griot-sub000/pkg/embeddings/cache"
	embeddingutils "github.com/davidhonghikim/griot-sub000/pkg/embeddings/utils"
	"github.com/davidhonghikim/griot-sub000/pkg/eventstream"
	"github.com/davidhonghikim/griot-sub000/pkg/eventstream/kafka"
	"github.com/davidhonghikim/griot-sub000/pkg/eventstream/nop"
	"github.com/davidhonghikim/griot-sub000/pkg/generation"
	generationutils "github.com/davidhonghikim/griot-sub000/pkg/generation/utils"
	"github.com/davidhonghikim/griot-sub000/pkg/persona"
	"github.com/davidhonghikim/griot-sub000/pkg/persona/filestore"
	"github.com/davidhonghikim/griot-sub000/pkg/persona/inmemory"
	"github.com/davidhonghikim/griot-sub000/pkg/retrieval"
	"github.com/davidhonghikim/griot-sub000/pkg/vector"
	vectorutils "github.com/davidhonghikim/griot-sub000/pkg/vector/utils"
	"github.com/davidhonghikim/griot-sub000/pkg/vectorize"
)

// Options configures New. Config is required; every other component is
// built from it unless set explicitly.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Registry receives the pipeline metrics. A private registry is created
	// when nil.
	Registry *prometheus.Registry

	Embedder    embeddings.Embedder
	VectorStore *vector.Store
	Personas    persona.Store
	Backend     generation.Backend
	Publisher   eventstream.Publisher

	// CountTokens overrides the tiktoken counter.
	CountTokens generation.TokenCounter
}

// Orchestrator owns every pipeline component.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger

	registry  *prometheus.Registry
	metrics   *metrics
	embedder  *embeddings.Provider
	store     *vector.Store
	personas  persona.Store
	publisher eventstream.Publisher
	service   *vectorize.Service
	pool      *vectorize.Pool
	engine    *retrieval.Engine
	adapter   *generation.Adapter
	watcher   *filestore.Watcher
}

// New builds an Orchestrator. Nothing is dialed until Start or the first
// operation.
func New(ctx context.Context, o Options) (*Orchestrator, error) {
	if o.Config == nil {
		return nil, errors.New("pipeline config is required")
	}
	cfg := o.Config
	if cfg.Personas.Watch && cfg.Personas.Provider != "files" {
		return nil, fmt.Errorf("watching personas requires the files provider, got %q", cfg.Personas.Provider)
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Orchestrator{config: cfg, logger: logger, registry: o.Registry}
	if p.registry == nil {
		p.registry = prometheus.NewRegistry()
	}
	p.metrics = newMetrics(p.registry)

	var err error
	e := o.Embedder
	if e == nil {
		e, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: cfg.Embedding.Provider,
			TargetURL:    cfg.Embedding.Target,
			Model:        cfg.Embedding.Model,
			APIKey:       cfg.Embedding.APIKey,
			Dimensions:   cfg.Embedding.Dimensions,
			CacheTarget:  cfg.Embedding.CacheTarget,
			CacheTTL:     config.ParseDuration(cfg.Embedding.CacheTTL, cache.DefaultTTL),
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
	}
	p.embedder = embeddings.NewProvider(e, embeddings.ProviderConfig{
		Timeout:           config.ParseDuration(cfg.Embedding.Timeout, embeddings.DefaultTimeout),
		BatchSize:         cfg.Embedding.BatchSize,
		InterBatchDelay:   config.ParseDuration(cfg.Embedding.BatchDelay, 0),
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	}, logger)

	p.store = o.VectorStore
	if p.store == nil {
		p.store, err = vectorutils.NewVectorStore(&vectorutils.NewVectorStoreOpts{
			ProviderType: cfg.VectorStore.Provider,
			TargetURL:    cfg.VectorStore.Target,
			Collection:   cfg.VectorStore.Collection,
			APIKey:       cfg.VectorStore.APIKey,
			Dimensions:   cfg.Embedding.Dimensions,
			Timeout:      config.ParseDuration(cfg.VectorStore.Timeout, vector.DefaultTimeout),
			Logger:       logger,
		})
		if err != nil {
			p.closeQuietly()
			return nil, fmt.Errorf("creating vector store: %w", err)
		}
	}

	p.personas = o.Personas
	if p.personas == nil {
		p.personas, err = newPersonaStore(cfg.Personas, logger)
		if err != nil {
			p.closeQuietly()
			return nil, err
		}
	}

	p.publisher = o.Publisher
	if p.publisher == nil {
		p.publisher, err = newPublisher(cfg.Events, logger)
		if err != nil {
			p.closeQuietly()
			return nil, err
		}
	}

	p.service = vectorize.NewService(p.personas, p.embedder, p.store, p.publisher, vectorize.Config{
		EntityType:     cfg.Vectorize.EntityType,
		InterItemDelay: config.ParseDuration(cfg.Vectorize.ItemDelay, vectorize.DefaultInterItemDelay),
		RecoveryCap:    cfg.Vectorize.RecoveryCap,
	}, logger)

	p.engine = retrieval.NewEngine(p.service, p.personas, retrieval.Config{
		DefaultLimit:     cfg.Retrieval.Limit,
		DefaultThreshold: cfg.Retrieval.Threshold,
		SnippetMaxLength: cfg.Retrieval.SnippetLength,
		MaxSimilarity:    cfg.Retrieval.MaxSimilarity,
	}, logger)

	backend := o.Backend
	if backend == nil {
		backend, err = generationutils.NewBackend(ctx, &generationutils.NewBackendOpts{
			BackendType:       cfg.Generation.Backend,
			TargetURL:         cfg.Generation.Target,
			APIKey:            cfg.Generation.APIKey,
			ContextWindow:     cfg.Generation.ContextWindow,
			Threads:           cfg.Generation.Threads,
			GPUMemoryFraction: cfg.Generation.GPUMemoryFraction,
			Timeout:           config.ParseDuration(cfg.Generation.Timeout, generation.DefaultGenerationTimeout),
			Logger:            logger,
		})
		if err != nil {
			p.closeQuietly()
			return nil, fmt.Errorf("creating generation backend: %w", err)
		}
	}
	p.adapter = generation.NewAdapter(backend, p.engine, generation.AdapterConfig{
		Model:             cfg.Generation.Model,
		Temperature:       cfg.Generation.Temperature,
		TopP:              cfg.Generation.TopP,
		MaxTokens:         cfg.Generation.MaxTokens,
		GenerationTimeout: config.ParseDuration(cfg.Generation.Timeout, generation.DefaultGenerationTimeout),
		HealthTimeout:     config.ParseDuration(cfg.Generation.HealthTimeout, generation.DefaultHealthTimeout),
		CountTokens:       o.CountTokens,
	}, logger)

	p.pool, err = vectorize.NewPool(&vectorize.PoolConfig{
		Service:    p.service,
		NumWorkers: cfg.Vectorize.Workers,
		QueueSize:  cfg.Vectorize.QueueSize,
		Logger:     logger,
	})
	if err != nil {
		p.closeQuietly()
		return nil, fmt.Errorf("creating revectorize pool: %w", err)
	}

	return p, nil
}

func newPersonaStore(c config.PersonasConfig, logger *slog.Logger) (persona.Store, error) {
	switch c.Provider {
	case "", "memory":
		return inmemory.NewStore(), nil
	case "files":
		s, err := filestore.NewStore(c.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("creating persona store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported persona provider: %s", c.Provider)
	}
}

func newPublisher(c config.EventsConfig, logger *slog.Logger) (eventstream.Publisher, error) {
	switch c.Provider {
	case "", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: config.SplitList(c.Brokers),
			Topic:   c.Topic,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", c.Provider)
	}
}

// Start rebuilds the vectorization index from the store, starts the
// persona file watcher when configured and initializes the generation
// backend. An unreachable backend is not an error; an unreachable vector
// store is.
func (p *Orchestrator) Start(ctx context.Context) error {
	if err := p.service.Start(ctx); err != nil {
		return fmt.Errorf("rebuilding persona index: %w", err)
	}

	if p.config.Personas.Watch && p.watcher == nil {
		w, err := filestore.NewWatcher(p.config.Personas.Path, func(id string) {
			p.Refresh(id)
		}, p.logger)
		if err != nil {
			return err
		}
		p.watcher = w
		p.logger.Info("watching persona files", "dir", p.config.Personas.Path)
	}

	return p.adapter.Initialize(ctx)
}

// Query runs retrieval-augmented generation and records its timings.
func (p *Orchestrator) Query(ctx context.Context, req generation.Request) *generation.Response {
	resp := p.adapter.Query(ctx, req)

	if resp.Metadata.RetrievalTime > 0 {
		p.metrics.retrievalDuration.Observe(resp.Metadata.RetrievalTime.Seconds())
	}
	if resp.Metadata.GenerationTime > 0 {
		p.metrics.generationDuration.Observe(resp.Metadata.GenerationTime.Seconds())
	}
	p.metrics.requests.WithLabelValues(outcome(resp.Err)).Inc()

	return resp
}

// Search runs a retrieval query without generation.
func (p *Orchestrator) Search(ctx context.Context, req retrieval.Request) *retrieval.Response {
	return p.engine.Query(ctx, req)
}

func (p *Orchestrator) SelectBestPersona(ctx context.Context, query string, opts retrieval.SelectOptions) *retrieval.SelectResponse {
	return p.engine.SelectBestPersona(ctx, query, opts)
}

func (p *Orchestrator) GetPersonaEnsemble(ctx context.Context, query string, size int, opts retrieval.EnsembleOptions) *retrieval.EnsembleResponse {
	return p.engine.GetPersonaEnsemble(ctx, query, size, opts)
}

func (p *Orchestrator) GetPersonaRecommendations(ctx context.Context, query, userID string, opts retrieval.RecommendOptions) *retrieval.RecommendationResponse {
	return p.engine.GetPersonaRecommendations(ctx, query, userID, opts)
}

func (p *Orchestrator) UpdateEntityVectors(ctx context.Context, id string) vectorize.Result {
	return p.engine.UpdateEntityVectors(ctx, id)
}

func (p *Orchestrator) GetStats(ctx context.Context) *retrieval.Stats {
	return p.engine.GetStats(ctx)
}

// VectorizeAll vectorizes every persona in the store.
func (p *Orchestrator) VectorizeAll(ctx context.Context) ([]vectorize.Result, error) {
	return p.service.VectorizeAll(ctx)
}

// Refresh queues an asynchronous revectorization. Returns false when the
// queue is full.
func (p *Orchestrator) Refresh(id string) bool {
	return p.pool.Enqueue(vectorize.Job{EntityID: id})
}

func (p *Orchestrator) CheckHealth(ctx context.Context) error {
	return p.adapter.CheckHealth(ctx)
}

func (p *Orchestrator) GetAvailableModels(ctx context.Context) ([]string, error) {
	return p.adapter.GetAvailableModels(ctx)
}

// Backend returns the name and endpoint of the generation backend.
func (p *Orchestrator) Backend() (name, endpoint string) {
	b := p.adapter.Backend()
	return b.Name(), b.Endpoint()
}

// Model returns the resolved default generation model.
func (p *Orchestrator) Model() string {
	return p.adapter.Model()
}

// Registry returns the registry holding the pipeline metrics.
func (p *Orchestrator) Registry() *prometheus.Registry {
	return p.registry
}

// Close stops the persona watcher, drains the refresh pool and releases
// every component.
func (p *Orchestrator) Close() error {
	var errs []error
	if p.watcher != nil {
		if err := p.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing persona watcher: %w", err))
		}
	}
	if p.pool != nil {
		p.pool.Close()
	}

	if p.adapter != nil {
		if err := p.adapter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing generation backend: %w", err))
		}
	}
	if err := p.closeComponents(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Orchestrator) closeComponents() error {
	var errs []error
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing vector store: %w", err))
		}
	}
	if p.embedder != nil {
		if err := p.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedder: %w", err))
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing event publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (p *Orchestrator) closeQuietly() {
	if err := p.closeComponents(); err != nil {
		p.logger.Warn("releasing partially built pipeline", "error", err)
	}
}
