package config

const (
	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultPersonasProvider = "files"
	defaultPersonasPath     = "personas"

	defaultVectorProvider   = "sqlite"
	defaultVectorCollection = "griot_personas"
	defaultVectorTimeout    = "10s"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingBatchSize  = 100
	defaultEmbeddingBatchDelay = "100ms"
	defaultEmbeddingTimeout    = "30s"
	defaultEmbeddingCacheTTL   = "24h"

	defaultRetrievalLimit         = 10
	defaultRetrievalThreshold     = 0.5
	defaultRetrievalSnippetLength = 200
	defaultRetrievalMaxSimilarity = 0.8

	defaultVectorizeEntityType  = "persona"
	defaultVectorizeItemDelay   = "100ms"
	defaultVectorizeRecoveryCap = 1000
	defaultVectorizeWorkers     = 3
	defaultVectorizeQueueSize   = 256

	defaultGenerationBackend       = "ollama"
	defaultGenerationTarget        = "http://localhost:11434"
	defaultGenerationModel         = "llama3.2"
	defaultGenerationTemperature   = 0.7
	defaultGenerationTopP          = 0.9
	defaultGenerationMaxTokens     = 512
	defaultGenerationTimeout       = "30s"
	defaultGenerationHealthTimeout = "5s"

	defaultEventsProvider = "none"
	defaultEventsTopic    = "griot.persona.vectorized"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Personas: PersonasConfig{
			Provider: defaultPersonasProvider,
			Path:     defaultPersonasPath,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
			Timeout:    defaultVectorTimeout,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			BatchSize:  defaultEmbeddingBatchSize,
			BatchDelay: defaultEmbeddingBatchDelay,
			Timeout:    defaultEmbeddingTimeout,
			CacheTTL:   defaultEmbeddingCacheTTL,
		},
		Retrieval: RetrievalConfig{
			Limit:         defaultRetrievalLimit,
			Threshold:     defaultRetrievalThreshold,
			SnippetLength: defaultRetrievalSnippetLength,
			MaxSimilarity: defaultRetrievalMaxSimilarity,
		},
		Vectorize: VectorizeConfig{
			EntityType:  defaultVectorizeEntityType,
			ItemDelay:   defaultVectorizeItemDelay,
			RecoveryCap: defaultVectorizeRecoveryCap,
			Workers:     defaultVectorizeWorkers,
			QueueSize:   defaultVectorizeQueueSize,
		},
		Generation: GenerationConfig{
			Backend:       defaultGenerationBackend,
			Target:        defaultGenerationTarget,
			Model:         defaultGenerationModel,
			Temperature:   defaultGenerationTemperature,
			TopP:          defaultGenerationTopP,
			MaxTokens:     defaultGenerationMaxTokens,
			Timeout:       defaultGenerationTimeout,
			HealthTimeout: defaultGenerationHealthTimeout,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
