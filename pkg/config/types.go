package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent griot configuration stored as config.toml
// in the .griot/ directory. The TOML layout uses sections for logical grouping.
// Durations are stored as Go duration strings ("10s", "250ms").
type Config struct {
	Version     int               `toml:"version"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Personas    PersonasConfig    `toml:"personas"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Vectorize   VectorizeConfig   `toml:"vectorize"`
	Generation  GenerationConfig  `toml:"generation"`
	Events      EventsConfig      `toml:"events"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running API
// server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// PersonasConfig selects the persona entity store.
type PersonasConfig struct {
	// Provider is "files" (a directory of TOML/JSON persona files) or
	// "memory".
	Provider string `toml:"provider,omitempty"`
	Path     string `toml:"path,omitempty"`

	// Watch queues a revectorization whenever a file under Path changes.
	// Only the "files" provider can be watched.
	Watch bool `toml:"watch,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	Timeout    string `toml:"timeout,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider          string  `toml:"provider,omitempty"`
	Target            string  `toml:"target,omitempty"`
	Model             string  `toml:"model,omitempty"`
	Dimensions        uint    `toml:"dimensions,omitempty"`
	APIKey            string  `toml:"api_key,omitempty"`
	BatchSize         int     `toml:"batch_size,omitempty"`
	BatchDelay        string  `toml:"batch_delay,omitempty"`
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`
	Timeout           string  `toml:"timeout,omitempty"`

	// CacheTarget enables the redis embedding cache (host:port).
	CacheTarget string `toml:"cache_target,omitempty"`
	CacheTTL    string `toml:"cache_ttl,omitempty"`
}

// RetrievalConfig holds retrieval engine defaults.
type RetrievalConfig struct {
	Limit         int     `toml:"limit,omitempty"`
	Threshold     float64 `toml:"threshold,omitempty"`
	SnippetLength int     `toml:"snippet_length,omitempty"`
	MaxSimilarity float64 `toml:"max_similarity,omitempty"`
}

// VectorizeConfig holds vectorization service settings.
type VectorizeConfig struct {
	EntityType  string `toml:"entity_type,omitempty"`
	ItemDelay   string `toml:"item_delay,omitempty"`
	RecoveryCap int    `toml:"recovery_cap,omitempty"`
	Workers     uint   `toml:"workers,omitempty"`
	QueueSize   uint   `toml:"queue_size,omitempty"`
}

// GenerationConfig selects and tunes the generation backend.
type GenerationConfig struct {
	Backend           string  `toml:"backend,omitempty"`
	Target            string  `toml:"target,omitempty"`
	Model             string  `toml:"model,omitempty"`
	APIKey            string  `toml:"api_key,omitempty"`
	Temperature       float64 `toml:"temperature,omitempty"`
	TopP              float64 `toml:"top_p,omitempty"`
	MaxTokens         int     `toml:"max_tokens,omitempty"`
	ContextWindow     int     `toml:"context_window,omitempty"`
	Threads           int     `toml:"threads,omitempty"`
	GPUMemoryFraction float64 `toml:"gpu_memory_fraction,omitempty"`
	Timeout           string  `toml:"timeout,omitempty"`
	HealthTimeout     string  `toml:"health_timeout,omitempty"`
}

// EventsConfig selects the vectorization event publisher.
type EventsConfig struct {
	// Provider is "none" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of host:port.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if !*field(c) {
				return ""
			}
			return "true"
		},
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"personas.provider": stringKey(func(c *Config) *string { return &c.Personas.Provider }),
	"personas.path":     stringKey(func(c *Config) *string { return &c.Personas.Path }),
	"personas.watch":    boolKey("personas.watch", func(c *Config) *bool { return &c.Personas.Watch }),

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),
	"vector_store.api_key":    stringKey(func(c *Config) *string { return &c.VectorStore.APIKey }),
	"vector_store.timeout":    durationKey("vector_store.timeout", func(c *Config) *string { return &c.VectorStore.Timeout }),

	"embedding.provider":            stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":              stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":               stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions":          uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.api_key":             stringKey(func(c *Config) *string { return &c.Embedding.APIKey }),
	"embedding.batch_size":          intKey("embedding.batch_size", func(c *Config) *int { return &c.Embedding.BatchSize }),
	"embedding.batch_delay":         durationKey("embedding.batch_delay", func(c *Config) *string { return &c.Embedding.BatchDelay }),
	"embedding.requests_per_second": floatKey("embedding.requests_per_second", func(c *Config) *float64 { return &c.Embedding.RequestsPerSecond }),
	"embedding.timeout":             durationKey("embedding.timeout", func(c *Config) *string { return &c.Embedding.Timeout }),
	"embedding.cache_target":        stringKey(func(c *Config) *string { return &c.Embedding.CacheTarget }),
	"embedding.cache_ttl":           durationKey("embedding.cache_ttl", func(c *Config) *string { return &c.Embedding.CacheTTL }),

	"retrieval.limit":          intKey("retrieval.limit", func(c *Config) *int { return &c.Retrieval.Limit }),
	"retrieval.threshold":      floatKey("retrieval.threshold", func(c *Config) *float64 { return &c.Retrieval.Threshold }),
	"retrieval.snippet_length": intKey("retrieval.snippet_length", func(c *Config) *int { return &c.Retrieval.SnippetLength }),
	"retrieval.max_similarity": floatKey("retrieval.max_similarity", func(c *Config) *float64 { return &c.Retrieval.MaxSimilarity }),

	"vectorize.entity_type":  stringKey(func(c *Config) *string { return &c.Vectorize.EntityType }),
	"vectorize.item_delay":   durationKey("vectorize.item_delay", func(c *Config) *string { return &c.Vectorize.ItemDelay }),
	"vectorize.recovery_cap": intKey("vectorize.recovery_cap", func(c *Config) *int { return &c.Vectorize.RecoveryCap }),
	"vectorize.workers":      uintKey("vectorize.workers", func(c *Config) *uint { return &c.Vectorize.Workers }),
	"vectorize.queue_size":   uintKey("vectorize.queue_size", func(c *Config) *uint { return &c.Vectorize.QueueSize }),

	"generation.backend":             stringKey(func(c *Config) *string { return &c.Generation.Backend }),
	"generation.target":              stringKey(func(c *Config) *string { return &c.Generation.Target }),
	"generation.model":               stringKey(func(c *Config) *string { return &c.Generation.Model }),
	"generation.api_key":             stringKey(func(c *Config) *string { return &c.Generation.APIKey }),
	"generation.temperature":         floatKey("generation.temperature", func(c *Config) *float64 { return &c.Generation.Temperature }),
	"generation.top_p":               floatKey("generation.top_p", func(c *Config) *float64 { return &c.Generation.TopP }),
	"generation.max_tokens":          intKey("generation.max_tokens", func(c *Config) *int { return &c.Generation.MaxTokens }),
	"generation.context_window":      intKey("generation.context_window", func(c *Config) *int { return &c.Generation.ContextWindow }),
	"generation.threads":             intKey("generation.threads", func(c *Config) *int { return &c.Generation.Threads }),
	"generation.gpu_memory_fraction": floatKey("generation.gpu_memory_fraction", func(c *Config) *float64 { return &c.Generation.GPUMemoryFraction }),
	"generation.timeout":             durationKey("generation.timeout", func(c *Config) *string { return &c.Generation.Timeout }),
	"generation.health_timeout":      durationKey("generation.health_timeout", func(c *Config) *string { return &c.Generation.HealthTimeout }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
}

// orderedKeys is the display order of configKeys, matching the TOML layout.
var orderedKeys = []string{
	"api.listen",
	"client.api_target",
	"personas.provider",
	"personas.path",
	"personas.watch",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.collection",
	"vector_store.api_key",
	"vector_store.timeout",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.api_key",
	"embedding.batch_size",
	"embedding.batch_delay",
	"embedding.requests_per_second",
	"embedding.timeout",
	"embedding.cache_target",
	"embedding.cache_ttl",
	"retrieval.limit",
	"retrieval.threshold",
	"retrieval.snippet_length",
	"retrieval.max_similarity",
	"vectorize.entity_type",
	"vectorize.item_delay",
	"vectorize.recovery_cap",
	"vectorize.workers",
	"vectorize.queue_size",
	"generation.backend",
	"generation.target",
	"generation.model",
	"generation.api_key",
	"generation.temperature",
	"generation.top_p",
	"generation.max_tokens",
	"generation.context_window",
	"generation.threads",
	"generation.gpu_memory_fraction",
	"generation.timeout",
	"generation.health_timeout",
	"events.provider",
	"events.brokers",
	"events.topic",
}
