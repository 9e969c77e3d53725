package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --model
// on both "griot serve" and "griot query").
type Flag struct {
	// Name is the long flag name (e.g. "backend").
	Name string

	// Shorthand is the one-letter short flag (e.g. "b"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "generation.backend").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIListen         = "api-listen"
	FlagAPITarget         = "api-target"
	FlagPersonasProvider  = "personas-provider"
	FlagPersonasPath      = "personas-path"
	FlagVectorStoreProv   = "vector-store-provider"
	FlagVectorStoreTgt    = "vector-store-target"
	FlagVectorCollection  = "vector-store-collection"
	FlagEmbeddingProv     = "embedding-provider"
	FlagEmbeddingTgt      = "embedding-target"
	FlagEmbeddingModel    = "embedding-model"
	FlagEmbeddingDims     = "embedding-dimensions"
	FlagEmbeddingCache    = "embedding-cache"
	FlagGenerationBackend = "backend"
	FlagGenerationTarget  = "backend-target"
	FlagGenerationModel   = "model"
	FlagEventsProvider    = "events-provider"
	FlagEventsBrokers     = "events-brokers"
	FlagWorkers           = "workers"
)

// Flags is the registry of every flag griot commands share.
var Flags = FlagSet{
	FlagAPIListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	FlagAPITarget: {
		Name:        "api-target",
		Shorthand:   "a",
		ViperKey:    "client.api_target",
		Description: "griot API server URL",
	},
	FlagPersonasProvider: {
		Name:        "personas-provider",
		ViperKey:    "personas.provider",
		Description: "Persona store provider (files, memory)",
	},
	FlagPersonasPath: {
		Name:        "personas",
		Shorthand:   "p",
		ViperKey:    "personas.path",
		Description: "Directory of persona TOML/JSON files",
	},
	FlagVectorStoreProv: {
		Name:        "vector-store-provider",
		ViperKey:    "vector_store.provider",
		Description: "Vector store provider (memory, sqlite, chroma, qdrant, pgvector)",
	},
	FlagVectorStoreTgt: {
		Name:        "vector-store-target",
		ViperKey:    "vector_store.target",
		Description: "Vector store target (file path, URL, host:port or DSN)",
	},
	FlagVectorCollection: {
		Name:        "vector-store-collection",
		ViperKey:    "vector_store.collection",
		Description: "Vector store collection or table name",
	},
	FlagEmbeddingProv: {
		Name:        "embedding-provider",
		ViperKey:    "embedding.provider",
		Description: "Embedding provider (ollama, openai)",
	},
	FlagEmbeddingTgt: {
		Name:        "embedding-target",
		ViperKey:    "embedding.target",
		Description: "Embedding provider URL",
	},
	FlagEmbeddingModel: {
		Name:        "embedding-model",
		ViperKey:    "embedding.model",
		Description: "Embedding model name",
	},
	FlagEmbeddingDims: {
		Name:        "embedding-dimensions",
		ViperKey:    "embedding.dimensions",
		Description: "Embedding vector dimensions",
	},
	FlagEmbeddingCache: {
		Name:        "embedding-cache",
		ViperKey:    "embedding.cache_target",
		Description: "Redis address for the embedding cache (empty disables it)",
	},
	FlagGenerationBackend: {
		Name:        "backend",
		Shorthand:   "b",
		ViperKey:    "generation.backend",
		Description: "Generation backend (ollama, vllm, llamacpp, anthropic, gemini)",
	},
	FlagGenerationTarget: {
		Name:        "backend-target",
		ViperKey:    "generation.target",
		Description: "Generation backend URL",
	},
	FlagGenerationModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "generation.model",
		Description: "Default generation model",
	},
	FlagEventsProvider: {
		Name:        "events-provider",
		ViperKey:    "events.provider",
		Description: "Vectorization event publisher (none, kafka)",
	},
	FlagEventsBrokers: {
		Name:        "events-brokers",
		ViperKey:    "events.brokers",
		Description: "Comma separated kafka brokers",
	},
	FlagWorkers: {
		Name:        "workers",
		ViperKey:    "vectorize.workers",
		Description: "Background revectorize workers",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
