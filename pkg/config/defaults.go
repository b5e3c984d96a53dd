package config

const (
	defaultListen          = ":8000"
	defaultClientAPITarget = "http://localhost:8000"

	defaultSessionBackend         = "file"
	defaultSessionPath            = "sessions"
	defaultSessionMaxAge          = "24h"
	defaultSessionCleanupInterval = "30m"
	defaultSessionRecoveryLimit   = 50
	defaultSessionWorkers         = 4

	defaultRetrievalProvider   = "qdrant"
	defaultRetrievalTarget     = "localhost:6334"
	defaultRetrievalCollection = "medical_knowledge"
	defaultRetrievalTopK       = 3
	defaultRetrievalTimeout    = "15s"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultGenerationProvider    = "gemini"
	defaultGenerationModel       = "gemini-1.5-flash"
	defaultGenerationTimeout     = "30s"
	defaultGenerationTemperature = 0.1

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "medibot.exchanges"

	defaultTelemetryDir = "telemetry"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Session: SessionConfig{
			Backend:         defaultSessionBackend,
			Path:            defaultSessionPath,
			MaxAge:          defaultSessionMaxAge,
			CleanupInterval: defaultSessionCleanupInterval,
			RecoveryLimit:   defaultSessionRecoveryLimit,
			Workers:         defaultSessionWorkers,
		},
		Retrieval: RetrievalConfig{
			Provider:   defaultRetrievalProvider,
			Target:     defaultRetrievalTarget,
			Collection: defaultRetrievalCollection,
			TopK:       defaultRetrievalTopK,
			Timeout:    defaultRetrievalTimeout,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Generation: GenerationConfig{
			Provider:    defaultGenerationProvider,
			Model:       defaultGenerationModel,
			Timeout:     defaultGenerationTimeout,
			Temperature: defaultGenerationTemperature,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Telemetry: TelemetryConfig{
			Dir: defaultTelemetryDir,
		},
	}
}
