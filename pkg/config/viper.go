package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/medibot/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "MEDIBOT"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the MEDIBOT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MEDIBOT_SERVER_LISTEN, MEDIBOT_GENERATION_API_KEY, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Unmarshal decodes the effective viper settings into a Config.
func Unmarshal(v *viper.Viper) *Config {
	var brokers []string
	if b := v.GetStringSlice("eventstream.brokers"); len(b) > 0 {
		brokers = b
	}

	return &Config{
		Version: v.GetInt("version"),
		Server:  ServerConfig{Listen: v.GetString("server.listen")},
		Client:  ClientConfig{APITarget: v.GetString("client.api_target")},
		Log: LogConfig{
			File: v.GetString("log.file"),
			JSON: v.GetBool("log.json"),
		},
		Session: SessionConfig{
			Backend:         v.GetString("session.backend"),
			Path:            v.GetString("session.path"),
			SQLitePath:      v.GetString("session.sqlite_path"),
			PostgresDSN:     v.GetString("session.postgres_dsn"),
			MaxAge:          v.GetString("session.max_age"),
			CleanupInterval: v.GetString("session.cleanup_interval"),
			RecoveryLimit:   v.GetInt("session.recovery_limit"),
			AsyncWrites:     v.GetBool("session.async_writes"),
			Workers:         v.GetUint("session.workers"),
		},
		Retrieval: RetrievalConfig{
			Provider:   v.GetString("retrieval.provider"),
			Target:     v.GetString("retrieval.target"),
			APIKey:     v.GetString("retrieval.api_key"),
			Collection: v.GetString("retrieval.collection"),
			SQLitePath: v.GetString("retrieval.sqlite_path"),
			TopK:       v.GetInt("retrieval.top_k"),
			Timeout:    v.GetString("retrieval.timeout"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			APIKey:     v.GetString("embedding.api_key"),
		},
		Generation: GenerationConfig{
			Provider:    v.GetString("generation.provider"),
			Model:       v.GetString("generation.model"),
			Target:      v.GetString("generation.target"),
			APIKey:      v.GetString("generation.api_key"),
			Timeout:     v.GetString("generation.timeout"),
			Temperature: v.GetFloat64("generation.temperature"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  brokers,
			Topic:    v.GetString("eventstream.topic"),
		},
		Telemetry: TelemetryConfig{
			Enabled: v.GetBool("telemetry.enabled"),
			Dir:     v.GetString("telemetry.dir"),
		},
		Vocabulary: VocabularyConfig{
			Path:  v.GetString("vocabulary.path"),
			Watch: v.GetBool("vocabulary.watch"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("client.api_target", d.Client.APITarget)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.json", d.Log.JSON)

	// Session
	v.SetDefault("session.backend", d.Session.Backend)
	v.SetDefault("session.path", d.Session.Path)
	v.SetDefault("session.sqlite_path", d.Session.SQLitePath)
	v.SetDefault("session.postgres_dsn", d.Session.PostgresDSN)
	v.SetDefault("session.max_age", d.Session.MaxAge)
	v.SetDefault("session.cleanup_interval", d.Session.CleanupInterval)
	v.SetDefault("session.recovery_limit", d.Session.RecoveryLimit)
	v.SetDefault("session.async_writes", d.Session.AsyncWrites)
	v.SetDefault("session.workers", d.Session.Workers)

	// Retrieval
	v.SetDefault("retrieval.provider", d.Retrieval.Provider)
	v.SetDefault("retrieval.target", d.Retrieval.Target)
	v.SetDefault("retrieval.api_key", d.Retrieval.APIKey)
	v.SetDefault("retrieval.collection", d.Retrieval.Collection)
	v.SetDefault("retrieval.sqlite_path", d.Retrieval.SQLitePath)
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.timeout", d.Retrieval.Timeout)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)

	// Generation
	v.SetDefault("generation.provider", d.Generation.Provider)
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.target", d.Generation.Target)
	v.SetDefault("generation.api_key", d.Generation.APIKey)
	v.SetDefault("generation.timeout", d.Generation.Timeout)
	v.SetDefault("generation.temperature", d.Generation.Temperature)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)

	// Telemetry
	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.dir", d.Telemetry.Dir)

	// Vocabulary
	v.SetDefault("vocabulary.path", d.Vocabulary.Path)
	v.SetDefault("vocabulary.watch", d.Vocabulary.Watch)
}
