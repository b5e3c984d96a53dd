package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent medibot configuration stored as
// config.toml in the .medibot/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Server      ServerConfig      `toml:"server"`
	Client      ClientConfig      `toml:"client"`
	Log         LogConfig         `toml:"log"`
	Session     SessionConfig     `toml:"session"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Generation  GenerationConfig  `toml:"generation"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
	Vocabulary  VocabularyConfig  `toml:"vocabulary"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running
// server (medibot chat). APITarget is a full URL.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// LogConfig controls where logs go in addition to stderr.
type LogConfig struct {
	File string `toml:"file,omitempty"`
	JSON bool   `toml:"json,omitempty"`
}

// SessionConfig holds session store settings. Durations are Go duration
// strings ("24h", "30m").
type SessionConfig struct {
	Backend         string `toml:"backend,omitempty"`
	Path            string `toml:"path,omitempty"`
	SQLitePath      string `toml:"sqlite_path,omitempty"`
	PostgresDSN     string `toml:"postgres_dsn,omitempty"`
	MaxAge          string `toml:"max_age,omitempty"`
	CleanupInterval string `toml:"cleanup_interval,omitempty"`
	RecoveryLimit   int    `toml:"recovery_limit,omitempty"`
	AsyncWrites     bool   `toml:"async_writes,omitempty"`
	Workers         uint   `toml:"workers,omitempty"`
}

// RetrievalConfig holds vector store settings.
type RetrievalConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	Collection string `toml:"collection,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
	TopK       int    `toml:"top_k,omitempty"`
	Timeout    string `toml:"timeout,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// GenerationConfig holds language model settings.
type GenerationConfig struct {
	Provider    string  `toml:"provider,omitempty"`
	Model       string  `toml:"model,omitempty"`
	Target      string  `toml:"target,omitempty"`
	APIKey      string  `toml:"api_key,omitempty"`
	Timeout     string  `toml:"timeout,omitempty"`
	Temperature float64 `toml:"temperature,omitempty"`
}

// EventStreamConfig selects where exchange events are published.
type EventStreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// TelemetryConfig holds OpenTelemetry exporter settings.
type TelemetryConfig struct {
	Enabled bool   `toml:"enabled,omitempty"`
	Dir     string `toml:"dir,omitempty"`
}

// VocabularyConfig points at an optional word-list override file.
type VocabularyConfig struct {
	Path  string `toml:"path,omitempty"`
	Watch bool   `toml:"watch,omitempty"`
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

func durationKey(key string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func uintKey(key string, field func(c *Config) *uint) configKeyInfo {
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
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func intKey(key string, field func(c *Config) *int) configKeyInfo {
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
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func boolKey(key string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen":     stringKey(func(c *Config) *string { return &c.Server.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"log.file":          stringKey(func(c *Config) *string { return &c.Log.File }),
	"log.json":          boolKey("log.json", func(c *Config) *bool { return &c.Log.JSON }),

	"session.backend":          stringKey(func(c *Config) *string { return &c.Session.Backend }),
	"session.path":             stringKey(func(c *Config) *string { return &c.Session.Path }),
	"session.sqlite_path":      stringKey(func(c *Config) *string { return &c.Session.SQLitePath }),
	"session.postgres_dsn":     stringKey(func(c *Config) *string { return &c.Session.PostgresDSN }),
	"session.max_age":          durationKey("session.max_age", func(c *Config) *string { return &c.Session.MaxAge }),
	"session.cleanup_interval": durationKey("session.cleanup_interval", func(c *Config) *string { return &c.Session.CleanupInterval }),
	"session.recovery_limit":   intKey("session.recovery_limit", func(c *Config) *int { return &c.Session.RecoveryLimit }),
	"session.async_writes":     boolKey("session.async_writes", func(c *Config) *bool { return &c.Session.AsyncWrites }),
	"session.workers":          uintKey("session.workers", func(c *Config) *uint { return &c.Session.Workers }),

	"retrieval.provider":    stringKey(func(c *Config) *string { return &c.Retrieval.Provider }),
	"retrieval.target":      stringKey(func(c *Config) *string { return &c.Retrieval.Target }),
	"retrieval.api_key":     stringKey(func(c *Config) *string { return &c.Retrieval.APIKey }),
	"retrieval.collection":  stringKey(func(c *Config) *string { return &c.Retrieval.Collection }),
	"retrieval.sqlite_path": stringKey(func(c *Config) *string { return &c.Retrieval.SQLitePath }),
	"retrieval.top_k":       intKey("retrieval.top_k", func(c *Config) *int { return &c.Retrieval.TopK }),
	"retrieval.timeout":     durationKey("retrieval.timeout", func(c *Config) *string { return &c.Retrieval.Timeout }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.api_key":    stringKey(func(c *Config) *string { return &c.Embedding.APIKey }),

	"generation.provider": stringKey(func(c *Config) *string { return &c.Generation.Provider }),
	"generation.model":    stringKey(func(c *Config) *string { return &c.Generation.Model }),
	"generation.target":   stringKey(func(c *Config) *string { return &c.Generation.Target }),
	"generation.api_key":  stringKey(func(c *Config) *string { return &c.Generation.APIKey }),
	"generation.timeout":  durationKey("generation.timeout", func(c *Config) *string { return &c.Generation.Timeout }),
	"generation.temperature": {
		get: func(c *Config) string {
			return strconv.FormatFloat(c.Generation.Temperature, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for generation.temperature: %w", err)
			}
			c.Generation.Temperature = f
			return nil
		},
	},

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.EventStream.Brokers = nil
			for b := range strings.SplitSeq(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.EventStream.Brokers = append(c.EventStream.Brokers, b)
				}
			}
			return nil
		},
	},
	"eventstream.topic": stringKey(func(c *Config) *string { return &c.EventStream.Topic }),

	"telemetry.enabled": boolKey("telemetry.enabled", func(c *Config) *bool { return &c.Telemetry.Enabled }),
	"telemetry.dir":     stringKey(func(c *Config) *string { return &c.Telemetry.Dir }),

	"vocabulary.path":  stringKey(func(c *Config) *string { return &c.Vocabulary.Path }),
	"vocabulary.watch": boolKey("vocabulary.watch", func(c *Config) *bool { return &c.Vocabulary.Watch }),
}

// orderedKeys is the stable, TOML-section order used by ValidConfigKeys.
var orderedKeys = []string{
	"server.listen",
	"client.api_target",
	"log.file",
	"log.json",
	"session.backend",
	"session.path",
	"session.sqlite_path",
	"session.postgres_dsn",
	"session.max_age",
	"session.cleanup_interval",
	"session.recovery_limit",
	"session.async_writes",
	"session.workers",
	"retrieval.provider",
	"retrieval.target",
	"retrieval.api_key",
	"retrieval.collection",
	"retrieval.sqlite_path",
	"retrieval.top_k",
	"retrieval.timeout",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.api_key",
	"generation.provider",
	"generation.model",
	"generation.target",
	"generation.api_key",
	"generation.timeout",
	"generation.temperature",
	"eventstream.provider",
	"eventstream.brokers",
	"eventstream.topic",
	"telemetry.enabled",
	"telemetry.dir",
	"vocabulary.path",
	"vocabulary.watch",
}
