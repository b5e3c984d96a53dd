package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --api-target
// on both "medibot chat" and "medibot session").
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
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
	FlagListen            = "listen"
	FlagAPITarget         = "api-target"
	FlagLogFile           = "log-file"
	FlagSessionBackend    = "session-backend"
	FlagSessionPath       = "session-path"
	FlagSessionSQLite     = "session-sqlite"
	FlagRetrievalProvider = "retrieval-provider"
	FlagRetrievalTarget   = "retrieval-target"
	FlagCollection        = "collection"
	FlagRetrievalSQLite   = "retrieval-sqlite"
	FlagEmbeddingProv     = "embedding-provider"
	FlagEmbeddingTgt      = "embedding-target"
	FlagEmbeddingModel    = "embedding-model"
	FlagEmbeddingDims     = "embedding-dimensions"
	FlagGenerationProv    = "generation-provider"
	FlagGenerationModel   = "generation-model"
	FlagEventStreamProv   = "eventstream-provider"
	FlagVocabularyPath    = "vocabulary"
)

// Registry is the shared flag registry used by every medibot command.
var Registry = FlagSet{
	FlagListen:            {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the API server to listen on"},
	FlagAPITarget:         {Name: "api-target", ViperKey: "client.api_target", Description: "URL of a running medibot server"},
	FlagLogFile:           {Name: "log-file", ViperKey: "log.file", Description: "Also write logs to this file (rotated)"},
	FlagSessionBackend:    {Name: "session-backend", ViperKey: "session.backend", Description: "Session storage backend (file, sqlite, postgres, memory)"},
	FlagSessionPath:       {Name: "session-path", ViperKey: "session.path", Description: "Directory for the file session backend"},
	FlagSessionSQLite:     {Name: "session-sqlite", ViperKey: "session.sqlite_path", Description: "Path to the SQLite session database"},
	FlagRetrievalProvider: {Name: "retrieval-provider", ViperKey: "retrieval.provider", Description: "Vector store provider (qdrant, chroma, sqlite)"},
	FlagRetrievalTarget:   {Name: "retrieval-target", ViperKey: "retrieval.target", Description: "Vector store address"},
	FlagCollection:        {Name: "collection", ViperKey: "retrieval.collection", Description: "Vector store collection name"},
	FlagRetrievalSQLite:   {Name: "retrieval-sqlite", ViperKey: "retrieval.sqlite_path", Description: "Path to the sqlite-vec database"},
	FlagEmbeddingProv:     {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (ollama, openai)"},
	FlagEmbeddingTgt:      {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel:    {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:     {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector dimensions"},
	FlagGenerationProv:    {Name: "generation-provider", ViperKey: "generation.provider", Description: "Language model provider (gemini, openai, anthropic, ollama)"},
	FlagGenerationModel:   {Name: "generation-model", Shorthand: "m", ViperKey: "generation.model", Description: "Language model name"},
	FlagEventStreamProv:   {Name: "eventstream-provider", ViperKey: "eventstream.provider", Description: "Exchange event publisher (nop, kafka)"},
	FlagVocabularyPath:    {Name: "vocabulary", ViperKey: "vocabulary.path", Description: "Path to a word-list override file"},
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
