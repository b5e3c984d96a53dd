// Package services builds the medibot component graph from a config.Config.
// Commands call Build (serve) or BuildIngester (ingest) and Close the
// result on exit.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/medibot/pkg/answer"
	"github.com/papercomputeco/medibot/pkg/config"
	"github.com/papercomputeco/medibot/pkg/dotdir"
	"github.com/papercomputeco/medibot/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/medibot/pkg/embeddings/utils"
	"github.com/papercomputeco/medibot/pkg/eventstream"
	"github.com/papercomputeco/medibot/pkg/eventstream/kafka"
	"github.com/papercomputeco/medibot/pkg/eventstream/nop"
	"github.com/papercomputeco/medibot/pkg/generation"
	"github.com/papercomputeco/medibot/pkg/ingest"
	"github.com/papercomputeco/medibot/pkg/pipeline"
	"github.com/papercomputeco/medibot/pkg/retrieval"
	"github.com/papercomputeco/medibot/pkg/session"
	"github.com/papercomputeco/medibot/pkg/session/writer"
	"github.com/papercomputeco/medibot/pkg/storage"
	storageutils "github.com/papercomputeco/medibot/pkg/storage/utils"
	"github.com/papercomputeco/medibot/pkg/telemetry"
	"github.com/papercomputeco/medibot/pkg/utils"
	"github.com/papercomputeco/medibot/pkg/vector"
	vectorutils "github.com/papercomputeco/medibot/pkg/vector/utils"
	"github.com/papercomputeco/medibot/pkg/vocab"
)

// Options carries what Build needs beyond the config file.
type Options struct {
	// ConfigDir overrides .medibot/ resolution. Relative paths in the
	// config are resolved against the resolved directory.
	ConfigDir string

	// Chunking and BatchSize tune the ingester. Zero values use the
	// ingest package defaults.
	Chunking  ingest.ChunkOptions
	BatchSize int

	Logger *slog.Logger
}

// Services is a fully wired medibot.
type Services struct {
	Pipeline     *pipeline.Pipeline
	Ingester     *ingest.Ingester
	VectorDriver vector.Driver
	Vocabulary   *vocab.Holder

	logger  *slog.Logger
	closers []closer
	cancel  context.CancelFunc
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Build wires every component. On error, anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *Services, err error) {
	s, paths, err := start(cfg, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = s.Close(context.Background())
		}
	}()

	telemetryDir, err := paths.Resolve(opts.ConfigDir, cfg.Telemetry.Dir)
	if err != nil {
		return nil, err
	}
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Dir:            telemetryDir,
		ServiceVersion: utils.Version,
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	s.onClose("telemetry", shutdown)

	if err := s.loadVocabulary(cfg, opts.ConfigDir, paths); err != nil {
		return nil, err
	}

	sessions, err := s.newSessionStore(ctx, cfg, opts.ConfigDir, paths)
	if err != nil {
		return nil, err
	}

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.openVectorDriver(ctx, cfg, opts.ConfigDir, paths); err != nil {
		return nil, err
	}

	retrievalTimeout, err := parseDuration("retrieval.timeout", cfg.Retrieval.Timeout)
	if err != nil {
		return nil, err
	}
	retriever, err := retrieval.NewVectorRetriever(retrieval.Config{
		Embedder: embedder,
		Driver:   s.VectorDriver,
		Timeout:  retrievalTimeout,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	generationTimeout, err := parseDuration("generation.timeout", cfg.Generation.Timeout)
	if err != nil {
		return nil, err
	}
	generator, err := generation.New(generation.Config{
		Provider:    cfg.Generation.Provider,
		Model:       cfg.Generation.Model,
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.Target,
		Timeout:     generationTimeout,
		Temperature: cfg.Generation.Temperature,
		Logger:      s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}
	s.logger.Info("language model configured", "provider", generator.Provider(), "model", generator.Model())

	assembler := answer.NewAssembler(answer.Config{
		Generator:  generator,
		Vocabulary: s.Vocabulary,
		Logger:     s.logger,
	})

	publisher, err := s.newPublisher(cfg)
	if err != nil {
		return nil, err
	}

	s.Pipeline, err = pipeline.New(pipeline.Config{
		Sessions:      sessions,
		Retriever:     retriever,
		Assembler:     assembler,
		Vocabulary:    s.Vocabulary,
		Publisher:     publisher,
		DefaultChunks: cfg.Retrieval.TopK,
		Logger:        s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	s.Ingester, err = ingest.New(ingest.Config{
		Embedder:  embedder,
		Driver:    s.VectorDriver,
		Chunking:  opts.Chunking,
		BatchSize: opts.BatchSize,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ingester: %w", err)
	}

	return s, nil
}

// BuildIngester wires only what document ingestion needs.
func BuildIngester(ctx context.Context, cfg *config.Config, opts Options) (_ *Services, err error) {
	s, paths, err := start(cfg, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = s.Close(context.Background())
		}
	}()

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.openVectorDriver(ctx, cfg, opts.ConfigDir, paths); err != nil {
		return nil, err
	}

	s.Ingester, err = ingest.New(ingest.Config{
		Embedder:  embedder,
		Driver:    s.VectorDriver,
		Chunking:  opts.Chunking,
		BatchSize: opts.BatchSize,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ingester: %w", err)
	}
	return s, nil
}

func start(cfg *config.Config, opts Options) (*Services, *dotdir.Manager, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{logger: logger}, dotdir.NewManager(), nil
}

// NewEmbedder builds the configured embedding client.
func NewEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       cfg.Embedding.APIKey,
		Dimensions:   int(cfg.Embedding.Dimensions),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}

func (s *Services) openVectorDriver(ctx context.Context, cfg *config.Config, configDir string, paths *dotdir.Manager) error {
	sqlitePath, err := resolveDB(paths, configDir, cfg.Retrieval.SQLitePath)
	if err != nil {
		return err
	}

	driver, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.Retrieval.Provider,
		TargetURL:    cfg.Retrieval.Target,
		APIKey:       cfg.Retrieval.APIKey,
		Collection:   cfg.Retrieval.Collection,
		SQLitePath:   sqlitePath,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       s.logger,
	})
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	s.VectorDriver = driver
	s.onClose("vector store", func(context.Context) error { return driver.Close() })
	return nil
}

func (s *Services) newSessionStore(ctx context.Context, cfg *config.Config, configDir string, paths *dotdir.Manager) (*session.Store, error) {
	dir, err := paths.Resolve(configDir, cfg.Session.Path)
	if err != nil {
		return nil, err
	}
	sqlitePath, err := resolveDB(paths, configDir, cfg.Session.SQLitePath)
	if err != nil {
		return nil, err
	}

	driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		Backend:     cfg.Session.Backend,
		Path:        dir,
		SQLitePath:  sqlitePath,
		PostgresDSN: cfg.Session.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session storage: %w", err)
	}
	s.onClose("session storage", func(context.Context) error { return driver.Close() })
	s.logger.Info("session storage ready", "backend", cfg.Session.Backend)

	pool, err := s.newWriterPool(cfg, driver)
	if err != nil {
		return nil, err
	}

	maxAge, err := parseDuration("session.max_age", cfg.Session.MaxAge)
	if err != nil {
		return nil, err
	}
	cleanup, err := parseDuration("session.cleanup_interval", cfg.Session.CleanupInterval)
	if err != nil {
		return nil, err
	}

	store, err := session.New(ctx, session.Config{
		Driver:          driver,
		Writer:          pool,
		MaxAge:          maxAge,
		CleanupInterval: cleanup,
		RecoveryLimit:   cfg.Session.RecoveryLimit,
		Logger:          s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}
	s.onClose("session flush", store.Flush)
	return store, nil
}

func (s *Services) newWriterPool(cfg *config.Config, driver storage.Driver) (*writer.Pool, error) {
	if !cfg.Session.AsyncWrites {
		return nil, nil
	}

	pool, err := writer.NewPool(&writer.Config{
		Driver:     driver,
		NumWorkers: cfg.Session.Workers,
		Logger:     s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session writer pool: %w", err)
	}
	s.onClose("session writers", func(context.Context) error {
		pool.Close()
		return nil
	})
	return pool, nil
}

func (s *Services) loadVocabulary(cfg *config.Config, configDir string, paths *dotdir.Manager) error {
	path, err := paths.Resolve(configDir, cfg.Vocabulary.Path)
	if err != nil {
		return err
	}

	v, err := vocab.Load(path)
	if err != nil {
		return err
	}
	s.Vocabulary = vocab.NewHolder(v)

	if path == "" || !cfg.Vocabulary.Watch {
		return nil
	}

	w, err := vocab.NewWatcher(path, s.Vocabulary, s.logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go w.Run(ctx)
	s.onClose("vocabulary watcher", func(context.Context) error { return w.Close() })
	s.logger.Info("watching vocabulary", "path", path)
	return nil
}

func (s *Services) newPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	var publisher eventstream.Publisher
	switch cfg.EventStream.Provider {
	case "", "nop":
		publisher = nop.NewPublisher()
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.EventStream.Brokers,
			Topic:   cfg.EventStream.Topic,
		}, s.logger)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		publisher = p
	default:
		return nil, fmt.Errorf("unsupported event stream provider: %s", cfg.EventStream.Provider)
	}
	s.onClose("event publisher", func(context.Context) error { return publisher.Close() })
	return publisher, nil
}

func (s *Services) onClose(name string, fn func(ctx context.Context) error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// Close releases components in reverse order of construction.
func (s *Services) Close(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(ctx); err != nil {
			s.logger.Warn("closing component failed", "component", c.name, "error", err)
			errs = append(errs, fmt.Errorf("closing %s: %w", c.name, err))
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// resolveDB resolves a database path, leaving SQLite's in-memory name alone.
func resolveDB(paths *dotdir.Manager, configDir, path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	return paths.Resolve(configDir, path)
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
