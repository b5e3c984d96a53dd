// Package ingest loads reference documents, splits them into medical chunks
// and stores their embeddings in the vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/medibot/pkg/embeddings"
	"github.com/papercomputeco/medibot/pkg/vector"
)

const (
	// DefaultBatchSize is how many chunks are embedded and stored per round trip.
	DefaultBatchSize = 32

	// ChunkingStrategy is recorded on every stored chunk.
	ChunkingStrategy = "medical"
)

var (
	// ErrNoDocuments is returned when nothing could be loaded.
	ErrNoDocuments = errors.New("no documents loaded")

	// ErrNotConfigured is returned when the ingester has no embedder or store.
	ErrNotConfigured = errors.New("ingester not configured")
)

// Result summarizes an ingestion run.
type Result struct {
	Success         bool     `json:"success"`
	ProcessingTime  float64  `json:"processing_time"`
	FilesProcessed  int      `json:"files_processed"`
	DocumentsLoaded int      `json:"documents_loaded"`
	ChunksCreated   int      `json:"chunks_created"`
	DocumentsStored int      `json:"documents_stored"`
	Errors          []string `json:"errors,omitempty"`
}

// Ingester runs the load, chunk, embed and store pipeline.
type Ingester struct {
	embedder  embeddings.Embedder
	driver    vector.Driver
	chunking  ChunkOptions
	batchSize int
	logger    *slog.Logger
}

// Config configures an Ingester.
type Config struct {
	Embedder embeddings.Embedder
	Driver   vector.Driver

	// Chunking defaults to DefaultChunkOptions.
	Chunking ChunkOptions

	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	Logger    *slog.Logger
}

// New creates an Ingester.
func New(c Config) (*Ingester, error) {
	if c.Embedder == nil || c.Driver == nil {
		return nil, ErrNotConfigured
	}
	if c.Chunking.Size <= 0 {
		c.Chunking = DefaultChunkOptions()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return &Ingester{
		embedder:  c.Embedder,
		driver:    c.Driver,
		chunking:  c.Chunking,
		batchSize: c.BatchSize,
		logger:    c.Logger,
	}, nil
}

// IngestFiles loads every path and stores the resulting chunks. Files that
// fail to load are logged, reported in Result.Errors and skipped.
func (i *Ingester) IngestFiles(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()
	res := &Result{}

	var docs []Document
	for _, p := range paths {
		loaded, err := LoadFile(p)
		if err != nil {
			i.logger.Warn("skipping file", "path", p, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", p, err))
			continue
		}
		res.FilesProcessed++
		docs = append(docs, loaded...)
	}

	if err := i.ingest(ctx, docs, res); err != nil {
		res.ProcessingTime = time.Since(start).Seconds()
		return res, err
	}
	res.ProcessingTime = time.Since(start).Seconds()
	return res, nil
}

// IngestDocuments stores already loaded documents.
func (i *Ingester) IngestDocuments(ctx context.Context, docs []Document) (*Result, error) {
	start := time.Now()
	res := &Result{}
	err := i.ingest(ctx, docs, res)
	res.ProcessingTime = time.Since(start).Seconds()
	return res, err
}

func (i *Ingester) ingest(ctx context.Context, docs []Document, res *Result) error {
	docs = slices.DeleteFunc(slices.Clone(docs), func(d Document) bool {
		return strings.TrimSpace(d.Text) == ""
	})
	res.DocumentsLoaded = len(docs)
	if len(docs) == 0 {
		return ErrNoDocuments
	}

	chunks := i.split(docs)
	res.ChunksCreated = len(chunks)
	i.logger.Info("chunked documents", "documents", len(docs), "chunks", len(chunks))

	for lo := 0; lo < len(chunks); lo += i.batchSize {
		hi := min(lo+i.batchSize, len(chunks))
		batch := chunks[lo:hi]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		vecs, err := embeddings.EmbedAll(ctx, i.embedder, texts)
		if err != nil {
			return fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("%w: got %d embeddings for %d chunks", vector.ErrEmbedding, len(vecs), len(batch))
		}
		for j := range batch {
			batch[j].Embedding = vecs[j]
		}

		if err := i.driver.Add(ctx, batch); err != nil {
			return fmt.Errorf("storing chunks: %w", err)
		}
		res.DocumentsStored += len(batch)
		i.logger.Debug("stored chunk batch", "stored", res.DocumentsStored, "total", len(chunks))
	}

	res.Success = true
	i.logger.Info("ingestion complete",
		"documents", res.DocumentsLoaded,
		"chunks", res.ChunksCreated,
		"stored", res.DocumentsStored,
	)
	return nil
}

// split chunks each document. Chunk ids derive from the source, the
// document's position and the chunk index, so re-ingesting the same files
// updates chunks in place.
func (i *Ingester) split(docs []Document) []vector.Document {
	var out []vector.Document
	for d, doc := range docs {
		for n, text := range Chunk(doc.Text, i.chunking) {
			key := doc.Source + "#" + strconv.Itoa(d) + "#" + strconv.Itoa(n)

			meta := make(map[string]string, len(doc.Metadata)+2)
			maps.Copy(meta, doc.Metadata)
			meta["chunk_id"] = strconv.Itoa(n)
			meta["chunking_strategy"] = ChunkingStrategy

			out = append(out, vector.Document{
				ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String(),
				Text:     text,
				Source:   doc.Source,
				Metadata: meta,
			})
		}
	}
	return out
}
