// Package retrieval finds reference chunks relevant to a query.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/medibot/pkg/embeddings"
	"github.com/papercomputeco/medibot/pkg/vector"
)

// DefaultTimeout bounds a single retrieval.
const DefaultTimeout = 15 * time.Second

// ErrNotConfigured is returned when a retriever has no backing store.
var ErrNotConfigured = errors.New("retriever not configured")

// Chunk is a piece of reference text returned for a query.
type Chunk struct {
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
	Source string  `json:"source,omitempty"`
}

// Retriever returns up to k chunks relevant to query, most relevant first.
// An empty result is not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Chunk, error)
}

// VectorRetriever embeds the query and searches a vector store.
type VectorRetriever struct {
	embedder embeddings.Embedder
	driver   vector.Driver
	timeout  time.Duration
	logger   *slog.Logger
}

// Config configures a VectorRetriever.
type Config struct {
	Embedder embeddings.Embedder
	Driver   vector.Driver

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewVectorRetriever creates a retriever over the configured store.
func NewVectorRetriever(c Config) (*VectorRetriever, error) {
	if c.Embedder == nil || c.Driver == nil {
		return nil, ErrNotConfigured
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return &VectorRetriever{
		embedder: c.Embedder,
		driver:   c.Driver,
		timeout:  c.Timeout,
		logger:   c.Logger,
	}, nil
}

// Retrieve implements Retriever.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()

	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}

	results, err := r.driver.Query(ctx, emb, k)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, res := range results {
		if res.Text == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:   res.Text,
			Score:  res.Score,
			Source: res.Source,
		})
	}

	r.logger.Debug("retrieved chunks",
		"requested", k,
		"returned", len(chunks),
		"duration", time.Since(start),
	)
	return chunks, nil
}

// Sources returns the distinct non-empty sources of chunks in first-seen order.
func Sources(chunks []Chunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Source == "" {
			continue
		}
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		out = append(out, c.Source)
	}
	return out
}
