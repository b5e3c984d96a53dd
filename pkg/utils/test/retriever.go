package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/medibot/pkg/retrieval"
)

// MockRetriever returns fixed chunks and records the queries it was given.
type MockRetriever struct {
	mu      sync.Mutex
	queries []string

	Chunks []retrieval.Chunk
	Err    error

	// Block makes Retrieve wait for the context to end and return its error.
	Block bool
}

func NewMockRetriever(chunks ...retrieval.Chunk) *MockRetriever {
	return &MockRetriever{Chunks: chunks}
}

func (m *MockRetriever) Retrieve(ctx context.Context, query string, k int) ([]retrieval.Chunk, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	block := m.Block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Chunks) > k {
		return m.Chunks[:k], nil
	}
	return m.Chunks, nil
}

// Queries returns the queries seen so far, oldest first.
func (m *MockRetriever) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}
