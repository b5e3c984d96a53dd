package testutils

import (
	"context"
	"fmt"
	"sync"
)

// DefaultEmbedding is returned for text with no entry in MockEmbedder.Embeddings.
var DefaultEmbedding = []float32{0.1, 0.2, 0.3}

// MockEmbedder returns canned vectors and records what it was asked to
// embed. It implements embeddings.BatchEmbedder.
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn makes any call that includes this exact text fail.
	FailOn string

	// Block makes Embed wait for the context to end and return its error.
	Block bool

	mu      sync.Mutex
	texts   []string
	batches int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	block := m.Block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(text)
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	m.texts = append(m.texts, texts...)

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := m.lookup(t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *MockEmbedder) lookup(text string) ([]float32, error) {
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}
	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}
	return DefaultEmbedding, nil
}

// Texts returns every text embedded so far, in call order.
func (m *MockEmbedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Batches returns how many EmbedBatch calls were made.
func (m *MockEmbedder) Batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

func (m *MockEmbedder) Close() error {
	return nil
}
