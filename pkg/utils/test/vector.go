package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/medibot/pkg/vector"
)

// MockVectorDriver is a test vector driver
type MockVectorDriver struct {
	mu        sync.Mutex
	documents []vector.Document
	results   []vector.QueryResult

	// FailQuery causes Query to return an error.
	FailQuery bool

	// Queries counts Query calls.
	Queries int
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		documents: make([]vector.Document, 0),
		results:   make([]vector.QueryResult, 0),
	}
}

// SetResults sets the results returned by Query.
func (m *MockVectorDriver) SetResults(results ...vector.QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = results
}

// Documents returns everything passed to Add.
func (m *MockVectorDriver) Documents() []vector.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]vector.Document(nil), m.documents...)
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries++
	if m.FailQuery {
		return nil, errors.New("mock vector query failure")
	}
	if len(m.results) < topK {
		return m.results, nil
	}
	return m.results[:topK], nil
}

func (m *MockVectorDriver) Get(_ context.Context, _ []string) ([]vector.Document, error) {
	return m.Documents(), nil
}

func (m *MockVectorDriver) Delete(_ context.Context, _ []string) error {
	return nil
}

func (m *MockVectorDriver) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.documents), nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
