package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/medibot/pkg/generation"
)

// MockGenerator is a test generator that records requests and returns a
// canned reply.
type MockGenerator struct {
	mu       sync.Mutex
	requests []generation.Request

	// Reply is returned by Generate.
	Reply string

	// Err, when set, is returned by Generate instead of Reply.
	Err error

	// Panic, when set, is raised by Generate.
	Panic any

	ModelName string
}

func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{Reply: reply, ModelName: "mock-model"}
}

func (m *MockGenerator) Generate(ctx context.Context, req generation.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.Panic != nil {
		panic(m.Panic)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply == "" {
		return "", generation.ErrEmptyCompletion
	}
	return m.Reply, nil
}

func (m *MockGenerator) Model() string {
	return m.ModelName
}

// Requests returns every request seen so far.
func (m *MockGenerator) Requests() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generation.Request(nil), m.requests...)
}

// LastRequest returns the most recent request.
func (m *MockGenerator) LastRequest() generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return generation.Request{}
	}
	return m.requests[len(m.requests)-1]
}

// ErrMockGeneration is a convenience error for failure tests.
var ErrMockGeneration = errors.New("mock generation failure")
