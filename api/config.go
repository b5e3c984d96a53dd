// Package api provides the HTTP API server for the medical assistant.
package api

import (
	"github.com/papercomputeco/medibot/pkg/ingest"
	"github.com/papercomputeco/medibot/pkg/vector"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// VectorDriver backs the RAG status endpoint. Optional.
	VectorDriver vector.Driver

	// VectorProvider names the vector store in status output.
	VectorProvider string

	// Ingester enables POST /api/rag/ingest when set.
	Ingester *ingest.Ingester

	// NoMCP disables the MCP endpoint.
	NoMCP bool
}
