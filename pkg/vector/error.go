package vector

import "errors"

var (
	// ErrEmbedding wraps failures of the embedding provider, for queries and
	// ingestion alike.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector store cannot be reached or
	// its collection cannot be prepared.
	ErrConnection = errors.New("vector store connection failed")
)
