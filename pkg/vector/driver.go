// Package vector provides the document store used for retrieval: chunks of
// reference text with their embeddings.
package vector

import "context"

// Document is a stored chunk of reference text with its embedding.
type Document struct {
	// ID is a unique identifier for the chunk.
	ID string

	// Text is the chunk content returned to the retriever.
	Text string

	// Source identifies where the chunk came from (file name, article title).
	Source string

	// Metadata carries loader-provided attributes such as condition or category.
	Metadata map[string]string

	// Embedding is the vector representation of Text.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of document embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs. Missing IDs are skipped.
	// Embedding is only filled by drivers that store vectors locally.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}

// Reserved metadata keys used by drivers that flatten Document into a
// key/value payload.
const (
	KeyText   = "text"
	KeySource = "source"
)

// FlattenMetadata merges Text, Source and Metadata into a single payload map.
func FlattenMetadata(doc Document) map[string]any {
	out := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		out[k] = v
	}
	out[KeyText] = doc.Text
	out[KeySource] = doc.Source
	return out
}

// UnflattenMetadata is the inverse of FlattenMetadata. Non-string values are
// ignored.
func UnflattenMetadata(doc *Document, payload map[string]any) {
	for k, v := range payload {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case KeyText:
			doc.Text = s
		case KeySource:
			doc.Source = s
		default:
			if doc.Metadata == nil {
				doc.Metadata = map[string]string{}
			}
			doc.Metadata[k] = s
		}
	}
}
