// Package storage defines the durable mirror of conversation sessions.
package storage

import (
	"context"

	"github.com/papercomputeco/medibot/pkg/conversation"
)

// Driver persists one record per session, keyed by session id.
// Writes are last-writer-wins; the session store serializes writes per id.
type Driver interface {
	// Put creates or overwrites the record for session.ID.
	Put(ctx context.Context, session *conversation.Session) error

	// Get loads a session by id. Returns NotFoundError if absent.
	Get(ctx context.Context, id string) (*conversation.Session, error)

	// Delete removes a session, reporting whether a record existed.
	Delete(ctx context.Context, id string) (bool, error)

	// ListRecent returns up to limit sessions ordered by UpdatedAt, newest first.
	ListRecent(ctx context.Context, limit int) ([]*conversation.Session, error)

	// Ping verifies the backend can accept writes.
	Ping(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}
