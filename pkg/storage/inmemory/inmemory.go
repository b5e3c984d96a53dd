// Package inmemory provides a map-backed session storage driver.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/papercomputeco/medibot/pkg/conversation"
	"github.com/papercomputeco/medibot/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards sessions
	mu sync.RWMutex

	// sessions maps session id to a private copy of the session
	sessions map[string]*conversation.Session
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		sessions: make(map[string]*conversation.Session),
	}
}

// Put stores a copy of the session.
func (d *Driver) Put(_ context.Context, session *conversation.Session) error {
	if session == nil {
		return errors.New("cannot store nil session")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sessions[session.ID] = session.Clone()
	return nil
}

// Get returns a copy of the stored session.
func (d *Driver) Get(_ context.Context, id string) (*conversation.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sessions[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}
	return s.Clone(), nil
}

// Delete removes a session.
func (d *Driver) Delete(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.sessions[id]
	delete(d.sessions, id)
	return ok, nil
}

// ListRecent returns the newest sessions first.
func (d *Driver) ListRecent(_ context.Context, limit int) ([]*conversation.Session, error) {
	d.mu.RLock()
	out := make([]*conversation.Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s.Clone())
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds.
func (d *Driver) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
