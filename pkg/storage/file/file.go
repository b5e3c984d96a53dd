// Package file provides a storage driver that keeps one JSON document per
// session in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/papercomputeco/medibot/pkg/conversation"
	"github.com/papercomputeco/medibot/pkg/storage"
)

const (
	ext       = ".json"
	probeName = ".health_check"
)

// Driver implements storage.Driver on the local filesystem.
type Driver struct {
	dir string
}

// NewDriver creates the directory if needed and returns a driver rooted there.
func NewDriver(dir string) (*Driver, error) {
	if dir == "" {
		return nil, errors.New("session storage directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory %s: %w", dir, err)
	}
	return &Driver{dir: dir}, nil
}

// Dir returns the directory the driver writes to.
func (d *Driver) Dir() string {
	return d.dir
}

// path maps an id to its record. Ids that would escape the directory are
// rejected and behave as unknown sessions.
func (d *Driver) path(id string) (string, bool) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", false
	}
	return filepath.Join(d.dir, id+ext), true
}

// Put writes the record through a temp file and rename so a crash never
// leaves a half-written session behind.
func (d *Driver) Put(_ context.Context, session *conversation.Session) error {
	if session == nil {
		return errors.New("cannot store nil session")
	}
	p, ok := d.path(session.ID)
	if !ok {
		return fmt.Errorf("invalid session id %q", session.ID)
	}

	data, err := storage.Marshal(session)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.dir, "."+session.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing session %s: %w", session.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing session %s: %w", session.ID, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming session %s: %w", session.ID, err)
	}
	return nil
}

// Get reads a session record.
func (d *Driver) Get(_ context.Context, id string) (*conversation.Session, error) {
	p, ok := d.path(id)
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	s, err := storage.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if s.ID != id {
		return nil, fmt.Errorf("session file %s holds record %q", id+ext, s.ID)
	}
	return s, nil
}

// Delete removes a session record.
func (d *Driver) Delete(_ context.Context, id string) (bool, error) {
	p, ok := d.path(id)
	if !ok {
		return false, nil
	}

	err := os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting session %s: %w", id, err)
	}
	return true, nil
}

// ListRecent decodes every record in the directory and returns the newest.
// Unreadable records and records whose id does not match their file name are
// skipped.
func (d *Driver) ListRecent(_ context.Context, limit int) ([]*conversation.Session, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	sessions := make([]*conversation.Session, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ext {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.dir, name))
		if err != nil {
			continue
		}
		s, err := storage.Unmarshal(data)
		if err != nil || s.ID+ext != name {
			continue
		}
		sessions = append(sessions, s)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Ping writes and removes a probe file.
func (d *Driver) Ping(context.Context) error {
	p := filepath.Join(d.dir, probeName)
	if err := os.WriteFile(p, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("session directory not writable: %w", err)
	}
	return os.Remove(p)
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
