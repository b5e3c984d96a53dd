package vocab

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a vocabulary file into a Holder whenever it changes.
type Watcher struct {
	path    string
	holder  *Holder
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher watches the directory containing path. Editors often replace
// files by rename, so watching the file itself would lose track of it.
func NewWatcher(path string, holder *Holder, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating vocabulary watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		path:    filepath.Clean(path),
		holder:  holder,
		logger:  logger,
		watcher: fw,
	}, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("vocabulary watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	v, err := Load(w.path)
	if err != nil {
		// Keep serving the previous lists on a bad edit.
		w.logger.Warn("vocabulary reload failed", "path", w.path, "error", err)
		return
	}
	w.holder.Set(v)
	w.logger.Info("vocabulary reloaded", "path", w.path,
		"keywords", len(v.Keywords), "emergency", len(v.Emergency))
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
