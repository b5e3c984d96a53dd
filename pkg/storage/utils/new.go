// Package storageutils builds a storage.Driver from configuration.
package storageutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/medibot/pkg/storage"
	"github.com/papercomputeco/medibot/pkg/storage/file"
	"github.com/papercomputeco/medibot/pkg/storage/inmemory"
	"github.com/papercomputeco/medibot/pkg/storage/postgres"
	"github.com/papercomputeco/medibot/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	// Backend is one of "file", "sqlite", "postgres" or "memory".
	Backend     string
	Path        string
	SQLitePath  string
	PostgresDSN string
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	switch o.Backend {
	case "", "file":
		return file.NewDriver(o.Path)
	case "sqlite":
		return sqlite.NewDriver(o.SQLitePath)
	case "postgres":
		if o.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		return postgres.NewDriver(ctx, o.PostgresDSN)
	case "memory", "inmemory":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported session storage backend: %s", o.Backend)
	}
}
