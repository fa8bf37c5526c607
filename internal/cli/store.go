package cli

import (
	"context"
	"fmt"

	"github.com/formweave/formweave/internal/config"
	"github.com/formweave/formweave/internal/store"
)

// openReader connects to the configured store. The returned closer must be
// called once the command is done with the reader.
func openReader(ctx context.Context, settings *config.Settings) (store.Reader, func(), error) {
	switch settings.Store.Driver {
	case "sqlite":
		db, err := store.Open(settings.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store %s: %w", settings.Store.Path, err)
		}
		return db, func() { db.Close() }, nil
	case "postgres":
		pool, err := store.Connect(ctx, settings.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres store: %w", err)
		}
		return pool, func() { pool.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", settings.Store.Driver)
	}
}
