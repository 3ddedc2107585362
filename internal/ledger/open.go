package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backend names accepted by OpenStore.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// StoreOptions selects and locates a backend.
type StoreOptions struct {
	Backend     string
	Path        string
	SQLitePath  string
	LockTimeout time.Duration
}

// OpenStore opens the configured backend.
func OpenStore(ctx context.Context, opts StoreOptions, logger *zap.Logger) (Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Path, opts.LockTimeout, logger), nil
	case BackendSQLite:
		return OpenSQLite(ctx, opts.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", opts.Backend)
	}
}
