package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/fsutil"
	"github.com/ppiankov/hookroute/internal/logging"
)

// FileStore keeps the ledger in a JSON file. Writes go through
// write-temp-then-rename under an advisory lock on a sidecar .lock file.
type FileStore struct {
	path        string
	lockTimeout time.Duration
	logger      *zap.Logger
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string, lockTimeout time.Duration, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:        path,
		lockTimeout: lockTimeout,
		logger:      logging.OrNop(logger).Named("ledger"),
	}
}

// Path returns the ledger file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the ledger. A missing file is an empty ledger; a corrupt file
// is logged and treated as empty.
func (s *FileStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	return s.read()
}

// Update applies fn under the lock. If the lock cannot be taken in time the
// update is skipped and the lock error returned.
func (s *FileStore) Update(ctx context.Context, fn func(*State) error) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	lock, err := fsutil.Lock(s.path+".lock", s.lockTimeout)
	if err != nil {
		s.logger.Warn("ledger lock unavailable, skipping update", zap.String("path", s.path), zap.Error(err))
		return State{}, fmt.Errorf("lock ledger: %w", err)
	}
	defer lock.Unlock()

	st, err := s.read()
	if err != nil {
		return State{}, err
	}
	if err := fn(&st); err != nil {
		return State{}, err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return State{}, fmt.Errorf("marshal ledger: %w", err)
	}
	if err := fsutil.WriteAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return State{}, fmt.Errorf("write ledger: %w", err)
	}
	return st, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("read ledger: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("ledger file is corrupt, starting from empty state", zap.String("path", s.path), zap.Error(err))
		return State{}, nil
	}
	st.UsagePercent = Clamp(st.UsagePercent)
	return st, nil
}
