package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/hookroute/internal/logging"
)

// SQLiteStore keeps the ledger as a single JSON row. Each Update runs in an
// immediate transaction, so concurrent processes serialize on the database
// lock.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (and creates if needed) the ledger database at path.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(pctx, `CREATE TABLE IF NOT EXISTS ledger (
  id         INTEGER PRIMARY KEY CHECK (id = 1),
  state      JSON NOT NULL DEFAULT '{}',
  updated_at TEXT
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap ledger table: %w", err)
	}
	return &SQLiteStore{db: db, logger: logging.OrNop(logger).Named("ledger")}, nil
}

// Load reads the ledger row, or an empty state if none exists yet. A corrupt
// row is logged and treated as empty.
func (s *SQLiteStore) Load(ctx context.Context) (State, error) {
	return s.readRow(ctx, s.db)
}

// Update reads, mutates and writes the row inside one transaction.
func (s *SQLiteStore) Update(ctx context.Context, fn func(*State) error) (State, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return State{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	st, err := s.readRow(ctx, tx)
	if err != nil {
		return State{}, err
	}
	if err := fn(&st); err != nil {
		return State{}, err
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return State{}, fmt.Errorf("marshal ledger: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
INSERT INTO ledger(id, state, updated_at)
VALUES(1, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  state = excluded.state,
  updated_at = excluded.updated_at;
`, string(raw), now)
	if err != nil {
		return State{}, fmt.Errorf("upsert ledger: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return State{}, fmt.Errorf("commit tx: %w", err)
	}
	return st, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) readRow(ctx context.Context, q queryRower) (State, error) {
	var raw string
	err := q.QueryRowContext(ctx, "SELECT state FROM ledger WHERE id = 1;").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read ledger: %w", err)
	}
	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.logger.Warn("stored ledger is corrupt, starting from empty state", zap.Error(err))
		return State{}, nil
	}
	st.UsagePercent = Clamp(st.UsagePercent)
	return st, nil
}
