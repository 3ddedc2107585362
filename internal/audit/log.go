package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/fsutil"
	"github.com/ppiankov/hookroute/internal/logging"
)

// GenesisHash is the prev_hash for the first entry in a new audit log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// TimestampFormat is the layout used in record timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Default rotation policy: past 200 lines keep the most recent 100.
const (
	DefaultRotateAt = 200
	DefaultKeep     = 100
)

// Options tunes rotation and locking.
type Options struct {
	RotateAt    int
	Keep        int
	LockTimeout time.Duration
	Logger      *zap.Logger
}

// Log is an append-only JSONL audit log with SHA-256 hash chaining.
// Each record's prev_hash is the hash of the previous JSON line.
// Several processes may append to the same file: each append re-reads the
// tail under an advisory lock and replaces the file atomically.
type Log struct {
	path        string
	rotateAt    int
	keep        int
	lockTimeout time.Duration
	logger      *zap.Logger
	mu          sync.Mutex
}

// Open prepares an audit log at path. The file is created on first append.
func Open(path string, opts Options) (*Log, error) {
	if path == "" {
		return nil, errors.New("audit: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}
	if opts.RotateAt <= 0 {
		opts.RotateAt = DefaultRotateAt
	}
	if opts.Keep <= 0 || opts.Keep > opts.RotateAt {
		opts.Keep = min(DefaultKeep, opts.RotateAt)
	}
	return &Log{
		path:        path,
		rotateAt:    opts.RotateAt,
		keep:        opts.Keep,
		lockTimeout: opts.LockTimeout,
		logger:      logging.OrNop(opts.Logger).Named("audit"),
	}, nil
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Append chains rec onto the log. Timestamp and ID are filled when empty.
// The stored record (with PrevHash set) is returned.
func (l *Log) Append(rec Record) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, err := fsutil.Lock(l.path+".lock", l.lockTimeout)
	if err != nil {
		l.logger.Warn("audit lock unavailable, appending without it", zap.String("path", l.path), zap.Error(err))
	} else {
		defer lock.Unlock()
	}

	lines, err := readLines(l.path)
	if err != nil {
		return Record{}, fmt.Errorf("audit: read log: %w", err)
	}

	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().UTC().Format(TimestampFormat)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.PrevHash = GenesisHash
	if n := len(lines); n > 0 {
		rec.PrevHash = HashLine(lines[n-1])
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("audit: marshal record: %w", err)
	}
	lines = append(lines, line)

	if rotated := Rotate(lines, l.rotateAt, l.keep); len(rotated) != len(lines) {
		l.logger.Debug("audit log rotated", zap.Int("from", len(lines)), zap.Int("to", len(rotated)))
		lines = rotated
	}

	if err := fsutil.WriteAtomic(l.path, joinLines(lines), 0o600); err != nil {
		return Record{}, fmt.Errorf("audit: write log: %w", err)
	}
	return rec, nil
}

// RotateNow applies the rotation policy without appending.
// It reports whether the file changed.
func (l *Log) RotateNow() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, err := fsutil.Lock(l.path+".lock", l.lockTimeout)
	if err == nil {
		defer lock.Unlock()
	}

	lines, err := readLines(l.path)
	if err != nil {
		return false, fmt.Errorf("audit: read log: %w", err)
	}
	rotated := Rotate(lines, l.rotateAt, l.keep)
	if len(rotated) == len(lines) {
		return false, nil
	}
	if err := fsutil.WriteAtomic(l.path, joinLines(rotated), 0o600); err != nil {
		return false, fmt.Errorf("audit: write log: %w", err)
	}
	return true, nil
}

// Rotate returns lines unchanged while there are at most threshold of them,
// otherwise the most recent keep lines. Applying it twice is the same as
// applying it once.
func Rotate(lines [][]byte, threshold, keep int) [][]byte {
	if len(lines) <= threshold {
		return lines
	}
	if keep > threshold {
		keep = threshold
	}
	return lines[len(lines)-keep:]
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}

func readLines(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var lines [][]byte
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		line := make([]byte, len(sc.Bytes()))
		copy(line, sc.Bytes())
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

func joinLines(lines [][]byte) []byte {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
