//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockReportsContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.lock")
	a, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer a.Close()
	b, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer b.Close()

	ok, err := tryLock(a)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tryLock(b)
	require.NoError(t, err, "contention is not an error")
	assert.False(t, ok)

	unlockFile(a)
	ok, err = tryLock(b)
	require.NoError(t, err)
	assert.True(t, ok)
	unlockFile(b)
}
