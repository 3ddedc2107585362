//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd || windows)

package fsutil

import "os"

func tryLock(*os.File) (bool, error) {
	return false, ErrLockUnsupported
}

func unlockFile(*os.File) {}
