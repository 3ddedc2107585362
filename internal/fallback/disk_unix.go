//go:build unix

package fallback

import (
	"context"
	"fmt"
	"syscall"

	"github.com/dustin/go-humanize"
)

func checkDisk(_ context.Context, _ *Env, t Target) (Status, string) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(t.Dir(), &st); err != nil {
		return StatusNotApplicable, "statfs: " + err.Error()
	}
	free := int64(st.Bavail) * int64(st.Bsize)
	total := int64(st.Blocks) * int64(st.Bsize)
	if total == 0 {
		return StatusNotApplicable, "empty filesystem"
	}
	pct := float64(free) / float64(total) * 100
	msg := fmt.Sprintf("%s free of %s (%.0f%%)", humanize.IBytes(uint64(free)), humanize.IBytes(uint64(total)), pct)
	if pct < 10 {
		return StatusWarn, msg
	}
	return StatusOK, msg
}
