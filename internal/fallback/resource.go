package fallback

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

func checkArtifactSize(ctx context.Context, _ *Env, t Target) (Status, string) {
	if !t.Exists() {
		return StatusNotApplicable, "no artifact"
	}
	if !t.Info.IsDir() {
		return StatusOK, humanize.IBytes(uint64(t.Info.Size()))
	}
	files, err := walkFiles(ctx, t.Path, nil)
	if err != nil {
		return StatusError, err.Error()
	}
	var total int64
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			total += info.Size()
		}
	}
	suffix := ""
	if len(files) >= maxScanFiles {
		suffix = " (scan limit reached)"
	}
	return StatusOK, fmt.Sprintf("%s in %d files%s", humanize.IBytes(uint64(total)), len(files), suffix)
}

// procLoadAvg and procMemInfo are variables so tests can point them at
// fixtures.
var (
	procLoadAvg = "/proc/loadavg"
	procMemInfo = "/proc/meminfo"
)

func checkLoadAvg(_ context.Context, _ *Env, _ Target) (Status, string) {
	data, err := os.ReadFile(procLoadAvg)
	if err != nil {
		return StatusNotApplicable, "load average unavailable"
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return StatusError, "unexpected loadavg format"
	}
	return StatusOK, fmt.Sprintf("load %s %s %s", fields[0], fields[1], fields[2])
}

func checkMemory(_ context.Context, _ *Env, _ Target) (Status, string) {
	data, err := os.ReadFile(procMemInfo)
	if err != nil {
		return StatusNotApplicable, "memory info unavailable"
	}
	values := map[string]int64{}
	for _, line := range strings.Split(string(data), "\n") {
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if kb, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			values[key] = kb * 1024
		}
	}
	total, avail := values["MemTotal"], values["MemAvailable"]
	if total == 0 {
		return StatusError, "MemTotal missing"
	}
	pct := float64(avail) / float64(total) * 100
	msg := fmt.Sprintf("%s available of %s (%.0f%%)", humanize.IBytes(uint64(avail)), humanize.IBytes(uint64(total)), pct)
	if pct < 10 {
		return StatusWarn, msg
	}
	return StatusOK, msg
}
