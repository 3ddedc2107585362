package fallback

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	maxScanFiles  = 500
	maxScanBytes  = 1 << 20
	maxListed     = 5
	toolWaitDelay = 200 * time.Millisecond
)

var skipDirs = map[string]bool{
	".git":         true,
	".hookroute":   true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

var errScanLimit = errors.New("scan limit reached")

// walkFiles lists regular files under dir accepted by keep, skipping
// dependency and VCS directories and stopping at maxScanFiles.
func walkFiles(ctx context.Context, dir string, keep func(path string) bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == dir {
				return walkErr
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || (keep != nil && !keep(path)) {
			return nil
		}
		out = append(out, path)
		if len(out) >= maxScanFiles {
			return errScanLimit
		}
		return nil
	})
	if errors.Is(err, errScanLimit) {
		err = nil
	}
	return out, err
}

// targetFiles is the artifact itself when it is a file, otherwise the
// accepted files under the artifact directory (or the working directory).
func targetFiles(ctx context.Context, t Target, keep func(path string) bool) ([]string, error) {
	if t.Info != nil && !t.Info.IsDir() {
		if keep == nil || keep(t.Path) {
			return []string{t.Path}, nil
		}
		return nil, nil
	}
	return walkFiles(ctx, t.Dir(), keep)
}

// hit is one matching line.
type hit struct {
	Path string
	Line int
	Tag  string
}

func (h hit) String() string {
	if h.Tag != "" {
		return fmt.Sprintf("%s:%d (%s)", h.Path, h.Line, h.Tag)
	}
	return fmt.Sprintf("%s:%d", h.Path, h.Line)
}

// scanLines calls fn for every line of every file, stopping when ctx ends.
// Files are read up to maxScanBytes.
func scanLines(ctx context.Context, files []string, fn func(path string, n int, line string)) error {
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		sc := bufio.NewScanner(io.LimitReader(f, maxScanBytes))
		sc.Buffer(make([]byte, 64*1024), maxScanBytes)
		n := 0
		for sc.Scan() {
			n++
			if n%1000 == 0 {
				if err := ctx.Err(); err != nil {
					f.Close()
					return err
				}
			}
			fn(path, n, sc.Text())
		}
		f.Close()
	}
	return nil
}

// namedPattern is a regexp with a label used in findings.
type namedPattern struct {
	Name string
	Re   *regexp.Regexp
}

func grep(ctx context.Context, files []string, patterns []namedPattern) ([]hit, error) {
	var hits []hit
	err := scanLines(ctx, files, func(path string, n int, line string) {
		for _, p := range patterns {
			if p.Re.MatchString(line) {
				hits = append(hits, hit{Path: path, Line: n, Tag: p.Name})
				return
			}
		}
	})
	return hits, err
}

// summarizeHits renders at most maxListed hits plus a count of the rest.
func summarizeHits(label string, hits []hit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", len(hits), label)
	for i, h := range hits {
		if i == maxListed {
			fmt.Fprintf(&b, "\n  ... %d more", len(hits)-maxListed)
			break
		}
		b.WriteString("\n  " + h.String())
	}
	return b.String()
}

func summarizeList(label string, items []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", len(items), label)
	for i, it := range items {
		if i == maxListed {
			fmt.Fprintf(&b, "\n  ... %d more", len(items)-maxListed)
			break
		}
		b.WriteString("\n  " + it)
	}
	return b.String()
}

// runTool runs an external program found on PATH. A missing tool reports
// ok=false so the step can be marked not applicable.
func runTool(ctx context.Context, env *Env, name string, args ...string) (out string, ok bool, err error) {
	path, lookErr := env.LookPath(name)
	if lookErr != nil {
		return "", false, nil
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = toolWaitDelay
	raw, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(raw)), true, err
}

// repoRoot walks up from dir looking for a .git entry.
func repoRoot(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir, false
	}
	for cur := abs; ; {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return cur, true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, false
		}
		cur = parent
	}
}

func parentDir(path string) string {
	d := filepath.Dir(path)
	if d == "" {
		return "."
	}
	return d
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

var sourceExts = []string{
	".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".rb", ".rs", ".java", ".kt",
	".c", ".h", ".cc", ".cpp", ".cs", ".php", ".sh", ".swift", ".scala",
}

func isSource(path string) bool { return hasExt(path, sourceExts...) }

func isConfigLike(path string) bool {
	return hasExt(path, ".yml", ".yaml", ".json", ".toml", ".env", ".ini", ".cfg", ".conf", ".properties")
}
