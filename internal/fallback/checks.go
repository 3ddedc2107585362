package fallback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ppiankov/hookroute/internal/priority"
)

func checkArtifact(ctx context.Context, _ *Env, t Target) (Status, string) {
	switch {
	case t.Path == "":
		return StatusNotApplicable, "no artifact given"
	case !t.Exists():
		return StatusWarn, "artifact not found: " + t.Path
	case t.Info.IsDir():
		entries, err := os.ReadDir(t.Path)
		if err != nil {
			return StatusError, err.Error()
		}
		return StatusOK, fmt.Sprintf("directory with %d entries", len(entries))
	}
	m, err := priority.Measure(t.Path)
	if err != nil {
		return StatusError, err.Error()
	}
	return StatusOK, fmt.Sprintf("%s file, %d bytes, %d lines", m.Kind, t.Info.Size(), m.Lines)
}

var projectMarkers = []string{"go.mod", "package.json", "pyproject.toml", "requirements.txt", "Cargo.toml", "pom.xml", "Gemfile"}

func checkWorkspace(ctx context.Context, _ *Env, t Target) (Status, string) {
	root, ok := repoRoot(t.Dir())
	var found []string
	for _, m := range projectMarkers {
		if _, err := os.Stat(filepath.Join(root, m)); err == nil {
			found = append(found, m)
		}
	}
	detail := "no project manifest"
	if len(found) > 0 {
		detail = "manifests: " + strings.Join(found, ", ")
	}
	if !ok {
		return StatusWarn, "not inside a git repository; " + detail
	}
	return StatusOK, "git repository at " + root + "; " + detail
}

func isTestFile(path string) bool {
	return isSource(path) && priority.KindOf(path) == priority.KindTest
}

// testScope returns the test files relevant to the target: the target
// itself when it is a test file, otherwise tests in its directory tree.
func testScope(ctx context.Context, t Target) ([]string, error) {
	if t.Info != nil && !t.Info.IsDir() && isTestFile(t.Path) {
		return []string{t.Path}, nil
	}
	return walkFiles(ctx, t.Dir(), isTestFile)
}

func checkTestFiles(ctx context.Context, _ *Env, t Target) (Status, string) {
	files, err := walkFiles(ctx, t.Dir(), isTestFile)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusWarn, "no test files under " + t.Dir()
	}
	return StatusOK, fmt.Sprintf("%d test files under %s", len(files), t.Dir())
}

var skipPatterns = []namedPattern{
	{"go skip", regexp.MustCompile(`\bt\.Skip(Now|f)?\(`)},
	{"pytest skip", regexp.MustCompile(`@pytest\.mark\.(skip|xfail)`)},
	{"unittest skip", regexp.MustCompile(`@unittest\.skip`)},
	{"js skip", regexp.MustCompile(`\b(it|describe|test)\.skip\(|\bx(it|describe)\(`)},
}

func checkSkippedTests(ctx context.Context, _ *Env, t Target) (Status, string) {
	files, err := testScope(ctx, t)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusNotApplicable, "no test files"
	}
	hits, err := grep(ctx, files, skipPatterns)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(hits) > 0 {
		return StatusWarn, summarizeHits("skipped tests", hits)
	}
	return StatusOK, fmt.Sprintf("no skipped tests in %d files", len(files))
}

var sleepPatterns = []namedPattern{
	{"time.Sleep", regexp.MustCompile(`\btime\.Sleep\(`)},
	{"sleep", regexp.MustCompile(`\b(time\.)?sleep\(`)},
	{"setTimeout", regexp.MustCompile(`\bsetTimeout\(`)},
}

func checkTestSleeps(ctx context.Context, _ *Env, t Target) (Status, string) {
	files, err := testScope(ctx, t)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusNotApplicable, "no test files"
	}
	hits, err := grep(ctx, files, sleepPatterns)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(hits) > 0 {
		return StatusWarn, summarizeHits("sleeps in tests", hits)
	}
	return StatusOK, "no sleeps in tests"
}

const maxLineColumns = 120

func checkLongLines(ctx context.Context, _ *Env, t Target) (Status, string) {
	files, err := targetFiles(ctx, t, isSource)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusNotApplicable, "no source files"
	}
	var hits []hit
	err = scanLines(ctx, files, func(path string, n int, line string) {
		if len(line) > maxLineColumns {
			hits = append(hits, hit{Path: path, Line: n, Tag: fmt.Sprintf("%d cols", len(line))})
		}
	})
	if err != nil {
		return StatusError, err.Error()
	}
	if len(hits) > 0 {
		return StatusWarn, summarizeHits(fmt.Sprintf("lines over %d columns", maxLineColumns), hits)
	}
	return StatusOK, fmt.Sprintf("no long lines in %d files", len(files))
}

var todoPattern = []namedPattern{{"marker", regexp.MustCompile(`\b(TODO|FIXME|XXX|HACK)\b`)}}

func checkTodoMarkers(ctx context.Context, _ *Env, t Target) (Status, string) {
	files, err := targetFiles(ctx, t, isSource)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusNotApplicable, "no source files"
	}
	hits, err := grep(ctx, files, todoPattern)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(hits) > 0 {
		return StatusWarn, summarizeHits("TODO/FIXME markers", hits)
	}
	return StatusOK, "no markers"
}

const maxNestingDepth = 6

// indentDepth counts leading tabs, or groups of four spaces.
func indentDepth(line string) int {
	tabs, spaces := 0, 0
	for _, r := range line {
		switch r {
		case '\t':
			tabs++
		case ' ':
			spaces++
		default:
			return tabs + spaces/4
		}
	}
	return 0 // blank line
}

func checkNesting(ctx context.Context, _ *Env, t Target) (Status, string) {
	files, err := targetFiles(ctx, t, isSource)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusNotApplicable, "no source files"
	}
	var deepest hit
	depth := 0
	err = scanLines(ctx, files, func(path string, n int, line string) {
		if d := indentDepth(line); d > depth {
			depth = d
			deepest = hit{Path: path, Line: n}
		}
	})
	if err != nil {
		return StatusError, err.Error()
	}
	if depth > maxNestingDepth {
		return StatusWarn, fmt.Sprintf("max indentation depth %d > %d at %s", depth, maxNestingDepth, deepest)
	}
	return StatusOK, fmt.Sprintf("max indentation depth %d", depth)
}

const maxToolFiles = 100

func checkGofmt(ctx context.Context, env *Env, t Target) (Status, string) {
	files, err := targetFiles(ctx, t, func(p string) bool { return hasExt(p, ".go") })
	if err != nil {
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusNotApplicable, "no Go files"
	}
	if len(files) > maxToolFiles {
		files = files[:maxToolFiles]
	}
	out, ok, err := runTool(ctx, env, "gofmt", append([]string{"-l"}, files...)...)
	if !ok {
		return StatusNotApplicable, "gofmt not installed"
	}
	if err != nil {
		return StatusError, strings.TrimSpace(out + "\n" + err.Error())
	}
	if out == "" {
		return StatusOK, fmt.Sprintf("%d Go files formatted", len(files))
	}
	return StatusWarn, summarizeList("files need gofmt", strings.Split(out, "\n"))
}

var secretPatterns = []namedPattern{
	{"aws access key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"private key", regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
	{"github token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{"slack token", regexp.MustCompile(`\bxox[abprs]-[A-Za-z0-9-]{10,}`)},
	{"assigned credential", regexp.MustCompile(`(?i)\b(api[_-]?key|secret|passw(or)?d|token)\b\s*[:=]\s*["'][^"'\s]{8,}["']`)},
}

func secretScope(path string) bool { return isSource(path) || isConfigLike(path) }

func checkSecrets(ctx context.Context, _ *Env, t Target) (Status, string) {
	files, err := targetFiles(ctx, t, secretScope)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusNotApplicable, "no source or config files"
	}
	hits, err := grep(ctx, files, secretPatterns)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(hits) > 0 {
		return StatusWarn, summarizeHits("possible secrets", hits)
	}
	return StatusOK, fmt.Sprintf("no secrets in %d files", len(files))
}

var dangerousPatterns = []namedPattern{
	{"eval", regexp.MustCompile(`(^|[^.\w])eval\(`)},
	{"os.system", regexp.MustCompile(`\bos\.system\(`)},
	{"shell=True", regexp.MustCompile(`\bshell\s*=\s*True\b`)},
	{"child_process", regexp.MustCompile(`\bchild_process\.exec\(|\bexecSync\(`)},
	{"pickle.loads", regexp.MustCompile(`\bpickle\.loads?\(`)},
	{"InsecureSkipVerify", regexp.MustCompile(`InsecureSkipVerify:\s*true`)},
	{"verify=False", regexp.MustCompile(`\bverify\s*=\s*False\b`)},
}

func checkDangerousCalls(ctx context.Context, _ *Env, t Target) (Status, string) {
	files, err := targetFiles(ctx, t, isSource)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(files) == 0 {
		return StatusNotApplicable, "no source files"
	}
	hits, err := grep(ctx, files, dangerousPatterns)
	if err != nil {
		return StatusError, err.Error()
	}
	if len(hits) > 0 {
		return StatusWarn, summarizeHits("risky calls", hits)
	}
	return StatusOK, "no risky calls"
}

func checkPermissions(ctx context.Context, _ *Env, t Target) (Status, string) {
	files, err := targetFiles(ctx, t, nil)
	if err != nil {
		return StatusError, err.Error()
	}
	var writable []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return StatusError, err.Error()
		}
		info, err := os.Lstat(f)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o002 != 0 {
			writable = append(writable, f)
		}
	}
	if len(writable) > 0 {
		return StatusWarn, summarizeList("world-writable files", writable)
	}
	return StatusOK, fmt.Sprintf("%d files checked", len(files))
}
