// Package priority derives a dispatch priority from the operation type and
// the size of the artifact being touched.
package priority

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/hookroute/internal/model"
)

// Kind groups artifacts that share a line-count ceiling.
type Kind string

const (
	KindImplementation Kind = "implementation"
	KindTest           Kind = "test"
	KindEntry          Kind = "entry"
)

// Ceilings are the per-kind line counts above which an artifact escalates
// to HIGH.
type Ceilings struct {
	Implementation int
	Test           int
	Entry          int
}

// For returns the ceiling that applies to k.
func (c Ceilings) For(k Kind) int {
	switch k {
	case KindTest:
		return c.Test
	case KindEntry:
		return c.Entry
	default:
		return c.Implementation
	}
}

// Metrics describes the artifact a dispatch touches. Zero Metrics means no
// artifact.
type Metrics struct {
	Path  string
	Kind  Kind
	Lines int
}

// Assessment is the classification result with a human-readable reason.
type Assessment struct {
	Priority model.Priority
	Reason   string
}

var entryFiles = map[string]bool{
	"__init__.py": true,
	"index.js":    true,
	"index.ts":    true,
	"main.go":     true,
	"doc.go":      true,
	"mod.rs":      true,
	"lib.rs":      true,
	"main.rs":     true,
}

// KindOf infers the artifact kind from its file name.
func KindOf(path string) Kind {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case entryFiles[base]:
		return KindEntry
	case strings.HasSuffix(base, "_test.go"),
		strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"),
		strings.HasSuffix(base, "_test.py"),
		strings.Contains(base, ".test."),
		strings.Contains(base, ".spec."),
		strings.HasSuffix(base, "_spec.rb"):
		return KindTest
	default:
		return KindImplementation
	}
}

// Measure counts the lines of the artifact at path. A missing file or a
// directory yields zero Metrics and no error.
func Measure(path string) (Metrics, error) {
	if path == "" {
		return Metrics{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metrics{}, nil
		}
		return Metrics{}, fmt.Errorf("measure %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Metrics{}, fmt.Errorf("measure %s: %w", path, err)
	}
	if info.IsDir() {
		return Metrics{}, nil
	}

	lines, err := countLines(f)
	if err != nil {
		return Metrics{}, fmt.Errorf("measure %s: %w", path, err)
	}
	return Metrics{Path: path, Kind: KindOf(path), Lines: lines}, nil
}

func countLines(r io.Reader) (int, error) {
	br := bufio.NewReaderSize(r, 32*1024)
	buf := make([]byte, 32*1024)
	lines := 0
	last := byte('\n')
	for {
		n, err := br.Read(buf)
		if n > 0 {
			lines += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	// Trailing line without a newline still counts.
	if last != '\n' {
		lines++
	}
	return lines, nil
}

// Classify maps an operation type and artifact metrics to a priority.
//
//	security                      -> HIGH
//	artifact above its ceiling    -> HIGH
//	quality, formatting           -> MEDIUM
//	anything else                 -> LOW
func Classify(opType string, m Metrics, c Ceilings) Assessment {
	opType = model.NormalizeOperationType(opType)

	if opType == model.OpSecurity {
		return Assessment{Priority: model.PriorityHigh, Reason: "security operation"}
	}
	if m.Lines > 0 {
		kind := m.Kind
		if kind == "" {
			kind = KindOf(m.Path)
		}
		if ceiling := c.For(kind); ceiling > 0 && m.Lines > ceiling {
			return Assessment{
				Priority: model.PriorityHigh,
				Reason:   fmt.Sprintf("%s artifact has %d lines > %d ceiling", kind, m.Lines, ceiling),
			}
		}
	}
	if opType == model.OpQuality || opType == model.OpFormatting {
		return Assessment{Priority: model.PriorityMedium, Reason: opType + " operation"}
	}
	return Assessment{Priority: model.PriorityLow, Reason: "advisory operation"}
}
