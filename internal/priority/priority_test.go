package priority

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/hookroute/internal/model"
)

var testCeilings = Ceilings{Implementation: 500, Test: 800, Entry: 100}

func TestKindOf(t *testing.T) {
	tests := map[string]Kind{
		"internal/x/handler.go":      KindImplementation,
		"internal/x/handler_test.go": KindTest,
		"tests/test_api.py":          KindTest,
		"src/app.test.ts":            KindTest,
		"src/app.spec.js":            KindTest,
		"spec/user_spec.rb":          KindTest,
		"pkg/__init__.py":            KindEntry,
		"cmd/tool/main.go":           KindEntry,
		"src/index.ts":               KindEntry,
		"src/lib.rs":                 KindEntry,
		"README.md":                  KindImplementation,
	}
	for path, want := range tests {
		if got := KindOf(path); got != want {
			t.Errorf("KindOf(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		opType string
		m      Metrics
		want   model.Priority
	}{
		{"security always high", "security", Metrics{}, model.PriorityHigh},
		{"security case-insensitive", "SECURITY", Metrics{}, model.PriorityHigh},
		{"quality medium", "quality", Metrics{Lines: 10, Kind: KindImplementation}, model.PriorityMedium},
		{"empty defaults to quality", "", Metrics{}, model.PriorityMedium},
		{"formatting medium", "formatting", Metrics{}, model.PriorityMedium},
		{"advisory low", "testing", Metrics{}, model.PriorityLow},
		{"impl at ceiling stays", "testing", Metrics{Lines: 500, Kind: KindImplementation}, model.PriorityLow},
		{"impl over ceiling high", "testing", Metrics{Lines: 501, Kind: KindImplementation}, model.PriorityHigh},
		{"test file gets larger ceiling", "quality", Metrics{Lines: 700, Kind: KindTest}, model.PriorityMedium},
		{"test file over ceiling", "quality", Metrics{Lines: 801, Kind: KindTest}, model.PriorityHigh},
		{"entry file small ceiling", "docs", Metrics{Lines: 101, Kind: KindEntry}, model.PriorityHigh},
		{"kind inferred from path", "docs", Metrics{Lines: 150, Path: "pkg/__init__.py"}, model.PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.opType, tt.m, testCeilings)
			if got.Priority != tt.want {
				t.Errorf("Classify(%q, %+v) = %s (%s), want %s", tt.opType, tt.m, got.Priority, got.Reason, tt.want)
			}
			if got.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	m := Metrics{Lines: 600, Kind: KindImplementation}
	a := Classify("quality", m, testCeilings)
	b := Classify("quality", m, testCeilings)
	if a != b {
		t.Errorf("expected identical results, got %+v and %+v", a, b)
	}
}

func TestMeasure(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "big_test.go")
	os.WriteFile(path, []byte(strings.Repeat("x\n", 42)), 0644)
	m, err := Measure(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Lines != 42 || m.Kind != KindTest {
		t.Errorf("expected 42 lines of test, got %+v", m)
	}

	noNewline := filepath.Join(dir, "a.go")
	os.WriteFile(noNewline, []byte("one\ntwo"), 0644)
	m, _ = Measure(noNewline)
	if m.Lines != 2 {
		t.Errorf("expected 2 lines, got %d", m.Lines)
	}

	empty := filepath.Join(dir, "empty.go")
	os.WriteFile(empty, nil, 0644)
	m, _ = Measure(empty)
	if m.Lines != 0 {
		t.Errorf("expected 0 lines for empty file, got %d", m.Lines)
	}
}

func TestMeasureMissingOrDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"", filepath.Join(dir, "missing.go"), dir} {
		m, err := Measure(p)
		if err != nil {
			t.Errorf("Measure(%q): unexpected error %v", p, err)
		}
		if m != (Metrics{}) {
			t.Errorf("Measure(%q): expected zero metrics, got %+v", p, m)
		}
	}
}
