package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("missing file should yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoadOverlaysOnlySpecifiedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
admission:
  elevated: 60
ledger:
  backend: sqlite
  lock_timeout: 500ms
fallback:
  categories:
    my-handler: ci-analysis
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Admission.Elevated != 60 {
		t.Errorf("expected elevated=60, got %v", cfg.Admission.Elevated)
	}
	if cfg.Admission.Critical != 85 || cfg.Admission.HardStop != 95 {
		t.Errorf("unspecified bands should keep defaults, got %+v", cfg.Admission)
	}
	if cfg.Ledger.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.Ledger.Backend)
	}
	if cfg.Ledger.LockTimeout != 500*time.Millisecond {
		t.Errorf("expected 500ms lock timeout, got %v", cfg.Ledger.LockTimeout)
	}
	if cfg.Ledger.MaxOperations != 50 {
		t.Errorf("expected default max_operations=50, got %d", cfg.Ledger.MaxOperations)
	}
	if cfg.Fallback.Categories["my-handler"] != "ci-analysis" {
		t.Errorf("expected category override, got %v", cfg.Fallback.Categories)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("admission: [unclosed"), 0644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bands.yaml")
	os.WriteFile(path, []byte("admission:\n  elevated: 90\n  critical: 80\n"), 0644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-monotonic bands")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"band above 100", func(c *Config) { c.Admission.HardStop = 120 }},
		{"zero ceiling", func(c *Config) { c.Priority.TestLines = 0 }},
		{"unknown backend", func(c *Config) { c.Ledger.Backend = "redis" }},
		{"keep above rotate", func(c *Config) { c.Audit.Keep = 300 }},
		{"command mode without command", func(c *Config) { c.Executor.Mode = "command" }},
		{"unknown executor", func(c *Config) { c.Executor.Mode = "shell" }},
		{"bad rule kind", func(c *Config) {
			c.Intent.Rules = []RuleSpec{{Kind: "glob", Match: "x", Handler: "y"}}
		}},
		{"webhook without url", func(c *Config) { c.Notify.Webhooks = []Webhook{{Events: []string{"blocked"}}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLocatePrefersProjectFile(t *testing.T) {
	root := t.TempDir()
	if got := Locate(root, "/explicit.yaml"); got != "/explicit.yaml" {
		t.Errorf("explicit path should win, got %q", got)
	}
	if got := Locate(root, ""); got != "" {
		t.Errorf("expected empty path without project file, got %q", got)
	}

	local := filepath.Join(root, StateDir, FileName)
	os.MkdirAll(filepath.Dir(local), 0755)
	os.WriteFile(local, []byte("{}"), 0644)
	if got := Locate(root, ""); got != local {
		t.Errorf("expected %q, got %q", local, got)
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve("/proj", ".hookroute/x"); got != "/proj/.hookroute/x" {
		t.Errorf("got %q", got)
	}
	if got := Resolve("/proj", "/abs/x"); got != "/abs/x" {
		t.Errorf("absolute path should pass through, got %q", got)
	}
	if got := Resolve("/proj", ""); got != "" {
		t.Errorf("empty path should stay empty, got %q", got)
	}
}

func TestDefaultYAMLRoundTrips(t *testing.T) {
	data, err := DefaultYAML()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, data, 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("default YAML should load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("default YAML drifted from Default() (-want +got):\n%s", diff)
	}
}
