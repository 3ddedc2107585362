// Package config loads hookroute's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// StateDir is the fixed directory, relative to the project root, that holds
// configuration, handler descriptors and persisted state.
const StateDir = ".hookroute"

// FileName is the config file name inside StateDir.
const FileName = "config.yaml"

// RegistryConfig locates the handler catalog and descriptor directories.
type RegistryConfig struct {
	Catalog      string `yaml:"catalog"`
	PrimaryDir   string `yaml:"primary_dir"`
	SecondaryDir string `yaml:"secondary_dir"`
	SpawnMarker  string `yaml:"spawn_marker"`
}

// RuleSpec is one intent rule as written in YAML.
// Kind is "marker" (whole-token match) or "pattern" (regular expression).
type RuleSpec struct {
	Kind    string `yaml:"kind"`
	Match   string `yaml:"match"`
	Handler string `yaml:"handler"`
}

// IntentConfig adds rules ahead of the built-in table.
type IntentConfig struct {
	Rules           []RuleSpec `yaml:"rules"`
	DisableDefaults bool       `yaml:"disable_defaults"`
}

// PriorityConfig holds per-kind line-count ceilings. An artifact above its
// ceiling escalates to HIGH.
type PriorityConfig struct {
	ImplementationLines int `yaml:"implementation_lines"`
	TestLines           int `yaml:"test_lines"`
	EntryLines          int `yaml:"entry_lines"`
}

// AdmissionConfig holds the circuit-breaker band edges in percent.
type AdmissionConfig struct {
	Elevated float64 `yaml:"elevated"`
	Critical float64 `yaml:"critical"`
	HardStop float64 `yaml:"hard_stop"`
}

// Costs is the usage charged per terminal outcome before priority scaling.
type Costs struct {
	Success  float64 `yaml:"success"`
	Fallback float64 `yaml:"fallback"`
	Blocked  float64 `yaml:"blocked"`
	Rejected float64 `yaml:"rejected"`
}

// Multipliers scale a cost by priority.
type Multipliers struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
	Low    float64 `yaml:"low"`
}

// LedgerConfig selects and tunes the resource ledger backend.
type LedgerConfig struct {
	Backend        string        `yaml:"backend"`
	Path           string        `yaml:"path"`
	SQLitePath     string        `yaml:"sqlite_path"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
	MaxOperations  int           `yaml:"max_operations"`
	DecayPerMinute float64       `yaml:"decay_per_minute"`
	Costs          Costs         `yaml:"costs"`
	Multipliers    Multipliers   `yaml:"multipliers"`
}

// AuditConfig locates the audit log and sets its rotation policy.
type AuditConfig struct {
	Path        string        `yaml:"path"`
	RotateAt    int           `yaml:"rotate_at"`
	Keep        int           `yaml:"keep"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// FallbackConfig bounds the degraded diagnostic path.
type FallbackConfig struct {
	StepTimeout    time.Duration     `yaml:"step_timeout"`
	MaxReportBytes int               `yaml:"max_report_bytes"`
	Categories     map[string]string `yaml:"categories"`
}

// ExecutorConfig selects how an admitted handler is invoked.
type ExecutorConfig struct {
	Mode    string        `yaml:"mode"`
	Command []string      `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
	Grace   time.Duration `yaml:"grace"`
}

// Webhook is a notification endpoint.
type Webhook struct {
	URL     string            `yaml:"url"`
	Format  string            `yaml:"format,omitempty"` // "generic" (default) or "slack"
	Events  []string          `yaml:"events"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// NotifyConfig configures the fire-and-forget notification sink.
type NotifyConfig struct {
	Webhooks   []Webhook     `yaml:"webhooks"`
	MarkerPath string        `yaml:"marker_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// GuardConfig configures the command-security checker.
type GuardConfig struct {
	DenylistPath string `yaml:"denylist_path"`
}

// Config is the full hookroute configuration.
type Config struct {
	Registry  RegistryConfig  `yaml:"registry"`
	Intent    IntentConfig    `yaml:"intent"`
	Priority  PriorityConfig  `yaml:"priority"`
	Admission AdmissionConfig `yaml:"admission"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Audit     AuditConfig     `yaml:"audit"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Notify    NotifyConfig    `yaml:"notify"`
	Guard     GuardConfig     `yaml:"guard"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			Catalog:      filepath.Join(StateDir, "handlers", "registry.yaml"),
			PrimaryDir:   filepath.Join(StateDir, "handlers", "primary"),
			SecondaryDir: filepath.Join(StateDir, "handlers", "secondary"),
			SpawnMarker:  "capability: spawn",
		},
		Priority: PriorityConfig{
			ImplementationLines: 500,
			TestLines:           800,
			EntryLines:          100,
		},
		Admission: AdmissionConfig{
			Elevated: 70,
			Critical: 85,
			HardStop: 95,
		},
		Ledger: LedgerConfig{
			Backend:        "file",
			Path:           filepath.Join(StateDir, "state", "ledger.json"),
			SQLitePath:     filepath.Join(StateDir, "state", "ledger.db"),
			LockTimeout:    2 * time.Second,
			MaxOperations:  50,
			DecayPerMinute: 1,
			Costs:          Costs{Success: 5, Fallback: 2},
			Multipliers:    Multipliers{High: 1.5, Medium: 1, Low: 0.5},
		},
		Audit: AuditConfig{
			Path:        filepath.Join(StateDir, "state", "audit.jsonl"),
			RotateAt:    200,
			Keep:        100,
			LockTimeout: 2 * time.Second,
		},
		Fallback: FallbackConfig{
			StepTimeout:    5 * time.Second,
			MaxReportBytes: 4096,
		},
		Executor: ExecutorConfig{
			Mode:    "advise",
			Timeout: 60 * time.Second,
			Grace:   5 * time.Second,
		},
		Notify: NotifyConfig{
			MarkerPath: filepath.Join(StateDir, "state", "initialized"),
			Timeout:    5 * time.Second,
		},
		Guard: GuardConfig{
			DenylistPath: filepath.Join(StateDir, "denylist.yaml"),
		},
	}
}

// Load reads configuration from a YAML file.
// Empty path falls back to ~/.hookroute/config.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Default(), nil
		}
		path = filepath.Join(home, StateDir, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Locate picks the config file for a project root. An explicit path wins;
// otherwise <root>/.hookroute/config.yaml is used when present, else the
// per-user file.
func Locate(root, explicit string) string {
	if explicit != "" {
		return explicit
	}
	local := filepath.Join(root, StateDir, FileName)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	return ""
}

// LoadForRoot is Locate followed by Load.
func LoadForRoot(root, explicit string) (*Config, error) {
	return Load(Locate(root, explicit))
}

// Validate rejects configurations the router cannot run with.
func (c *Config) Validate() error {
	var errs []error

	a := c.Admission
	if !(0 <= a.Elevated && a.Elevated <= a.Critical && a.Critical <= a.HardStop && a.HardStop <= 100) {
		errs = append(errs, fmt.Errorf("admission bands must satisfy 0 <= elevated <= critical <= hard_stop <= 100 (got %v/%v/%v)",
			a.Elevated, a.Critical, a.HardStop))
	}

	p := c.Priority
	if p.ImplementationLines <= 0 || p.TestLines <= 0 || p.EntryLines <= 0 {
		errs = append(errs, errors.New("priority ceilings must be positive"))
	}

	switch c.Ledger.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("ledger.backend must be file or sqlite (got %q)", c.Ledger.Backend))
	}
	if c.Ledger.MaxOperations <= 0 {
		errs = append(errs, errors.New("ledger.max_operations must be positive"))
	}
	if c.Ledger.DecayPerMinute < 0 {
		errs = append(errs, errors.New("ledger.decay_per_minute must not be negative"))
	}

	if c.Audit.RotateAt <= 0 || c.Audit.Keep <= 0 || c.Audit.Keep > c.Audit.RotateAt {
		errs = append(errs, fmt.Errorf("audit rotation needs 0 < keep <= rotate_at (got keep=%d rotate_at=%d)",
			c.Audit.Keep, c.Audit.RotateAt))
	}

	if c.Fallback.StepTimeout <= 0 {
		errs = append(errs, errors.New("fallback.step_timeout must be positive"))
	}
	if c.Fallback.MaxReportBytes <= 0 {
		errs = append(errs, errors.New("fallback.max_report_bytes must be positive"))
	}

	switch c.Executor.Mode {
	case "advise", "none":
	case "command":
		if len(c.Executor.Command) == 0 {
			errs = append(errs, errors.New("executor.command is required in command mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("executor.mode must be advise, command or none (got %q)", c.Executor.Mode))
	}

	for i, r := range c.Intent.Rules {
		if r.Kind != "marker" && r.Kind != "pattern" {
			errs = append(errs, fmt.Errorf("intent.rules[%d]: kind must be marker or pattern", i))
		}
		if r.Match == "" || r.Handler == "" {
			errs = append(errs, fmt.Errorf("intent.rules[%d]: match and handler are required", i))
		}
	}

	for i, w := range c.Notify.Webhooks {
		if w.URL == "" {
			errs = append(errs, fmt.Errorf("notify.webhooks[%d]: url is required", i))
		}
	}

	return errors.Join(errs...)
}

// Resolve returns p anchored at root unless it is already absolute.
func Resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

const yamlHeader = `# hookroute configuration.
#
# Relative paths are resolved against the project root (--root).
# admission: usage below elevated admits everything, [elevated, critical)
# admits HIGH and MEDIUM, [critical, hard_stop) admits HIGH only and
# hard_stop or above blocks everything.
# executor.mode: advise | command | none
# ledger.backend: file | sqlite
`

// DefaultYAML renders the default configuration as a commented YAML file.
func DefaultYAML() ([]byte, error) {
	body, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("marshal default config: %w", err)
	}
	return append([]byte(yamlHeader), body...), nil
}
