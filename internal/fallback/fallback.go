// Package fallback runs deterministic, bounded local diagnostics when a
// handler cannot be invoked. Each routine is a fixed list of steps; every
// step has its own timeout and a step that overruns is reported as skipped
// rather than holding up the dispatch.
package fallback

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/logging"
	"github.com/ppiankov/hookroute/internal/model"
)

// Status is the result class of one step.
type Status string

const (
	StatusOK             Status = "ok"
	StatusWarn           Status = "warn"
	StatusError          Status = "error"
	StatusSkippedTimeout Status = "skipped: timeout"
	StatusNotApplicable  Status = "skipped: not applicable"
)

// Defaults for Options.
const (
	DefaultStepTimeout    = 5 * time.Second
	DefaultMaxReportBytes = 4096
	maxStepOutput         = 1024
)

// Target is what a routine inspects.
type Target struct {
	Path          string
	Info          fs.FileInfo // nil when Path is empty or missing
	OperationType string
}

// Exists reports whether the target path was found.
func (t Target) Exists() bool { return t.Info != nil }

// Dir returns the directory to scan: the path itself for a directory, the
// parent for a file, "." when there is no artifact.
func (t Target) Dir() string {
	switch {
	case t.Info == nil:
		return "."
	case t.Info.IsDir():
		return t.Path
	default:
		return parentDir(t.Path)
	}
}

// Step is one bounded diagnostic check. Check must honor ctx.
type Step struct {
	Name    string
	Purpose string
	Check   func(ctx context.Context, env *Env, t Target) (Status, string)
}

// Routine is the fixed step list for a category.
type Routine struct {
	Category Category
	Steps    []Step
}

// Env carries the collaborators checks may use.
type Env struct {
	LookPath func(file string) (string, error)
}

// Options configures an Executor.
type Options struct {
	StepTimeout    time.Duration
	MaxReportBytes int
	// Categories maps handler names to categories ahead of the built-in map.
	Categories map[string]string
	Logger     *zap.Logger
	LookPath   func(file string) (string, error)
}

// Executor runs routines.
type Executor struct {
	routines    map[Category]Routine
	stepTimeout time.Duration
	maxReport   int
	overrides   map[string]Category
	env         *Env
	logger      *zap.Logger
}

// New returns an executor over the built-in routines.
func New(opts Options) *Executor {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.MaxReportBytes <= 0 {
		opts.MaxReportBytes = DefaultMaxReportBytes
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	overrides := make(map[string]Category, len(opts.Categories))
	for name, c := range opts.Categories {
		overrides[name] = Category(c)
	}
	return &Executor{
		routines:    builtinRoutines(),
		stepTimeout: opts.StepTimeout,
		maxReport:   opts.MaxReportBytes,
		overrides:   overrides,
		env:         &Env{LookPath: opts.LookPath},
		logger:      logging.OrNop(opts.Logger).Named("fallback"),
	}
}

// MaxReportBytes is the render cap for reports from this executor.
func (e *Executor) MaxReportBytes() int { return e.maxReport }

// Routine returns the routine for c, or the generic routine for unknown
// categories.
func (e *Executor) Routine(c Category) Routine {
	if r, ok := e.routines[c]; ok {
		return r
	}
	return e.routines[Generic]
}

// Run executes the routine for category against artifactPath. It always
// returns a report; individual step failures are recorded in it.
func (e *Executor) Run(ctx context.Context, category Category, artifactPath, opType string) *Report {
	opType = model.NormalizeOperationType(opType)
	if category == Generic && opType == model.OpSecurity {
		category = SecurityAudit
	}
	routine := e.Routine(category)

	target := Target{Path: artifactPath, OperationType: opType}
	if artifactPath != "" {
		if info, err := os.Stat(artifactPath); err == nil {
			target.Info = info
		}
	}

	report := &Report{
		Category:      routine.Category,
		Artifact:      artifactPath,
		OperationType: opType,
		StartAt:       time.Now().UTC(),
	}
	for _, step := range routine.Steps {
		sr := e.runStep(ctx, step, target)
		if sr.Status == StatusSkippedTimeout {
			e.logger.Debug("fallback step timed out", zap.String("step", step.Name), zap.Duration("timeout", e.stepTimeout))
		}
		report.Steps = append(report.Steps, sr)
	}
	report.EndAt = time.Now().UTC()
	return report
}

type stepOutcome struct {
	status Status
	output string
}

// runStep runs one check under its own deadline. The caller never waits
// past the deadline: a check still running then is abandoned and reported
// as skipped, and exits on its own once it sees the cancelled context.
func (e *Executor) runStep(parent context.Context, step Step, t Target) StepResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, e.stepTimeout)
	defer cancel()

	done := make(chan stepOutcome, 1)
	go func() {
		status, out := step.Check(ctx, e.env, t)
		done <- stepOutcome{status, out}
	}()

	sr := StepResult{Name: step.Name, Purpose: step.Purpose}
	select {
	case o := <-done:
		sr.Status, sr.Output = o.status, o.output
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			sr.Status, sr.Output = StatusSkippedTimeout, ""
		}
	case <-ctx.Done():
		sr.Status = StatusSkippedTimeout
	}
	sr.Output = capString(sr.Output, maxStepOutput)
	sr.DurationMs = time.Since(start).Milliseconds()
	return sr
}
