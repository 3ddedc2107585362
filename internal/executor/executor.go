// Package executor invokes a resolved handler. Invocation is best-effort:
// the dispatcher treats every error from an Executor as a reason to run the
// fallback routine instead.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/model"
)

// ErrNoExecutor is returned by the none executor.
var ErrNoExecutor = errors.New("no handler executor configured")

// Modes accepted by New.
const (
	ModeAdvise  = "advise"
	ModeCommand = "command"
	ModeNone    = "none"
)

// Invocation is what an executor receives for one admitted dispatch.
type Invocation struct {
	ID            string                  `json:"id"`
	Handler       model.HandlerDescriptor `json:"handler"`
	Parent        string                  `json:"parent,omitempty"`
	Priority      model.Priority          `json:"priority"`
	OperationType string                  `json:"operation_type"`
	ArtifactPath  string                  `json:"artifact_path,omitempty"`
	Description   string                  `json:"description,omitempty"`
	Prompt        string                  `json:"prompt,omitempty"`
}

// Result is the output of a successful invocation.
type Result struct {
	Output   string
	Duration time.Duration
}

// Executor runs a handler.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) (Result, error)
}

// Options selects and configures an executor.
type Options struct {
	Mode    string
	Command []string
	Timeout time.Duration
	Grace   time.Duration
	Logger  *zap.Logger
}

// New returns the executor for opts.Mode. An empty mode means advise.
func New(opts Options) (Executor, error) {
	switch opts.Mode {
	case "", ModeAdvise:
		return Advise{}, nil
	case ModeCommand:
		return NewCommand(opts.Command, opts.Timeout, opts.Grace, opts.Logger)
	case ModeNone:
		return None{}, nil
	}
	return nil, fmt.Errorf("unknown executor mode %q (want advise, command or none)", opts.Mode)
}

// Directive is the routing instruction the advise executor hands back to
// the host.
type Directive struct {
	Route         string         `json:"route"`
	Tier          model.Tier     `json:"tier"`
	CanSpawn      bool           `json:"can_spawn"`
	Priority      model.Priority `json:"priority"`
	OperationType string         `json:"operation_type"`
	ArtifactPath  string         `json:"artifact_path,omitempty"`
	Parent        string         `json:"parent,omitempty"`
	DispatchID    string         `json:"dispatch_id"`
	Message       string         `json:"message"`
}

// Advise does not run anything itself. It returns a directive naming the
// handler so the host can load it.
type Advise struct{}

// Execute implements Executor.
func (Advise) Execute(_ context.Context, inv Invocation) (Result, error) {
	if inv.Handler.Name == "" {
		return Result{}, errors.New("advise: invocation has no handler")
	}
	d := Directive{
		Route:         inv.Handler.Name,
		Tier:          inv.Handler.Tier,
		CanSpawn:      inv.Handler.MaySpawn(),
		Priority:      inv.Priority,
		OperationType: inv.OperationType,
		ArtifactPath:  inv.ArtifactPath,
		Parent:        inv.Parent,
		DispatchID:    inv.ID,
		Message:       fmt.Sprintf("route to %s (%s, %s priority)", inv.Handler.Name, inv.Handler.Tier, inv.Priority),
	}
	data, err := json.Marshal(d)
	if err != nil {
		return Result{}, fmt.Errorf("advise: %w", err)
	}
	return Result{Output: string(data)}, nil
}

// None always fails, which sends every admitted dispatch to fallback.
type None struct{}

// Execute implements Executor.
func (None) Execute(context.Context, Invocation) (Result, error) {
	return Result{}, ErrNoExecutor
}
