package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/logging"
)

const (
	// DefaultTimeout bounds one handler process.
	DefaultTimeout = 60 * time.Second
	// DefaultGrace is the wait between SIGTERM and SIGKILL.
	DefaultGrace = 5 * time.Second

	maxOutputBytes = 64 * 1024
	maxStderrBytes = 4 * 1024
)

// Command runs an external program per invocation. The invocation is
// written to its stdin as JSON; stdout is the result.
type Command struct {
	argv    []string
	timeout time.Duration
	grace   time.Duration
	logger  *zap.Logger
}

// NewCommand validates argv and applies defaults.
func NewCommand(argv []string, timeout, grace time.Duration, logger *zap.Logger) (*Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("command executor: no command configured")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Command{
		argv:    argv,
		timeout: timeout,
		grace:   grace,
		logger:  logging.OrNop(logger).Named("executor"),
	}, nil
}

// Execute implements Executor. The process is not started with
// CommandContext: on timeout or cancellation it gets SIGTERM, then SIGKILL
// once the grace period runs out.
func (c *Command) Execute(ctx context.Context, inv Invocation) (Result, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return Result{}, fmt.Errorf("encode invocation: %w", err)
	}

	start := time.Now()
	cmd := exec.Command(c.argv[0], c.argv[1:]...)
	cmd.Env = append(os.Environ(),
		"HOOKROUTE_HANDLER="+inv.Handler.Name,
		"HOOKROUTE_DISPATCH_ID="+inv.ID,
		"HOOKROUTE_PRIORITY="+string(inv.Priority),
	)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren holding the pipes open must not stall Wait.
	cmd.WaitDelay = c.grace

	logger := c.logger.With(zap.String("handler", inv.Handler.Name), zap.String("dispatch_id", inv.ID))
	logger.Debug("spawning handler", zap.Strings("argv", c.argv), zap.Duration("timeout", c.timeout))

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", c.argv[0], err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var stopErr error
	select {
	case err := <-waitErr:
		if err != nil {
			return Result{}, fmt.Errorf("handler %s: %w: %s", inv.Handler.Name, err, truncate(stderr.String(), maxStderrBytes))
		}
		return Result{Output: truncate(strings.TrimSpace(stdout.String()), maxOutputBytes), Duration: time.Since(start)}, nil
	case <-timer.C:
		stopErr = context.DeadlineExceeded
	case <-ctx.Done():
		stopErr = ctx.Err()
	}

	logger.Warn("handler did not finish, sending SIGTERM", zap.Error(stopErr))
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		logger.Debug("SIGTERM failed", zap.Error(err))
	}
	grace := time.NewTimer(c.grace)
	defer grace.Stop()
	select {
	case <-waitErr:
	case <-grace.C:
		logger.Warn("handler ignored SIGTERM, sending SIGKILL")
		if err := cmd.Process.Kill(); err != nil {
			logger.Debug("SIGKILL failed", zap.Error(err))
		}
		<-waitErr
	}
	return Result{}, fmt.Errorf("handler %s: %w", inv.Handler.Name, stopErr)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
