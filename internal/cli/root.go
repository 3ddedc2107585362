package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/logging"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitHookDeny = 2  // host hook convention: block the tool call
	exitBlocked  = 77 // manual dispatch blocked or rejected
)

var (
	rootDir    string
	configPath string
	verbose    bool

	logger = zap.NewNop()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Project root that owns .hookroute/ (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default: <root>/.hookroute/config.yaml, then ~/.hookroute/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")
}

var rootCmd = &cobra.Command{
	Use:   "hookroute",
	Short: "Routing and admission control for AI agent delegation hooks",
	Long: `Routes each delegation request to a named handler, gates it on a
persisted resource budget, enforces a two-tier spawn hierarchy and degrades
to deterministic diagnostic routines when a handler is missing, blocked or
failing. Every decision is appended to a hash-chained audit log.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return err
		}
		logger = l
		if rootDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("determine working directory: %w", err)
			}
			rootDir = wd
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// exitCodeError carries a process exit code out of a command. The message,
// if any, has already been printed.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitWith(code int) error {
	if code == exitOK {
		return nil
	}
	return &exitCodeError{code: code}
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		_ = logger.Sync()
		os.Exit(ec.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitError)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
