package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/hook"
)

func init() {
	rootCmd.AddCommand(hookCmd)
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Dispatch a host hook event read from stdin",
	Long: `Reads one hook event (JSON) on stdin and dispatches it.

The handler name comes from tool_input.subagent_type, else it is derived
from the description or prompt. HOOKROUTE_OPERATION_TYPE and
HOOKROUTE_PARENT supply the operation type and delegating handler when the
event does not.

Exit 0 on success, fallback or no-op. Exit 2 with the reason on stderr when
a delegation is rejected or security work is blocked; hosts treat 2 as
"block this tool call".`,
	Args: cobra.NoArgs,
	RunE: runHook,
}

func runHook(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, rootDir, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	code, err := hookIO(ctx, a, os.Stdin, os.Stdout, os.Stderr, os.Getenv)
	if err != nil {
		return err
	}
	return exitWith(code)
}

// hookIO runs one hook event and returns the process exit code.
func hookIO(ctx context.Context, a *app, in io.Reader, stdout, stderr io.Writer, getenv func(string) string) (int, error) {
	ev, err := hook.Parse(in)
	if errors.Is(err, hook.ErrEmpty) {
		a.logger.Debug("empty hook event, nothing to do")
		return exitOK, nil
	}
	if err != nil {
		return exitError, err
	}

	res, err := a.dispatcher.Dispatch(ctx, ev.Request(getenv))
	if err != nil {
		if isFailure(err) {
			fmt.Fprintf(stderr, "hookroute: %v\n", err)
			return exitHookDeny, nil
		}
		return exitError, err
	}
	if res.NoOp {
		a.logger.Debug("hook event matched no handler",
			zap.String("session_id", ev.SessionID),
			zap.String("tool", ev.ToolName))
		return exitOK, nil
	}
	if res.Output != "" {
		fmt.Fprintln(stdout, res.Output)
	}
	return exitOK, nil
}
