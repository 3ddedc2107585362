package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookroute/internal/dispatch"
)

var (
	dispatchHandler     string
	dispatchDescription string
	dispatchPrompt      string
	dispatchFile        string
	dispatchType        string
	dispatchParent      string
	dispatchJSON        bool
)

func init() {
	rootCmd.AddCommand(dispatchCmd)
	dispatchCmd.Flags().StringVar(&dispatchHandler, "handler", "", "Handler name (derived from --description/--prompt when empty)")
	dispatchCmd.Flags().StringVar(&dispatchDescription, "description", "", "Short description of the operation")
	dispatchCmd.Flags().StringVar(&dispatchPrompt, "prompt", "", "Full prompt text")
	dispatchCmd.Flags().StringVar(&dispatchFile, "file", "", "Artifact the operation touches")
	dispatchCmd.Flags().StringVar(&dispatchType, "type", "", "Operation type: security, quality, formatting, testing, ...")
	dispatchCmd.Flags().StringVar(&dispatchParent, "parent", "", "Handler delegating this operation")
	dispatchCmd.Flags().BoolVar(&dispatchJSON, "json", false, "Print the full dispatch result as JSON")
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch an operation manually",
	Long: `Runs one dispatch from flags. Unlike the hook command, every
caller-visible failure is surfaced: exit 77 when the dispatch is blocked
or rejected.`,
	Args: cobra.NoArgs,
	RunE: runDispatch,
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, rootDir, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	code, err := dispatchIO(ctx, a, dispatch.Request{
		OperationName: dispatchHandler,
		Description:   dispatchDescription,
		Prompt:        dispatchPrompt,
		ArtifactPath:  dispatchFile,
		OperationType: dispatchType,
		ParentHandler: dispatchParent,
	}, dispatchJSON, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	return exitWith(code)
}

func dispatchIO(ctx context.Context, a *app, req dispatch.Request, asJSON bool, stdout, stderr io.Writer) (int, error) {
	res, err := a.dispatcher.Dispatch(ctx, req)
	if err != nil && !isFailure(err) {
		return exitError, err
	}

	if asJSON {
		out, jerr := json.MarshalIndent(res, "", "  ")
		if jerr != nil {
			return exitError, jerr
		}
		fmt.Fprintln(stdout, string(out))
	} else {
		printResult(stdout, res)
	}

	if err != nil || res.Failing() {
		if err != nil {
			fmt.Fprintf(stderr, "BLOCKED: %v\n", err)
		}
		return exitBlocked, nil
	}
	return exitOK, nil
}

func printResult(w io.Writer, res *dispatch.Result) {
	if res.NoOp {
		fmt.Fprintf(w, "no-op: %s\n", res.Reason)
		return
	}
	fmt.Fprintf(w, "dispatch %s\n", res.ID)
	fmt.Fprintf(w, "  handler:   %s", res.Handler)
	if res.Derived {
		fmt.Fprintf(w, " (derived: %s)", res.Rule)
	}
	fmt.Fprintln(w)
	if res.Parent != "" {
		fmt.Fprintf(w, "  parent:    %s\n", res.Parent)
	}
	fmt.Fprintf(w, "  priority:  %s (%s)\n", res.Priority, res.PriorityReason)
	fmt.Fprintf(w, "  decision:  %s", res.Decision)
	if res.Band != "" {
		fmt.Fprintf(w, " (%s band, usage %.2f%%)", res.Band, res.Usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  outcome:   %s\n", res.Outcome)
	if res.Reason != "" {
		fmt.Fprintf(w, "  reason:    %s\n", res.Reason)
	}
	fmt.Fprintf(w, "  usage:     %.2f%% -> %.2f%%\n", res.Usage, res.UsageAfter)
	if res.Output != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, res.Output)
	}
}
