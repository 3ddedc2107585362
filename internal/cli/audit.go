package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookroute/internal/audit"
	"github.com/ppiankov/hookroute/internal/config"
	"github.com/ppiankov/hookroute/internal/model"
)

var (
	tailLines   int
	tailHandler string
	tailOutcome string
	tailSince   time.Duration
	tailFormat  string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditRotateCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show (0 for all)")
	auditTailCmd.Flags().StringVar(&tailHandler, "handler", "", "Only show this handler")
	auditTailCmd.Flags().StringVar(&tailOutcome, "outcome", "", "Only show this outcome (success, fallback, blocked, rejected)")
	auditTailCmd.Flags().DurationVar(&tailSince, "since", 0, "Only show entries newer than this (e.g. 1h)")
	auditTailCmd.Flags().StringVarP(&tailFormat, "format", "f", "text", "Output format: text or json")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained dispatch audit log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of the audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous line. After rotation the first\nretained line is the anchor. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail [path]",
	Short: "Show recent audit log entries",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditTail,
}

var auditRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Apply the rotation policy now",
	Args:  cobra.NoArgs,
	RunE:  runAuditRotate,
}

// auditPath returns the explicit path argument or the configured log.
func auditPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return "", err
	}
	return config.Resolve(rootDir, cfg.Audit.Path), nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	result := audit.Verify(path)
	if result.Valid {
		if result.Anchored {
			fmt.Printf("OK: %d entries verified (anchored at first retained line)\n", result.Lines)
		} else {
			fmt.Printf("OK: %d entries verified\n", result.Lines)
		}
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	return exitWith(exitError)
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	filter := audit.Filter{
		Handler: tailHandler,
		Outcome: model.Outcome(tailOutcome),
	}
	if tailSince > 0 {
		filter.From = time.Now().Add(-tailSince)
	}

	result, err := audit.Tail(path, tailLines, filter)
	if err != nil {
		return err
	}

	switch tailFormat {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case "text":
		fmt.Print(audit.FormatTimeline(result))
	default:
		return fmt.Errorf("unknown format %q (want text or json)", tailFormat)
	}
	return nil
}

func runAuditRotate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}
	log, err := openAudit(rootDir, cfg, logger)
	if err != nil {
		return err
	}
	changed, err := log.RotateNow()
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintf(os.Stderr, "rotated %s (kept %d most recent entries)\n", log.Path(), cfg.Audit.Keep)
	} else {
		fmt.Fprintf(os.Stderr, "%s is under the %d entry threshold\n", log.Path(), cfg.Audit.RotateAt)
	}
	return nil
}
