package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	ledgerClearOps bool
	ledgerJSON     bool
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerStatusCmd)
	ledgerCmd.AddCommand(ledgerResetCmd)
	ledgerCmd.AddCommand(ledgerSetCmd)
	ledgerStatusCmd.Flags().BoolVar(&ledgerJSON, "json", false, "Output raw ledger state as JSON")
	ledgerSetCmd.Flags().BoolVar(&ledgerClearOps, "clear", false, "Also clear recent operations")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or adjust the resource ledger",
}

var ledgerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show usage and recent operations",
	Args:  cobra.NoArgs,
	RunE:  runLedgerStatus,
}

var ledgerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Set usage to zero and clear recent operations",
	Args:  cobra.NoArgs,
	RunE:  runLedgerReset,
}

var ledgerSetCmd = &cobra.Command{
	Use:   "set <percent>",
	Short: "Set usage to an explicit percentage",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerSet,
}

func runLedgerStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}
	l, err := openLedger(ctx, rootDir, cfg, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	s, err := l.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	if ledgerJSON {
		out, _ := json.MarshalIndent(s, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	bands := bandsFrom(cfg)
	fmt.Printf("usage: %.2f%% (%s band)\n", s.UsagePercent, bands.BandFor(s.UsagePercent))
	if !s.UpdatedAt.IsZero() {
		fmt.Printf("updated: %s\n", s.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if len(s.RecentOperations) == 0 {
		fmt.Println("no recent operations")
		return nil
	}
	fmt.Printf("recent operations (%d):\n", len(s.RecentOperations))
	for _, op := range s.RecentOperations {
		fmt.Printf("  %s  %-8s %-6s +%.2f  %s\n",
			op.Timestamp.Local().Format("15:04:05"), op.Outcome, op.Priority, op.Cost, op.Handler)
	}
	return nil
}

func runLedgerReset(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}
	l, err := openLedger(ctx, rootDir, cfg, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	if _, err := l.Reset(ctx); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	fmt.Fprintln(os.Stderr, "ledger reset to 0%")
	return nil
}

func runLedgerSet(cmd *cobra.Command, args []string) error {
	usage, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid percentage %q: %w", args[0], err)
	}
	if usage < 0 || usage > 100 {
		return fmt.Errorf("percentage %.2f is outside [0,100]", usage)
	}

	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}
	l, err := openLedger(ctx, rootDir, cfg, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	s, err := l.Set(ctx, usage, ledgerClearOps)
	if err != nil {
		return fmt.Errorf("set ledger: %w", err)
	}
	fmt.Fprintf(os.Stderr, "ledger usage set to %.2f%%\n", s.UsagePercent)
	return nil
}
