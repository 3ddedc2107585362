package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookroute/internal/admission"
	"github.com/ppiankov/hookroute/internal/model"
)

var (
	admitUsage    float64
	admitPriority string
)

func init() {
	rootCmd.AddCommand(admitCmd)
	admitCmd.Flags().Float64Var(&admitUsage, "usage", 0, "Resource usage percentage (0-100)")
	admitCmd.Flags().StringVar(&admitPriority, "priority", "LOW", "Priority: HIGH, MEDIUM or LOW")
}

var admitCmd = &cobra.Command{
	Use:   "admit",
	Short: "Evaluate admission for a usage level and priority",
	Long:  "Pure evaluation against the configured bands; the ledger is not read or\nwritten. Exits 77 when the dispatch would be blocked.",
	Args:  cobra.NoArgs,
	RunE:  runAdmit,
}

func runAdmit(cmd *cobra.Command, args []string) error {
	p, err := model.ParsePriority(admitPriority)
	if err != nil {
		return err
	}
	if admitUsage < 0 || admitUsage > 100 {
		return fmt.Errorf("usage %.2f is outside [0,100]", admitUsage)
	}
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}

	v := admission.Admit(admitUsage, p, bandsFrom(cfg))
	out, _ := json.MarshalIndent(map[string]any{
		"decision": v.Decision,
		"band":     v.Band,
		"usage":    v.Usage,
		"priority": v.Priority,
		"reason":   v.Reason,
	}, "", "  ")
	fmt.Println(string(out))

	if !v.Allowed() {
		return exitWith(exitBlocked)
	}
	return nil
}

// bandTable renders the band boundaries for humans.
func bandTable(b admission.Bands) [][2]string {
	return [][2]string{
		{fmt.Sprintf("< %.0f%%", b.Elevated), "all priorities"},
		{fmt.Sprintf("%.0f-%.0f%%", b.Elevated, b.Critical), "HIGH and MEDIUM"},
		{fmt.Sprintf("%.0f-%.0f%%", b.Critical, b.HardStop), "HIGH only"},
		{fmt.Sprintf(">= %.0f%%", b.HardStop), "nothing"},
	}
}
