package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ppiankov/hookroute/internal/admission"
	"github.com/ppiankov/hookroute/internal/ledger"
	"github.com/ppiankov/hookroute/internal/model"
)

const (
	gaugeWidth   = 40
	statusWidth  = 64
	statusRecent = 8
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "One-screen summary of usage, bands and recent operations",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// statusTheme keeps the status screen colors in one place.
type statusTheme struct {
	Border   lipgloss.Style
	Title    lipgloss.Style
	Header   lipgloss.Style
	Dim      lipgloss.Style
	Normal   lipgloss.Style
	Elevated lipgloss.Style
	Critical lipgloss.Style
	HardStop lipgloss.Style
}

func newStatusTheme() statusTheme {
	return statusTheme{
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")),
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Normal:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Elevated: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		Critical: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8800")),
		HardStop: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
	}
}

func (t statusTheme) band(b admission.Band) lipgloss.Style {
	switch b {
	case admission.BandElevated:
		return t.Elevated
	case admission.BandCritical:
		return t.Critical
	case admission.BandHardStop:
		return t.HardStop
	default:
		return t.Normal
	}
}

func (t statusTheme) outcome(o model.Outcome) lipgloss.Style {
	switch o {
	case model.OutcomeSuccess:
		return t.Normal
	case model.OutcomeFallback:
		return t.Elevated
	default:
		return t.HardStop
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
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
	fmt.Println(renderStatus(s, bandsFrom(cfg), newStatusTheme()))
	return nil
}

// renderStatus draws the ledger gauge, the band table and recent operations.
func renderStatus(s ledger.State, bands admission.Bands, theme statusTheme) string {
	band := bands.BandFor(s.UsagePercent)
	style := theme.band(band)

	filled := int(s.UsagePercent / 100 * gaugeWidth)
	filled = max(0, min(gaugeWidth, filled))
	gauge := style.Render(strings.Repeat("█", filled)) + theme.Dim.Render(strings.Repeat("░", gaugeWidth-filled))

	lines := []string{
		theme.Title.Render("HOOKROUTE"),
		"",
		fmt.Sprintf("%s %s", gauge, style.Render(fmt.Sprintf("%6.2f%%", s.UsagePercent))),
		fmt.Sprintf("band: %s", style.Render(strings.ToUpper(string(band)))),
		"",
		theme.Header.Render("Admission"),
	}
	for _, row := range bandTable(bands) {
		lines = append(lines, fmt.Sprintf("  %-10s %s", row[0], row[1]))
	}

	lines = append(lines, "", theme.Header.Render("Recent operations"))
	ops := s.RecentOperations
	if len(ops) == 0 {
		lines = append(lines, theme.Dim.Render("  none"))
	}
	if len(ops) > statusRecent {
		ops = ops[len(ops)-statusRecent:]
	}
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		lines = append(lines, fmt.Sprintf("  %s %s %-6s %s",
			theme.Dim.Render(op.Timestamp.Local().Format("15:04:05")),
			theme.outcome(op.Outcome).Render(fmt.Sprintf("%-8s", op.Outcome)),
			op.Priority,
			op.Handler))
	}

	return theme.Border.Width(statusWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
