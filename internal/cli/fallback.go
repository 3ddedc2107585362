package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookroute/internal/fallback"
)

var (
	fallbackCategory string
	fallbackHandler  string
	fallbackFile     string
	fallbackType     string
	fallbackFormat   string
)

func init() {
	rootCmd.AddCommand(fallbackCmd)
	fallbackCmd.Flags().StringVar(&fallbackCategory, "category", "", "Routine to run: "+categoryNames())
	fallbackCmd.Flags().StringVar(&fallbackHandler, "handler", "", "Pick the routine a dispatch to this handler would fall back to")
	fallbackCmd.Flags().StringVar(&fallbackFile, "file", "", "Artifact to inspect")
	fallbackCmd.Flags().StringVar(&fallbackType, "type", "", "Operation type (default quality)")
	fallbackCmd.Flags().StringVarP(&fallbackFormat, "format", "f", "text", "Output format: text or json")
}

var fallbackCmd = &cobra.Command{
	Use:   "fallback",
	Short: "Run a fallback diagnostic routine directly",
	Long:  "Runs the bounded diagnostic checks a dispatch would degrade to.\nNothing is charged or audited.",
	Args:  cobra.NoArgs,
	RunE:  runFallback,
}

func categoryNames() string {
	var names []string
	for _, c := range fallback.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func runFallback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}
	ex := newFallback(cfg, logger)

	category := fallback.Generic
	switch {
	case fallbackCategory != "":
		c, ok := fallback.ParseCategory(fallbackCategory)
		if !ok {
			return fmt.Errorf("unknown category %q (want one of %s)", fallbackCategory, categoryNames())
		}
		category = c
	case fallbackHandler != "":
		category = ex.CategoryFor(fallbackHandler)
	}

	ctx, cancel := signalContext()
	defer cancel()

	report := ex.Run(ctx, category, fallbackFile, fallbackType)
	switch fallbackFormat {
	case "json":
		out, err := report.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "text":
		fmt.Println(report.Render(0))
	default:
		return fmt.Errorf("unknown format %q (want text or json)", fallbackFormat)
	}

	counts := report.Counts()
	fmt.Fprintf(os.Stderr, "%d steps: %d ok, %d warn, %d error, %d skipped\n",
		len(report.Steps), counts[fallback.StatusOK], counts[fallback.StatusWarn], counts[fallback.StatusError],
		counts[fallback.StatusSkippedTimeout]+counts[fallback.StatusNotApplicable])
	return nil
}
