package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/hookroute/internal/intent"
	"github.com/ppiankov/hookroute/internal/model"
	"github.com/ppiankov/hookroute/internal/priority"
	"github.com/ppiankov/hookroute/internal/registry"
)

var (
	classifyFile string
	classifyType string
	classifyJSON bool
)

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVar(&classifyFile, "file", "", "Artifact to measure for priority escalation")
	classifyCmd.Flags().StringVar(&classifyType, "type", "", "Operation type (default quality)")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Output JSON")
}

var classifyCmd = &cobra.Command{
	Use:   "classify [text...]",
	Short: "Show which handler and priority a request would get",
	Long:  "Runs the intent rules over the text and the priority classifier over\nthe artifact. Nothing is dispatched, charged or audited.",
	RunE:  runClassify,
}

// classification is the classify command's report.
type classification struct {
	Handler        string         `json:"handler,omitempty"`
	Rule           string         `json:"rule,omitempty"`
	Resolved       bool           `json:"resolved"`
	Tier           model.Tier     `json:"tier,omitempty"`
	CanSpawn       bool           `json:"can_spawn"`
	OperationType  string         `json:"operation_type"`
	Priority       model.Priority `json:"priority"`
	PriorityReason string         `json:"priority_reason"`
	Lines          int            `json:"lines,omitempty"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}
	classifier, err := intent.FromConfig(cfg.Intent)
	if err != nil {
		return err
	}
	reg, err := registry.Load(registryConfig(rootDir, cfg), logger)
	if err != nil {
		return err
	}
	c, err := classify(classifier, reg, ceilingsFrom(cfg), strings.Join(args, " "), classifyFile, classifyType)
	if err != nil {
		return err
	}
	return printClassification(os.Stdout, c, classifyJSON)
}

func classify(classifier *intent.Classifier, reg *registry.Registry, ceilings priority.Ceilings, text, file, opType string) (classification, error) {
	c := classification{OperationType: model.NormalizeOperationType(opType)}

	name, rule := classifier.Explain(text)
	c.Handler = name
	if rule != nil {
		c.Rule = rule.String()
	}
	if name != "" {
		desc, err := reg.Resolve(name)
		switch {
		case err == nil:
			c.Resolved, c.Tier, c.CanSpawn = true, desc.Tier, desc.MaySpawn()
		case !errors.Is(err, registry.ErrNotFound):
			return c, err
		}
	}

	m, err := priority.Measure(file)
	if err != nil {
		return c, err
	}
	a := priority.Classify(c.OperationType, m, ceilings)
	c.Priority, c.PriorityReason, c.Lines = a.Priority, a.Reason, m.Lines
	return c, nil
}

func printClassification(w io.Writer, c classification, asJSON bool) error {
	if asJSON {
		out, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(out))
		return nil
	}
	if c.Handler == "" {
		fmt.Fprintln(w, "handler:  (none; a dispatch would be a no-op)")
	} else {
		state := "not in registry; a dispatch would fall back"
		if c.Resolved {
			state = string(c.Tier)
			if c.CanSpawn {
				state += ", can spawn"
			}
		}
		fmt.Fprintf(w, "handler:  %s (%s)\n", c.Handler, state)
		fmt.Fprintf(w, "rule:     %s\n", c.Rule)
	}
	fmt.Fprintf(w, "priority: %s (%s)\n", c.Priority, c.PriorityReason)
	return nil
}
