package fallback

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const truncatedMarker = "\n... [report truncated]"

// StepResult captures the outcome of one step.
type StepResult struct {
	Name       string `json:"name"`
	Purpose    string `json:"purpose"`
	Status     Status `json:"status"`
	Output     string `json:"output,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Report is the full output of one routine.
type Report struct {
	Category      Category     `json:"category"`
	Artifact      string       `json:"artifact,omitempty"`
	OperationType string       `json:"operation_type"`
	Steps         []StepResult `json:"steps"`
	StartAt       time.Time    `json:"start_at"`
	EndAt         time.Time    `json:"end_at"`
}

var remedies = map[string]string{
	"artifact":        "check the file path passed to the hook",
	"workspace":       "run from inside the project repository",
	"test-files":      "add tests next to the code under change",
	"skipped-tests":   "re-enable or delete skipped tests",
	"sleeps":          "replace sleeps with explicit synchronization",
	"ci-config":       "add a CI workflow for the project",
	"workflows":       "pin actions to a tag or SHA, set permissions and timeout-minutes",
	"long-lines":      "wrap lines to 120 columns",
	"todo-markers":    "resolve or ticket the TODO markers",
	"nesting":         "extract deeply nested blocks into functions",
	"gofmt":           "run gofmt -w on the listed files",
	"secrets":         "move credentials to the environment or a secret store and rotate them",
	"dangerous-calls": "replace dynamic execution with explicit calls and keep TLS verification on",
	"permissions":     "chmod o-w the listed files",
	"dockerfile":      "pin base images and add a non-root USER",
	"manifests":       "drop privileged mode and set resource limits",
	"hadolint":        "fix the hadolint findings",
	"memory":          "free memory before running heavy tasks",
	"disk":            "free disk space",
}

// Counts returns the number of steps per status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, s := range r.Steps {
		counts[s.Status]++
	}
	return counts
}

// Suggestions lists remediation hints for steps that warned.
func (r *Report) Suggestions() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Status != StatusWarn {
			continue
		}
		if fix, ok := remedies[s.Name]; ok {
			out = append(out, s.Name+": "+fix)
		}
	}
	return out
}

// Render formats the report as text no longer than max bytes.
func (r *Report) Render(max int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fallback %s", r.Category)
	if r.Artifact != "" {
		fmt.Fprintf(&b, " on %s", r.Artifact)
	}
	fmt.Fprintf(&b, " (%s)\n", r.OperationType)
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "[%s] %s: %s\n", s.Status, s.Name, s.Purpose)
		if s.Output != "" {
			for _, line := range strings.Split(s.Output, "\n") {
				b.WriteString("    " + line + "\n")
			}
		}
	}
	if fixes := r.Suggestions(); len(fixes) > 0 {
		b.WriteString("suggestions:\n")
		for _, f := range fixes {
			b.WriteString("  - " + f + "\n")
		}
	}
	return capString(strings.TrimRight(b.String(), "\n"), max)
}

func (r *Report) String() string {
	return r.Render(DefaultMaxReportBytes)
}

// JSON returns the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// capString truncates s to at most n bytes including the marker, cutting on
// a rune boundary.
func capString(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n - len(truncatedMarker)
	if cut <= 0 {
		return s[:n]
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedMarker
}
