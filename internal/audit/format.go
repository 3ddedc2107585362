package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a Result as a human-readable text timeline.
func FormatTimeline(result *Result) string {
	if len(result.Records) == 0 {
		return "No dispatches recorded.\n"
	}

	var b strings.Builder

	// Header
	first := formatDateRange(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	b.WriteString(fmt.Sprintf("Dispatches | %s–%s UTC\n", first, last))
	b.WriteString(separator + "\n")

	for _, r := range result.Records {
		ts := formatTimeOnly(r.Timestamp)
		outcome := strings.ToUpper(string(r.Outcome))
		handler := truncate(r.Handler, 24)
		reason := truncate(r.Reason, 40)

		tag := ""
		if r.Parent != "" {
			tag = "  [from " + r.Parent + "]"
		}

		b.WriteString(fmt.Sprintf("%-10s %-6s %-9s %-24s %-40s%s\n",
			ts, r.Priority, outcome, handler, reason, tag))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a Result as indented JSON.
func FormatJSON(result *Result) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal audit result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s Summary) string {
	parts := []string{}
	if s.SuccessCount > 0 {
		parts = append(parts, fmt.Sprintf("%d success", s.SuccessCount))
	}
	if s.FallbackCount > 0 {
		parts = append(parts, fmt.Sprintf("%d fallback", s.FallbackCount))
	}
	if s.BlockedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d blocked", s.BlockedCount))
	}
	if s.RejectedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d rejected", s.RejectedCount))
	}
	return fmt.Sprintf("Summary: %s | Total: %d\n", strings.Join(parts, ", "), s.Total)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
