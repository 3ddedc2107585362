package audit

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatTimelineHeaderAndSummary(t *testing.T) {
	path := writeTestLog(t)
	result, err := Read(path, Filter{})
	if err != nil {
		t.Fatal(err)
	}

	out := FormatTimeline(result)

	if !strings.Contains(out, "2026-03-01 10:00:00") {
		t.Errorf("expected header date range, got:\n%s", out)
	}
	if !strings.Contains(out, "2 success, 1 fallback, 1 blocked, 1 rejected") {
		t.Errorf("expected outcome counts in summary, got:\n%s", out)
	}
	if !strings.Contains(out, "Total: 5") {
		t.Errorf("expected total in summary, got:\n%s", out)
	}
}

func TestFormatTimelineEntryColumns(t *testing.T) {
	path := writeTestLog(t)
	result, _ := Read(path, Filter{})

	out := FormatTimeline(result)

	for _, want := range []string{"REJECTED", "security-auditor", "[from lint-fixer]", "10:03:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in timeline, got:\n%s", want, out)
		}
	}
}

func TestFormatTimelineEmpty(t *testing.T) {
	out := FormatTimeline(&Result{})
	if !strings.Contains(out, "No dispatches") {
		t.Errorf("expected empty message, got %q", out)
	}
}

func TestFormatJSONRoundTrip(t *testing.T) {
	path := writeTestLog(t)
	result, _ := Read(path, Filter{})

	out, err := FormatJSON(result)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Result
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if decoded.Summary.Total != 5 {
		t.Errorf("expected total 5, got %d", decoded.Summary.Total)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("a-very-long-handler-name", 10); got != "a-very-..." {
		t.Errorf("got %q", got)
	}
}
