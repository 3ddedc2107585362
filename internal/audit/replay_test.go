package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/hookroute/internal/model"
)

func writeTestLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	recs := []Record{
		{Timestamp: "2026-03-01T10:00:00.000Z", Handler: "ci-investigator", Decision: model.Allow, Outcome: model.OutcomeSuccess, Priority: model.PriorityMedium, OperationType: "quality"},
		{Timestamp: "2026-03-01T10:01:00.000Z", Handler: "formatter", Decision: model.Block, Outcome: model.OutcomeFallback, Priority: model.PriorityMedium, OperationType: "formatting"},
		{Timestamp: "2026-03-01T10:02:00.000Z", Handler: "security-auditor", Decision: model.Block, Outcome: model.OutcomeBlocked, Priority: model.PriorityHigh, OperationType: "security"},
		{Timestamp: "2026-03-01T10:03:00.000Z", Handler: "test-runner", Parent: "lint-fixer", Decision: model.Block, Outcome: model.OutcomeRejected, Priority: model.PriorityLow, OperationType: "testing", Reason: "parent cannot spawn"},
		{Timestamp: "2026-03-01T10:04:00.000Z", Handler: "ci-investigator", Decision: model.Allow, Outcome: model.OutcomeSuccess, Priority: model.PriorityHigh, OperationType: "security"},
	}
	for _, r := range recs {
		if _, err := l.Append(r); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestReadAll(t *testing.T) {
	path := writeTestLog(t)
	result, err := Read(path, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	s := result.Summary
	if s.Total != 5 || s.SuccessCount != 2 || s.FallbackCount != 1 || s.BlockedCount != 1 || s.RejectedCount != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.FirstTimestamp != "2026-03-01T10:00:00.000Z" || s.LastTimestamp != "2026-03-01T10:04:00.000Z" {
		t.Errorf("unexpected time range %s..%s", s.FirstTimestamp, s.LastTimestamp)
	}
}

func TestReadFilters(t *testing.T) {
	path := writeTestLog(t)

	byHandler, _ := Read(path, Filter{Handler: "ci-investigator"})
	if len(byHandler.Records) != 2 {
		t.Errorf("expected 2 ci-investigator records, got %d", len(byHandler.Records))
	}

	byOutcome, _ := Read(path, Filter{Outcome: model.OutcomeRejected})
	if len(byOutcome.Records) != 1 || byOutcome.Records[0].Parent != "lint-fixer" {
		t.Errorf("expected the rejected record, got %+v", byOutcome.Records)
	}

	from := time.Date(2026, 3, 1, 10, 1, 30, 0, time.UTC)
	to := time.Date(2026, 3, 1, 10, 3, 30, 0, time.UTC)
	window, _ := Read(path, Filter{From: from, To: to})
	if len(window.Records) != 2 {
		t.Errorf("expected 2 records in window, got %d", len(window.Records))
	}
}

func TestReadMissingLog(t *testing.T) {
	result, err := Read(filepath.Join(t.TempDir(), "none.jsonl"), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Records) != 0 {
		t.Errorf("expected no records, got %d", len(result.Records))
	}
}

func TestTail(t *testing.T) {
	path := writeTestLog(t)
	result, err := Tail(path, 2, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	if result.Records[1].Timestamp != "2026-03-01T10:04:00.000Z" {
		t.Errorf("expected newest record last, got %s", result.Records[1].Timestamp)
	}
	if result.Summary.Total != 2 {
		t.Errorf("summary should cover the tail only, got %d", result.Summary.Total)
	}
}
