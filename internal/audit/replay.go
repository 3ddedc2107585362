package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ppiankov/hookroute/internal/model"
)

// Filter selects records for Read. Zero fields match everything.
type Filter struct {
	Handler string
	Outcome model.Outcome
	From    time.Time
	To      time.Time
}

func (f Filter) match(r Record) bool {
	if f.Handler != "" && r.Handler != f.Handler {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		ts, err := time.Parse(TimestampFormat, r.Timestamp)
		if err != nil {
			return false
		}
		if !f.From.IsZero() && ts.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && ts.After(f.To) {
			return false
		}
	}
	return true
}

// Summary holds outcome counts for a set of records.
type Summary struct {
	Total          int    `json:"total"`
	SuccessCount   int    `json:"success_count"`
	FallbackCount  int    `json:"fallback_count"`
	BlockedCount   int    `json:"blocked_count"`
	RejectedCount  int    `json:"rejected_count"`
	FirstTimestamp string `json:"first_timestamp,omitempty"`
	LastTimestamp  string `json:"last_timestamp,omitempty"`
}

// Result is a filtered slice of the log plus its summary.
type Result struct {
	Records []Record `json:"records"`
	Summary Summary  `json:"summary"`
}

// Read returns records matching filter, oldest first. A missing log is an
// empty result.
func Read(path string, filter Filter) (*Result, error) {
	result := &Result{}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue // skip malformed lines
		}
		if !filter.match(rec) {
			continue
		}
		result.Records = append(result.Records, rec)
		updateSummary(&result.Summary, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return result, nil
}

// Tail returns the last n matching records. n <= 0 returns all of them.
func Tail(path string, n int, filter Filter) (*Result, error) {
	result, err := Read(path, filter)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(result.Records) > n {
		result.Records = result.Records[len(result.Records)-n:]
		result.Summary = Summarize(result.Records)
	}
	return result, nil
}

// Summarize counts outcomes across records.
func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		updateSummary(&s, r)
	}
	return s
}

func updateSummary(s *Summary, rec Record) {
	s.Total++

	switch rec.Outcome {
	case model.OutcomeSuccess:
		s.SuccessCount++
	case model.OutcomeFallback:
		s.FallbackCount++
	case model.OutcomeBlocked:
		s.BlockedCount++
	case model.OutcomeRejected:
		s.RejectedCount++
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = rec.Timestamp
	}
	s.LastTimestamp = rec.Timestamp
}
