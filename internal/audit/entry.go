package audit

import (
	"github.com/ppiankov/hookroute/internal/model"
)

// Record is one line in the hash-chained JSONL audit log: the decision and
// outcome of a single dispatch.
// All fields are plain values (no map[string]any) so json.Marshal field
// order is deterministic and hashes are reproducible.
type Record struct {
	Timestamp     string         `json:"ts"`
	ID            string         `json:"id"`
	Handler       string         `json:"handler"`
	Parent        string         `json:"parent,omitempty"`
	Decision      model.Decision `json:"decision"`
	Outcome       model.Outcome  `json:"outcome"`
	OperationType string         `json:"operation_type"`
	Priority      model.Priority `json:"priority"`
	Usage         float64        `json:"usage"`
	Reason        string         `json:"reason,omitempty"`
	PrevHash      string         `json:"prev_hash"`
}
