// Package notify is the fire-and-forget notification sink: webhooks for
// blocked and rejected dispatches and a one-time initialized event.
package notify

import "github.com/ppiankov/hookroute/internal/model"

// Event kinds a webhook can subscribe to.
const (
	EventBlocked     = "blocked"
	EventRejected    = "rejected"
	EventInitialized = "initialized"
)

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp     string         `json:"timestamp"`
	Type          string         `json:"type"`
	DispatchID    string         `json:"dispatch_id,omitempty"`
	Handler       string         `json:"handler,omitempty"`
	Parent        string         `json:"parent,omitempty"`
	Outcome       model.Outcome  `json:"outcome,omitempty"`
	Priority      model.Priority `json:"priority,omitempty"`
	OperationType string         `json:"operation_type,omitempty"`
	Usage         float64        `json:"usage"`
	Reason        string         `json:"reason,omitempty"`
}

// ForOutcome maps a failing outcome to its event type. Other outcomes do
// not notify.
func ForOutcome(o model.Outcome) (string, bool) {
	switch o {
	case model.OutcomeBlocked:
		return EventBlocked, true
	case model.OutcomeRejected:
		return EventRejected, true
	}
	return "", false
}
