package notify

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, ev Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(ev)
	default:
		return json.Marshal(ev)
	}
}

func formatSlack(ev Event) ([]byte, error) {
	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Handler:* %s", orDash(ev.Handler))},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Priority:* %s", orDash(string(ev.Priority)))},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Usage:* %.1f%%", ev.Usage)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", orDash(ev.Reason))},
	}
	payload := map[string]any{
		"text": fmt.Sprintf("hookroute: %s", ev.Type),
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{"type": "plain_text", "text": fmt.Sprintf("hookroute: %s", ev.Type)},
			},
			map[string]any{"type": "section", "fields": fields},
		},
	}
	return json.Marshal(payload)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
