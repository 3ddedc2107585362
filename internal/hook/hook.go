// Package hook adapts host hook events into typed requests. It is the only
// place that reads hookroute environment variables.
package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ppiankov/hookroute/internal/dispatch"
)

// Environment variables read by Request.
const (
	EnvOperationType = "HOOKROUTE_OPERATION_TYPE"
	EnvParent        = "HOOKROUTE_PARENT"
)

const maxEventBytes = 4 << 20

// ErrEmpty is returned by Parse when stdin carried nothing.
var ErrEmpty = errors.New("empty hook event")

// ToolInput is the subset of tool arguments the router reads.
type ToolInput struct {
	SubagentType string `json:"subagent_type,omitempty"`
	Description  string `json:"description,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
	Path         string `json:"path,omitempty"`
	NotebookPath string `json:"notebook_path,omitempty"`
	Command      string `json:"command,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Event is a host hook event. The top-level operation fields let callers
// other than the host send a flat request.
type Event struct {
	SessionID     string    `json:"session_id,omitempty"`
	HookEventName string    `json:"hook_event_name,omitempty"`
	ToolName      string    `json:"tool_name,omitempty"`
	CWD           string    `json:"cwd,omitempty"`
	ToolInput     ToolInput `json:"tool_input"`

	OperationName string `json:"operation_name,omitempty"`
	OperationType string `json:"operation_type,omitempty"`
	ArtifactPath  string `json:"artifact_path,omitempty"`
	Description   string `json:"description,omitempty"`
	Prompt        string `json:"prompt,omitempty"`
	Parent        string `json:"parent_handler,omitempty"`
}

// Parse decodes one event from r.
func Parse(r io.Reader) (Event, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxEventBytes))
	if err != nil {
		return Event{}, fmt.Errorf("read hook event: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return Event{}, ErrEmpty
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode hook event: %w", err)
	}
	return ev, nil
}

// Artifact is the file the event concerns, resolved against the event's
// working directory when relative.
func (e Event) Artifact() string {
	p := firstNonEmpty(e.ArtifactPath, e.ToolInput.FilePath, e.ToolInput.NotebookPath, e.ToolInput.Path)
	if p != "" && !filepath.IsAbs(p) && e.CWD != "" {
		p = filepath.Join(e.CWD, p)
	}
	return p
}

// Resource is what the command guard inspects: the shell command, the file
// path or the URL, in that order.
func (e Event) Resource() string {
	return firstNonEmpty(e.ToolInput.Command, e.ToolInput.FilePath, e.ToolInput.NotebookPath, e.ToolInput.Path, e.ToolInput.URL)
}

// Request builds the dispatch request. getenv supplies the operation type
// and parent when the event does not carry them.
func (e Event) Request(getenv func(string) string) dispatch.Request {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	return dispatch.Request{
		OperationName: firstNonEmpty(e.OperationName, e.ToolInput.SubagentType),
		Description:   firstNonEmpty(e.Description, e.ToolInput.Description),
		Prompt:        firstNonEmpty(e.Prompt, e.ToolInput.Prompt),
		ArtifactPath:  e.Artifact(),
		OperationType: firstNonEmpty(e.OperationType, getenv(EnvOperationType)),
		ParentHandler: firstNonEmpty(e.Parent, getenv(EnvParent)),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
