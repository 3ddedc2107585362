package dispatch

import (
	"fmt"
	"strings"

	"github.com/ppiankov/hookroute/internal/admission"
	"github.com/ppiankov/hookroute/internal/fallback"
	"github.com/ppiankov/hookroute/internal/model"
)

// State is a step of the dispatch state machine.
type State string

const (
	StateReceived          State = "received"
	StateResolved          State = "resolved"
	StateClassified        State = "classified"
	StateAdmissionChecked  State = "admission_checked"
	StateExecuting         State = "executing"
	StateBlocked           State = "blocked"
	StateFallbackExecuting State = "fallback_executing"
	StateCompleted         State = "completed"
)

// Request is one dispatch attempt. Adapters build it; the dispatcher never
// reads the environment.
type Request struct {
	// OperationName is the requested handler. Empty means derive it from
	// Description and Prompt.
	OperationName string `json:"operation_name,omitempty"`
	Description   string `json:"description,omitempty"`
	Prompt        string `json:"prompt,omitempty"`
	ArtifactPath  string `json:"artifact_path,omitempty"`
	// OperationType defaults to "quality". "security" marks the caller as
	// security-critical.
	OperationType string `json:"operation_type,omitempty"`
	ParentHandler string `json:"parent_handler,omitempty"`
}

// RawText is the free text the request carries.
func (r Request) RawText() string {
	return strings.TrimSpace(strings.TrimSpace(r.Description) + "\n" + strings.TrimSpace(r.Prompt))
}

// SecurityCritical reports whether an admission block must fail the caller.
func (r Request) SecurityCritical() bool {
	return model.NormalizeOperationType(r.OperationType) == model.OpSecurity
}

// Result is the outcome of a dispatch. A no-op result has only NoOp,
// Reason and States set.
type Result struct {
	ID             string           `json:"id,omitempty"`
	Handler        string           `json:"handler,omitempty"`
	Parent         string           `json:"parent,omitempty"`
	Derived        bool             `json:"derived,omitempty"`
	Rule           string           `json:"rule,omitempty"`
	Resolved       bool             `json:"resolved"`
	Tier           model.Tier       `json:"tier,omitempty"`
	OperationType  string           `json:"operation_type,omitempty"`
	Priority       model.Priority   `json:"priority,omitempty"`
	PriorityReason string           `json:"priority_reason,omitempty"`
	Decision       model.Decision   `json:"decision,omitempty"`
	Band           admission.Band   `json:"band,omitempty"`
	Usage          float64          `json:"usage"`
	UsageAfter     float64          `json:"usage_after"`
	Outcome        model.Outcome    `json:"outcome,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	Output         string           `json:"output,omitempty"`
	Report         *fallback.Report `json:"report,omitempty"`
	States         []State          `json:"states"`
	NoOp           bool             `json:"no_op,omitempty"`
}

// Failing reports whether the result is a caller-visible failure.
func (r *Result) Failing() bool {
	return r.Outcome.Failing()
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
}

// BlockedError is returned when admission blocks a security-critical
// dispatch.
type BlockedError struct {
	Handler  string
	Usage    float64
	Priority model.Priority
	Band     admission.Band
	Reason   string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("dispatch blocked: %s (%s at %.2f%% usage, %s band): %s", e.Handler, e.Priority, e.Usage, e.Band, e.Reason)
}
