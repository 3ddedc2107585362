package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/admission"
	"github.com/ppiankov/hookroute/internal/dispatch"
	"github.com/ppiankov/hookroute/internal/intent"
	"github.com/ppiankov/hookroute/internal/model"
	"github.com/ppiankov/hookroute/internal/priority"
	"github.com/ppiankov/hookroute/internal/registry"
	"github.com/ppiankov/hookroute/internal/spawn"
)

// recentLimit caps the operations returned by hookroute_status.
const recentLimit = 10

// --- Input/Output types ---

// DispatchInput defines parameters for the hookroute_dispatch tool.
type DispatchInput struct {
	OperationName string `json:"operation_name,omitempty" jsonschema:"handler name; derived from description or prompt when empty"`
	Description   string `json:"description,omitempty" jsonschema:"short description of the operation"`
	Prompt        string `json:"prompt,omitempty" jsonschema:"full prompt text"`
	ArtifactPath  string `json:"artifact_path,omitempty" jsonschema:"file or directory the operation touches"`
	OperationType string `json:"operation_type,omitempty" jsonschema:"security, quality, formatting, testing or any other tag"`
	ParentHandler string `json:"parent_handler,omitempty" jsonschema:"handler delegating this operation"`
}

// DispatchOutput summarizes a completed dispatch.
type DispatchOutput struct {
	ID            string   `json:"id,omitempty"`
	Handler       string   `json:"handler,omitempty"`
	Parent        string   `json:"parent,omitempty"`
	Derived       bool     `json:"derived,omitempty"`
	Rule          string   `json:"rule,omitempty"`
	Resolved      bool     `json:"resolved"`
	Tier          string   `json:"tier,omitempty"`
	OperationType string   `json:"operation_type,omitempty"`
	Priority      string   `json:"priority,omitempty"`
	Decision      string   `json:"decision,omitempty"`
	Band          string   `json:"band,omitempty"`
	Usage         float64  `json:"usage"`
	UsageAfter    float64  `json:"usage_after"`
	Outcome       string   `json:"outcome,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Output        string   `json:"output,omitempty"`
	Fallback      string   `json:"fallback_category,omitempty"`
	States        []string `json:"states,omitempty"`
	NoOp          bool     `json:"no_op,omitempty"`
}

// ClassifyInput defines parameters for the hookroute_classify tool.
type ClassifyInput struct {
	OperationName string `json:"operation_name,omitempty" jsonschema:"handler name; derived from description or prompt when empty"`
	Description   string `json:"description,omitempty" jsonschema:"short description of the operation"`
	Prompt        string `json:"prompt,omitempty" jsonschema:"full prompt text"`
	ArtifactPath  string `json:"artifact_path,omitempty" jsonschema:"file the operation touches"`
	OperationType string `json:"operation_type,omitempty" jsonschema:"security, quality, formatting, testing or any other tag"`
}

// ClassifyOutput is the would-be routing of a request.
type ClassifyOutput struct {
	Handler        string  `json:"handler,omitempty"`
	Rule           string  `json:"rule,omitempty"`
	Resolved       bool    `json:"resolved"`
	Tier           string  `json:"tier,omitempty"`
	CanSpawn       bool    `json:"can_spawn,omitempty"`
	Priority       string  `json:"priority"`
	PriorityReason string  `json:"priority_reason"`
	Lines          int     `json:"lines,omitempty"`
	Usage          float64 `json:"usage"`
	Band           string  `json:"band"`
	Decision       string  `json:"decision"`
	Reason         string  `json:"reason"`
}

// StatusInput takes no parameters.
type StatusInput struct{}

// OperationOutput is one recent ledger operation.
type OperationOutput struct {
	Handler   string  `json:"handler"`
	Outcome   string  `json:"outcome"`
	Priority  string  `json:"priority,omitempty"`
	Cost      float64 `json:"cost"`
	Timestamp string  `json:"timestamp"`
}

// StatusOutput reports ledger and registry state.
type StatusOutput struct {
	Usage      float64           `json:"usage"`
	Band       string            `json:"band"`
	Admits     string            `json:"admits"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
	Handlers   int               `json:"handlers"`
	Recent     []OperationOutput `json:"recent,omitempty"`
	LedgerNote string            `json:"ledger_note,omitempty"`
}

// GuardInput defines parameters for the hookroute_guard tool.
type GuardInput struct {
	Tool     string `json:"tool" jsonschema:"host tool name (Bash, Write, WebFetch, ...)"`
	Resource string `json:"resource" jsonschema:"command, file path or URL"`
}

// GuardOutput is the denylist verdict.
type GuardOutput struct {
	Denied   bool   `json:"denied"`
	Category string `json:"category,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// --- Handlers ---

func (s *Server) handleDispatch(ctx context.Context, req *mcpsdk.CallToolRequest, input DispatchInput) (*mcpsdk.CallToolResult, DispatchOutput, error) {
	res, err := s.dispatcher.Dispatch(ctx, dispatch.Request{
		OperationName: input.OperationName,
		Description:   input.Description,
		Prompt:        input.Prompt,
		ArtifactPath:  input.ArtifactPath,
		OperationType: input.OperationType,
		ParentHandler: input.ParentHandler,
	})

	out := dispatchOutput(res)
	if err != nil {
		var rejected *spawn.RejectedError
		var blocked *dispatch.BlockedError
		if errors.As(err, &rejected) || errors.As(err, &blocked) {
			s.logger.Info("dispatch failed", zap.String("handler", out.Handler), zap.Error(err))
			if out.Reason == "" {
				out.Reason = err.Error()
			}
			return &mcpsdk.CallToolResult{IsError: true}, out, nil
		}
		return nil, out, err
	}
	return nil, out, nil
}

func dispatchOutput(res *dispatch.Result) DispatchOutput {
	if res == nil {
		return DispatchOutput{}
	}
	out := DispatchOutput{
		ID:            res.ID,
		Handler:       res.Handler,
		Parent:        res.Parent,
		Derived:       res.Derived,
		Rule:          res.Rule,
		Resolved:      res.Resolved,
		Tier:          string(res.Tier),
		OperationType: res.OperationType,
		Priority:      string(res.Priority),
		Decision:      string(res.Decision),
		Band:          string(res.Band),
		Usage:         res.Usage,
		UsageAfter:    res.UsageAfter,
		Outcome:       string(res.Outcome),
		Reason:        res.Reason,
		Output:        res.Output,
		NoOp:          res.NoOp,
	}
	if res.Report != nil {
		out.Fallback = string(res.Report.Category)
	}
	for _, st := range res.States {
		out.States = append(out.States, string(st))
	}
	return out
}

func (s *Server) handleClassify(ctx context.Context, req *mcpsdk.CallToolRequest, input ClassifyInput) (*mcpsdk.CallToolResult, ClassifyOutput, error) {
	var out ClassifyOutput

	name := strings.TrimSpace(input.OperationName)
	if name == "" {
		var rule *intent.Rule
		name, rule = s.explain(input.Description, input.Prompt)
		if rule != nil {
			out.Rule = rule.String()
		}
	}
	out.Handler = name

	if name != "" {
		desc, err := s.registry.Resolve(name)
		switch {
		case err == nil:
			out.Resolved = true
			out.Tier = string(desc.Tier)
			out.CanSpawn = desc.MaySpawn()
		case !errors.Is(err, registry.ErrNotFound):
			return nil, out, fmt.Errorf("resolve %s: %w", name, err)
		}
	}

	metrics, err := priority.Measure(input.ArtifactPath)
	if err != nil {
		return nil, out, err
	}
	a := priority.Classify(model.NormalizeOperationType(input.OperationType), metrics, s.ceilings)
	out.Priority, out.PriorityReason, out.Lines = string(a.Priority), a.Reason, metrics.Lines

	snap, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return nil, out, fmt.Errorf("read ledger: %w", err)
	}
	v := admission.Admit(snap.UsagePercent, a.Priority, s.bands)
	out.Usage, out.Band, out.Decision, out.Reason = v.Usage, string(v.Band), string(v.Decision), v.Reason

	return nil, out, nil
}

// explain derives a handler from the description, then the prompt.
func (s *Server) explain(description, prompt string) (string, *intent.Rule) {
	for _, text := range []string{description, prompt} {
		if name, rule := s.classifier.Explain(text); name != "" {
			return name, rule
		}
	}
	return "", nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	out := StatusOutput{Handlers: len(s.registry.List())}

	snap, err := s.ledger.Snapshot(ctx)
	if err != nil {
		// Admission treats an unreadable ledger as zero usage; report the same.
		out.LedgerNote = err.Error()
	}
	band := s.bands.BandFor(snap.UsagePercent)
	out.Usage, out.Band = snap.UsagePercent, string(band)
	if minPr, ok := admission.MinPriority(band); ok {
		out.Admits = string(minPr) + " and above"
	} else {
		out.Admits = "nothing"
	}
	if !snap.UpdatedAt.IsZero() {
		out.UpdatedAt = snap.UpdatedAt.UTC().Format(time.RFC3339)
	}

	ops := snap.RecentOperations
	if len(ops) > recentLimit {
		ops = ops[len(ops)-recentLimit:]
	}
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		out.Recent = append(out.Recent, OperationOutput{
			Handler:   op.Handler,
			Outcome:   string(op.Outcome),
			Priority:  string(op.Priority),
			Cost:      op.Cost,
			Timestamp: op.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

func (s *Server) handleGuard(ctx context.Context, req *mcpsdk.CallToolRequest, input GuardInput) (*mcpsdk.CallToolResult, GuardOutput, error) {
	m, denied := s.dl.Check(input.Tool, input.Resource)
	if !denied {
		return nil, GuardOutput{}, nil
	}
	return nil, GuardOutput{
		Denied:   true,
		Category: string(m.Category),
		Pattern:  m.Pattern,
		Reason:   m.Reason,
	}, nil
}
