package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/hookroute/internal/admission"
	"github.com/ppiankov/hookroute/internal/audit"
	"github.com/ppiankov/hookroute/internal/dispatch"
	"github.com/ppiankov/hookroute/internal/fallback"
	"github.com/ppiankov/hookroute/internal/intent"
	"github.com/ppiankov/hookroute/internal/ledger"
	"github.com/ppiankov/hookroute/internal/model"
	"github.com/ppiankov/hookroute/internal/priority"
	"github.com/ppiankov/hookroute/internal/registry"
)

type testRegistry map[string]model.HandlerDescriptor

func (r testRegistry) Resolve(name string) (model.HandlerDescriptor, error) {
	if h, ok := r[name]; ok {
		return h, nil
	}
	return model.HandlerDescriptor{}, fmt.Errorf("%w: %s", registry.ErrNotFound, name)
}

func (r testRegistry) List() []model.HandlerDescriptor {
	var out []model.HandlerDescriptor
	for _, h := range r {
		out = append(out, h)
	}
	return out
}

type testEnv struct {
	server *Server
	ledger *ledger.Ledger
	audit  string
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	reg := testRegistry{
		"ci-investigator":  {Name: "ci-investigator", Tier: model.Primary, CanSpawn: true},
		"security-auditor": {Name: "security-auditor", Tier: model.Primary, CanSpawn: true},
		"lint-fixer":       {Name: "lint-fixer", Tier: model.Secondary},
		"secret-scanner":   {Name: "secret-scanner", Tier: model.Secondary},
	}
	l := ledger.New(ledger.NewFileStore(filepath.Join(dir, "ledger.json"), time.Second, nil), ledger.DefaultPolicy(), nil)
	auditPath := filepath.Join(dir, "audit.jsonl")
	log, err := audit.Open(auditPath, audit.Options{})
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	ceilings := priority.Ceilings{Implementation: 500, Test: 800, Entry: 100}

	d, err := dispatch.New(dispatch.Options{
		Registry:   reg,
		Classifier: intent.Default(),
		Ceilings:   ceilings,
		Bands:      admission.DefaultBands(),
		Ledger:     l,
		Audit:      log,
		Fallback: fallback.New(fallback.Options{
			StepTimeout: time.Second,
			LookPath:    func(string) (string, error) { return "", errors.New("not installed") },
		}),
	})
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	s, err := New(Config{
		Dispatcher: d,
		Classifier: intent.Default(),
		Registry:   reg,
		Ledger:     l,
		Bands:      admission.DefaultBands(),
		Ceilings:   ceilings,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("failed to create MCP server: %v", err)
	}
	return &testEnv{server: s, ledger: l, audit: auditPath}
}

func TestNewRequiresComponents(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestDispatchDerivesHandler(t *testing.T) {
	env := newTestServer(t)

	result, out, err := env.server.handleDispatch(context.Background(), &mcpsdk.CallToolRequest{}, DispatchInput{
		Description: "fix ci pipeline workflow",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("expected success, got error result")
	}
	if out.Handler != "ci-investigator" || !out.Derived {
		t.Fatalf("handler: got %q derived=%v", out.Handler, out.Derived)
	}
	if out.Outcome != string(model.OutcomeSuccess) {
		t.Fatalf("outcome: got %q", out.Outcome)
	}
	if !strings.Contains(out.Output, `"route":"ci-investigator"`) {
		t.Fatalf("expected advise directive, got %q", out.Output)
	}
	if out.States[len(out.States)-1] != string(dispatch.StateCompleted) {
		t.Fatalf("last state: got %v", out.States)
	}
}

func TestDispatchNoOp(t *testing.T) {
	env := newTestServer(t)

	result, out, err := env.server.handleDispatch(context.Background(), &mcpsdk.CallToolRequest{}, DispatchInput{
		Description: "zzz qqq",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("no-op must not be an error")
	}
	if !out.NoOp {
		t.Fatal("expected no-op")
	}
	if _, err := os.Stat(env.audit); !os.IsNotExist(err) {
		t.Fatal("no-op must not write the audit log")
	}
}

func TestDispatchUnknownHandlerFallsBack(t *testing.T) {
	env := newTestServer(t)

	result, out, err := env.server.handleDispatch(context.Background(), &mcpsdk.CallToolRequest{}, DispatchInput{
		OperationName: "does-not-exist",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("fallback must not be an error")
	}
	if out.Outcome != string(model.OutcomeFallback) {
		t.Fatalf("outcome: got %q", out.Outcome)
	}
	if out.Fallback != string(fallback.Generic) {
		t.Fatalf("fallback category: got %q", out.Fallback)
	}
	if out.Decision != string(model.NotEvaluated) {
		t.Fatalf("decision: got %q", out.Decision)
	}
}

func TestDispatchRejectedIsError(t *testing.T) {
	env := newTestServer(t)

	result, out, err := env.server.handleDispatch(context.Background(), &mcpsdk.CallToolRequest{}, DispatchInput{
		OperationName: "secret-scanner",
		ParentHandler: "lint-fixer",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected error result for rejected spawn")
	}
	if out.Outcome != string(model.OutcomeRejected) {
		t.Fatalf("outcome: got %q", out.Outcome)
	}
	if !strings.Contains(out.Reason, "spawn rejected") {
		t.Fatalf("reason: got %q", out.Reason)
	}
}

func TestDispatchBlockedSecurityIsError(t *testing.T) {
	env := newTestServer(t)
	if _, err := env.ledger.Set(context.Background(), 97, true); err != nil {
		t.Fatal(err)
	}

	result, out, err := env.server.handleDispatch(context.Background(), &mcpsdk.CallToolRequest{}, DispatchInput{
		OperationName: "security-auditor",
		OperationType: "security",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected error result for blocked security dispatch")
	}
	if out.Outcome != string(model.OutcomeBlocked) {
		t.Fatalf("outcome: got %q", out.Outcome)
	}
	if out.Band != string(admission.BandHardStop) {
		t.Fatalf("band: got %q", out.Band)
	}
}

func TestClassifyChargesNothing(t *testing.T) {
	env := newTestServer(t)
	if _, err := env.ledger.Set(context.Background(), 90, true); err != nil {
		t.Fatal(err)
	}

	_, out, err := env.server.handleClassify(context.Background(), &mcpsdk.CallToolRequest{}, ClassifyInput{
		Description: "run a /security-audit on the auth module",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Handler != "security-auditor" || !out.Resolved || !out.CanSpawn {
		t.Fatalf("unexpected classification: %+v", out)
	}
	if out.Rule == "" {
		t.Fatal("expected the matching rule")
	}
	// quality defaults to MEDIUM; 90 is in the critical band.
	if out.Priority != string(model.PriorityMedium) || out.Decision != string(model.Block) {
		t.Fatalf("priority/decision: got %s/%s", out.Priority, out.Decision)
	}

	snap, err := env.ledger.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.RecentOperations) != 0 {
		t.Fatalf("classify must not charge the ledger, got %d operations", len(snap.RecentOperations))
	}
	if _, err := os.Stat(env.audit); !os.IsNotExist(err) {
		t.Fatal("classify must not write the audit log")
	}
}

func TestClassifyLargeArtifactEscalates(t *testing.T) {
	env := newTestServer(t)
	path := filepath.Join(t.TempDir(), "big.go")
	if err := os.WriteFile(path, []byte(strings.Repeat("x := 1\n", 600)), 0o644); err != nil {
		t.Fatal(err)
	}

	_, out, err := env.server.handleClassify(context.Background(), &mcpsdk.CallToolRequest{}, ClassifyInput{
		OperationName: "lint-fixer",
		ArtifactPath:  path,
		OperationType: "formatting",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Priority != string(model.PriorityHigh) {
		t.Fatalf("priority: got %s (%s)", out.Priority, out.PriorityReason)
	}
	if out.Lines != 600 {
		t.Fatalf("lines: got %d", out.Lines)
	}
}

func TestStatusReportsRecentOperations(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	for _, name := range []string{"ci-investigator", "lint-fixer"} {
		if _, _, err := env.server.handleDispatch(ctx, &mcpsdk.CallToolRequest{}, DispatchInput{OperationName: name}); err != nil {
			t.Fatal(err)
		}
	}

	_, out, err := env.server.handleStatus(ctx, &mcpsdk.CallToolRequest{}, StatusInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Handlers != 4 {
		t.Fatalf("handlers: got %d", out.Handlers)
	}
	if out.Band != string(admission.BandNormal) {
		t.Fatalf("band: got %s", out.Band)
	}
	if len(out.Recent) != 2 {
		t.Fatalf("recent: got %d", len(out.Recent))
	}
	if out.Recent[0].Handler != "lint-fixer" {
		t.Fatalf("recent operations should be newest first, got %s", out.Recent[0].Handler)
	}
}

func TestGuard(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	_, out, err := env.server.handleGuard(ctx, &mcpsdk.CallToolRequest{}, GuardInput{Tool: "Bash", Resource: "rm -rf /"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Denied {
		t.Fatal("expected rm -rf / to be denied")
	}

	_, out, err = env.server.handleGuard(ctx, &mcpsdk.CallToolRequest{}, GuardInput{Tool: "Bash", Resource: "ls -la"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Denied {
		t.Fatalf("ls should be allowed, got %+v", out)
	}
}
