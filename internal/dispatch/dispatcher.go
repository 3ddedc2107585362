// Package dispatch routes one request through registry lookup, priority
// classification, spawn authority and admission control, then runs the
// handler or degrades to a fallback routine. Every dispatch that reaches a
// terminal state charges the ledger once and appends one audit record.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/admission"
	"github.com/ppiankov/hookroute/internal/audit"
	"github.com/ppiankov/hookroute/internal/executor"
	"github.com/ppiankov/hookroute/internal/fallback"
	"github.com/ppiankov/hookroute/internal/intent"
	"github.com/ppiankov/hookroute/internal/ledger"
	"github.com/ppiankov/hookroute/internal/logging"
	"github.com/ppiankov/hookroute/internal/model"
	"github.com/ppiankov/hookroute/internal/notify"
	"github.com/ppiankov/hookroute/internal/priority"
	"github.com/ppiankov/hookroute/internal/registry"
	"github.com/ppiankov/hookroute/internal/spawn"
)

// Ledger is the part of *ledger.Ledger the dispatcher uses.
type Ledger interface {
	Snapshot(ctx context.Context) (ledger.State, error)
	Charge(ctx context.Context, handler string, outcome model.Outcome, pr model.Priority) (ledger.State, error)
}

// Auditor appends audit records. *audit.Log satisfies it.
type Auditor interface {
	Append(rec audit.Record) (audit.Record, error)
}

// Notifier receives failing outcomes. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ev notify.Event)
}

// Options wires a Dispatcher.
type Options struct {
	Registry   spawn.Resolver
	Classifier *intent.Classifier
	Ceilings   priority.Ceilings
	Bands      admission.Bands
	Ledger     Ledger
	Audit      Auditor
	Executor   executor.Executor // advise when nil
	Fallback   *fallback.Executor
	Notifier   Notifier // optional
	Logger     *zap.Logger
}

// Dispatcher runs the state machine.
type Dispatcher struct {
	registry   spawn.Resolver
	classifier *intent.Classifier
	ceilings   priority.Ceilings
	bands      admission.Bands
	ledger     Ledger
	audit      Auditor
	exec       executor.Executor
	fallback   *fallback.Executor
	notifier   Notifier
	logger     *zap.Logger
	newID      func() string
}

// New validates opts and returns a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	var missing []string
	if opts.Registry == nil {
		missing = append(missing, "registry")
	}
	if opts.Classifier == nil {
		missing = append(missing, "classifier")
	}
	if opts.Ledger == nil {
		missing = append(missing, "ledger")
	}
	if opts.Audit == nil {
		missing = append(missing, "audit")
	}
	if opts.Fallback == nil {
		missing = append(missing, "fallback")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dispatch: missing %s", strings.Join(missing, ", "))
	}
	if err := opts.Bands.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if opts.Executor == nil {
		opts.Executor = executor.Advise{}
	}
	return &Dispatcher{
		registry:   opts.Registry,
		classifier: opts.Classifier,
		ceilings:   opts.Ceilings,
		bands:      opts.Bands,
		ledger:     opts.Ledger,
		audit:      opts.Audit,
		exec:       opts.Executor,
		fallback:   opts.Fallback,
		notifier:   opts.Notifier,
		logger:     logging.OrNop(opts.Logger).Named("dispatch"),
		newID:      uuid.NewString,
	}, nil
}

// Dispatch runs one request to completion. The returned error is non-nil
// only for caller-visible failures: a *spawn.RejectedError or a
// *BlockedError. Everything else ends in a result, possibly a fallback.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}
	res.enter(StateReceived)

	name := strings.TrimSpace(req.OperationName)
	if name == "" {
		var rule *intent.Rule
		name, rule = d.classifier.Explain(req.Description)
		if name == "" {
			name, rule = d.classifier.Explain(req.Prompt)
		}
		if name == "" {
			res.NoOp = true
			res.Reason = "no handler matched the request; nothing to do"
			d.logger.Debug("no-op dispatch", zap.Int("text_len", len(req.RawText())))
			return res, nil
		}
		res.Derived = true
		res.Rule = rule.String()
	}

	res.ID = d.newID()
	res.Handler = name
	res.Parent = strings.TrimSpace(req.ParentHandler)
	res.OperationType = model.NormalizeOperationType(req.OperationType)
	logger := d.logger.With(zap.String("dispatch_id", res.ID), zap.String("handler", name))

	desc, lookupErr := d.registry.Resolve(name)
	if lookupErr == nil {
		res.Resolved = true
		res.Tier = desc.Tier
		res.enter(StateResolved)
	} else if !errors.Is(lookupErr, registry.ErrNotFound) {
		logger.Warn("registry lookup failed, treating as not found", zap.Error(lookupErr))
	}

	metrics, err := priority.Measure(req.ArtifactPath)
	if err != nil {
		logger.Warn("artifact metrics unavailable", zap.Error(err))
	}
	assessment := priority.Classify(res.OperationType, metrics, d.ceilings)
	res.Priority, res.PriorityReason = assessment.Priority, assessment.Reason
	if res.Resolved {
		res.enter(StateClassified)
	}

	if res.Parent != "" {
		if err := spawn.Authorize(d.registry, res.Parent, name); err != nil {
			res.Decision = model.NotEvaluated
			res.Outcome = model.OutcomeRejected
			res.Reason = err.Error()
			res.enter(StateBlocked)
			d.complete(ctx, logger, res)
			return res, err
		}
	}

	if !res.Resolved {
		res.Decision = model.NotEvaluated
		res.Reason = fmt.Sprintf("handler %q not found; running fallback", name)
		d.runFallback(ctx, res, req)
		d.complete(ctx, logger, res)
		return res, nil
	}

	snap, err := d.ledger.Snapshot(ctx)
	if err != nil {
		logger.Warn("ledger unreadable, admitting against zero usage", zap.Error(err))
		snap = ledger.State{}
	}
	verdict := admission.Admit(snap.UsagePercent, res.Priority, d.bands)
	res.Usage, res.Band, res.Decision = snap.UsagePercent, verdict.Band, verdict.Decision
	res.enter(StateAdmissionChecked)

	if !verdict.Allowed() {
		if req.SecurityCritical() {
			res.Outcome = model.OutcomeBlocked
			res.Reason = verdict.Reason
			res.enter(StateBlocked)
			d.complete(ctx, logger, res)
			return res, &BlockedError{Handler: name, Usage: verdict.Usage, Priority: res.Priority, Band: verdict.Band, Reason: verdict.Reason}
		}
		res.Reason = verdict.Reason + "; running fallback"
		d.runFallback(ctx, res, req)
		d.complete(ctx, logger, res)
		return res, nil
	}

	res.enter(StateExecuting)
	out, err := d.exec.Execute(ctx, executor.Invocation{
		ID:            res.ID,
		Handler:       desc,
		Parent:        res.Parent,
		Priority:      res.Priority,
		OperationType: res.OperationType,
		ArtifactPath:  req.ArtifactPath,
		Description:   req.Description,
		Prompt:        req.Prompt,
	})
	if err != nil {
		logger.Info("handler execution failed, degrading to fallback", zap.Error(err))
		res.Reason = "execution failed: " + err.Error()
		d.runFallback(ctx, res, req)
		d.complete(ctx, logger, res)
		return res, nil
	}
	res.Outcome = model.OutcomeSuccess
	res.Output = out.Output
	res.Reason = verdict.Reason
	d.complete(ctx, logger, res)
	return res, nil
}

func (d *Dispatcher) runFallback(ctx context.Context, res *Result, req Request) {
	res.enter(StateFallbackExecuting)
	category := d.fallback.CategoryFor(res.Handler)
	report := d.fallback.Run(ctx, category, req.ArtifactPath, res.OperationType)
	res.Report = report
	res.Output = report.Render(d.fallback.MaxReportBytes())
	res.Outcome = model.OutcomeFallback
}

// complete performs the single ledger charge and audit append of a terminal
// state. Failures here are logged and never change the outcome.
func (d *Dispatcher) complete(ctx context.Context, logger *zap.Logger, res *Result) {
	res.enter(StateCompleted)

	after, err := d.ledger.Charge(ctx, res.Handler, res.Outcome, res.Priority)
	if err != nil {
		logger.Warn("ledger update failed", zap.Error(err))
		after.UsagePercent = res.Usage
	}
	res.UsageAfter = after.UsagePercent

	if _, err := d.audit.Append(audit.Record{
		ID:            res.ID,
		Handler:       res.Handler,
		Parent:        res.Parent,
		Decision:      res.Decision,
		Outcome:       res.Outcome,
		OperationType: res.OperationType,
		Priority:      res.Priority,
		Usage:         res.Usage,
		Reason:        res.Reason,
	}); err != nil {
		logger.Warn("audit append failed", zap.Error(err))
	}

	if typ, ok := notify.ForOutcome(res.Outcome); ok && d.notifier != nil {
		d.notifier.Notify(notify.Event{
			Type:          typ,
			DispatchID:    res.ID,
			Handler:       res.Handler,
			Parent:        res.Parent,
			Outcome:       res.Outcome,
			Priority:      res.Priority,
			OperationType: res.OperationType,
			Usage:         res.Usage,
			Reason:        res.Reason,
		})
	}

	logger.Debug("dispatch completed",
		zap.String("outcome", string(res.Outcome)),
		zap.String("priority", string(res.Priority)),
		zap.Float64("usage", res.Usage),
		zap.Any("states", res.States))
}
