package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/admission"
	"github.com/ppiankov/hookroute/internal/audit"
	"github.com/ppiankov/hookroute/internal/config"
	"github.com/ppiankov/hookroute/internal/dispatch"
	"github.com/ppiankov/hookroute/internal/executor"
	"github.com/ppiankov/hookroute/internal/fallback"
	"github.com/ppiankov/hookroute/internal/intent"
	"github.com/ppiankov/hookroute/internal/ledger"
	"github.com/ppiankov/hookroute/internal/logging"
	"github.com/ppiankov/hookroute/internal/notify"
	"github.com/ppiankov/hookroute/internal/priority"
	"github.com/ppiankov/hookroute/internal/registry"
	"github.com/ppiankov/hookroute/internal/spawn"
)

// notifyDrain bounds how long a command waits for in-flight webhooks.
const notifyDrain = 3 * time.Second

// app is the set of components one command invocation works with.
type app struct {
	root       string
	cfg        *config.Config
	logger     *zap.Logger
	registry   *registry.Registry
	classifier *intent.Classifier
	ledger     *ledger.Ledger
	audit      *audit.Log
	fallback   *fallback.Executor
	notifier   *notify.Notifier
	dispatcher *dispatch.Dispatcher
}

func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.LoadForRoot(root, configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func registryConfig(root string, cfg *config.Config) registry.Config {
	return registry.Config{
		CatalogPath:  config.Resolve(root, cfg.Registry.Catalog),
		PrimaryDir:   config.Resolve(root, cfg.Registry.PrimaryDir),
		SecondaryDir: config.Resolve(root, cfg.Registry.SecondaryDir),
		SpawnMarker:  cfg.Registry.SpawnMarker,
	}
}

func bandsFrom(cfg *config.Config) admission.Bands {
	return admission.Bands{
		Elevated: cfg.Admission.Elevated,
		Critical: cfg.Admission.Critical,
		HardStop: cfg.Admission.HardStop,
	}
}

func ceilingsFrom(cfg *config.Config) priority.Ceilings {
	return priority.Ceilings{
		Implementation: cfg.Priority.ImplementationLines,
		Test:           cfg.Priority.TestLines,
		Entry:          cfg.Priority.EntryLines,
	}
}

func policyFrom(cfg *config.Config) ledger.Policy {
	l := cfg.Ledger
	return ledger.Policy{
		Costs: ledger.Costs{
			Success:  l.Costs.Success,
			Fallback: l.Costs.Fallback,
			Blocked:  l.Costs.Blocked,
			Rejected: l.Costs.Rejected,
		},
		Multipliers: ledger.Multipliers{
			High:   l.Multipliers.High,
			Medium: l.Multipliers.Medium,
			Low:    l.Multipliers.Low,
		},
		DecayPerMinute: l.DecayPerMinute,
		MaxOperations:  l.MaxOperations,
	}
}

func openLedger(ctx context.Context, root string, cfg *config.Config, logger *zap.Logger) (*ledger.Ledger, error) {
	store, err := ledger.OpenStore(ctx, ledger.StoreOptions{
		Backend:     cfg.Ledger.Backend,
		Path:        config.Resolve(root, cfg.Ledger.Path),
		SQLitePath:  config.Resolve(root, cfg.Ledger.SQLitePath),
		LockTimeout: cfg.Ledger.LockTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return ledger.New(store, policyFrom(cfg), logger), nil
}

func openAudit(root string, cfg *config.Config, logger *zap.Logger) (*audit.Log, error) {
	return audit.Open(config.Resolve(root, cfg.Audit.Path), audit.Options{
		RotateAt:    cfg.Audit.RotateAt,
		Keep:        cfg.Audit.Keep,
		LockTimeout: cfg.Audit.LockTimeout,
		Logger:      logger,
	})
}

func newFallback(cfg *config.Config, logger *zap.Logger) *fallback.Executor {
	return fallback.New(fallback.Options{
		StepTimeout:    cfg.Fallback.StepTimeout,
		MaxReportBytes: cfg.Fallback.MaxReportBytes,
		Categories:     cfg.Fallback.Categories,
		Logger:         logger,
	})
}

// openApp wires every component from configuration.
func openApp(ctx context.Context, root string, logger *zap.Logger) (*app, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)
	a := &app{root: root, cfg: cfg, logger: logger}

	a.registry, err = registry.Load(registryConfig(root, cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	a.classifier, err = intent.FromConfig(cfg.Intent)
	if err != nil {
		return nil, fmt.Errorf("intent rules: %w", err)
	}
	a.ledger, err = openLedger(ctx, root, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.audit, err = openAudit(root, cfg, logger)
	if err != nil {
		_ = a.ledger.Close()
		return nil, err
	}
	ex, err := executor.New(executor.Options{
		Mode:    cfg.Executor.Mode,
		Command: cfg.Executor.Command,
		Timeout: cfg.Executor.Timeout,
		Grace:   cfg.Executor.Grace,
		Logger:  logger,
	})
	if err != nil {
		_ = a.ledger.Close()
		return nil, fmt.Errorf("executor: %w", err)
	}
	a.fallback = newFallback(cfg, logger)
	a.notifier = notify.New(cfg.Notify.Webhooks, cfg.Notify.Timeout, logger)

	opts := dispatch.Options{
		Registry:   a.registry,
		Classifier: a.classifier,
		Ceilings:   ceilingsFrom(cfg),
		Bands:      bandsFrom(cfg),
		Ledger:     a.ledger,
		Audit:      a.audit,
		Executor:   ex,
		Fallback:   a.fallback,
		Logger:     logger,
	}
	if a.notifier != nil {
		opts.Notifier = a.notifier
	}
	a.dispatcher, err = dispatch.New(opts)
	if err != nil {
		_ = a.ledger.Close()
		return nil, err
	}
	return a, nil
}

// Close drains notifications and releases the ledger store.
func (a *app) Close() error {
	if !a.notifier.Wait(notifyDrain) {
		a.logger.Warn("notifications still in flight at exit")
	}
	return a.ledger.Close()
}

// isFailure reports whether err is one of the caller-visible dispatch
// failures rather than an internal error.
func isFailure(err error) bool {
	var blocked *dispatch.BlockedError
	var rejected *spawn.RejectedError
	return errors.As(err, &blocked) || errors.As(err, &rejected)
}
