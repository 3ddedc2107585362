// Package ledger persists the process-wide resource usage percentage and a
// bounded log of recent operations.
package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/logging"
	"github.com/ppiankov/hookroute/internal/model"
)

// DefaultMaxOperations caps RecentOperations.
const DefaultMaxOperations = 50

// Operation is one entry of the recent-operations log.
type Operation struct {
	Handler   string         `json:"handler"`
	Outcome   model.Outcome  `json:"outcome"`
	Priority  model.Priority `json:"priority,omitempty"`
	Cost      float64        `json:"cost"`
	Timestamp time.Time      `json:"timestamp"`
}

// State is the persisted ledger. RecentOperations is ordered oldest first.
type State struct {
	UsagePercent     float64     `json:"usage_percent"`
	UpdatedAt        time.Time   `json:"updated_at"`
	RecentOperations []Operation `json:"recent_operations"`
}

// Store is the persistence boundary. Update runs fn against the latest
// state and commits the result atomically; concurrent updaters must not
// lose or corrupt each other's writes.
type Store interface {
	Load(ctx context.Context) (State, error)
	Update(ctx context.Context, fn func(*State) error) (State, error)
	Close() error
}

// Costs is the usage charged per outcome before priority scaling.
type Costs struct {
	Success  float64
	Fallback float64
	Blocked  float64
	Rejected float64
}

// Multipliers scale a cost by priority.
type Multipliers struct {
	High   float64
	Medium float64
	Low    float64
}

// Policy is the ledger cost model.
type Policy struct {
	Costs          Costs
	Multipliers    Multipliers
	DecayPerMinute float64
	MaxOperations  int
}

// DefaultPolicy charges 5 per success and 2 per fallback, scaled by
// priority, and decays one point per minute.
func DefaultPolicy() Policy {
	return Policy{
		Costs:          Costs{Success: 5, Fallback: 2},
		Multipliers:    Multipliers{High: 1.5, Medium: 1, Low: 0.5},
		DecayPerMinute: 1,
		MaxOperations:  DefaultMaxOperations,
	}
}

// Cost returns the usage charged for outcome at priority p.
func (p Policy) Cost(outcome model.Outcome, pr model.Priority) float64 {
	var base float64
	switch outcome {
	case model.OutcomeSuccess:
		base = p.Costs.Success
	case model.OutcomeFallback:
		base = p.Costs.Fallback
	case model.OutcomeBlocked:
		base = p.Costs.Blocked
	case model.OutcomeRejected:
		base = p.Costs.Rejected
	}
	mult := p.Multipliers.Medium
	switch pr {
	case model.PriorityHigh:
		mult = p.Multipliers.High
	case model.PriorityLow:
		mult = p.Multipliers.Low
	}
	return base * mult
}

// Clamp bounds usage to [0,100].
func Clamp(usage float64) float64 {
	if math.IsNaN(usage) {
		return 0
	}
	return math.Max(0, math.Min(100, usage))
}

// Decay lowers usage linearly for the time elapsed since UpdatedAt.
// It does not move UpdatedAt; callers that persist the result do.
func Decay(s State, now time.Time, perMinute float64) State {
	if perMinute <= 0 || s.UpdatedAt.IsZero() || !now.After(s.UpdatedAt) {
		return s
	}
	elapsed := now.Sub(s.UpdatedAt).Minutes()
	s.UsagePercent = Clamp(s.UsagePercent - elapsed*perMinute)
	return s
}

// Apply records op, adds its cost to usage and trims the operation log to
// max entries, dropping the oldest.
func Apply(s State, op Operation, max int) State {
	if max <= 0 {
		max = DefaultMaxOperations
	}
	s.UsagePercent = Clamp(s.UsagePercent + op.Cost)
	ops := make([]Operation, 0, len(s.RecentOperations)+1)
	ops = append(ops, s.RecentOperations...)
	ops = append(ops, op)
	if len(ops) > max {
		ops = ops[len(ops)-max:]
	}
	s.RecentOperations = ops
	s.UpdatedAt = op.Timestamp
	return s
}

// Ledger applies the cost model on top of a Store.
type Ledger struct {
	store  Store
	policy Policy
	logger *zap.Logger
	now    func() time.Time
}

// New wraps store with policy.
func New(store Store, policy Policy, logger *zap.Logger) *Ledger {
	if policy.MaxOperations <= 0 {
		policy.MaxOperations = DefaultMaxOperations
	}
	return &Ledger{
		store:  store,
		policy: policy,
		logger: logging.OrNop(logger).Named("ledger"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the cost model in use.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// Snapshot returns the current state with decay applied. Nothing is written.
func (l *Ledger) Snapshot(ctx context.Context) (State, error) {
	s, err := l.store.Load(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load ledger: %w", err)
	}
	return Decay(s, l.now(), l.policy.DecayPerMinute), nil
}

// Charge records one terminal outcome. This is the only write a dispatch
// performs against the ledger.
func (l *Ledger) Charge(ctx context.Context, handler string, outcome model.Outcome, pr model.Priority) (State, error) {
	now := l.now()
	op := Operation{
		Handler:   handler,
		Outcome:   outcome,
		Priority:  pr,
		Cost:      l.policy.Cost(outcome, pr),
		Timestamp: now,
	}
	s, err := l.store.Update(ctx, func(s *State) error {
		*s = Apply(Decay(*s, now, l.policy.DecayPerMinute), op, l.policy.MaxOperations)
		return nil
	})
	if err != nil {
		return State{}, fmt.Errorf("charge ledger: %w", err)
	}
	l.logger.Debug("ledger charged",
		zap.String("handler", handler),
		zap.String("outcome", string(outcome)),
		zap.Float64("cost", op.Cost),
		zap.Float64("usage", s.UsagePercent))
	return s, nil
}

// Reset clears usage and the operation log.
func (l *Ledger) Reset(ctx context.Context) (State, error) {
	return l.Set(ctx, 0, true)
}

// Set overrides the usage percentage. clearOps also empties the log.
func (l *Ledger) Set(ctx context.Context, usage float64, clearOps bool) (State, error) {
	now := l.now()
	s, err := l.store.Update(ctx, func(s *State) error {
		s.UsagePercent = Clamp(usage)
		s.UpdatedAt = now
		if clearOps {
			s.RecentOperations = nil
		}
		return nil
	})
	if err != nil {
		return State{}, fmt.Errorf("set ledger: %w", err)
	}
	return s, nil
}

// Close releases the store.
func (l *Ledger) Close() error {
	return l.store.Close()
}
