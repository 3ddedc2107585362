package model

import (
	"fmt"
	"strings"
)

// Tier is a handler's position in the delegation tree.
type Tier string

const (
	Primary   Tier = "primary"
	Secondary Tier = "secondary"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == Primary || t == Secondary
}

// Priority classifies how urgent a dispatch is.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// PriorityRank maps priority to a comparable integer (HIGH > MEDIUM > LOW).
var PriorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
}

// Rank returns the comparable rank of p. Unknown values rank as LOW.
func (p Priority) Rank() int {
	return PriorityRank[p]
}

// AtLeast reports whether p ranks at or above other.
func (p Priority) AtLeast(other Priority) bool {
	return p.Rank() >= other.Rank()
}

// ParsePriority accepts high/medium/low in any case.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToUpper(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	}
	return "", fmt.Errorf("unknown priority %q (want HIGH, MEDIUM or LOW)", s)
}

// Decision is the admission controller's verdict.
type Decision string

const (
	Allow Decision = "allow"
	Block Decision = "block"
	// NotEvaluated marks dispatches that ended before admission ran.
	NotEvaluated Decision = "not_evaluated"
)

// Outcome is the terminal result of one dispatch.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeBlocked  Outcome = "blocked"
	OutcomeFallback Outcome = "fallback"
	OutcomeRejected Outcome = "rejected"
)

// Failing reports whether the outcome must surface as a caller-visible failure.
func (o Outcome) Failing() bool {
	return o == OutcomeBlocked || o == OutcomeRejected
}

// Well-known operation types. Any other string is accepted and treated as LOW
// priority unless artifact metrics escalate it.
const (
	OpSecurity   = "security"
	OpQuality    = "quality"
	OpFormatting = "formatting"
	OpTesting    = "testing"

	DefaultOperationType = OpQuality
)

// NormalizeOperationType lowercases the tag and applies the default.
func NormalizeOperationType(op string) string {
	op = strings.ToLower(strings.TrimSpace(op))
	if op == "" {
		return DefaultOperationType
	}
	return op
}

// HandlerDescriptor is the registry's view of one capability handler.
// Prompt content stays opaque; only metadata travels through the router.
type HandlerDescriptor struct {
	Name        string `json:"name" yaml:"name"`
	Tier        Tier   `json:"tier" yaml:"tier"`
	CanSpawn    bool   `json:"can_spawn" yaml:"can_spawn"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
}

// MaySpawn reports whether the handler is allowed to delegate.
// Secondary handlers are terminal regardless of their flag.
func (h HandlerDescriptor) MaySpawn() bool {
	return h.Tier == Primary && h.CanSpawn
}
