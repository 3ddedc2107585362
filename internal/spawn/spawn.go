// Package spawn enforces the two-level delegation tree: a primary handler
// with the spawn capability may delegate to a secondary handler, and
// secondary handlers never delegate.
package spawn

import (
	"errors"
	"fmt"

	"github.com/ppiankov/hookroute/internal/model"
	"github.com/ppiankov/hookroute/internal/registry"
)

// ReasonParentCannotSpawn is the rejection reason for any illegal parent.
const ReasonParentCannotSpawn = "parent cannot spawn"

// RejectedError is returned when a delegation is not allowed.
type RejectedError struct {
	Parent string
	Child  string
	Reason string
	Detail string
}

func (e *RejectedError) Error() string {
	msg := fmt.Sprintf("spawn rejected (%s -> %s): %s", e.Parent, e.Child, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Resolver looks up handlers by name. *registry.Registry satisfies it.
type Resolver interface {
	Resolve(name string) (model.HandlerDescriptor, error)
}

// AuthorizeParent checks that parent may delegate at all. An empty parent is
// a top-level dispatch and always authorized.
func AuthorizeParent(r Resolver, parent, child string) error {
	if parent == "" {
		return nil
	}
	p, err := r.Resolve(parent)
	if err != nil {
		detail := "lookup failed"
		if errors.Is(err, registry.ErrNotFound) {
			detail = "parent not found"
		}
		return &RejectedError{Parent: parent, Child: child, Reason: ReasonParentCannotSpawn, Detail: detail}
	}
	switch {
	case p.Tier != model.Primary:
		return &RejectedError{Parent: parent, Child: child, Reason: ReasonParentCannotSpawn, Detail: "secondary handlers are terminal"}
	case !p.CanSpawn:
		return &RejectedError{Parent: parent, Child: child, Reason: ReasonParentCannotSpawn, Detail: "parent lacks spawn capability"}
	}
	return nil
}

// Authorize is AuthorizeParent plus the child-side rule: a delegated child
// must be a secondary handler, which keeps the tree at depth two.
// A child missing from the registry is not a spawn error; the dispatcher
// degrades it to the fallback path.
func Authorize(r Resolver, parent, child string) error {
	if err := AuthorizeParent(r, parent, child); err != nil {
		return err
	}
	if parent == "" {
		return nil
	}
	c, err := r.Resolve(child)
	if err != nil {
		return nil
	}
	if c.Tier != model.Secondary {
		return &RejectedError{Parent: parent, Child: child, Reason: "child must be secondary", Detail: "delegation depth is limited to two levels"}
	}
	return nil
}
