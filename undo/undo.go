/*
Package undo holds the reversible-mutation ledger model.

PURPOSE:
  Every structural mutation in the system - temporary-change edits on the
  customer side, master-data edits on the admin side - records one
  reversible entry before committing. A single undo operation pops the most
  recent entry for a scope and replays its exact inverse.

SEMANTICS:
  The ledger is a single-slot stack per scope: a push REPLACES any pending
  entry for that exact scope, and a pop removes the entry it returns. There
  is deliberately no history browser here; one level of undo per scope is
  the contract the UI is built around.

OWNERSHIP:
  Each mutation handler exclusively owns the push for its own operation.
  Only the undo handlers (delivery.Service.Undo, master.Service.Undo) pop.
  The replay switches live with the domain that owns the scope; this
  package only defines the entry shape, the store contract, and the
  failure vocabulary.

SEE ALSO:
  - delivery/undo.go: Customer-scope replay (temporary changes)
  - master/undo.go: Entity-scope replay (courses, staff, ...)
  - store/sqlite: Single-slot persistence via scope-keyed upsert
*/
package undo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// SCOPE - What a pending undo entry belongs to
// =============================================================================

// Scope keys the single-slot stack. Customer scopes and master entity
// scopes never collide because of the prefix.
type Scope string

func CustomerScope(customerID string) Scope {
	return Scope("customer:" + customerID)
}

func EntityScope(entity string) Scope {
	return Scope("master:" + entity)
}

// =============================================================================
// ACTION - Tagged union discriminator
// =============================================================================

// Action names the mutation an entry can reverse. The payload shape is
// determined entirely by the action; replay dispatches on it with a single
// switch per scope family.
type Action string

const (
	ActionChangeCreate Action = "temporary_change_create"
	ActionChangeUpdate Action = "temporary_change_update"
	ActionChangeDelete Action = "temporary_change_delete"

	ActionCourseCreate Action = "course_create"
	ActionCourseUpdate Action = "course_update"
	ActionCourseDelete Action = "course_delete"

	ActionStaffCreate Action = "staff_create"
	ActionStaffUpdate Action = "staff_update"
	ActionStaffDelete Action = "staff_delete"

	ActionManufacturerCreate Action = "manufacturer_create"
	ActionManufacturerUpdate Action = "manufacturer_update"
	ActionManufacturerDelete Action = "manufacturer_delete"

	ActionCompanyUpdate     Action = "company_update"
	ActionInstitutionUpdate Action = "institution_update"
)

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one pending reversible mutation. Payload is the pre-mutation
// snapshot for update/delete actions and the created record for create
// actions - exactly what the inverse needs, nothing more.
type Entry struct {
	Scope     Scope
	Action    Action
	Payload   json.RawMessage
	CreatedAt time.Time
}

// NewEntry builds an entry, serializing the payload.
func NewEntry(scope Scope, action Action, payload any) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encode undo payload for %s: %w", action, err)
	}
	return Entry{
		Scope:     scope,
		Action:    action,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into the action's concrete shape.
func (e Entry) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode undo payload for %s: %w", e.Action, err)
	}
	return nil
}

// =============================================================================
// LEDGER - Single-slot persistence contract
// =============================================================================

// Ledger stores at most one pending entry per scope.
type Ledger interface {
	// Push records the entry, replacing any prior entry for the same scope.
	Push(ctx context.Context, entry Entry) error

	// Pop atomically removes and returns the pending entry for the scope.
	// An empty scope returns ErrNothingToUndo; that is a reportable
	// outcome, not a failure.
	Pop(ctx context.Context, scope Scope) (*Entry, error)
}
