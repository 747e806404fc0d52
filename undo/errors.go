package undo

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNothingToUndo is returned by Pop on an empty scope. Callers surface
	// it as a non-fatal "nothing to undo" result, never as a 5xx.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrUnsupportedAction is returned when a popped entry carries an action
	// the replay switch does not know. This fails loudly: a silent no-op
	// would desynchronize the UI's undo affordance from actual state.
	ErrUnsupportedAction = errors.New("unsupported undo action")

	// ErrIntegrity is returned when an inverse cannot be applied because
	// data it references has since been deleted. The surrounding transaction
	// must roll back entirely.
	ErrIntegrity = errors.New("undo integrity violation")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// UnsupportedActionError reports which action the replay could not dispatch.
type UnsupportedActionError struct {
	Action Action
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported undo action %q", e.Action)
}

func (e *UnsupportedActionError) Unwrap() error { return ErrUnsupportedAction }

// IntegrityError wraps the store-level cause of a failed inverse.
type IntegrityError struct {
	Action Action
	Cause  error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("cannot apply inverse of %s: %v", e.Action, e.Cause)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }
