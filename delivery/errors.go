/*
errors.go - Error taxonomy for the delivery core

PURPOSE:
  One vocabulary for everything the mutation paths can fail with, so the
  HTTP layer maps errors to status codes with errors.Is instead of string
  matching. The calendar resolver and the billing aggregator never error
  for well-formed input - they degrade to empty/zero results - so every
  failure here originates in a guard, a lookup, or an undo replay.

CATEGORIES:
  validation - malformed input, or a mutation against a confirmed month
  conflict   - the mutation contradicts current schedule state
  not found  - referenced customer/product/change is absent
  integrity  - an undo inverse no longer applies (see undo package)
*/
package delivery

import (
	"errors"
	"fmt"

	"github.com/JETKIDS/trae-milk2-sub002/invoice"
	"github.com/JETKIDS/trae-milk2-sub002/undo"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflicting schedule state")
	ErrNotFound   = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }
func (e *ValidationError) Unwrap() error { return ErrValidation }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }
func (e *ConflictError) Unwrap() error { return ErrConflict }

type NotFoundError struct {
	Kind string // "customer", "product", "temporary change"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsValidation covers caller mistakes, including mutations against a
// confirmed month. Never retried.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, invoice.ErrMonthConfirmed) ||
		errors.Is(err, invoice.ErrNotConfirmed)
}

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsIntegrity covers undo inverses that can no longer be applied.
func IsIntegrity(err error) bool { return errors.Is(err, undo.ErrIntegrity) }
