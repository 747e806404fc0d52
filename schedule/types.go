/*
Package schedule is the core delivery-calendar engine.

PURPOSE:
  This package contains the pure model and algorithms that turn a customer's
  recurring delivery patterns plus one-off temporary changes into the
  authoritative day-by-day delivery calendar, and reduce that calendar into
  the monthly billing total.

KEY CONCEPTS IN THIS FILE (types.go):
  - Pattern: A recurring contract line (weekdays, quantity, price, range)
  - TemporaryChange: A one-day override (skip / add / modify)
  - CalendarDay / Line: The derived per-day, per-product projection
  - ProductInfo: Master-data lookup shape consumed during resolution

DESIGN PRINCIPLES:
  1. Purity: Nothing in this package performs I/O. Resolution is a function
     of its inputs, so repeated calls over the same snapshot are identical.
  2. Precision: Uses decimal.Decimal for prices and amounts to keep invoice
     totals byte-for-byte reproducible.
  3. Canonical shape: Weekday sets and quantity maps are normalized once at
     this boundary (normalize.go); the resolver never sees serialized forms.

SEE ALSO:
  - resolve.go: Day-by-day calendar resolution
  - billing.go: Monthly aggregation and rounding policy
  - normalize.go: String-or-structured JSON field normalization
*/
package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type ProductID string

// =============================================================================
// PATTERN - Recurring delivery contract line
// =============================================================================

// Pattern is one recurring delivery line for a (customer, product) pair.
//
// Quantity selection:
//   - When QuantityByDay is present it takes precedence: the delivered
//     quantity on weekday w is QuantityByDay[w] (absent weekday = 0).
//   - Otherwise Quantity is delivered on every weekday in Weekdays.
//
// Patterns are never edited in place. A quantity or weekday change is a
// split: the old pattern is end-dated and a new one starts, so two patterns
// for the same product may transiently overlap. The resolver breaks the tie
// by latest StartDate (see resolve.go).
type Pattern struct {
	ID         string
	CustomerID CustomerID
	ProductID  ProductID

	Weekdays      []int       // 0=Sunday .. 6=Saturday
	Quantity      int         // flat per-delivery quantity
	QuantityByDay map[int]int // per-weekday override, wins over Weekdays/Quantity

	UnitPrice decimal.Decimal // contract price at signup time
	StartDate Date            // inclusive
	EndDate   *Date           // inclusive when set, nil = open-ended
	Active    bool
}

// ActiveOn reports whether the pattern covers day d.
func (p Pattern) ActiveOn(d Date) bool {
	if !p.Active {
		return false
	}
	if d.Before(p.StartDate) {
		return false
	}
	if p.EndDate != nil && d.After(*p.EndDate) {
		return false
	}
	return true
}

// QuantityOn returns the base quantity the pattern contributes on weekday wd.
// A pattern with neither a weekday set nor a quantity map contributes nothing.
func (p Pattern) QuantityOn(wd time.Weekday) int {
	if len(p.QuantityByDay) > 0 {
		return p.QuantityByDay[int(wd)]
	}
	for _, w := range p.Weekdays {
		if w == int(wd) {
			return p.Quantity
		}
	}
	return 0
}

// =============================================================================
// TEMPORARY CHANGE - One-day override layered on patterns
// =============================================================================

type ChangeType string

const (
	ChangeSkip   ChangeType = "skip"   // force quantity to 0, wins over modify
	ChangeAdd    ChangeType = "add"    // extra line, additive regardless of patterns
	ChangeModify ChangeType = "modify" // replace quantity (and optionally price)
)

func (t ChangeType) Valid() bool {
	return t == ChangeSkip || t == ChangeAdd || t == ChangeModify
}

// TemporaryChange is a single-date override for one customer.
//
// ProductID is empty only for skip changes, in which case the skip applies
// to every pattern-driven line on that date. CreatedAt is the tie-breaker
// when several modify changes target the same (product, date).
type TemporaryChange struct {
	ID         string
	CustomerID CustomerID
	ProductID  ProductID // empty = whole-day skip (skip type only)
	Date       Date
	Type       ChangeType
	Quantity   *int
	UnitPrice  *decimal.Decimal // overrides the pattern price for that day only
	Reason     string
	CreatedAt  time.Time
}

// =============================================================================
// PRODUCT MASTER LOOKUP
// =============================================================================

// ProductInfo is the slice of the product master the resolver needs:
// display name, unit label, and the list price used when an add change
// carries no price of its own.
type ProductInfo struct {
	ID    ProductID
	Name  string
	Unit  string
	Price decimal.Decimal
}

// =============================================================================
// CALENDAR PROJECTION - Derived, never persisted
// =============================================================================

// Line is one resolved product line on one day.
type Line struct {
	ProductID    ProductID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Unit         string          `json:"unit"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Amount       decimal.Decimal `json:"amount"`
	TemporaryAdd bool            `json:"temporary_add,omitempty"`
}

// CalendarDay is the projection for one calendar day. Days with no
// deliveries still appear, with an empty Lines slice.
type CalendarDay struct {
	Date  Date   `json:"date"`
	Lines []Line `json:"lines"`
}
