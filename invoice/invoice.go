/*
Package invoice is the monthly billing state machine.

PURPOSE:
  Tracks, per (customer, year, month), whether the billing total has been
  finalized. A confirmed month freezes the customer's schedule for that
  month: every temporary-change mutation is guarded by EnsureOpen before it
  may touch the store.

STATES:
  open      - default; no record, or an unconfirmed record
  confirmed - explicit action; stores amount, timestamp, rounding flag

  Unconfirm reverts to open without deleting the record, so a later
  re-confirm can reuse the stored amount.

SEE ALSO:
  - schedule/billing.go: The aggregation that produces the amount
  - delivery/service.go: Guard call sites and the TotalSource implementation
*/
package invoice

import (
	"context"
	"time"

	"github.com/JETKIDS/trae-milk2-sub002/schedule"
)

// =============================================================================
// MODEL
// =============================================================================

type Status string

const (
	StatusOpen      Status = "open"
	StatusConfirmed Status = "confirmed"
)

// Invoice is the confirmation record for one (customer, month).
type Invoice struct {
	CustomerID  schedule.CustomerID
	Month       schedule.YearMonth
	Amount      int64
	Rounded     bool // rounding policy in effect at confirmation
	Status      Status
	ConfirmedAt *time.Time
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store persists invoice records and payment rollups. Implemented by
// store/sqlite.
type Store interface {
	// GetInvoice returns nil when no record exists for the month.
	GetInvoice(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth) (*Invoice, error)

	// SaveInvoice inserts or replaces the record for its (customer, month).
	SaveInvoice(ctx context.Context, inv Invoice) error

	// PaymentTotal sums recorded payments for the month, in yen.
	PaymentTotal(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth) (int64, error)

	// WithTx runs fn inside one store transaction. Store calls made with
	// the context handed to fn join it.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TotalSource recomputes a customer's invoice amount from the live
// pattern/change snapshot. roundedOverride forces the rounding policy;
// nil means the customer's own setting. Implemented by delivery.Service.
type TotalSource interface {
	InvoiceAmount(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth, roundedOverride *bool) (amount int64, rounded bool, err error)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

type StateMachine struct {
	Store  Store
	Totals TotalSource
}

func NewStateMachine(store Store, totals TotalSource) *StateMachine {
	return &StateMachine{Store: store, Totals: totals}
}

// EnsureOpen is the mutation guard: it fails with MonthConfirmedError when
// the month is confirmed. Callers run it inside the same store transaction
// as the write that follows, so the status cannot go stale in between.
func (m *StateMachine) EnsureOpen(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth) error {
	inv, err := m.Store.GetInvoice(ctx, id, ym)
	if err != nil {
		return err
	}
	if inv != nil && inv.Status == StatusConfirmed {
		return &MonthConfirmedError{CustomerID: id, Month: ym}
	}
	return nil
}

// Confirm finalizes the month. A stored amount from a prior confirm cycle
// is reused as-is; otherwise the total is recomputed from the live
// snapshot. An explicit rounding flag forces recomputation under that
// policy. The status read and the save share one store transaction.
func (m *StateMachine) Confirm(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth, roundedOverride *bool) (*Invoice, error) {
	var inv Invoice
	err := m.Store.WithTx(ctx, func(ctx context.Context) error {
		existing, err := m.Store.GetInvoice(ctx, id, ym)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status == StatusConfirmed {
			return &MonthConfirmedError{CustomerID: id, Month: ym}
		}

		var amount int64
		var rounded bool
		switch {
		case existing != nil && roundedOverride == nil:
			amount, rounded = existing.Amount, existing.Rounded
		default:
			amount, rounded, err = m.Totals.InvoiceAmount(ctx, id, ym, roundedOverride)
			if err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		inv = Invoice{
			CustomerID:  id,
			Month:       ym,
			Amount:      amount,
			Rounded:     rounded,
			Status:      StatusConfirmed,
			ConfirmedAt: &now,
		}
		return m.Store.SaveInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Unconfirm reopens the month. The record survives with its amount; only
// the status reverts. Read and save share one store transaction.
func (m *StateMachine) Unconfirm(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth) (*Invoice, error) {
	var inv *Invoice
	err := m.Store.WithTx(ctx, func(ctx context.Context) error {
		existing, err := m.Store.GetInvoice(ctx, id, ym)
		if err != nil {
			return err
		}
		if existing == nil || existing.Status != StatusConfirmed {
			return &NotConfirmedError{CustomerID: id, Month: ym}
		}

		existing.Status = StatusOpen
		if err := m.Store.SaveInvoice(ctx, *existing); err != nil {
			return err
		}
		inv = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Resync recomputes the stored amount for a month whose snapshot changed
// (mutation or undo). Confirmed months are left alone - the guard already
// prevents snapshot changes underneath them - and months with no record
// need nothing stored. Runs in its own transaction; callers invoke it
// after the mutation's transaction has committed.
func (m *StateMachine) Resync(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth) error {
	return m.Store.WithTx(ctx, func(ctx context.Context) error {
		existing, err := m.Store.GetInvoice(ctx, id, ym)
		if err != nil {
			return err
		}
		if existing == nil || existing.Status == StatusConfirmed {
			return nil
		}

		amount, rounded, err := m.Totals.InvoiceAmount(ctx, id, ym, &existing.Rounded)
		if err != nil {
			return err
		}
		existing.Amount = amount
		existing.Rounded = rounded
		return m.Store.SaveInvoice(ctx, *existing)
	})
}

// =============================================================================
// AR SUMMARY
// =============================================================================

// ARSummary is the accounts-receivable view for one month: what the
// previous month billed, what has been paid, and what carries over.
type ARSummary struct {
	PrevInvoiceAmount    int64 `json:"prev_invoice_amount"`
	PrevPaymentAmount    int64 `json:"prev_payment_amount"`
	CurrentPaymentAmount int64 `json:"current_payment_amount"`
	CarryoverAmount      int64 `json:"carryover_amount"`
}

// Summary computes the AR view. The previous month's amount comes from its
// confirmed invoice when one exists, otherwise it is recomputed from the
// live snapshot.
func (m *StateMachine) Summary(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth) (*ARSummary, error) {
	prev := ym.Prev()

	var prevAmount int64
	prevInv, err := m.Store.GetInvoice(ctx, id, prev)
	if err != nil {
		return nil, err
	}
	if prevInv != nil && prevInv.Status == StatusConfirmed {
		prevAmount = prevInv.Amount
	} else {
		prevAmount, _, err = m.Totals.InvoiceAmount(ctx, id, prev, nil)
		if err != nil {
			return nil, err
		}
	}

	prevPaid, err := m.Store.PaymentTotal(ctx, id, prev)
	if err != nil {
		return nil, err
	}
	currentPaid, err := m.Store.PaymentTotal(ctx, id, ym)
	if err != nil {
		return nil, err
	}

	return &ARSummary{
		PrevInvoiceAmount:    prevAmount,
		PrevPaymentAmount:    prevPaid,
		CurrentPaymentAmount: currentPaid,
		CarryoverAmount:      prevAmount - currentPaid,
	}, nil
}
