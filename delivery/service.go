/*
service.go - Customer-facing delivery operations

PURPOSE:
  The four logical operations the owning API layer calls:

    Calendar        - read-only day-by-day projection for a month
    Summary         - accounts-receivable view (carryover math)
    Create/Update/DeleteChange - guarded temporary-change mutation
    Undo            - pop and replay the customer's pending inverse

  Every mutation follows the same shape: guard the affected month(s)
  against the confirmed-month rule, apply the write, push the inverse to
  the undo ledger - all inside one store transaction - then resynchronize
  stored invoice totals for the affected month(s).

SEE ALSO:
  - undo.go: The replay switch behind Undo
  - invoice/invoice.go: Guard and resynchronization
*/
package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JETKIDS/trae-milk2-sub002/invoice"
	"github.com/JETKIDS/trae-milk2-sub002/schedule"
	"github.com/JETKIDS/trae-milk2-sub002/undo"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store    Store
	ledger   undo.Ledger
	invoices *invoice.StateMachine
}

// NewService wires the delivery core. The invoice state machine recomputes
// totals through this service, so the two are constructed together.
func NewService(store Store, ledger undo.Ledger, invoiceStore invoice.Store) *Service {
	s := &Service{store: store, ledger: ledger}
	s.invoices = invoice.NewStateMachine(invoiceStore, s)
	return s
}

// Invoices exposes the state machine for confirm/unconfirm endpoints.
func (s *Service) Invoices() *invoice.StateMachine { return s.invoices }

// =============================================================================
// READ PATH
// =============================================================================

// Calendar resolves the customer's delivery calendar for one month.
func (s *Service) Calendar(ctx context.Context, id schedule.CustomerID, year, month int) ([]schedule.CalendarDay, error) {
	ym, err := s.monthSelector(ctx, id, year, month)
	if err != nil {
		return nil, err
	}
	return s.resolveMonth(ctx, id, ym)
}

// Summary returns the AR view for one month.
func (s *Service) Summary(ctx context.Context, id schedule.CustomerID, year, month int) (*invoice.ARSummary, error) {
	ym, err := s.monthSelector(ctx, id, year, month)
	if err != nil {
		return nil, err
	}
	return s.invoices.Summary(ctx, id, ym)
}

// InvoiceAmount recomputes the billing figure for a month from the live
// snapshot. Implements invoice.TotalSource.
func (s *Service) InvoiceAmount(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth, roundedOverride *bool) (int64, bool, error) {
	customer, err := s.customer(ctx, id)
	if err != nil {
		return 0, false, err
	}

	rounded := customer.Rounded
	if roundedOverride != nil {
		rounded = *roundedOverride
	}

	days, err := s.resolveMonth(ctx, id, ym)
	if err != nil {
		return 0, false, err
	}
	return schedule.InvoiceAmount(schedule.MonthlyTotal(days), rounded), rounded, nil
}

func (s *Service) resolveMonth(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth) ([]schedule.CalendarDay, error) {
	patterns, err := s.store.ListPatterns(ctx, id)
	if err != nil {
		return nil, err
	}
	changes, err := s.store.ListChanges(ctx, id, ym)
	if err != nil {
		return nil, err
	}
	products, err := s.store.Products(ctx)
	if err != nil {
		return nil, err
	}

	resolver := &schedule.Resolver{Products: products}
	return resolver.Resolve(ym, patterns, changes), nil
}

// =============================================================================
// CONFIRMATION
// =============================================================================

func (s *Service) Confirm(ctx context.Context, id schedule.CustomerID, year, month int, roundedOverride *bool) (*invoice.Invoice, error) {
	ym, err := s.monthSelector(ctx, id, year, month)
	if err != nil {
		return nil, err
	}
	return s.invoices.Confirm(ctx, id, ym, roundedOverride)
}

func (s *Service) Unconfirm(ctx context.Context, id schedule.CustomerID, year, month int) (*invoice.Invoice, error) {
	ym, err := s.monthSelector(ctx, id, year, month)
	if err != nil {
		return nil, err
	}
	return s.invoices.Unconfirm(ctx, id, ym)
}

// =============================================================================
// TEMPORARY-CHANGE MUTATION
// =============================================================================

// CreateChange inserts a new temporary change and records its inverse.
// Returns the created record and the affected billing months.
func (s *Service) CreateChange(ctx context.Context, ch schedule.TemporaryChange) (*schedule.TemporaryChange, []schedule.YearMonth, error) {
	if _, err := s.customer(ctx, ch.CustomerID); err != nil {
		return nil, nil, err
	}
	if err := s.validateChange(ctx, ch); err != nil {
		return nil, nil, err
	}

	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	month := schedule.MonthOf(ch.Date)

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.invoices.EnsureOpen(ctx, ch.CustomerID, month); err != nil {
			return err
		}
		if ch.Type == schedule.ChangeAdd {
			if err := s.checkAddConflict(ctx, ch); err != nil {
				return err
			}
		}
		if err := s.store.InsertChange(ctx, ch); err != nil {
			return err
		}
		entry, err := undo.NewEntry(undo.CustomerScope(string(ch.CustomerID)), undo.ActionChangeCreate, ch)
		if err != nil {
			return err
		}
		return s.ledger.Push(ctx, entry)
	})
	if err != nil {
		return nil, nil, err
	}

	months := []schedule.YearMonth{month}
	return &ch, months, s.resyncMonths(ctx, ch.CustomerID, months)
}

// UpdateChange replaces the mutable fields of an existing change. The
// confirmed-month guard runs on both the old and the new month, since an
// update may move the change across a month boundary.
func (s *Service) UpdateChange(ctx context.Context, ch schedule.TemporaryChange) (*schedule.TemporaryChange, []schedule.YearMonth, error) {
	old, err := s.ownedChange(ctx, ch.CustomerID, ch.ID)
	if err != nil {
		return nil, nil, err
	}
	// Identity and the tie-breaking creation timestamp are immutable.
	ch.CustomerID = old.CustomerID
	ch.CreatedAt = old.CreatedAt

	if err := s.validateChange(ctx, ch); err != nil {
		return nil, nil, err
	}

	months := monthsOf(old.Date, ch.Date)
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		for _, ym := range months {
			if err := s.invoices.EnsureOpen(ctx, ch.CustomerID, ym); err != nil {
				return err
			}
		}
		if ch.Type == schedule.ChangeAdd {
			// An update can move an add onto a day the recurring schedule
			// already delivers the product; the same conflict rule as
			// creation applies.
			if err := s.checkAddConflict(ctx, ch); err != nil {
				return err
			}
		}
		entry, err := undo.NewEntry(undo.CustomerScope(string(ch.CustomerID)), undo.ActionChangeUpdate, old)
		if err != nil {
			return err
		}
		if err := s.ledger.Push(ctx, entry); err != nil {
			return err
		}
		return s.store.UpdateChange(ctx, ch)
	})
	if err != nil {
		return nil, nil, err
	}

	return &ch, months, s.resyncMonths(ctx, ch.CustomerID, months)
}

// DeleteChange removes a change, keeping its snapshot on the ledger so the
// row can be re-inserted verbatim by undo.
func (s *Service) DeleteChange(ctx context.Context, id schedule.CustomerID, changeID string) ([]schedule.YearMonth, error) {
	old, err := s.ownedChange(ctx, id, changeID)
	if err != nil {
		return nil, err
	}

	month := schedule.MonthOf(old.Date)
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.invoices.EnsureOpen(ctx, id, month); err != nil {
			return err
		}
		entry, err := undo.NewEntry(undo.CustomerScope(string(id)), undo.ActionChangeDelete, old)
		if err != nil {
			return err
		}
		if err := s.ledger.Push(ctx, entry); err != nil {
			return err
		}
		return s.store.DeleteChange(ctx, changeID)
	})
	if err != nil {
		return nil, err
	}

	months := []schedule.YearMonth{month}
	return months, s.resyncMonths(ctx, id, months)
}

// RecordPayment stores a receipt for the AR summary.
func (s *Service) RecordPayment(ctx context.Context, p Payment) (*Payment, error) {
	if _, err := s.customer(ctx, p.CustomerID); err != nil {
		return nil, err
	}
	if p.Amount <= 0 {
		return nil, validationf("payment amount must be positive")
	}
	if p.Date.IsZero() {
		return nil, validationf("payment date is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.store.InsertPayment(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) customer(ctx context.Context, id schedule.CustomerID) (*Customer, error) {
	if id == "" {
		return nil, validationf("customer id is required")
	}
	customer, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, &NotFoundError{Kind: "customer", ID: string(id)}
	}
	return customer, nil
}

func (s *Service) monthSelector(ctx context.Context, id schedule.CustomerID, year, month int) (schedule.YearMonth, error) {
	if _, err := s.customer(ctx, id); err != nil {
		return schedule.YearMonth{}, err
	}
	if !schedule.ValidYearMonth(year, month) {
		return schedule.YearMonth{}, validationf("year/month %d-%d out of range", year, month)
	}
	return schedule.YearMonth{Year: year, Month: time.Month(month)}, nil
}

func (s *Service) ownedChange(ctx context.Context, id schedule.CustomerID, changeID string) (*schedule.TemporaryChange, error) {
	if changeID == "" {
		return nil, validationf("change id is required")
	}
	if _, err := s.customer(ctx, id); err != nil {
		return nil, err
	}
	ch, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return nil, err
	}
	if ch == nil || ch.CustomerID != id {
		return nil, &NotFoundError{Kind: "temporary change", ID: changeID}
	}
	return ch, nil
}

func (s *Service) validateChange(ctx context.Context, ch schedule.TemporaryChange) error {
	if !ch.Type.Valid() {
		return validationf("unknown change type %q", ch.Type)
	}
	if ch.Date.IsZero() {
		return validationf("change date is required")
	}
	if ch.ProductID == "" && ch.Type != schedule.ChangeSkip {
		return validationf("%s changes require a product", ch.Type)
	}
	if ch.Type != schedule.ChangeSkip {
		if ch.Quantity == nil {
			return validationf("%s changes require a quantity", ch.Type)
		}
		if *ch.Quantity < 0 {
			return validationf("quantity must not be negative")
		}
	}
	if ch.ProductID != "" {
		products, err := s.store.Products(ctx)
		if err != nil {
			return err
		}
		if _, ok := products[ch.ProductID]; !ok {
			return &NotFoundError{Kind: "product", ID: string(ch.ProductID)}
		}
	}
	return nil
}

// checkAddConflict rejects an add for a product the recurring schedule
// already delivers on that day - the caller should modify the existing
// line instead.
func (s *Service) checkAddConflict(ctx context.Context, ch schedule.TemporaryChange) error {
	patterns, err := s.store.ListPatterns(ctx, ch.CustomerID)
	if err != nil {
		return err
	}
	for _, p := range schedule.CurrentPatterns(ch.Date, patterns) {
		if p.ProductID == ch.ProductID && p.QuantityOn(ch.Date.Weekday()) > 0 {
			return &ConflictError{
				Reason: "product " + string(ch.ProductID) + " is already scheduled on " + ch.Date.String(),
			}
		}
	}
	return nil
}

func (s *Service) resyncMonths(ctx context.Context, id schedule.CustomerID, months []schedule.YearMonth) error {
	for _, ym := range months {
		if err := s.invoices.Resync(ctx, id, ym); err != nil {
			return err
		}
	}
	return nil
}

func monthsOf(dates ...schedule.Date) []schedule.YearMonth {
	var months []schedule.YearMonth
	seen := make(map[schedule.YearMonth]bool)
	for _, d := range dates {
		ym := schedule.MonthOf(d)
		if !seen[ym] {
			seen[ym] = true
			months = append(months, ym)
		}
	}
	return months
}
