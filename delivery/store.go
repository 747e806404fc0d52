package delivery

import (
	"context"
	"time"

	"github.com/JETKIDS/trae-milk2-sub002/schedule"
)

// =============================================================================
// CUSTOMER
// =============================================================================

// Customer is the delivery-side view of a customer: identity, the course
// the customer is delivered on, and the billing rounding policy.
type Customer struct {
	ID        schedule.CustomerID
	Name      string
	CourseID  string
	Rounded   bool // floor invoice totals to the nearest 10 yen
	CreatedAt time.Time
}

// Payment is one recorded receipt against a customer's account.
type Payment struct {
	ID         string
	CustomerID schedule.CustomerID
	Date       schedule.Date
	Amount     int64
}

// =============================================================================
// STORE - Persistence contract for the delivery core
// =============================================================================

// Store is implemented by store/sqlite. Methods called with the context a
// WithTx callback receives join that transaction; the guard check and the
// write it guards must share one transaction (WithTx is the lock boundary
// for a scope).
type Store interface {
	GetCustomer(ctx context.Context, id schedule.CustomerID) (*Customer, error)

	ListPatterns(ctx context.Context, id schedule.CustomerID) ([]schedule.Pattern, error)

	// ListChanges returns the customer's temporary changes dated within the
	// month.
	ListChanges(ctx context.Context, id schedule.CustomerID, ym schedule.YearMonth) ([]schedule.TemporaryChange, error)

	// GetChange returns nil when the change does not exist.
	GetChange(ctx context.Context, changeID string) (*schedule.TemporaryChange, error)

	// InsertChange writes the record verbatim, including its id and
	// creation timestamp, so an undone delete keeps foreign references
	// intact.
	InsertChange(ctx context.Context, ch schedule.TemporaryChange) error

	UpdateChange(ctx context.Context, ch schedule.TemporaryChange) error

	DeleteChange(ctx context.Context, changeID string) error

	Products(ctx context.Context) (map[schedule.ProductID]schedule.ProductInfo, error)

	InsertPayment(ctx context.Context, p Payment) error

	// WithTx runs fn inside one store transaction. Store calls made with
	// the context handed to fn join it; fn returning an error rolls
	// everything back.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
