package invoice

import (
	"errors"
	"fmt"

	"github.com/JETKIDS/trae-milk2-sub002/schedule"
)

var (
	// ErrMonthConfirmed gates every schedule mutation for a confirmed month.
	ErrMonthConfirmed = errors.New("billing month is confirmed")

	// ErrNotConfirmed is returned when unconfirming a month that is open.
	ErrNotConfirmed = errors.New("billing month is not confirmed")
)

// MonthConfirmedError tells the caller which month to unconfirm first.
type MonthConfirmedError struct {
	CustomerID schedule.CustomerID
	Month      schedule.YearMonth
}

func (e *MonthConfirmedError) Error() string {
	return fmt.Sprintf("billing for %s is confirmed for customer %s: unconfirm the month before changing its schedule", e.Month, e.CustomerID)
}

func (e *MonthConfirmedError) Unwrap() error { return ErrMonthConfirmed }

type NotConfirmedError struct {
	CustomerID schedule.CustomerID
	Month      schedule.YearMonth
}

func (e *NotConfirmedError) Error() string {
	return fmt.Sprintf("billing for %s is not confirmed for customer %s", e.Month, e.CustomerID)
}

func (e *NotConfirmedError) Unwrap() error { return ErrNotConfirmed }
