package schedule

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date (UTC, no time-of-day)
// =============================================================================

// Date is a calendar day. All schedule resolution happens at day granularity;
// keeping a dedicated type prevents time-of-day and timezone noise from
// leaking into comparisons.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func Today() Date {
	return DateOf(time.Now().UTC())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.t.After(other.t) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.t.Before(other.t) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) String() string { return d.t.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("invalid date literal %s", string(b))
	}
	parsed, err := ParseDate(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// YEAR-MONTH - Billing month selector
// =============================================================================

// YearMonth identifies a billing month. Invoices, confirmation state, and
// undo resynchronization are all keyed by (customer, YearMonth).
type YearMonth struct {
	Year  int
	Month time.Month
}

func MonthOf(d Date) YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

func (ym YearMonth) Prev() YearMonth {
	first := NewDate(ym.Year, ym.Month, 1).AddMonths(-1)
	return MonthOf(first)
}

func (ym YearMonth) First() Date { return NewDate(ym.Year, ym.Month, 1) }

func (ym YearMonth) Last() Date {
	return NewDate(ym.Year, ym.Month, 1).AddMonths(1).AddDays(-1)
}

// Days returns every calendar day of the month in order.
func (ym YearMonth) Days() []Date {
	var days []Date
	current := ym.First()
	last := ym.Last()
	for current.BeforeOrEqual(last) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && d.Month() == ym.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// ValidYearMonth reports whether the selector is in the range the system
// accepts. Out-of-range input is a caller error, not a computation error.
func ValidYearMonth(year, month int) bool {
	return year >= 2000 && year <= 2100 && month >= 1 && month <= 12
}
