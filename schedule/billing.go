/*
billing.go - Billing Aggregator

PURPOSE:
  Reduces the day-by-day calendar projection into the monthly invoice
  figure. Shared by the stateless preview endpoint, invoice confirmation,
  and the post-undo resynchronization pass - all three must land on the
  same number for the same snapshot.

ROUNDING POLICY:
  Customers with rounding enabled have their raw total floored to the
  nearest 10 yen. The policy in effect is stored alongside the confirmed
  invoice so recomputation reproduces the stored amount exactly.
*/
package schedule

import "github.com/shopspring/decimal"

// MonthlyTotal sums every line amount across all days of the projection.
func MonthlyTotal(days []CalendarDay) decimal.Decimal {
	total := decimal.Zero
	for _, day := range days {
		for _, line := range day.Lines {
			total = total.Add(line.Amount)
		}
	}
	return total
}

var ten = decimal.NewFromInt(10)

// InvoiceAmount applies the customer's rounding policy to a raw monthly
// total and returns the integer yen amount that goes on the invoice.
func InvoiceAmount(total decimal.Decimal, rounded bool) int64 {
	if rounded {
		return total.Div(ten).Floor().Mul(ten).IntPart()
	}
	return total.IntPart()
}
