/*
resolve.go - Calendar Resolution Engine

PURPOSE:
  Reconstructs, for every day of a target month, which products are
  delivered, in what quantity, and at what price. This projection is the
  authoritative source for invoice totals: it is recomputed on every read
  and never cached across mutations.

ALGORITHM (per day):
  1. Filter patterns active on the day.
  2. Reduce to one current pattern per product - when patterns overlap
     (a split edit in flight), the one with the latest start date wins.
  3. Compute the base quantity from the weekday set or quantity map.
  4. Layer temporary changes: skip forces 0 unconditionally; otherwise the
     latest-created modify replaces quantity (and optionally price).
  5. Emit a line only when the resolved quantity is positive.
  6. Emit one extra line per add change, independent of patterns.

DETERMINISM:
  Resolve is a pure function of its inputs. Same patterns + changes in,
  same projection out - this is what makes a recomputed invoice total
  after an undo match the figure the original confirmation produced.

SEE ALSO:
  - types.go: Pattern / TemporaryChange / CalendarDay
  - billing.go: Aggregation of the projection into a monthly total
*/
package schedule

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver resolves delivery calendars. Products supplies master-data
// lookups (name, unit, list price) for line labelling and add fallback
// pricing; a missing product degrades to an unlabelled line rather than
// erroring.
type Resolver struct {
	Products map[ProductID]ProductInfo
}

// Resolve returns one CalendarDay per calendar day of the month, in order.
func (r *Resolver) Resolve(ym YearMonth, patterns []Pattern, changes []TemporaryChange) []CalendarDay {
	index := indexChanges(changes)

	var days []CalendarDay
	for _, date := range ym.Days() {
		days = append(days, CalendarDay{
			Date:  date,
			Lines: r.resolveDay(date, patterns, index),
		})
	}
	return days
}

func (r *Resolver) resolveDay(date Date, patterns []Pattern, index changeIndex) []Line {
	lines := []Line{}

	for _, p := range CurrentPatterns(date, patterns) {
		qty := p.QuantityOn(date.Weekday())
		price := p.UnitPrice

		switch {
		case index.skipped(p.ProductID, date):
			// Skip dominates everything, including a modify on the same key.
			qty = 0
		default:
			if mod, ok := index.latestModify(p.ProductID, date); ok {
				if mod.Quantity != nil {
					qty = *mod.Quantity
				}
				if mod.UnitPrice != nil {
					price = *mod.UnitPrice
				}
			}
		}

		if qty <= 0 {
			continue
		}
		lines = append(lines, r.line(p.ProductID, qty, price, false))
	}

	// Additions stand alone: they are additive regardless of any pattern.
	for _, add := range index.adds(date) {
		qty := 0
		if add.Quantity != nil {
			qty = *add.Quantity
		}
		if qty <= 0 {
			continue
		}
		price := r.masterPrice(add.ProductID)
		if add.UnitPrice != nil {
			price = *add.UnitPrice
		}
		lines = append(lines, r.line(add.ProductID, qty, price, true))
	}

	return lines
}

func (r *Resolver) line(id ProductID, qty int, price decimal.Decimal, temporary bool) Line {
	info := r.Products[id]
	return Line{
		ProductID:    id,
		ProductName:  info.Name,
		Unit:         info.Unit,
		Quantity:     qty,
		UnitPrice:    price,
		Amount:       price.Mul(decimal.NewFromInt(int64(qty))),
		TemporaryAdd: temporary,
	}
}

func (r *Resolver) masterPrice(id ProductID) decimal.Decimal {
	if info, ok := r.Products[id]; ok {
		return info.Price
	}
	return decimal.Zero
}

// =============================================================================
// CURRENT-PATTERN REDUCTION
// =============================================================================

// CurrentPatterns reduces the patterns active on a day to at most one per
// product. When two patterns for the same product overlap - the transient
// state of a split update (end old, start new) - the later StartDate wins,
// so the day is never double-counted. Exported separately so the tie-break
// is testable in isolation.
//
// The result is ordered by ProductID to keep resolution deterministic.
func CurrentPatterns(date Date, patterns []Pattern) []Pattern {
	current := make(map[ProductID]Pattern)
	for _, p := range patterns {
		if !p.ActiveOn(date) {
			continue
		}
		existing, ok := current[p.ProductID]
		if !ok || p.StartDate.After(existing.StartDate) {
			current[p.ProductID] = p
		}
	}

	out := make([]Pattern, 0, len(current))
	for _, p := range current {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// =============================================================================
// CHANGE INDEX
// =============================================================================

type changeKey struct {
	Product ProductID
	Date    Date
}

type changeIndex struct {
	skips     map[changeKey]bool
	daySkips  map[Date]bool // product-less skips cover the whole day
	modifies  map[changeKey]TemporaryChange
	addsByDay map[Date][]TemporaryChange
}

func indexChanges(changes []TemporaryChange) changeIndex {
	idx := changeIndex{
		skips:     make(map[changeKey]bool),
		daySkips:  make(map[Date]bool),
		modifies:  make(map[changeKey]TemporaryChange),
		addsByDay: make(map[Date][]TemporaryChange),
	}

	for _, c := range changes {
		key := changeKey{Product: c.ProductID, Date: c.Date}
		switch c.Type {
		case ChangeSkip:
			if c.ProductID == "" {
				idx.daySkips[c.Date] = true
			} else {
				idx.skips[key] = true
			}
		case ChangeModify:
			// Latest creation timestamp wins for the same key.
			if prev, ok := idx.modifies[key]; !ok || c.CreatedAt.After(prev.CreatedAt) {
				idx.modifies[key] = c
			}
		case ChangeAdd:
			idx.addsByDay[c.Date] = append(idx.addsByDay[c.Date], c)
		}
	}

	// Stable add ordering by creation time, then id.
	for d := range idx.addsByDay {
		adds := idx.addsByDay[d]
		sort.Slice(adds, func(i, j int) bool {
			if !adds[i].CreatedAt.Equal(adds[j].CreatedAt) {
				return adds[i].CreatedAt.Before(adds[j].CreatedAt)
			}
			return adds[i].ID < adds[j].ID
		})
	}
	return idx
}

func (idx changeIndex) skipped(product ProductID, date Date) bool {
	return idx.daySkips[date] || idx.skips[changeKey{Product: product, Date: date}]
}

func (idx changeIndex) latestModify(product ProductID, date Date) (TemporaryChange, bool) {
	c, ok := idx.modifies[changeKey{Product: product, Date: date}]
	return c, ok
}

func (idx changeIndex) adds(date Date) []TemporaryChange {
	return idx.addsByDay[date]
}
