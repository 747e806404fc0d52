package schedule_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JETKIDS/trae-milk2-sub002/schedule"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func intp(n int) *int { return &n }

func decp(n int64) *decimal.Decimal {
	d := dec(n)
	return &d
}

// jan returns a day of January 2025. Jan 1 is a Wednesday; Mondays fall on
// 6, 13, 20, 27 and Thursdays on 2, 9, 16, 23, 30.
func jan(day int) schedule.Date { return schedule.NewDate(2025, time.January, day) }

var january = schedule.YearMonth{Year: 2025, Month: time.January}

func testProducts() map[schedule.ProductID]schedule.ProductInfo {
	return map[schedule.ProductID]schedule.ProductInfo{
		"milk-180": {ID: "milk-180", Name: "Milk 180ml", Unit: "bottle", Price: dec(100)},
		"yogurt-90": {ID: "yogurt-90", Name: "Yogurt 90g", Unit: "cup", Price: dec(130)},
	}
}

// milkMonThu is the baseline fixture: milk twice a week, two bottles each.
func milkMonThu() schedule.Pattern {
	return schedule.Pattern{
		ID:         "pat-001",
		CustomerID: "cust-001",
		ProductID:  "milk-180",
		Weekdays:   []int{1, 4},
		Quantity:   2,
		UnitPrice:  dec(100),
		StartDate:  schedule.NewDate(2025, time.January, 1),
		Active:     true,
	}
}

func resolve(t *testing.T, patterns []schedule.Pattern, changes []schedule.TemporaryChange) []schedule.CalendarDay {
	t.Helper()
	r := &schedule.Resolver{Products: testProducts()}
	days := r.Resolve(january, patterns, changes)
	require.Len(t, days, 31)
	return days
}

func linesOn(days []schedule.CalendarDay, date schedule.Date) []schedule.Line {
	for _, day := range days {
		if day.Date.Equal(date) {
			return day.Lines
		}
	}
	return nil
}

// =============================================================================
// RECURRING PATTERN RESOLUTION
// =============================================================================

func TestResolve_RecurringWeekdays(t *testing.T) {
	// GIVEN: Mon/Thu milk pattern, qty 2 at 100 yen
	// WHEN: Resolving January 2025
	// THEN: Exactly the 9 Mon/Thu dates carry one line of amount 200

	days := resolve(t, []schedule.Pattern{milkMonThu()}, nil)

	delivered := 0
	for _, day := range days {
		if len(day.Lines) == 0 {
			continue
		}
		delivered++
		wd := day.Date.Weekday()
		assert.True(t, wd == time.Monday || wd == time.Thursday, "unexpected delivery on %s", day.Date)
		require.Len(t, day.Lines, 1)
		line := day.Lines[0]
		assert.Equal(t, schedule.ProductID("milk-180"), line.ProductID)
		assert.Equal(t, "Milk 180ml", line.ProductName)
		assert.Equal(t, 2, line.Quantity)
		assert.True(t, line.Amount.Equal(dec(200)))
		assert.False(t, line.TemporaryAdd)
	}
	assert.Equal(t, 9, delivered)
}

func TestResolve_QuantityByDayWinsOverWeekdaySet(t *testing.T) {
	p := milkMonThu()
	p.QuantityByDay = map[int]int{3: 1, 6: 3} // Wed 1, Sat 3

	days := resolve(t, []schedule.Pattern{p}, nil)

	// The weekday set is ignored once a quantity map is present.
	assert.Empty(t, linesOn(days, jan(6)), "Monday should be dropped")
	wed := linesOn(days, jan(1))
	require.Len(t, wed, 1)
	assert.Equal(t, 1, wed[0].Quantity)
	sat := linesOn(days, jan(4))
	require.Len(t, sat, 1)
	assert.Equal(t, 3, sat[0].Quantity)
}

func TestResolve_PatternDateRange(t *testing.T) {
	end := jan(15)
	p := milkMonThu()
	p.StartDate = jan(6)
	p.EndDate = &end

	days := resolve(t, []schedule.Pattern{p}, nil)

	assert.Empty(t, linesOn(days, jan(2)), "before start")
	assert.Len(t, linesOn(days, jan(6)), 1, "start date inclusive")
	assert.Len(t, linesOn(days, jan(13)), 1, "within range")
	assert.Empty(t, linesOn(days, jan(16)), "after end")
}

func TestResolve_InactivePatternContributesNothing(t *testing.T) {
	p := milkMonThu()
	p.Active = false

	days := resolve(t, []schedule.Pattern{p}, nil)
	for _, day := range days {
		assert.Empty(t, day.Lines)
	}
}

// =============================================================================
// OVERLAPPING PATTERNS - Latest start date wins
// =============================================================================

func TestCurrentPatterns_LatestStartWins(t *testing.T) {
	// GIVEN: A split edit in flight - old pattern still open, new one started
	// WHEN: Reducing the patterns active on the same day
	// THEN: Only the later-starting pattern survives

	old := milkMonThu()
	replacement := milkMonThu()
	replacement.ID = "pat-002"
	replacement.Quantity = 5
	replacement.StartDate = jan(10)

	current := schedule.CurrentPatterns(jan(13), []schedule.Pattern{old, replacement})
	require.Len(t, current, 1)
	assert.Equal(t, "pat-002", current[0].ID)
	assert.Equal(t, 5, current[0].Quantity)
}

func TestResolve_OverlapNeverDoubleCounts(t *testing.T) {
	old := milkMonThu()
	replacement := milkMonThu()
	replacement.ID = "pat-002"
	replacement.StartDate = jan(10)

	days := resolve(t, []schedule.Pattern{old, replacement}, nil)
	assert.Len(t, linesOn(days, jan(13)), 1)
}

// =============================================================================
// TEMPORARY CHANGES
// =============================================================================

func TestResolve_SkipForcesZero(t *testing.T) {
	skip := schedule.TemporaryChange{
		ID: "chg-1", CustomerID: "cust-001", ProductID: "milk-180",
		Date: jan(13), Type: schedule.ChangeSkip,
	}

	days := resolve(t, []schedule.Pattern{milkMonThu()}, []schedule.TemporaryChange{skip})

	assert.Empty(t, linesOn(days, jan(13)))
	assert.Len(t, linesOn(days, jan(6)), 1, "other Mondays untouched")
}

func TestResolve_SkipDominatesModify(t *testing.T) {
	// GIVEN: A skip and a modify on the same (product, date)
	// WHEN: Resolving the day
	// THEN: The skip wins regardless of which was created later

	changes := []schedule.TemporaryChange{
		{ID: "chg-1", ProductID: "milk-180", Date: jan(13), Type: schedule.ChangeSkip,
			CreatedAt: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)},
		{ID: "chg-2", ProductID: "milk-180", Date: jan(13), Type: schedule.ChangeModify,
			Quantity: intp(10), CreatedAt: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)},
	}

	days := resolve(t, []schedule.Pattern{milkMonThu()}, changes)
	assert.Empty(t, linesOn(days, jan(13)))
}

func TestResolve_WholeDaySkip(t *testing.T) {
	// A skip with no product clears every pattern line on the date.
	yogurt := schedule.Pattern{
		ID: "pat-yog", CustomerID: "cust-001", ProductID: "yogurt-90",
		Weekdays: []int{1}, Quantity: 1, UnitPrice: dec(130),
		StartDate: jan(1), Active: true,
	}
	daySkip := schedule.TemporaryChange{
		ID: "chg-1", Date: jan(13), Type: schedule.ChangeSkip,
	}

	days := resolve(t, []schedule.Pattern{milkMonThu(), yogurt}, []schedule.TemporaryChange{daySkip})

	assert.Empty(t, linesOn(days, jan(13)))
	assert.Len(t, linesOn(days, jan(6)), 2)
}

func TestResolve_LatestModifyWins(t *testing.T) {
	changes := []schedule.TemporaryChange{
		{ID: "chg-1", ProductID: "milk-180", Date: jan(16), Type: schedule.ChangeModify,
			Quantity: intp(4), CreatedAt: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)},
		{ID: "chg-2", ProductID: "milk-180", Date: jan(16), Type: schedule.ChangeModify,
			Quantity: intp(1), CreatedAt: time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC)},
	}

	days := resolve(t, []schedule.Pattern{milkMonThu()}, changes)

	lines := linesOn(days, jan(16))
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestResolve_ModifyReplacesPrice(t *testing.T) {
	mod := schedule.TemporaryChange{
		ID: "chg-1", ProductID: "milk-180", Date: jan(16), Type: schedule.ChangeModify,
		Quantity: intp(1), UnitPrice: decp(90),
	}

	days := resolve(t, []schedule.Pattern{milkMonThu()}, []schedule.TemporaryChange{mod})

	lines := linesOn(days, jan(16))
	require.Len(t, lines, 1)
	assert.True(t, lines[0].UnitPrice.Equal(dec(90)))
	assert.True(t, lines[0].Amount.Equal(dec(90)))
}

func TestResolve_ModifyWithoutQuantityKeepsBase(t *testing.T) {
	// A price-only modify leaves the pattern quantity alone.
	mod := schedule.TemporaryChange{
		ID: "chg-1", ProductID: "milk-180", Date: jan(16), Type: schedule.ChangeModify,
		UnitPrice: decp(80),
	}

	days := resolve(t, []schedule.Pattern{milkMonThu()}, []schedule.TemporaryChange{mod})

	lines := linesOn(days, jan(16))
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, lines[0].Amount.Equal(dec(160)))
}

func TestResolve_ModifyToZeroDropsLine(t *testing.T) {
	mod := schedule.TemporaryChange{
		ID: "chg-1", ProductID: "milk-180", Date: jan(16), Type: schedule.ChangeModify,
		Quantity: intp(0),
	}

	days := resolve(t, []schedule.Pattern{milkMonThu()}, []schedule.TemporaryChange{mod})
	assert.Empty(t, linesOn(days, jan(16)))
}

// =============================================================================
// ADD CHANGES - Always additive
// =============================================================================

func TestResolve_AddIsAdditive(t *testing.T) {
	add := schedule.TemporaryChange{
		ID: "chg-1", ProductID: "yogurt-90", Date: jan(13), Type: schedule.ChangeAdd,
		Quantity: intp(3),
	}

	days := resolve(t, []schedule.Pattern{milkMonThu()}, []schedule.TemporaryChange{add})

	lines := linesOn(days, jan(13))
	require.Len(t, lines, 2)
	assert.Equal(t, schedule.ProductID("milk-180"), lines[0].ProductID)
	assert.Equal(t, schedule.ProductID("yogurt-90"), lines[1].ProductID)
	assert.True(t, lines[1].TemporaryAdd)
}

func TestResolve_AddFallsBackToMasterPrice(t *testing.T) {
	// GIVEN: An add change with no price of its own
	// THEN: The product master's list price applies

	add := schedule.TemporaryChange{
		ID: "chg-1", ProductID: "yogurt-90", Date: jan(17), Type: schedule.ChangeAdd,
		Quantity: intp(3),
	}

	days := resolve(t, nil, []schedule.TemporaryChange{add})

	lines := linesOn(days, jan(17))
	require.Len(t, lines, 1)
	assert.True(t, lines[0].UnitPrice.Equal(dec(130)))
	assert.True(t, lines[0].Amount.Equal(dec(390)))
}

func TestResolve_AddWithExplicitPrice(t *testing.T) {
	add := schedule.TemporaryChange{
		ID: "chg-1", ProductID: "yogurt-90", Date: jan(17), Type: schedule.ChangeAdd,
		Quantity: intp(2), UnitPrice: decp(110),
	}

	days := resolve(t, nil, []schedule.TemporaryChange{add})

	lines := linesOn(days, jan(17))
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Amount.Equal(dec(220)))
}

func TestResolve_AddSurvivesWholeDaySkip(t *testing.T) {
	// The day skip clears pattern lines; the add still stands alone.
	changes := []schedule.TemporaryChange{
		{ID: "chg-1", Date: jan(13), Type: schedule.ChangeSkip},
		{ID: "chg-2", ProductID: "yogurt-90", Date: jan(13), Type: schedule.ChangeAdd, Quantity: intp(1)},
	}

	days := resolve(t, []schedule.Pattern{milkMonThu()}, changes)

	lines := linesOn(days, jan(13))
	require.Len(t, lines, 1)
	assert.True(t, lines[0].TemporaryAdd)
}

// =============================================================================
// DETERMINISM & GOLDEN
// =============================================================================

func TestResolve_Deterministic(t *testing.T) {
	patterns := []schedule.Pattern{milkMonThu()}
	changes := []schedule.TemporaryChange{
		{ID: "chg-1", ProductID: "milk-180", Date: jan(13), Type: schedule.ChangeSkip},
		{ID: "chg-2", ProductID: "yogurt-90", Date: jan(17), Type: schedule.ChangeAdd, Quantity: intp(3)},
	}

	first := resolve(t, patterns, changes)
	second := resolve(t, patterns, changes)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestResolve_GoldenJanuary(t *testing.T) {
	// Full-month snapshot: recurring Mon/Thu milk, one skipped Monday, one
	// modified Thursday, one stand-alone add on a Friday.
	patterns := []schedule.Pattern{milkMonThu()}
	changes := []schedule.TemporaryChange{
		{ID: "chg-1", CustomerID: "cust-001", ProductID: "milk-180",
			Date: jan(13), Type: schedule.ChangeSkip},
		{ID: "chg-2", CustomerID: "cust-001", ProductID: "milk-180",
			Date: jan(16), Type: schedule.ChangeModify, Quantity: intp(1), UnitPrice: decp(90)},
		{ID: "chg-3", CustomerID: "cust-001", ProductID: "yogurt-90",
			Date: jan(17), Type: schedule.ChangeAdd, Quantity: intp(3)},
	}

	days := resolve(t, patterns, changes)

	raw, err := json.MarshalIndent(days, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "january_2025", raw)
}
