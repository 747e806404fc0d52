package schedule_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JETKIDS/trae-milk2-sub002/schedule"
)

// =============================================================================
// DATE TESTS
// =============================================================================

func TestParseDate_RoundTrip(t *testing.T) {
	d, err := schedule.ParseDate("2025-01-13")
	require.NoError(t, err)

	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, time.January, d.Month())
	assert.Equal(t, 13, d.Day())
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, "2025-01-13", d.String())
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := schedule.ParseDate("13/01/2025")
	assert.Error(t, err)

	_, err = schedule.ParseDate("")
	assert.Error(t, err)
}

func TestDate_JSON(t *testing.T) {
	d := schedule.NewDate(2025, time.March, 5)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-05"`, string(raw))

	var back schedule.Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Equal(d))

	assert.Error(t, json.Unmarshal([]byte(`20250305`), &back))
}

func TestDate_Comparisons(t *testing.T) {
	a := schedule.NewDate(2025, time.January, 1)
	b := schedule.NewDate(2025, time.January, 2)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.BeforeOrEqual(a))
	assert.True(t, a.AfterOrEqual(a))
	assert.False(t, a.Equal(b))
}

// =============================================================================
// YEAR-MONTH TESTS
// =============================================================================

func TestYearMonth_Bounds(t *testing.T) {
	ym := schedule.YearMonth{Year: 2025, Month: time.February}

	assert.Equal(t, "2025-02-01", ym.First().String())
	assert.Equal(t, "2025-02-28", ym.Last().String())
	assert.Len(t, ym.Days(), 28)

	// Leap year February
	leap := schedule.YearMonth{Year: 2024, Month: time.February}
	assert.Equal(t, "2024-02-29", leap.Last().String())
	assert.Len(t, leap.Days(), 29)
}

func TestYearMonth_PrevCrossesYearBoundary(t *testing.T) {
	ym := schedule.YearMonth{Year: 2025, Month: time.January}
	prev := ym.Prev()

	assert.Equal(t, 2024, prev.Year)
	assert.Equal(t, time.December, prev.Month)
	assert.Equal(t, "2024-12", prev.String())
}

func TestYearMonth_Contains(t *testing.T) {
	ym := schedule.YearMonth{Year: 2025, Month: time.January}

	assert.True(t, ym.Contains(schedule.NewDate(2025, time.January, 31)))
	assert.False(t, ym.Contains(schedule.NewDate(2025, time.February, 1)))
	assert.False(t, ym.Contains(schedule.NewDate(2024, time.January, 15)))
}

func TestValidYearMonth(t *testing.T) {
	assert.True(t, schedule.ValidYearMonth(2025, 1))
	assert.True(t, schedule.ValidYearMonth(2000, 12))
	assert.True(t, schedule.ValidYearMonth(2100, 6))

	assert.False(t, schedule.ValidYearMonth(1999, 12))
	assert.False(t, schedule.ValidYearMonth(2101, 1))
	assert.False(t, schedule.ValidYearMonth(2025, 0))
	assert.False(t, schedule.ValidYearMonth(2025, 13))
}
