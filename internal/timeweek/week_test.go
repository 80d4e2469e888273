package timeweek

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekIDOf_Monday(t *testing.T) {
	// 2025-01-06 is a Monday.
	ts := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-06_2025-01-12", WeekIDOf(ts))
}

func TestWeekIDOf_MidWeek(t *testing.T) {
	ts := time.Date(2025, 1, 8, 15, 30, 45, 0, time.UTC)
	assert.Equal(t, "2025-01-06_2025-01-12", WeekIDOf(ts))
}

func TestWeekIDOf_Sunday(t *testing.T) {
	// Sunday belongs to the week that started the previous Monday.
	ts := time.Date(2025, 1, 12, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, "2025-01-06_2025-01-12", WeekIDOf(ts))
}

func TestWeekIDOf_SameSpanSameID(t *testing.T) {
	t1 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 1, 12, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	assert.Equal(t, WeekIDOf(t1), WeekIDOf(t2))
}

func TestWeekIDOf_AdjacentSpansDiffer(t *testing.T) {
	sunday := time.Date(2025, 1, 12, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)
	assert.NotEqual(t, WeekIDOf(sunday), WeekIDOf(monday))
	assert.Equal(t, "2025-01-13_2025-01-19", WeekIDOf(monday))
}

func TestWeekIDOf_YearBoundary(t *testing.T) {
	// 2024-12-30 is a Monday; its week spills into 2025.
	ts := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-12-30_2025-01-05", WeekIDOf(ts))
}

func TestWeekRangeOf_Boundaries(t *testing.T) {
	ts := time.Date(2025, 3, 19, 10, 0, 0, 0, time.UTC) // Wednesday
	start, end := WeekRangeOf(ts)

	assert.Equal(t, time.Monday, start.Weekday())
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, time.Sunday, end.Weekday())
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 59, end.Minute())
	assert.Equal(t, 59, end.Second())
}

func TestMonthKeyOf(t *testing.T) {
	assert.Equal(t, "2025-01", MonthKeyOf(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-12", MonthKeyOf(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestWeeksBetween_SingleWeek(t *testing.T) {
	start := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)

	weeks := WeeksBetween(start, end)
	require.Len(t, weeks, 1)
	assert.Equal(t, "2025-01-06_2025-01-12", weeks[0].ID)
	assert.Equal(t, 0, weeks[0].Ordinal)
}

func TestWeeksBetween_NoGaps(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)

	weeks := WeeksBetween(start, end)
	require.NotEmpty(t, weeks)
	for i := 1; i < len(weeks); i++ {
		assert.Equal(t, weeks[i-1].Start.AddDate(0, 0, 7), weeks[i].Start)
		assert.Equal(t, i, weeks[i].Ordinal)
	}
	// First week covers the range start, last week covers the range end.
	assert.False(t, weeks[0].Start.After(start))
	assert.False(t, weeks[len(weeks)-1].End.Before(end))
}

func TestWeeksBetween_EndBeforeStart(t *testing.T) {
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, WeeksBetween(start, end))
}
