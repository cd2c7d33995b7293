package recurrence

import (
	"testing"
	"time"

	"recurring-reconciliation-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStepForward_MonthlyClamping(t *testing.T) {
	tests := []struct {
		name     string
		from     time.Time
		anchor   int
		expected time.Time
	}{
		{"jan31 to feb28", day(2025, time.January, 31), 31, day(2025, time.February, 28)},
		{"jan31 to feb29 leap", day(2024, time.January, 31), 31, day(2024, time.February, 29)},
		{"feb28 back to day 31 in march", day(2025, time.February, 28), 31, day(2025, time.March, 31)},
		{"mar31 to apr30", day(2025, time.March, 31), 31, day(2025, time.April, 30)},
		{"day 15 never clamps", day(2025, time.January, 15), 15, day(2025, time.February, 15)},
		{"day 30 in january to feb", day(2025, time.January, 30), 30, day(2025, time.February, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StepForward(tt.from, models.FrequencyMonthly, 1, tt.anchor)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStepForward_AnchorRecoversAfterShortMonth(t *testing.T) {
	// A day-31 series stepped through February must come back to the 31st,
	// not stay stuck on the 28th.
	current := day(2025, time.January, 31)
	var visited []time.Time
	for i := 0; i < 4; i++ {
		current = StepForward(current, models.FrequencyMonthly, 1, 31)
		visited = append(visited, current)
	}

	assert.Equal(t, []time.Time{
		day(2025, time.February, 28),
		day(2025, time.March, 31),
		day(2025, time.April, 30),
		day(2025, time.May, 31),
	}, visited)
}

func TestStepForward_DayBasedFrequencies(t *testing.T) {
	start := day(2025, time.June, 2) // a Monday

	assert.Equal(t, day(2025, time.June, 3), StepForward(start, models.FrequencyDaily, 1, 0))
	assert.Equal(t, day(2025, time.June, 9), StepForward(start, models.FrequencyWeekly, 1, 0))
	assert.Equal(t, day(2025, time.June, 16), StepForward(start, models.FrequencyBiWeekly, 1, 0))
	assert.Equal(t, day(2025, time.June, 23), StepForward(start, models.FrequencyWeekly, 3, 0))
}

func TestStepForward_QuarterlyAndYearly(t *testing.T) {
	assert.Equal(t, day(2025, time.April, 30), StepForward(day(2025, time.January, 31), models.FrequencyQuarterly, 1, 31))
	assert.Equal(t, day(2025, time.February, 28), StepForward(day(2024, time.February, 29), models.FrequencyYearly, 1, 29))
	assert.Equal(t, day(2028, time.February, 29), StepForward(day(2024, time.February, 29), models.FrequencyYearly, 4, 29))
}

func TestFirstOnOrAfter_WeeklyAlignsToWeekday(t *testing.T) {
	series := &models.RecurringSeries{
		Description: "Gym",
		Frequency:   models.FrequencyWeekly,
		Interval:    1,
		DayOfWeek:   time.Friday,
		StartDate:   day(2025, time.June, 2), // Monday
		Active:      true,
	}

	first, ok := FirstOnOrAfter(series, day(2025, time.June, 2))
	require.True(t, ok)
	assert.Equal(t, day(2025, time.June, 6), first)
	assert.Equal(t, time.Friday, first.Weekday())
}

func TestFirstOnOrAfter_MonthlyAnchorBeforeStart(t *testing.T) {
	// Start on the 20th with a day-15 pattern: the first occurrence is the
	// 15th of the following month.
	series := &models.RecurringSeries{
		Description: "Rent",
		Frequency:   models.FrequencyMonthly,
		Interval:    1,
		DayOfMonth:  15,
		StartDate:   day(2025, time.March, 20),
		Active:      true,
	}

	first, ok := FirstOnOrAfter(series, day(2025, time.March, 1))
	require.True(t, ok)
	assert.Equal(t, day(2025, time.April, 15), first)
}

func TestFirstOnOrAfter_SkipsToWindow(t *testing.T) {
	series := &models.RecurringSeries{
		Description: "Rent",
		Frequency:   models.FrequencyMonthly,
		Interval:    1,
		DayOfMonth:  1,
		StartDate:   day(2024, time.January, 1),
		Active:      true,
	}

	first, ok := FirstOnOrAfter(series, day(2025, time.June, 15))
	require.True(t, ok)
	assert.Equal(t, day(2025, time.July, 1), first)
}

func TestFirstOnOrAfter_EndDateExhausted(t *testing.T) {
	end := day(2025, time.March, 31)
	series := &models.RecurringSeries{
		Description: "Loan",
		Frequency:   models.FrequencyMonthly,
		Interval:    1,
		DayOfMonth:  15,
		StartDate:   day(2025, time.January, 1),
		EndDate:     &end,
		Active:      true,
	}

	_, ok := FirstOnOrAfter(series, day(2025, time.April, 1))
	assert.False(t, ok)
}

func TestFirstOnOrAfter_YearlyAnchoredToMonth(t *testing.T) {
	series := &models.RecurringSeries{
		Description: "Insurance",
		Frequency:   models.FrequencyYearly,
		Interval:    1,
		DayOfMonth:  1,
		MonthOfYear: time.September,
		StartDate:   day(2025, time.October, 10),
		Active:      true,
	}

	// September 1st already passed at the start date, so the first
	// occurrence is the following year.
	first, ok := FirstOnOrAfter(series, day(2025, time.October, 10))
	require.True(t, ok)
	assert.Equal(t, day(2026, time.September, 1), first)
}

func TestAddMonthsClamped_LeapYear(t *testing.T) {
	assert.Equal(t, day(2024, time.February, 29), addMonthsClamped(day(2024, time.January, 31), 1, 31))
	assert.Equal(t, day(2025, time.February, 28), addMonthsClamped(day(2025, time.January, 31), 1, 31))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, daysInMonth(2024, time.February))
	assert.Equal(t, 28, daysInMonth(2025, time.February))
	assert.Equal(t, 31, daysInMonth(2025, time.December))
	assert.Equal(t, 30, daysInMonth(2025, time.April))
}
