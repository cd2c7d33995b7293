package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

func validMonthlySeries() *RecurringSeries {
	return &RecurringSeries{
		Description: "Rent",
		Amount:      decimal.NewFromInt(-1500),
		Currency:    "USD",
		Frequency:   FrequencyMonthly,
		Interval:    1,
		DayOfMonth:  1,
		StartDate:   day(2025, time.January, 1),
		Active:      true,
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		input    string
		expected Frequency
	}{
		{"daily", FrequencyDaily},
		{"Weekly", FrequencyWeekly},
		{"biweekly", FrequencyBiWeekly},
		{"bi-weekly", FrequencyBiWeekly},
		{"MONTHLY", FrequencyMonthly},
		{"quarterly", FrequencyQuarterly},
		{"yearly", FrequencyYearly},
		{"annual", FrequencyYearly},
		{" monthly ", FrequencyMonthly},
	}

	for _, tt := range tests {
		got, err := ParseFrequency(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, got, tt.input)
	}

	_, err := ParseFrequency("fortnightly")
	assert.Error(t, err)
}

func TestFrequency_JSONRoundTrip(t *testing.T) {
	for _, freq := range []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly} {
		data, err := json.Marshal(freq)
		require.NoError(t, err)

		var parsed Frequency
		require.NoError(t, json.Unmarshal(data, &parsed))
		assert.Equal(t, freq, parsed)
	}

	var parsed Frequency
	assert.Error(t, json.Unmarshal([]byte(`"sometimes"`), &parsed))
}

func TestRecurringSeries_Validate(t *testing.T) {
	assert.NoError(t, validMonthlySeries().Validate())

	tests := []struct {
		name   string
		mutate func(*RecurringSeries)
	}{
		{"empty description", func(s *RecurringSeries) { s.Description = "  " }},
		{"invalid frequency", func(s *RecurringSeries) { s.Frequency = Frequency(99) }},
		{"zero interval", func(s *RecurringSeries) { s.Interval = 0 }},
		{"zero start date", func(s *RecurringSeries) { s.StartDate = time.Time{} }},
		{"end before start", func(s *RecurringSeries) {
			end := day(2024, time.June, 1)
			s.EndDate = &end
		}},
		{"monthly without day", func(s *RecurringSeries) { s.DayOfMonth = 0 }},
		{"day of month out of range", func(s *RecurringSeries) { s.DayOfMonth = 32 }},
		{"weekly with bad weekday", func(s *RecurringSeries) {
			s.Frequency = FrequencyWeekly
			s.DayOfWeek = time.Weekday(9)
		}},
		{"yearly without month", func(s *RecurringSeries) {
			s.Frequency = FrequencyYearly
			s.MonthOfYear = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validMonthlySeries()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestRecurringSeries_AnchorDay(t *testing.T) {
	s := validMonthlySeries()
	s.DayOfMonth = 31
	assert.Equal(t, 31, s.AnchorDay())

	// Day-based frequencies anchor to the start date.
	s.Frequency = FrequencyWeekly
	s.DayOfWeek = time.Monday
	s.StartDate = day(2025, time.March, 17)
	assert.Equal(t, 17, s.AnchorDay())
}

func TestRecurringTransferSeries_Validate(t *testing.T) {
	transfer := &RecurringTransferSeries{
		FromAccountID: mustUUID("11111111-1111-1111-1111-111111111111"),
		ToAccountID:   mustUUID("22222222-2222-2222-2222-222222222222"),
		Description:   "Savings",
		Amount:        decimal.NewFromInt(500),
		Frequency:     FrequencyMonthly,
		Interval:      1,
		DayOfMonth:    1,
		StartDate:     day(2025, time.January, 1),
		Active:        true,
	}
	assert.NoError(t, transfer.Validate())

	same := *transfer
	same.ToAccountID = same.FromAccountID
	assert.Error(t, same.Validate())

	negative := *transfer
	negative.Amount = decimal.NewFromInt(-500)
	assert.Error(t, negative.Validate())
}

func TestRecurringTransferSeries_ScheduleSeriesDebitSigned(t *testing.T) {
	transfer := &RecurringTransferSeries{
		FromAccountID: mustUUID("11111111-1111-1111-1111-111111111111"),
		ToAccountID:   mustUUID("22222222-2222-2222-2222-222222222222"),
		Description:   "Savings",
		Amount:        decimal.NewFromInt(500),
		Frequency:     FrequencyMonthly,
		Interval:      1,
		DayOfMonth:    1,
		StartDate:     day(2025, time.January, 1),
		Active:        true,
	}

	schedule := transfer.ScheduleSeries()
	assert.Equal(t, transfer.FromAccountID, schedule.AccountID)
	assert.True(t, schedule.Amount.Equal(decimal.NewFromInt(-500)))
}

func TestInstanceException_Validate(t *testing.T) {
	newAmount := decimal.NewFromInt(-1600)

	valid := InstanceException{
		ScheduledDate: day(2025, time.February, 15),
		NewAmount:     &newAmount,
	}
	assert.NoError(t, valid.Validate())

	skip := InstanceException{
		ScheduledDate: day(2025, time.February, 15),
		Skipped:       true,
	}
	assert.NoError(t, skip.Validate())

	// Skip and overrides are mutually exclusive.
	both := InstanceException{
		ScheduledDate: day(2025, time.February, 15),
		Skipped:       true,
		NewAmount:     &newAmount,
	}
	assert.Error(t, both.Validate())

	zero := InstanceException{}
	assert.Error(t, zero.Validate())
}

func TestMatchStatus_Predicates(t *testing.T) {
	assert.True(t, MatchAccepted.IsResolvedPositive())
	assert.True(t, MatchAutoMatched.IsResolvedPositive())
	assert.False(t, MatchSuggested.IsResolvedPositive())
	assert.False(t, MatchRejected.IsResolvedPositive())

	assert.False(t, MatchSuggested.IsTerminal())
	assert.True(t, MatchAccepted.IsTerminal())
	assert.True(t, MatchRejected.IsTerminal())
	assert.True(t, MatchAutoMatched.IsTerminal())
}

func TestLevelForScore(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, LevelForScore(1.0))
	assert.Equal(t, ConfidenceHigh, LevelForScore(0.85))
	assert.Equal(t, ConfidenceMedium, LevelForScore(0.84))
	assert.Equal(t, ConfidenceMedium, LevelForScore(0.6))
	assert.Equal(t, ConfidenceLow, LevelForScore(0.59))
	assert.Equal(t, ConfidenceLow, LevelForScore(0.0))
}

func TestDateHelpers(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	late := time.Date(2026, time.May, 15, 23, 30, 0, 0, loc)
	assert.Equal(t, day(2026, time.May, 15), DateOnly(late))
	assert.Equal(t, "2026-05-15", DateKey(late))

	assert.Equal(t, 2, DaysBetween(day(2026, time.May, 13), day(2026, time.May, 15)))
	assert.Equal(t, -2, DaysBetween(day(2026, time.May, 15), day(2026, time.May, 13)))
	assert.Equal(t, 0, DaysBetween(day(2026, time.May, 15), late))
}

func TestInstanceKey_StableAcrossTimeOfDay(t *testing.T) {
	seriesID := mustUUID("11111111-1111-1111-1111-111111111111")
	morning := time.Date(2026, time.May, 15, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, time.May, 15, 22, 0, 0, 0, time.UTC)

	assert.Equal(t, NewInstanceKey(seriesID, morning), NewInstanceKey(seriesID, evening))
}
