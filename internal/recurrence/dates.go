// Package recurrence implements the projection core: pure date arithmetic
// for recurrence patterns and the engine that expands a series plus its
// exception overrides into dated instances over a window.
//
// Everything here is a pure function of its inputs. No state, no I/O, no
// clock access; callers supply every date, which keeps projections
// restartable and trivially parallelizable across series.
package recurrence

import (
	"time"

	"recurring-reconciliation-service/internal/models"
)

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampDay clamps an anchor day-of-month to the last valid day of the
// target month, so a day-31 series lands on Feb 28/29, Apr 30, and so on.
func clampDay(year int, month time.Month, anchorDay int) int {
	if last := daysInMonth(year, month); anchorDay > last {
		return last
	}
	return anchorDay
}

// addMonthsClamped moves a date forward by whole months, re-applying the
// anchor day each time instead of letting overflow spill into the next
// month (Jan 31 + 1 month is Feb 28/29, never Mar 2).
func addMonthsClamped(t time.Time, months, anchorDay int) time.Time {
	year, month, _ := t.Date()
	// Normalize to the first so AddDate month arithmetic cannot overflow.
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	y, m, _ := first.Date()
	return time.Date(y, m, clampDay(y, m, anchorDay), 0, 0, 0, 0, time.UTC)
}

// StepForward returns the next candidate date after date for the given
// frequency and interval, ignoring day/skip constraints. Month-based
// frequencies clamp the anchor day to the target month's length.
func StepForward(date time.Time, frequency models.Frequency, interval, anchorDay int) time.Time {
	if interval < 1 {
		interval = 1
	}
	date = models.DateOnly(date)

	if days := frequency.DaysPerStep(); days > 0 {
		return date.AddDate(0, 0, days*interval)
	}
	return addMonthsClamped(date, frequency.MonthsPerStep()*interval, anchorDay)
}

// FirstOnOrAfter returns the earliest scheduled date on or after from that
// satisfies the series' pattern, always at or after the series start date.
// The second return value is false when no such date exists within the
// series' end date.
func FirstOnOrAfter(series *models.RecurringSeries, from time.Time) (time.Time, bool) {
	from = models.DateOnly(from)
	start := models.DateOnly(series.StartDate)
	if from.Before(start) {
		from = start
	}

	candidate := firstOccurrence(series, start)
	for candidate.Before(from) {
		candidate = StepForward(candidate, series.Frequency, series.Interval, series.AnchorDay())
	}

	if series.EndDate != nil && candidate.After(models.DateOnly(*series.EndDate)) {
		return time.Time{}, false
	}
	return candidate, true
}

// firstOccurrence computes the series' very first scheduled date: the
// earliest date >= start matching the pattern constraint.
func firstOccurrence(series *models.RecurringSeries, start time.Time) time.Time {
	switch {
	case series.Frequency == models.FrequencyDaily:
		return start

	case series.Frequency.UsesDayOfWeek():
		// Align to the series weekday on or after the start date.
		offset := (int(series.DayOfWeek) - int(start.Weekday()) + 7) % 7
		return start.AddDate(0, 0, offset)

	case series.Frequency == models.FrequencyYearly:
		anchor := series.AnchorDay()
		month := series.MonthOfYear
		if month < time.January || month > time.December {
			month = start.Month()
		}
		candidate := time.Date(start.Year(), month, clampDay(start.Year(), month, anchor), 0, 0, 0, 0, time.UTC)
		if candidate.Before(start) {
			candidate = addMonthsClamped(candidate, 12, anchor)
		}
		return candidate

	default: // Monthly, Quarterly
		anchor := series.AnchorDay()
		candidate := time.Date(start.Year(), start.Month(), clampDay(start.Year(), start.Month(), anchor), 0, 0, 0, 0, time.UTC)
		if candidate.Before(start) {
			candidate = addMonthsClamped(candidate, 1, anchor)
		}
		return candidate
	}
}
