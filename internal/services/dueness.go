// Package services provides business logic and orchestration over the
// ledger storage layer: voucher validation and posting, statement
// generation, monthly snapshot caching and fixed-expense execution.
package services

import (
	"time"

	"conti/internal/core"
)

// PeriodMonth truncates a point in time to the first day of its month,
// the key used for fixed-expense idempotency and monthly snapshots.
func PeriodMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PreviousFullMonth returns the first day of the most recent month that
// has fully elapsed before now.
func PreviousFullMonth(now time.Time) time.Time {
	return PeriodMonth(now).AddDate(0, -1, 0)
}

// scheduledDay clamps the configured day of month to the length of the
// month containing t. DayOfMonth is validated to 1..28 so the clamp is
// only a safety net for legacy rows.
func scheduledDay(dayOfMonth int, t time.Time) int {
	lastDay := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if dayOfMonth > lastDay {
		return lastDay
	}
	return dayOfMonth
}

// FixedExpenseDue reports whether the expense should execute for the
// month containing now. An expense is due when it has not yet run for
// this period and the scheduled day has been reached.
func FixedExpenseDue(f core.FixedExpense, now time.Time) bool {
	if !f.Active {
		return false
	}
	if !f.LastRunMonth.IsZero() && !PeriodMonth(now).After(PeriodMonth(f.LastRunMonth)) {
		return false
	}
	return now.Day() >= scheduledDay(f.DayOfMonth, now)
}
