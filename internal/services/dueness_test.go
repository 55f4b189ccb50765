package services

import (
	"testing"
	"time"

	"conti/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodMonth(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"first of month", date(2026, time.March, 1), date(2026, time.March, 1)},
		{"mid month", date(2026, time.March, 17), date(2026, time.March, 1)},
		{"last of month", date(2026, time.December, 31), date(2026, time.December, 1)},
		{"with time of day", time.Date(2026, time.June, 15, 23, 59, 59, 0, time.UTC), date(2026, time.June, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodMonth(tt.in); !got.Equal(tt.want) {
				t.Errorf("PeriodMonth(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPreviousFullMonth(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"mid month", date(2026, time.March, 17), date(2026, time.February, 1)},
		{"first of month", date(2026, time.March, 1), date(2026, time.February, 1)},
		{"january rolls to december", date(2026, time.January, 10), date(2025, time.December, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PreviousFullMonth(tt.now); !got.Equal(tt.want) {
				t.Errorf("PreviousFullMonth(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestScheduledDay(t *testing.T) {
	tests := []struct {
		name string
		day  int
		in   time.Time
		want int
	}{
		{"fits in month", 15, date(2026, time.March, 1), 15},
		{"day 28 always fits", 28, date(2026, time.February, 1), 28},
		{"clamped to february", 31, date(2027, time.February, 1), 28},
		{"clamped to leap february", 30, date(2028, time.February, 1), 29},
		{"clamped to short month", 31, date(2026, time.April, 1), 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scheduledDay(tt.day, tt.in); got != tt.want {
				t.Errorf("scheduledDay(%d, %v) = %d, want %d", tt.day, tt.in, got, tt.want)
			}
		})
	}
}

func TestFixedExpenseDue(t *testing.T) {
	base := core.FixedExpense{
		Name:       "Rent",
		DayOfMonth: 10,
		Active:     true,
	}

	tests := []struct {
		name    string
		mutate  func(*core.FixedExpense)
		now     time.Time
		wantDue bool
	}{
		{
			name:    "due on scheduled day",
			now:     date(2026, time.March, 10),
			wantDue: true,
		},
		{
			name:    "due after scheduled day",
			now:     date(2026, time.March, 25),
			wantDue: true,
		},
		{
			name:    "not yet due before scheduled day",
			now:     date(2026, time.March, 9),
			wantDue: false,
		},
		{
			name:    "inactive never due",
			mutate:  func(f *core.FixedExpense) { f.Active = false },
			now:     date(2026, time.March, 25),
			wantDue: false,
		},
		{
			name:    "already ran this period",
			mutate:  func(f *core.FixedExpense) { f.LastRunMonth = date(2026, time.March, 1) },
			now:     date(2026, time.March, 25),
			wantDue: false,
		},
		{
			name:    "ran last period, due again",
			mutate:  func(f *core.FixedExpense) { f.LastRunMonth = date(2026, time.February, 1) },
			now:     date(2026, time.March, 10),
			wantDue: true,
		},
		{
			name:    "never ran, catches up",
			now:     date(2026, time.July, 11),
			wantDue: true,
		},
		{
			name: "day clamp makes short month due",
			mutate: func(f *core.FixedExpense) {
				// Legacy rows may carry days past 28.
				f.DayOfMonth = 31
			},
			now:     date(2027, time.February, 28),
			wantDue: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			if tt.mutate != nil {
				tt.mutate(&f)
			}
			if got := FixedExpenseDue(f, tt.now); got != tt.wantDue {
				t.Errorf("FixedExpenseDue(%+v, %v) = %v, want %v", f, tt.now, got, tt.wantDue)
			}
		})
	}
}
