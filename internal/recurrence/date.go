package recurrence

import "time"

// Day truncates t to its calendar day. Calendar days are carried as UTC
// midnight so that values read back from the database compare equal
// regardless of the driver's location handling.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current local calendar day.
func Today(now time.Time) time.Time {
	return Day(now)
}

// AddDays returns the day n days after t.
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// DaysInMonth reports the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsClamped moves t forward by n months and lands on day, clamped to
// the target month's length. A day <= 0 keeps t's own day of month.
func AddMonthsClamped(t time.Time, n, day int) time.Time {
	if day <= 0 {
		day = t.Day()
	}
	y, m, _ := t.Date()
	idx := int(m) - 1 + n
	y += idx / 12
	idx %= 12
	if idx < 0 {
		idx += 12
		y--
	}
	target := time.Month(idx + 1)
	if last := DaysInMonth(y, target); day > last {
		day = last
	}
	return time.Date(y, target, day, 0, 0, 0, 0, time.UTC)
}

// ISOWeekday maps t's weekday onto Monday=1 .. Sunday=7.
func ISOWeekday(t time.Time) int {
	return (int(t.Weekday())+6)%7 + 1
}

// MonthsBetween counts calendar months from a to b.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// weekStart returns the Monday of t's week.
func weekStart(t time.Time) time.Time {
	return AddDays(Day(t), 1-ISOWeekday(t))
}
