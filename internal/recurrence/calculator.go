package recurrence

import "time"

// NextOccurrence returns the first occurrence strictly after from. It reports
// false for exhausted or misconfigured rules instead of failing.
func NextOccurrence(rule Rule, from time.Time) (time.Time, bool) {
	if rule.Frequency < 1 {
		return time.Time{}, false
	}
	from = Day(from)

	var next time.Time
	switch ParsePattern(string(rule.Pattern)) {
	case Daily, Custom:
		next = AddDays(from, rule.Frequency)
	case Weekly:
		days := weekdays(rule.DaysOfWeek)
		if len(days) == 0 {
			return time.Time{}, false
		}
		dow := ISOWeekday(from)
		ahead := -1
		for _, d := range days {
			if d > dow {
				ahead = d - dow
				break
			}
		}
		if ahead < 0 {
			// Wrap into the next active week, frequency weeks on.
			ahead = 7 - dow + days[0] + (rule.Frequency-1)*7
		}
		next = AddDays(from, ahead)
	case Monthly:
		next = AddMonthsClamped(from, rule.Frequency, rule.DayOfMonth)
	default:
		return time.Time{}, false
	}

	if rule.afterEnd(next) {
		return time.Time{}, false
	}
	return next, true
}

// FirstOccurrence returns the first day the rule produces on or after its
// start date.
func FirstOccurrence(rule Rule) (time.Time, bool) {
	if rule.StartDate.IsZero() || rule.Frequency < 1 {
		return time.Time{}, false
	}
	start := Day(rule.StartDate)

	var first time.Time
	switch ParsePattern(string(rule.Pattern)) {
	case Daily, Custom:
		first = start
	case Weekly:
		days := weekdays(rule.DaysOfWeek)
		if len(days) == 0 {
			return time.Time{}, false
		}
		if !hasDay(days, ISOWeekday(start)) {
			return NextOccurrence(rule, start)
		}
		first = start
	case Monthly:
		if rule.DayOfMonth < 1 {
			return time.Time{}, false
		}
		candidate := AddMonthsClamped(start, 0, rule.DayOfMonth)
		if candidate.Before(start) {
			return NextOccurrence(rule, candidate)
		}
		first = candidate
	default:
		return time.Time{}, false
	}

	if rule.afterEnd(first) {
		return time.Time{}, false
	}
	return first, true
}

// GenerateDateRange lists every occurrence within [rangeStart, rangeEnd],
// walking from the rule's start date. The walk stops at rangeEnd, the rule's
// end date or after maxCount dates, whichever comes first.
func GenerateDateRange(rule Rule, rangeStart, rangeEnd time.Time, maxCount int) []time.Time {
	if maxCount <= 0 {
		return nil
	}
	rangeStart, rangeEnd = Day(rangeStart), Day(rangeEnd)
	if rangeEnd.Before(rangeStart) {
		return nil
	}

	cur, ok := FirstOccurrence(rule)
	if !ok {
		return nil
	}

	switch ParsePattern(string(rule.Pattern)) {
	case Daily, Custom:
		if cur.Before(rangeStart) {
			steps := DaysBetween(cur, rangeStart) / rule.Frequency
			cur = AddDays(cur, steps*rule.Frequency)
			if rule.afterEnd(cur) {
				return nil
			}
		}
	}

	var out []time.Time
	for ok && !cur.After(rangeEnd) && len(out) < maxCount {
		if !cur.Before(rangeStart) {
			out = append(out, cur)
		}
		cur, ok = NextOccurrence(rule, cur)
	}
	return out
}

// MatchesPattern reports whether the rule would produce date.
func MatchesPattern(rule Rule, date time.Time) bool {
	if rule.StartDate.IsZero() || rule.Frequency < 1 {
		return false
	}
	day, start := Day(date), Day(rule.StartDate)
	if day.Before(start) || rule.afterEnd(day) {
		return false
	}

	switch ParsePattern(string(rule.Pattern)) {
	case Daily, Custom:
		return DaysBetween(start, day)%rule.Frequency == 0
	case Weekly:
		days := weekdays(rule.DaysOfWeek)
		if !hasDay(days, ISOWeekday(day)) {
			return false
		}
		weeks := DaysBetween(weekStart(start), weekStart(day)) / 7
		return weeks%rule.Frequency == 0
	case Monthly:
		if rule.DayOfMonth < 1 {
			return false
		}
		if MonthsBetween(start, day)%rule.Frequency != 0 {
			return false
		}
		want := rule.DayOfMonth
		if last := DaysInMonth(day.Year(), day.Month()); want > last {
			want = last
		}
		return day.Day() == want
	}
	return false
}

// weekdays returns the sorted, valid ISO weekdays of a rule.
func weekdays(days []int) []int {
	out := make([]int, 0, len(days))
	for _, d := range sortedDays(days) {
		if d >= 1 && d <= 7 {
			out = append(out, d)
		}
	}
	return out
}
