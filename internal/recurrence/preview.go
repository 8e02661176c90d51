package recurrence

import (
	"fmt"
	"strings"
)

var weekdayShort = [...]string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// FormatPreview renders a short human-readable summary of the rule, such as
// "repeats every Mon, Wed, Fri" or "repeats monthly on day 31".
func FormatPreview(rule Rule) string {
	var sb strings.Builder
	sb.WriteString("repeats ")

	freq := rule.Frequency
	if freq < 1 {
		freq = 1
	}

	switch ParsePattern(string(rule.Pattern)) {
	case Daily, Custom:
		if freq == 1 {
			sb.WriteString("daily")
		} else {
			fmt.Fprintf(&sb, "every %d days", freq)
		}
	case Weekly:
		names := weekdayNames(rule.DaysOfWeek)
		switch {
		case freq == 1 && names == "":
			sb.WriteString("weekly")
		case freq == 1:
			sb.WriteString("every " + names)
		case names == "":
			fmt.Fprintf(&sb, "every %d weeks", freq)
		default:
			fmt.Fprintf(&sb, "every %d weeks on %s", freq, names)
		}
	case Monthly:
		if freq == 1 {
			sb.WriteString("monthly")
		} else {
			fmt.Fprintf(&sb, "every %d months", freq)
		}
		if rule.DayOfMonth > 0 {
			fmt.Fprintf(&sb, " on day %d", rule.DayOfMonth)
		}
	default:
		return "does not repeat"
	}

	if !rule.StartDate.IsZero() {
		sb.WriteString(", from " + Day(rule.StartDate).Format("2006-01-02"))
	}
	if rule.EndDate != nil {
		sb.WriteString(", until " + Day(*rule.EndDate).Format("2006-01-02"))
	}
	if rule.EndAfterOccurrences != nil && *rule.EndAfterOccurrences > 0 {
		fmt.Fprintf(&sb, ", %d times", *rule.EndAfterOccurrences)
	}
	return sb.String()
}

// WeekdayName returns the short English name of an ISO weekday.
func WeekdayName(day int) string {
	if day < 1 || day > 7 {
		return ""
	}
	return weekdayShort[day]
}

func weekdayNames(days []int) string {
	valid := weekdays(days)
	names := make([]string, 0, len(valid))
	for _, d := range valid {
		names = append(names, weekdayShort[d])
	}
	return strings.Join(names, ", ")
}
