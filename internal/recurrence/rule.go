// Package recurrence describes how a task series repeats and computes the
// calendar days it occurs on. Everything here is pure: no clocks, no I/O.
package recurrence

import (
	"sort"
	"strings"
	"time"
)

// Pattern is the base unit a rule repeats in.
type Pattern string

const (
	Daily   Pattern = "daily"
	Weekly  Pattern = "weekly"
	Monthly Pattern = "monthly"
	// Custom repeats every Frequency days, like Daily with an explicit interval.
	Custom Pattern = "custom"
)

// Known reports whether p is one of the supported patterns.
func (p Pattern) Known() bool {
	switch p {
	case Daily, Weekly, Monthly, Custom:
		return true
	}
	return false
}

// ParsePattern accepts the pattern name in any case.
func ParsePattern(raw string) Pattern {
	return Pattern(strings.ToLower(strings.TrimSpace(raw)))
}

// Rule is an immutable description of a repeating series.
type Rule struct {
	Pattern   Pattern `json:"pattern" gorm:"size:16"`
	Frequency int     `json:"frequency"`
	// DaysOfWeek uses Monday=1 .. Sunday=7. Weekly rules only.
	DaysOfWeek []int `json:"days_of_week,omitempty" gorm:"serializer:json"`
	// DayOfMonth is clamped to the last day of shorter months. Monthly rules only.
	DayOfMonth          int        `json:"day_of_month,omitempty"`
	StartDate           time.Time  `json:"start_date"`
	EndDate             *time.Time `json:"end_date,omitempty"`
	EndAfterOccurrences *int       `json:"end_after_occurrences,omitempty"`
}

// Normalized returns a copy with dates truncated to days and the weekday set
// sorted and de-duplicated.
func (r Rule) Normalized() Rule {
	out := r
	out.Pattern = ParsePattern(string(r.Pattern))
	if !r.StartDate.IsZero() {
		out.StartDate = Day(r.StartDate)
	}
	if r.EndDate != nil {
		end := Day(*r.EndDate)
		out.EndDate = &end
	}
	out.DaysOfWeek = sortedDays(r.DaysOfWeek)
	return out
}

// afterEnd reports whether day falls past the rule's inclusive end date.
func (r Rule) afterEnd(day time.Time) bool {
	return r.EndDate != nil && day.After(Day(*r.EndDate))
}

func sortedDays(days []int) []int {
	if len(days) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

func hasDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
