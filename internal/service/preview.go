package service

import (
	"time"

	"planner/internal/recurrence"
)

const (
	previewDates  = 5
	previewWindow = 5 * 366
)

// RulePreview is shown to users while they compose a recurrence rule.
type RulePreview struct {
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors"`
	Preview string   `json:"preview"`
	Next    []string `json:"next"`
}

// PreviewRule validates rule and lists its next occurrences on or after today.
func PreviewRule(rule recurrence.Rule, today time.Time) RulePreview {
	rule = rule.Normalized()
	result := recurrence.Validate(rule)
	out := RulePreview{
		Valid:  result.Valid,
		Errors: result.Errors,
		Next:   []string{},
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	if !result.Valid {
		return out
	}

	out.Preview = recurrence.FormatPreview(rule)
	from := recurrence.Day(today)
	for _, d := range recurrence.GenerateDateRange(rule, from, recurrence.AddDays(from, previewWindow), previewDates) {
		out.Next = append(out.Next, d.Format("2006-01-02"))
	}
	return out
}
