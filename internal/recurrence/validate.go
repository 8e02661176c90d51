package recurrence

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRule is the kind of every ValidationError.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// ValidationResult lists every problem found in a rule so a UI can show them
// all at once.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Err converts a failed result into a *ValidationError, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

// ValidationError is returned by creation paths that reject a rule.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Errors) == 0 {
		return ErrInvalidRule.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidRule.Error(), strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRule }

// Validate checks a rule and collects all violated constraints.
func Validate(rule Rule) ValidationResult {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	pattern := ParsePattern(string(rule.Pattern))
	if !pattern.Known() {
		add("unknown pattern %q", string(rule.Pattern))
	}
	if rule.Frequency < 1 {
		add("frequency must be at least 1")
	}

	switch pattern {
	case Weekly:
		if len(rule.DaysOfWeek) == 0 {
			add("weekly pattern requires at least one day of week")
		}
		for _, d := range rule.DaysOfWeek {
			if d < 1 || d > 7 {
				add("day of week %d is outside 1..7", d)
			}
		}
	case Monthly:
		if rule.DayOfMonth < 1 || rule.DayOfMonth > 31 {
			add("day of month must be between 1 and 31")
		}
	}

	if rule.StartDate.IsZero() {
		add("start date is required")
	} else if rule.EndDate != nil && Day(*rule.EndDate).Before(Day(rule.StartDate)) {
		add("end date must not be before start date")
	}
	if rule.EndAfterOccurrences != nil && *rule.EndAfterOccurrences < 1 {
		add("end after occurrences must be positive")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
