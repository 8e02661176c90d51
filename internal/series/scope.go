package series

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"planner/internal/model"
)

// Scope is the breadth of instances an edit or delete targets.
type Scope string

const (
	ScopeThis   Scope = "this"
	ScopeFuture Scope = "future"
	ScopeAll    Scope = "all"
)

var (
	ErrUnknownScope      = errors.New("unknown scope")
	ErrReferenceNotFound = errors.New("reference instance not found in series")
)

// ParseScope accepts "this", "future" or "all". Empty input means "this".
func ParseScope(raw string) (Scope, error) {
	switch s := Scope(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return ScopeThis, nil
	case ScopeThis, ScopeFuture, ScopeAll:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, raw)
	}
}

// ScopeResult partitions a task list. Every input task lands in exactly one
// of the two slices.
type ScopeResult struct {
	Affected  []model.Task
	Remaining []model.Task
}

// ResolveScope splits all into the instances of seriesID matched by scope
// and everything else. For ScopeThis and ScopeFuture the reference instance
// must belong to the series.
func ResolveScope(all []model.Task, seriesID string, scope Scope, referenceInstanceID string) (ScopeResult, error) {
	var ref *model.Task
	switch scope {
	case ScopeThis, ScopeFuture:
		for i := range all {
			if all[i].ID == referenceInstanceID && all[i].BelongsTo(seriesID) {
				ref = &all[i]
				break
			}
		}
		if ref == nil {
			return ScopeResult{}, fmt.Errorf("%w: %s", ErrReferenceNotFound, referenceInstanceID)
		}
	case ScopeAll:
	default:
		return ScopeResult{}, fmt.Errorf("%w: %q", ErrUnknownScope, string(scope))
	}

	var res ScopeResult
	for _, t := range all {
		if inScope(t, seriesID, scope, ref) {
			res.Affected = append(res.Affected, t)
		} else {
			res.Remaining = append(res.Remaining, t)
		}
	}
	return res, nil
}

func inScope(t model.Task, seriesID string, scope Scope, ref *model.Task) bool {
	if !t.BelongsTo(seriesID) {
		return false
	}
	switch scope {
	case ScopeAll:
		return true
	case ScopeThis:
		return t.ID == ref.ID
	case ScopeFuture:
		if t.ID == ref.ID {
			return true
		}
		if t.InstanceDate == nil || ref.InstanceDate == nil {
			return false
		}
		return !instanceDay(*t.InstanceDate).Before(instanceDay(*ref.InstanceDate))
	}
	return false
}

// CountAffected reports how many instances a scoped operation anchored at
// referenceDate would touch, for confirmations like "3 tasks will be deleted".
func CountAffected(all []model.Task, seriesID string, scope Scope, referenceDate *time.Time) int {
	var ref time.Time
	if referenceDate != nil {
		ref = instanceDay(*referenceDate)
	}
	count := 0
	for _, t := range all {
		if !t.BelongsTo(seriesID) {
			continue
		}
		switch scope {
		case ScopeAll:
			count++
		case ScopeThis, ScopeFuture:
			if referenceDate == nil || t.InstanceDate == nil {
				continue
			}
			day := instanceDay(*t.InstanceDate)
			if day.Equal(ref) || (scope == ScopeFuture && day.After(ref)) {
				count++
			}
		}
	}
	return count
}
