package model

import (
	"time"

	"gorm.io/gorm"
)

// Priority ranks a task for sorting in lists and reports.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority falls back to medium for unknown input.
func ParsePriority(raw string) Priority {
	switch Priority(raw) {
	case PriorityLow, PriorityHigh:
		return Priority(raw)
	default:
		return PriorityMedium
	}
}

// Task is a single item in the planner. One-off tasks have no SeriesID;
// instances of a recurring series carry the series id and the calendar day
// they stand for.
type Task struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	UserID       uint           `gorm:"index" json:"user_id"`
	CategoryID   *uint          `gorm:"index" json:"category_id,omitempty"`
	SeriesID     *string        `gorm:"size:36;index;uniqueIndex:idx_series_instance_date" json:"series_id,omitempty"`
	InstanceDate *time.Time     `gorm:"uniqueIndex:idx_series_instance_date" json:"instance_date,omitempty"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Priority     Priority       `gorm:"size:16;default:medium" json:"priority"`
	Reminder     bool           `gorm:"default:false" json:"reminder"`
	Deadline     *time.Time     `json:"deadline,omitempty"`
	IsCompleted  bool           `gorm:"default:false" json:"completed"`
	IsSkipped    bool           `gorm:"default:false" json:"skipped"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// BelongsTo reports whether the task is an instance of the given series.
func (t Task) BelongsTo(seriesID string) bool {
	return t.SeriesID != nil && *t.SeriesID == seriesID
}

// IsOpen reports whether the task still waits for user action.
func (t Task) IsOpen() bool {
	return !t.IsCompleted && !t.IsSkipped && !t.DeletedAt.Valid
}

// IsRecurring reports whether the task was materialized from a series.
func (t Task) IsRecurring() bool {
	return t.SeriesID != nil
}
