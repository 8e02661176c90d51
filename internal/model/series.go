package model

import (
	"time"

	"planner/internal/recurrence"
)

// TaskTemplate holds the attributes copied into every instance of a series.
type TaskTemplate struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	CategoryID  *uint    `json:"category_id,omitempty"`
	Priority    Priority `gorm:"size:16" json:"priority"`
	Reminder    bool     `json:"reminder"`
}

// Series is a recurrence rule plus the template its instances are built from.
type Series struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint            `gorm:"index" json:"user_id"`
	Rule      recurrence.Rule `gorm:"embedded;embeddedPrefix:rule_" json:"rule"`
	Template  TaskTemplate    `gorm:"embedded;embeddedPrefix:tpl_" json:"template"`
	Active    bool            `gorm:"index" json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
