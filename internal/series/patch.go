package series

import "planner/internal/model"

// TemplatePatch carries the template fields a user changed. Nil fields stay
// untouched.
type TemplatePatch struct {
	Title         *string
	Description   *string
	Priority      *model.Priority
	Reminder      *bool
	CategoryID    *uint
	ClearCategory bool
}

// Empty reports whether the patch changes nothing.
func (p TemplatePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Reminder == nil && p.CategoryID == nil && !p.ClearCategory
}

// ApplyTask copies the patched fields onto a task.
func (p TemplatePatch) ApplyTask(t *model.Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Reminder != nil {
		t.Reminder = *p.Reminder
	}
	t.CategoryID = p.category(t.CategoryID)
}

// ApplyTemplate copies the patched fields onto a series template so later
// instances pick them up.
func (p TemplatePatch) ApplyTemplate(tpl *model.TaskTemplate) {
	if p.Title != nil {
		tpl.Title = *p.Title
	}
	if p.Description != nil {
		tpl.Description = *p.Description
	}
	if p.Priority != nil {
		tpl.Priority = *p.Priority
	}
	if p.Reminder != nil {
		tpl.Reminder = *p.Reminder
	}
	tpl.CategoryID = p.category(tpl.CategoryID)
}

func (p TemplatePatch) category(current *uint) *uint {
	switch {
	case p.ClearCategory:
		return nil
	case p.CategoryID != nil:
		id := *p.CategoryID
		return &id
	default:
		return current
	}
}

// ApplyPatch returns patched copies of tasks.
func ApplyPatch(tasks []model.Task, p TemplatePatch) []model.Task {
	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		p.ApplyTask(&t)
		out[i] = t
	}
	return out
}
