package series

import (
	"time"

	"planner/internal/model"
	"planner/internal/recurrence"
)

// Manager creates series and hands out their first batch of instances.
type Manager struct {
	materializer *Materializer
	windowDays   int
	now          func() time.Time
	newID        func() string
}

func NewManager(materializer *Materializer, windowDays int, opts ...Option) *Manager {
	o := buildOptions(opts)
	if materializer == nil {
		materializer = NewMaterializer(opts...)
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Manager{materializer: materializer, windowDays: windowDays, now: o.now, newID: o.newID}
}

// CreateSeries validates the rule, builds an active series and materializes
// the initial instances right away so upcoming occurrences are visible before
// the next generation pass. A rejected rule yields *recurrence.ValidationError.
func (m *Manager) CreateSeries(userID uint, template model.TaskTemplate, rule recurrence.Rule) (model.Series, []model.Task, error) {
	if err := recurrence.Validate(rule).Err(); err != nil {
		return model.Series{}, nil, err
	}
	if template.Priority == "" {
		template.Priority = model.PriorityMedium
	}

	now := m.now()
	s := model.Series{
		ID:        m.newID(),
		UserID:    userID,
		Rule:      rule.Normalized(),
		Template:  template,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s, m.materializer.MaterializeForSeries(s, nil, m.windowDays), nil
}
