// Package series turns recurrence rules into concrete task instances and
// answers which instances a scoped edit or delete touches.
package series

import (
	"time"

	"github.com/google/uuid"

	"planner/internal/model"
	"planner/internal/recurrence"
)

const (
	// MaxInstancesPerSeries bounds generation for open-ended series.
	MaxInstancesPerSeries = 100
	DefaultWindowDays     = 30
	DefaultLookaheadDays  = 7
)

type options struct {
	now   func() time.Time
	newID func() string
}

// Option customises clocks and id generation, mostly for tests.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Materializer converts occurrence dates into task instances.
type Materializer struct {
	now   func() time.Time
	newID func() string
}

func NewMaterializer(opts ...Option) *Materializer {
	o := buildOptions(opts)
	return &Materializer{now: o.now, newID: o.newID}
}

// MaterializeForSeries returns the instances missing for the next windowDays
// days. Dates already present in existing are skipped and the series never
// grows beyond MaxInstancesPerSeries. Only new instances are returned.
func (m *Materializer) MaterializeForSeries(s model.Series, existing []model.Task, windowDays int) []model.Task {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	seen := make(map[string]struct{})
	count := 0
	for _, t := range existing {
		if !t.BelongsTo(s.ID) {
			continue
		}
		count++
		if t.InstanceDate != nil {
			seen[dayKey(*t.InstanceDate)] = struct{}{}
		}
	}

	remaining := MaxInstancesPerSeries - count
	if remaining <= 0 {
		return nil
	}

	today := recurrence.Today(m.now())
	// Dates already materialized inside the window still count against the
	// walk limit, so widen it by what is already there.
	candidates := recurrence.GenerateDateRange(s.Rule, today, recurrence.AddDays(today, windowDays), remaining+len(seen))

	var created []model.Task
	for _, day := range candidates {
		if count+len(created) >= MaxInstancesPerSeries {
			break
		}
		key := dayKey(day)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		created = append(created, m.newInstance(s, day))
	}
	return created
}

// MaterializeAllDueSeries runs MaterializeForSeries for every active series.
// Instances created for earlier series are visible to later ones.
func (m *Materializer) MaterializeAllDueSeries(list []model.Series, existing []model.Task, windowDays int) []model.Task {
	pool := existing[:len(existing):len(existing)]
	var created []model.Task
	for _, s := range list {
		if !s.Active {
			continue
		}
		batch := m.MaterializeForSeries(s, pool, windowDays)
		if len(batch) == 0 {
			continue
		}
		created = append(created, batch...)
		pool = append(pool, batch...)
	}
	return created
}

func (m *Materializer) newInstance(s model.Series, day time.Time) model.Task {
	seriesID := s.ID
	instanceDate, due := day, day
	var categoryID *uint
	if s.Template.CategoryID != nil {
		id := *s.Template.CategoryID
		categoryID = &id
	}
	priority := s.Template.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	return model.Task{
		ID:           m.newID(),
		UserID:       s.UserID,
		CategoryID:   categoryID,
		SeriesID:     &seriesID,
		InstanceDate: &instanceDate,
		Deadline:     &due,
		Title:        s.Template.Title,
		Description:  s.Template.Description,
		Priority:     priority,
		Reminder:     s.Template.Reminder,
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// instanceDay reads a stored instance date back as a calendar day.
func instanceDay(t time.Time) time.Time {
	return recurrence.Day(t.UTC())
}
