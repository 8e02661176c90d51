package series

import (
	"context"
	"fmt"
	"sync"
	"time"

	"planner/internal/model"
	"planner/internal/recurrence"
)

// State is the generation scheduler's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateGenerating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ShouldGenerateMore reports whether an active series is running low on open
// instances: it has none, or the latest one is closer than lookaheadDays.
func ShouldGenerateMore(s model.Series, instances []model.Task, lookaheadDays int, now time.Time) bool {
	if !s.Active {
		return false
	}
	if lookaheadDays <= 0 {
		lookaheadDays = DefaultLookaheadDays
	}

	var latest time.Time
	found := false
	for _, t := range instances {
		if !t.BelongsTo(s.ID) || !t.IsOpen() || t.InstanceDate == nil {
			continue
		}
		day := instanceDay(*t.InstanceDate)
		if !found || day.After(latest) {
			latest, found = day, true
		}
	}
	if !found {
		return true
	}
	return recurrence.DaysBetween(recurrence.Today(now), latest) < lookaheadDays
}

// Source supplies the series and instance snapshot a pass works on. The
// instance list must include soft-deleted instances so deleted occurrences
// are not generated again.
type Source interface {
	GenerationSnapshot(ctx context.Context) ([]model.Series, []model.Task, error)
}

// Sink stores the instances a pass created.
type Sink interface {
	SaveInstances(ctx context.Context, tasks []model.Task) error
}

// Report summarises one generation pass.
type Report struct {
	Dropped     bool          `json:"dropped"`
	SeriesTotal int           `json:"series_total"`
	SeriesDue   int           `json:"series_due"`
	Created     int           `json:"created"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Scheduler runs generation passes one at a time. A pass requested while
// another one is in flight is dropped; generation is idempotent and the next
// change notification retries it.
type Scheduler struct {
	materializer  *Materializer
	windowDays    int
	lookaheadDays int
	now           func() time.Time

	mu     sync.Mutex
	state  State
	hasRun bool
}

func NewScheduler(materializer *Materializer, windowDays, lookaheadDays int, opts ...Option) *Scheduler {
	o := buildOptions(opts)
	if materializer == nil {
		materializer = NewMaterializer(opts...)
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if lookaheadDays <= 0 {
		lookaheadDays = DefaultLookaheadDays
	}
	return &Scheduler{
		materializer:  materializer,
		windowDays:    windowDays,
		lookaheadDays: lookaheadDays,
		now:           o.now,
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasRun reports whether at least one pass completed successfully.
func (s *Scheduler) HasRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasRun
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateGenerating {
		return false
	}
	s.state = StateGenerating
	return true
}

func (s *Scheduler) finish(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	if ok {
		s.hasRun = true
	}
}

// DueSeries filters the series that need more instances.
func (s *Scheduler) DueSeries(list []model.Series, instances []model.Task) []model.Series {
	now := s.now()
	var due []model.Series
	for _, sr := range list {
		if ShouldGenerateMore(sr, instances, s.lookaheadDays, now) {
			due = append(due, sr)
		}
	}
	return due
}

// Run executes one pass: snapshot, filter, materialize, persist. The state
// stays Generating until the sink returns so a notification fired by the
// write cannot start a second pass. A pass always runs to completion; ctx is
// only handed to the source and sink.
func (s *Scheduler) Run(ctx context.Context, src Source, sink Sink) (Report, error) {
	if !s.begin() {
		return Report{Dropped: true}, nil
	}
	ok := false
	defer func() { s.finish(ok) }()

	report := Report{StartedAt: s.now()}
	list, instances, err := src.GenerationSnapshot(ctx)
	if err != nil {
		return report, fmt.Errorf("load generation snapshot: %w", err)
	}
	report.SeriesTotal = len(list)

	due := s.DueSeries(list, instances)
	report.SeriesDue = len(due)

	created := s.materializer.MaterializeAllDueSeries(due, instances, s.windowDays)
	if len(created) > 0 {
		if err := sink.SaveInstances(ctx, created); err != nil {
			return report, fmt.Errorf("save generated instances: %w", err)
		}
	}
	report.Created = len(created)
	report.Duration = s.now().Sub(report.StartedAt)
	ok = true
	return report, nil
}
