package series

import (
	"context"
	"errors"
	"sync"
	"testing"

	"planner/internal/model"
	"planner/internal/recurrence"
)

type memoryStore struct {
	mu      sync.Mutex
	series  []model.Series
	tasks   []model.Task
	saves   int
	block   chan struct{}
	entered chan struct{}
	loadErr error
}

func (m *memoryStore) GenerationSnapshot(ctx context.Context) ([]model.Series, []model.Task, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	if m.loadErr != nil {
		return nil, nil, m.loadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Series(nil), m.series...), append([]model.Task(nil), m.tasks...), nil
}

func (m *memoryStore) SaveInstances(ctx context.Context, tasks []model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.tasks = append(m.tasks, tasks...)
	return nil
}

func TestShouldGenerateMore(t *testing.T) {
	t.Parallel()
	now := day(2024, 1, 1)
	s := dailySeries("s", now)

	if !ShouldGenerateMore(s, nil, 7, now) {
		t.Fatal("series without instances needs generation")
	}

	far := recurrence.AddDays(now, 10)
	near := recurrence.AddDays(now, 3)
	farDone := model.Task{ID: "far", SeriesID: &s.ID, InstanceDate: &far, IsCompleted: true}
	nearOpen := model.Task{ID: "near", SeriesID: &s.ID, InstanceDate: &near}
	farOpen := model.Task{ID: "far2", SeriesID: &s.ID, InstanceDate: &far}

	if !ShouldGenerateMore(s, []model.Task{farDone, nearOpen}, 7, now) {
		t.Fatal("latest open instance is 3 days away, expected generation")
	}
	if ShouldGenerateMore(s, []model.Task{nearOpen, farOpen}, 7, now) {
		t.Fatal("latest open instance is 10 days away, expected no generation")
	}

	s.Active = false
	if ShouldGenerateMore(s, nil, 7, now) {
		t.Fatal("inactive series never needs generation")
	}
}

func TestSchedulerRunMaterializesDueSeries(t *testing.T) {
	t.Parallel()
	now := day(2024, 1, 1)
	opts := []Option{WithClock(fixedClock(now))}
	sched := NewScheduler(NewMaterializer(opts...), 5, 7, opts...)

	paused := dailySeries("paused", now)
	paused.Active = false
	store := &memoryStore{series: []model.Series{dailySeries("a", now), paused}}

	if sched.HasRun() {
		t.Fatal("HasRun before first pass")
	}
	report, err := sched.Run(context.Background(), store, store)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Dropped || report.SeriesTotal != 2 || report.SeriesDue != 1 || report.Created != 6 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !sched.HasRun() || sched.State() != StateIdle {
		t.Fatalf("after pass: hasRun=%v state=%s", sched.HasRun(), sched.State())
	}

	// Second pass: the latest open instance is 5 days out, within lookahead,
	// but the window is already full so nothing new is created.
	report, err = sched.Run(context.Background(), store, store)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Created != 0 || store.saves != 1 {
		t.Fatalf("second pass created %d (saves=%d)", report.Created, store.saves)
	}
}

func TestSchedulerDropsOverlappingPass(t *testing.T) {
	t.Parallel()
	now := day(2024, 1, 1)
	sched := NewScheduler(nil, 5, 7, WithClock(fixedClock(now)))
	store := &memoryStore{
		series:  []model.Series{dailySeries("a", now)},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}

	done := make(chan Report, 1)
	go func() {
		r, err := sched.Run(context.Background(), store, store)
		if err != nil {
			t.Errorf("Run: %v", err)
		}
		done <- r
	}()

	<-store.entered
	if sched.State() != StateGenerating {
		t.Fatalf("state = %s, want generating", sched.State())
	}
	dropped, err := sched.Run(context.Background(), &memoryStore{}, &memoryStore{})
	if err != nil || !dropped.Dropped {
		t.Fatalf("overlapping pass should be dropped, got %+v, %v", dropped, err)
	}

	close(store.block)
	if r := <-done; r.Dropped || r.Created == 0 {
		t.Fatalf("first pass report: %+v", r)
	}
	if sched.State() != StateIdle {
		t.Fatalf("state = %s, want idle", sched.State())
	}
}

func TestSchedulerRunSnapshotError(t *testing.T) {
	t.Parallel()
	sched := NewScheduler(nil, 0, 0)
	boom := errors.New("boom")
	_, err := sched.Run(context.Background(), &memoryStore{loadErr: boom}, &memoryStore{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped load error, got %v", err)
	}
	if sched.HasRun() || sched.State() != StateIdle {
		t.Fatalf("failed pass: hasRun=%v state=%s", sched.HasRun(), sched.State())
	}
}

func TestManagerCreateSeries(t *testing.T) {
	t.Parallel()
	opts := []Option{WithClock(fixedClock(day(2024, 1, 1))), WithIDGenerator(sequentialIDs("id"))}
	mgr := NewManager(NewMaterializer(opts...), 13, opts...)

	rule := recurrence.Rule{Pattern: "Weekly", Frequency: 1, DaysOfWeek: []int{5, 1, 3, 1}, StartDate: day(2024, 1, 1)}
	s, initial, err := mgr.CreateSeries(42, model.TaskTemplate{Title: "gym"}, rule)
	if err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	if s.ID != "id-1" || !s.Active || s.UserID != 42 || s.Template.Priority != model.PriorityMedium {
		t.Fatalf("unexpected series: %+v", s)
	}
	if s.Rule.Pattern != recurrence.Weekly || len(s.Rule.DaysOfWeek) != 3 {
		t.Fatalf("rule not normalized: %+v", s.Rule)
	}
	// Mon/Wed/Fri over 2024-01-01..2024-01-14
	if len(initial) != 6 {
		t.Fatalf("expected 6 initial instances, got %d", len(initial))
	}
	for _, inst := range initial {
		if !inst.BelongsTo(s.ID) || inst.UserID != 42 {
			t.Fatalf("instance not linked to series: %+v", inst)
		}
	}

	_, _, err = mgr.CreateSeries(42, model.TaskTemplate{Title: "bad"}, recurrence.Rule{Pattern: recurrence.Weekly})
	var verr *recurrence.ValidationError
	if !errors.As(err, &verr) || len(verr.Errors) < 3 {
		t.Fatalf("expected validation error listing every problem, got %v", err)
	}
}
