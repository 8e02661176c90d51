package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"planner/internal/logging"
	"planner/internal/model"
	"planner/internal/recurrence"
)

func newTestDB(t *testing.T) (*TaskRepository, *SeriesRepository, *UserRepository) {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "planner.db"), logging.Nop())
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewTaskRepository(db), NewSeriesRepository(db), NewUserRepository(db)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seriesInstance(id, seriesID string, d time.Time) model.Task {
	sid := seriesID
	return model.Task{ID: id, UserID: 1, SeriesID: &sid, InstanceDate: &d, Title: "water plants", Priority: model.PriorityMedium}
}

func TestIsPostgresDSN(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"postgres://u:p@localhost/db":       true,
		"postgresql://localhost/db":         true,
		"host=localhost user=u dbname=db":   true,
		"daily_planner.db":                  false,
		"file:data/planner.db?cache=shared": false,
	}
	for dsn, want := range cases {
		if got := IsPostgresDSN(dsn); got != want {
			t.Errorf("IsPostgresDSN(%q) = %v, want %v", dsn, got, want)
		}
	}
}

func TestCreateBatchSkipsDuplicateDays(t *testing.T) {
	t.Parallel()
	tasks, _, _ := newTestDB(t)
	ctx := context.Background()

	first := []model.Task{
		seriesInstance("a", "s1", day(2024, 1, 1)),
		seriesInstance("b", "s1", day(2024, 1, 2)),
	}
	n, err := tasks.CreateBatch(ctx, first)
	if err != nil || n != 2 {
		t.Fatalf("CreateBatch = %d, %v", n, err)
	}

	again := []model.Task{
		seriesInstance("c", "s1", day(2024, 1, 2)),
		seriesInstance("d", "s1", day(2024, 1, 3)),
	}
	n, err = tasks.CreateBatch(ctx, again)
	if err != nil {
		t.Fatalf("CreateBatch duplicate: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one new row, got %d", n)
	}

	list, err := tasks.ListBySeries(ctx, "s1", false)
	if err != nil {
		t.Fatalf("ListBySeries: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(list))
	}
}

func TestDeletedInstancesStayVisibleToGeneration(t *testing.T) {
	t.Parallel()
	tasks, _, _ := newTestDB(t)
	ctx := context.Background()

	if _, err := tasks.CreateBatch(ctx, []model.Task{
		seriesInstance("a", "s1", day(2024, 1, 1)),
		seriesInstance("b", "s1", day(2024, 1, 2)),
	}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if n, err := tasks.DeleteIDs(ctx, 1, []string{"a"}); err != nil || n != 1 {
		t.Fatalf("DeleteIDs = %d, %v", n, err)
	}

	open, err := tasks.ListOpen(ctx, 1)
	if err != nil || len(open) != 1 || open[0].ID != "b" {
		t.Fatalf("ListOpen = %+v, %v", open, err)
	}
	all, err := tasks.ListForGeneration(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListForGeneration should include deleted rows, got %d, %v", len(all), err)
	}

	// Recreating the deleted day is a no-op.
	n, err := tasks.CreateBatch(ctx, []model.Task{seriesInstance("a2", "s1", day(2024, 1, 1))})
	if err != nil || n != 0 {
		t.Fatalf("deleted day was recreated: %d, %v", n, err)
	}
}

func TestSeriesRepositoryRoundTrip(t *testing.T) {
	t.Parallel()
	tasks, seriesRepo, _ := newTestDB(t)
	ctx := context.Background()
	end := day(2024, 6, 30)

	s := model.Series{
		ID:     "s1",
		UserID: 1,
		Rule: recurrence.Rule{
			Pattern:    recurrence.Weekly,
			Frequency:  2,
			DaysOfWeek: []int{1, 3, 5},
			StartDate:  day(2024, 1, 1),
			EndDate:    &end,
		},
		Template: model.TaskTemplate{Title: "gym", Priority: model.PriorityHigh},
		Active:   true,
	}
	if err := seriesRepo.Create(ctx, &s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := seriesRepo.FindByID(ctx, 1, "s1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(got.Rule.DaysOfWeek) != 3 || got.Rule.Frequency != 2 || got.Rule.EndDate == nil {
		t.Fatalf("rule not persisted: %+v", got.Rule)
	}
	if !got.Rule.StartDate.Equal(day(2024, 1, 1)) {
		t.Fatalf("start date = %v", got.Rule.StartDate)
	}

	if err := seriesRepo.SetActive(ctx, 1, "s1", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := seriesRepo.SetActive(ctx, 2, "s1", false); err == nil {
		t.Fatal("SetActive must not touch another user's series")
	}

	got.Template.Title = "swim"
	if err := seriesRepo.UpdateTemplate(ctx, got); err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}

	store := NewGenerationStore(seriesRepo, tasks)
	active, _, err := store.GenerationSnapshot(ctx)
	if err != nil {
		t.Fatalf("GenerationSnapshot: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("paused series returned as active: %+v", active)
	}

	list, err := seriesRepo.ListByUser(ctx, 1)
	if err != nil || len(list) != 1 || list[0].Template.Title != "swim" || list[0].Active {
		t.Fatalf("ListByUser = %+v, %v", list, err)
	}
}

func TestUpsertFromTelegram(t *testing.T) {
	t.Parallel()
	_, _, users := newTestDB(t)
	ctx := context.Background()

	u, err := users.UpsertFromTelegram(ctx, 100, "Ann", "", "ann")
	if err != nil {
		t.Fatalf("UpsertFromTelegram: %v", err)
	}
	again, err := users.UpsertFromTelegram(ctx, 100, "Anna", "", "ann")
	if err != nil {
		t.Fatalf("UpsertFromTelegram: %v", err)
	}
	if again.ID != u.ID || again.FirstName != "Anna" {
		t.Fatalf("expected update of the same user, got %+v", again)
	}

	if err := users.Create(ctx, &model.User{FirstName: "api"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	tg, err := users.ListTelegram(ctx)
	if err != nil || len(tg) != 1 {
		t.Fatalf("ListTelegram = %+v, %v", tg, err)
	}
}
