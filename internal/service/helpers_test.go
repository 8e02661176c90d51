package service

import (
	"strings"
	"testing"
	"time"

	"planner/internal/logging"
	"planner/internal/model"
	"planner/internal/recurrence"
)

func TestBuildDailySpec(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "09:30", want: "0 30 9 * * *"},
		{in: " 00:00 ", want: "0 0 0 * * *"},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
	}
	for _, tc := range cases {
		got, err := buildDailySpec(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("buildDailySpec(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("buildDailySpec(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestSchedulerServiceRegistersJobs(t *testing.T) {
	t.Parallel()
	s := NewSchedulerService(time.UTC, logging.Nop())
	if _, err := s.ScheduleInterval(0, func() {}); err == nil {
		t.Fatal("zero interval must be rejected")
	}
	if _, err := s.ScheduleInterval(time.Hour, func() {}); err != nil {
		t.Fatalf("ScheduleInterval: %v", err)
	}
	if _, err := s.ScheduleDaily("08:15", func() {}); err != nil {
		t.Fatalf("ScheduleDaily: %v", err)
	}
	if s.Entries() != 2 {
		t.Fatalf("entries = %d, want 2", s.Entries())
	}
	s.Start()
	s.Stop()
}

func TestPreviewRule(t *testing.T) {
	t.Parallel()
	rule := recurrence.Rule{Pattern: "monthly", Frequency: 1, DayOfMonth: 31, StartDate: day(2024, 1, 15)}
	got := PreviewRule(rule, day(2024, 1, 20))
	if !got.Valid || len(got.Errors) != 0 {
		t.Fatalf("unexpected preview: %+v", got)
	}
	want := []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30", "2024-05-31"}
	if strings.Join(got.Next, ",") != strings.Join(want, ",") {
		t.Fatalf("next = %v, want %v", got.Next, want)
	}
	if !strings.HasPrefix(got.Preview, "repeats monthly on day 31") {
		t.Fatalf("preview = %q", got.Preview)
	}

	invalid := PreviewRule(recurrence.Rule{Pattern: "weekly", Frequency: 1}, day(2024, 1, 1))
	if invalid.Valid || len(invalid.Errors) != 2 || invalid.Preview != "" || len(invalid.Next) != 0 {
		t.Fatalf("invalid preview: %+v", invalid)
	}
}

func TestSplitForReport(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	sid := "s"
	at := func(d time.Time) *time.Time { return &d }
	deadline := now.Add(24 * time.Hour)

	tasks := []model.Task{
		{ID: "one-off", Title: "call"},
		{ID: "deadline", Title: "report", Deadline: &deadline},
		{ID: "overdue", SeriesID: &sid, InstanceDate: at(day(2024, 3, 8))},
		{ID: "today", SeriesID: &sid, InstanceDate: at(day(2024, 3, 10))},
		{ID: "soon", SeriesID: &sid, InstanceDate: at(day(2024, 3, 17))},
		{ID: "later", SeriesID: &sid, InstanceDate: at(day(2024, 3, 18))},
	}
	pending, due, upcoming := splitForReport(tasks, now)

	if len(pending) != 2 || pending[0].ID != "deadline" {
		t.Fatalf("pending = %+v", pending)
	}
	if len(due) != 2 || due[0].ID != "overdue" || due[1].ID != "today" {
		t.Fatalf("due = %+v", due)
	}
	if len(upcoming) != 1 || upcoming[0].ID != "soon" {
		t.Fatalf("upcoming = %+v", upcoming)
	}
}

func TestFormatRecurringShowsRule(t *testing.T) {
	t.Parallel()
	sid := "s"
	d := day(2024, 3, 8)
	task := model.Task{Title: "<b>water</b>", SeriesID: &sid, InstanceDate: &d, Priority: model.PriorityHigh}
	rules := map[string]recurrence.Rule{"s": {Pattern: recurrence.Daily, Frequency: 2, StartDate: d}}

	out := formatRecurring(task, rules, nil, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	for _, want := range []string{"&lt;b&gt;water&lt;/b&gt;", "2024-03-08", "пропущено", "repeats every 2 days"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q misses %q", out, want)
		}
	}
}
