package bot

import (
	"testing"
	"time"

	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/series"
)

var dialogToday = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func feed(t *testing.T, s *conversationState, inputs ...string) reply {
	t.Helper()
	var r reply
	for _, in := range inputs {
		r = s.next(in, dialogToday)
	}
	return r
}

func TestDialogWeeklySeries(t *testing.T) {
	t.Parallel()
	s := &conversationState{stage: stageTitle}
	r := feed(t, s, "спортзал", btnSkip, "Здоровье", btnPriorityHigh, btnRepeatWeekly, "2", "пн, чт", "2024-03-04", "10")
	if !r.preview || s.stage != stageConfirm {
		t.Fatalf("expected preview at confirm stage, got %+v stage=%d", r, s.stage)
	}
	if s.input.Title != "спортзал" || s.input.Description != "" || s.input.Category != "Здоровье" || s.input.Priority != model.PriorityHigh {
		t.Fatalf("unexpected input: %+v", s.input)
	}
	want := recurrence.Rule{Pattern: recurrence.Weekly, Frequency: 2, DaysOfWeek: []int{1, 4}}
	if s.rule.Pattern != want.Pattern || s.rule.Frequency != want.Frequency || len(s.rule.DaysOfWeek) != 2 {
		t.Fatalf("unexpected rule: %+v", s.rule)
	}
	if !s.rule.StartDate.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("StartDate = %v", s.rule.StartDate)
	}
	if s.rule.EndAfterOccurrences == nil || *s.rule.EndAfterOccurrences != 10 || s.rule.EndDate != nil {
		t.Fatalf("end condition: %+v", s.rule)
	}

	r = s.next(btnConfirm, dialogToday)
	if !r.save || s.input.Recurrence == nil || s.input.Recurrence.Frequency != 2 {
		t.Fatalf("confirm must save with rule, got %+v", r)
	}
}

func TestDialogOneOffWithDeadline(t *testing.T) {
	t.Parallel()
	s := &conversationState{stage: stageTitle}
	r := feed(t, s, "отчёт", "квартальный", btnSkip, btnSkip, btnRepeatNone)
	if r.save || s.stage != stageDeadline {
		t.Fatalf("expected deadline prompt, got %+v stage=%d", r, s.stage)
	}

	r = s.next("30.11.2025", dialogToday)
	if r.save || s.stage != stageDeadline {
		t.Fatal("bad date must keep the dialog at the deadline stage")
	}
	r = s.next("2025-11-30", dialogToday)
	if !r.save || s.input.Recurrence != nil || s.input.Deadline == nil {
		t.Fatalf("expected one-off save, got %+v input=%+v", r, s.input)
	}
	if s.input.Category != "" || s.input.Priority != "" {
		t.Fatalf("skipped fields must stay empty: %+v", s.input)
	}
}

func TestDialogDailyDefaultsStartToToday(t *testing.T) {
	t.Parallel()
	s := &conversationState{stage: stageTitle}
	r := feed(t, s, "вода", btnSkip, btnSkip, btnSkip, btnRepeatDaily, btnSkip, "2024-03-31")
	if !r.preview {
		t.Fatalf("expected preview, got %+v", r)
	}
	if !s.rule.StartDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("StartDate = %v, want today", s.rule.StartDate)
	}
	if s.rule.EndDate == nil || s.rule.EndDate.Day() != 31 {
		t.Fatalf("EndDate = %v", s.rule.EndDate)
	}

	r = s.next(btnCancel, dialogToday)
	if r.save || s.stage != stageNone {
		t.Fatalf("cancel at confirm must end the dialog, got %+v", r)
	}
}

func TestDialogRejectsBadInput(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		setup []string
		input string
		stage conversationStage
	}{
		{"empty title", nil, "  ", stageTitle},
		{"unknown priority", []string{"a", btnSkip, btnSkip}, "срочно", stagePriority},
		{"unknown repeat", []string{"a", btnSkip, btnSkip, btnSkip}, "иногда", stageRepeat},
		{"zero frequency", []string{"a", btnSkip, btnSkip, btnSkip, btnRepeatEveryN}, "0", stageFrequency},
		{"bad weekday", []string{"a", btnSkip, btnSkip, btnSkip, btnRepeatWeekly, "1"}, "пн xx", stageWeekdays},
		{"month day 32", []string{"a", btnSkip, btnSkip, btnSkip, btnRepeatMonthly, "1"}, "32", stageMonthDay},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := &conversationState{stage: stageTitle}
			feed(t, s, tc.setup...)
			r := s.next(tc.input, dialogToday)
			if r.save || r.preview || s.stage != tc.stage || r.text == "" {
				t.Fatalf("stage = %d, reply = %+v; want re-prompt at %d", s.stage, r, tc.stage)
			}
		})
	}
}

func TestParseWeekdays(t *testing.T) {
	t.Parallel()
	days, err := parseWeekdays("пт, пн 1;7 Sun")
	if err != nil {
		t.Fatalf("parseWeekdays: %v", err)
	}
	want := []int{5, 1, 7}
	if len(days) != len(want) {
		t.Fatalf("days = %v, want %v", days, want)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("days = %v, want %v", days, want)
		}
	}
	for _, bad := range []string{"", "8", "понедельник"} {
		if _, err := parseWeekdays(bad); err == nil {
			t.Errorf("parseWeekdays(%q) should fail", bad)
		}
	}
}

func TestParseEndInput(t *testing.T) {
	t.Parallel()
	end, count, err := parseEndInput("12")
	if err != nil || end != nil || count == nil || *count != 12 {
		t.Fatalf("count input: %v %v %v", end, count, err)
	}
	end, count, err = parseEndInput("2024-12-31")
	if err != nil || count != nil || end == nil || end.Month() != time.December {
		t.Fatalf("date input: %v %v %v", end, count, err)
	}
	if _, _, err := parseEndInput("0"); err == nil {
		t.Fatal("zero occurrences must fail")
	}
	if _, _, err := parseEndInput("завтра"); err == nil {
		t.Fatal("free text must fail")
	}
}

func TestParseRepeatInput(t *testing.T) {
	t.Parallel()
	cases := map[string]recurrence.Pattern{
		btnRepeatNone:    "",
		btnRepeatDaily:   recurrence.Daily,
		btnRepeatEveryN:  recurrence.Custom,
		btnRepeatWeekly:  recurrence.Weekly,
		"MONTHLY":        recurrence.Monthly,
		" раз в месяц ": recurrence.Monthly,
	}
	for in, want := range cases {
		got, ok := parseRepeatInput(in)
		if !ok || got != want {
			t.Errorf("parseRepeatInput(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := parseRepeatInput("yearly"); ok {
		t.Fatal("yearly is not offered")
	}
}

func TestTextHelpers(t *testing.T) {
	t.Parallel()
	if got := normalizeTitle("  купить хлеб "); got != "Купить хлеб" {
		t.Fatalf("normalizeTitle = %q", got)
	}
	if got := shortTitle("очень длинное название", 6); got != "Очень…" {
		t.Fatalf("shortTitle = %q", got)
	}
	if got := shortID("3f2a9c1d-1111-2222-3333-444455556666"); got != "#3f2a9c1d" {
		t.Fatalf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "#abc" {
		t.Fatalf("shortID(short) = %q", got)
	}
}

func TestParseScopeData(t *testing.T) {
	t.Parallel()
	scope, id, err := parseScopeData("scope:future:3f2a-1")
	if err != nil || scope != series.ScopeFuture || id != "3f2a-1" {
		t.Fatalf("parseScopeData = %q %q %v", scope, id, err)
	}
	for _, bad := range []string{"scope:future", "scope:forever:x", "scope:this:"} {
		if _, _, err := parseScopeData(bad); err == nil {
			t.Errorf("parseScopeData(%q) should fail", bad)
		}
	}
}

func TestVisibleTasksHidesFarInstances(t *testing.T) {
	t.Parallel()
	sid := "s"
	near := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	far := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{ID: "near", SeriesID: &sid, InstanceDate: &near},
		{ID: "far", SeriesID: &sid, InstanceDate: &far},
		{ID: "oneoff"},
	}
	got := visibleTasks(tasks, dialogToday)
	if len(got) != 2 || got[0].ID != "near" || got[1].ID != "oneoff" {
		t.Fatalf("visibleTasks = %+v", got)
	}
}

func TestDeleteConfirmationText(t *testing.T) {
	t.Parallel()
	text := deleteConfirmationText("<b>x</b>", 6, series.ScopeFuture)
	if want := "Будет удалено задач: <b>6</b>"; len(text) < len(want) || text[:len(want)] != want {
		t.Fatalf("text = %q", text)
	}
	if got := deleteConfirmationText("x", 1, series.ScopeThis); got != "Удалить задачу «X»?" {
		t.Fatalf("this scope text = %q", got)
	}
}

func TestSessions(t *testing.T) {
	t.Parallel()
	s := newSessions()
	if s.dialog(1) != nil {
		t.Fatal("unexpected dialog for new user")
	}

	s.startDialog(1, &conversationState{stage: stageTitle})
	s.await(1, confirmationRequest{taskID: "a", action: actionDelete, scope: series.ScopeAll})
	if st := s.dialog(1); st == nil || st.stage != stageTitle {
		t.Fatalf("dialog = %+v", st)
	}
	req, ok := s.pending(1)
	if !ok || req.taskID != "a" || req.scope != series.ScopeAll {
		t.Fatalf("pending = %+v, %v", req, ok)
	}

	s.resolve(1)
	if _, ok := s.pending(1); ok {
		t.Fatal("confirmation must be cleared")
	}
	if s.dialog(1) == nil {
		t.Fatal("resolving a confirmation must keep the dialog")
	}

	s.await(2, confirmationRequest{taskID: "b"})
	s.reset(1)
	if s.dialog(1) != nil || len(s.byID) != 1 {
		t.Fatalf("reset left state behind: %+v", s.byID)
	}
}
