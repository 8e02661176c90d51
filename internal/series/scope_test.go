package series

import (
	"errors"
	"sort"
	"testing"
	"time"

	"planner/internal/model"
)

func instance(id, seriesID string, d *time.Time) model.Task {
	t := model.Task{ID: id, InstanceDate: d}
	if seriesID != "" {
		sid := seriesID
		t.SeriesID = &sid
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func ids(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	sort.Strings(out)
	return out
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func scopeFixture() []model.Task {
	return []model.Task{
		instance("mar01", "s", ptr(day(2024, 3, 1))),
		instance("mar10", "s", ptr(day(2024, 3, 10))),
		instance("mar20", "s", ptr(day(2024, 3, 20))),
		instance("undated", "s", nil),
		instance("other", "x", ptr(day(2024, 3, 15))),
		instance("oneoff", "", ptr(day(2024, 3, 25))),
	}
}

func TestResolveScopeFutureScenario(t *testing.T) {
	t.Parallel()
	res, err := ResolveScope(scopeFixture(), "s", ScopeFuture, "mar10")
	if err != nil {
		t.Fatalf("ResolveScope: %v", err)
	}
	if got, want := ids(res.Affected), []string{"mar10", "mar20"}; !sameIDs(got, want) {
		t.Fatalf("affected = %v, want %v", got, want)
	}
	if got, want := ids(res.Remaining), []string{"mar01", "oneoff", "other", "undated"}; !sameIDs(got, want) {
		t.Fatalf("remaining = %v, want %v", got, want)
	}
}

func TestResolveScopeThisAndAll(t *testing.T) {
	t.Parallel()
	res, err := ResolveScope(scopeFixture(), "s", ScopeThis, "mar20")
	if err != nil {
		t.Fatalf("ResolveScope(this): %v", err)
	}
	if got := ids(res.Affected); !sameIDs(got, []string{"mar20"}) {
		t.Fatalf("this affected = %v", got)
	}

	res, err = ResolveScope(scopeFixture(), "s", ScopeAll, "")
	if err != nil {
		t.Fatalf("ResolveScope(all): %v", err)
	}
	if got := ids(res.Affected); !sameIDs(got, []string{"mar01", "mar10", "mar20", "undated"}) {
		t.Fatalf("all affected = %v", got)
	}
}

func TestResolveScopePartitionIsComplete(t *testing.T) {
	t.Parallel()
	all := scopeFixture()
	for _, scope := range []Scope{ScopeThis, ScopeFuture, ScopeAll} {
		for _, ref := range []string{"mar01", "mar10", "mar20", "undated"} {
			res, err := ResolveScope(all, "s", scope, ref)
			if err != nil {
				t.Fatalf("ResolveScope(%s, %s): %v", scope, ref, err)
			}
			if len(res.Affected)+len(res.Remaining) != len(all) {
				t.Fatalf("%s/%s: %d+%d != %d", scope, ref, len(res.Affected), len(res.Remaining), len(all))
			}
			union := append(ids(res.Affected), ids(res.Remaining)...)
			sort.Strings(union)
			if !sameIDs(union, ids(all)) {
				t.Fatalf("%s/%s: union %v differs from input", scope, ref, union)
			}
		}
	}
}

func TestResolveScopeErrors(t *testing.T) {
	t.Parallel()
	if _, err := ResolveScope(scopeFixture(), "s", ScopeFuture, "missing"); !errors.Is(err, ErrReferenceNotFound) {
		t.Fatalf("expected ErrReferenceNotFound, got %v", err)
	}
	if _, err := ResolveScope(scopeFixture(), "s", ScopeThis, "other"); !errors.Is(err, ErrReferenceNotFound) {
		t.Fatalf("reference from another series must not resolve, got %v", err)
	}
	if _, err := ResolveScope(scopeFixture(), "s", Scope("some"), "mar01"); !errors.Is(err, ErrUnknownScope) {
		t.Fatalf("expected ErrUnknownScope, got %v", err)
	}
}

func TestCountAffected(t *testing.T) {
	t.Parallel()
	all := scopeFixture()
	cases := []struct {
		scope Scope
		ref   *time.Time
		want  int
	}{
		{ScopeThis, ptr(day(2024, 3, 10)), 1},
		{ScopeThis, ptr(day(2024, 3, 11)), 0},
		{ScopeFuture, ptr(day(2024, 3, 10)), 2},
		{ScopeFuture, ptr(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)), 3},
		{ScopeFuture, nil, 0},
		{ScopeAll, nil, 4},
		{Scope("bogus"), nil, 0},
	}
	for _, tc := range cases {
		if got := CountAffected(all, "s", tc.scope, tc.ref); got != tc.want {
			t.Errorf("CountAffected(%s, %v) = %d, want %d", tc.scope, tc.ref, got, tc.want)
		}
	}
}

func TestParseScope(t *testing.T) {
	t.Parallel()
	for raw, want := range map[string]Scope{"": ScopeThis, "this": ScopeThis, " Future ": ScopeFuture, "ALL": ScopeAll} {
		got, err := ParseScope(raw)
		if err != nil || got != want {
			t.Fatalf("ParseScope(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseScope("everything"); !errors.Is(err, ErrUnknownScope) {
		t.Fatalf("expected ErrUnknownScope, got %v", err)
	}
}

func TestApplyPatch(t *testing.T) {
	t.Parallel()
	title := "new title"
	high := model.PriorityHigh
	cat := uint(3)
	tasks := []model.Task{{ID: "a", Title: "old", Priority: model.PriorityLow}, {ID: "b", Title: "old"}}

	patched := ApplyPatch(tasks, TemplatePatch{Title: &title, Priority: &high, CategoryID: &cat})
	for _, p := range patched {
		if p.Title != title || p.Priority != high || p.CategoryID == nil || *p.CategoryID != cat {
			t.Fatalf("patch not applied: %+v", p)
		}
	}
	if tasks[0].Title != "old" {
		t.Fatal("ApplyPatch must not modify its input")
	}

	tpl := model.TaskTemplate{Title: "old", CategoryID: &cat}
	TemplatePatch{ClearCategory: true}.ApplyTemplate(&tpl)
	if tpl.CategoryID != nil || tpl.Title != "old" {
		t.Fatalf("unexpected template after clear: %+v", tpl)
	}
	if !(TemplatePatch{}).Empty() {
		t.Fatal("zero patch should be empty")
	}
}
