package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"planner/internal/series"
)

func passes() []series.Report {
	started := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return []series.Report{
		{SeriesTotal: 3, SeriesDue: 2, Created: 10, StartedAt: started, Duration: 15 * time.Millisecond},
		{Dropped: true},
		{SeriesTotal: 3, SeriesDue: 1, Created: 2, StartedAt: started.Add(time.Hour), Duration: 5 * time.Millisecond},
	}
}

func checkStats(t *testing.T, rec Recorder) {
	t.Helper()
	ctx := context.Background()
	for _, r := range passes() {
		if err := rec.RecordPass(ctx, r); err != nil {
			t.Fatalf("RecordPass: %v", err)
		}
	}
	stats, err := rec.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Passes != 2 || stats.Created != 12 || stats.Dropped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Last["created"] != "2" || stats.Last["time"] != "2024-01-01T10:00:00Z" {
		t.Fatalf("unexpected last pass: %v", stats.Last)
	}
}

func TestRedisRecorder(t *testing.T) {
	t.Parallel()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rec := NewRedisRecorder(rdb)
	empty, err := rec.Stats(context.Background())
	if err != nil || empty.Passes != 0 || empty.Last != nil {
		t.Fatalf("empty stats = %+v, %v", empty, err)
	}
	checkStats(t, rec)
}

func TestMemoryRecorder(t *testing.T) {
	t.Parallel()
	checkStats(t, NewMemory())
}

func TestConnectRejectsBadURL(t *testing.T) {
	t.Parallel()
	if _, err := Connect(context.Background(), "not a url"); err == nil {
		t.Fatal("expected parse error")
	}
}
