// Package metrics records generation pass statistics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"planner/internal/series"
)

const (
	keyPasses  = "metrics:generation:passes"
	keyCreated = "metrics:generation:created"
	keyDropped = "metrics:generation:dropped"
	keyLast    = "metrics:generation:last"
)

// Recorder stores the outcome of generation passes.
type Recorder interface {
	RecordPass(ctx context.Context, report series.Report) error
	Stats(ctx context.Context) (Stats, error)
}

// Stats is the aggregate view served by the HTTP API.
type Stats struct {
	Passes  int64             `json:"passes"`
	Created int64             `json:"created"`
	Dropped int64             `json:"dropped"`
	Last    map[string]string `json:"last,omitempty"`
}

// Connect parses a redis:// URL and checks the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisRecorder keeps counters and the last pass summary in Redis.
type RedisRecorder struct {
	rdb redis.Cmdable
}

func NewRedisRecorder(rdb redis.Cmdable) *RedisRecorder {
	return &RedisRecorder{rdb: rdb}
}

func (r *RedisRecorder) RecordPass(ctx context.Context, report series.Report) error {
	if report.Dropped {
		return r.rdb.Incr(ctx, keyDropped).Err()
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, keyPasses)
		pipe.IncrBy(ctx, keyCreated, int64(report.Created))
		pipe.HSet(ctx, keyLast, map[string]any{
			"time":         report.StartedAt.UTC().Format(time.RFC3339),
			"series_total": report.SeriesTotal,
			"series_due":   report.SeriesDue,
			"created":      report.Created,
			"duration_ms":  report.Duration.Milliseconds(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("record generation pass: %w", err)
	}
	return nil
}

func (r *RedisRecorder) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error
	if stats.Passes, err = r.counter(ctx, keyPasses); err != nil {
		return stats, err
	}
	if stats.Created, err = r.counter(ctx, keyCreated); err != nil {
		return stats, err
	}
	if stats.Dropped, err = r.counter(ctx, keyDropped); err != nil {
		return stats, err
	}
	last, err := r.rdb.HGetAll(ctx, keyLast).Result()
	if err != nil {
		return stats, fmt.Errorf("read last pass: %w", err)
	}
	if len(last) > 0 {
		stats.Last = last
	}
	return stats, nil
}

func (r *RedisRecorder) counter(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return n, nil
}

// Memory keeps statistics in process; used when Redis is not configured.
type Memory struct {
	mu    sync.Mutex
	stats Stats
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordPass(_ context.Context, report series.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if report.Dropped {
		m.stats.Dropped++
		return nil
	}
	m.stats.Passes++
	m.stats.Created += int64(report.Created)
	m.stats.Last = map[string]string{
		"time":         report.StartedAt.UTC().Format(time.RFC3339),
		"series_total": strconv.Itoa(report.SeriesTotal),
		"series_due":   strconv.Itoa(report.SeriesDue),
		"created":      strconv.Itoa(report.Created),
		"duration_ms":  strconv.FormatInt(report.Duration.Milliseconds(), 10),
	}
	return nil
}

func (m *Memory) Stats(context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.stats
	if m.stats.Last != nil {
		out.Last = make(map[string]string, len(m.stats.Last))
		for k, v := range m.stats.Last {
			out.Last[k] = v
		}
	}
	return out, nil
}
