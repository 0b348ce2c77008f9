// Package stats counts conversion outcomes. Only counters are kept; no
// document content ever reaches a recorder.
package stats

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	u "office2pdf/internal/utils"
)

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Succeeded   int64 `json:"succeeded"`
	Failed      int64 `json:"failed"`
	TotalMillis int64 `json:"total_ms"`
}

// AvgMillis is the mean conversion time over all recorded conversions.
func (s Snapshot) AvgMillis() int64 {
	n := s.Succeeded + s.Failed
	if n == 0 {
		return 0
	}
	return s.TotalMillis / n
}

// Recorder stores conversion outcomes.
type Recorder interface {
	Record(ctx context.Context, ok bool, elapsed time.Duration)
	Snapshot(ctx context.Context) (Snapshot, error)
}

// MemoryRecorder keeps counters in process memory.
type MemoryRecorder struct {
	succeeded atomic.Int64
	failed    atomic.Int64
	totalMs   atomic.Int64
}

func NewMemoryRecorder() *MemoryRecorder { return &MemoryRecorder{} }

func (m *MemoryRecorder) Record(_ context.Context, ok bool, elapsed time.Duration) {
	if ok {
		m.succeeded.Add(1)
	} else {
		m.failed.Add(1)
	}
	m.totalMs.Add(elapsed.Milliseconds())
}

func (m *MemoryRecorder) Snapshot(context.Context) (Snapshot, error) {
	return Snapshot{
		Succeeded:   m.succeeded.Load(),
		Failed:      m.failed.Load(),
		TotalMillis: m.totalMs.Load(),
	}, nil
}

// DefaultRedisKey is the hash the Redis recorder writes to.
const DefaultRedisKey = "office2pdf:stats"

// RedisRecorder keeps counters in a Redis hash so they survive restarts and
// are shared between replicas.
type RedisRecorder struct {
	rdb *redis.Client
	key string
}

func NewRedisRecorder(rdb *redis.Client, key string) *RedisRecorder {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRecorder{rdb: rdb, key: key}
}

// Record never fails the caller; Redis errors are logged.
func (r *RedisRecorder) Record(ctx context.Context, ok bool, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	field := "failed"
	if ok {
		field = "succeeded"
	}
	pipe := r.rdb.TxPipeline()
	pipe.HIncrBy(ctx, r.key, field, 1)
	pipe.HIncrBy(ctx, r.key, "total_ms", elapsed.Milliseconds())
	if _, err := pipe.Exec(ctx); err != nil {
		u.Warn("Stats write failed", "error", err)
	}
}

func (r *RedisRecorder) Snapshot(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	vals, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Succeeded:   parseCount(vals["succeeded"]),
		Failed:      parseCount(vals["failed"]),
		TotalMillis: parseCount(vals["total_ms"]),
	}, nil
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
