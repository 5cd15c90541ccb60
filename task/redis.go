package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const zTaskPending = "hookline:z:task:pending"

// claimScript atomically claims due tasks from the sorted set.
// KEYS[1] = hookline:z:task:pending
// ARGV[1] = current unix timestamp (score threshold)
// ARGV[2] = limit
var claimScript = goredis.NewScript(`
local entries = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #entries == 0 then return {} end
for i, entry in ipairs(entries) do
    redis.call('ZREM', KEYS[1], entry)
end
return entries
`)

// RedisQueue is a durable queue backed by a Redis sorted set. Task
// envelopes are scored by their due time; a Lua script claims due entries
// atomically so concurrent pollers never double-process.
type RedisQueue struct {
	rdb     goredis.UniversalClient
	logger  *slog.Logger
	workers int
	poll    time.Duration
	batch   int

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// RedisOption configures a RedisQueue.
type RedisOption func(*RedisQueue)

// WithRedisWorkers sets the number of concurrent task processors. Default is 4.
func WithRedisWorkers(n int) RedisOption {
	return func(q *RedisQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithPollInterval sets how often the queue polls for due tasks. Default
// is one second.
func WithPollInterval(d time.Duration) RedisOption {
	return func(q *RedisQueue) {
		if d > 0 {
			q.poll = d
		}
	}
}

// WithRedisLogger sets the queue logger.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(q *RedisQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewRedisQueue creates a Redis-backed queue.
func NewRedisQueue(rdb goredis.UniversalClient, opts ...RedisOption) *RedisQueue {
	q := &RedisQueue{
		rdb:     rdb,
		logger:  slog.Default(),
		workers: 4,
		poll:    time.Second,
		batch:   100,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue implements Queue.
func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	return q.EnqueueAt(ctx, t, time.Now())
}

// EnqueueAt implements Queue.
func (q *RedisQueue) EnqueueAt(ctx context.Context, t Task, at time.Time) error {
	raw, err := Marshal(t)
	if err != nil {
		return err
	}
	err = q.rdb.ZAdd(ctx, zTaskPending, goredis.Z{
		Score:  float64(at.UnixMilli()),
		Member: string(raw),
	}).Err()
	if err != nil {
		return fmt.Errorf("task: redis enqueue %s: %w", t.Kind(), err)
	}
	return nil
}

// Start launches the polling loop and worker pool.
func (q *RedisQueue) Start(ctx context.Context, h Handler) {
	tasks := make(chan Task, q.batch)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for t := range tasks {
				q.process(ctx, h, t)
			}
		}()
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer close(tasks)

		ticker := time.NewTicker(q.poll)
		defer ticker.Stop()

		for {
			select {
			case <-q.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.claim(ctx, tasks)
			}
		}
	}()
}

// Stop halts polling and waits for in-flight tasks.
func (q *RedisQueue) Stop() {
	q.stopOnce.Do(func() { close(q.stopCh) })
	q.wg.Wait()
}

func (q *RedisQueue) claim(ctx context.Context, out chan<- Task) {
	nowScore := fmt.Sprintf("%d", time.Now().UnixMilli())
	entries, err := claimScript.Run(ctx, q.rdb, []string{zTaskPending}, nowScore, q.batch).StringSlice()
	if err != nil {
		if err == goredis.Nil {
			return
		}
		q.logger.ErrorContext(ctx, "claim due tasks", "error", err)
		return
	}

	for _, raw := range entries {
		t, err := Unmarshal([]byte(raw))
		if err != nil {
			q.logger.ErrorContext(ctx, "decode claimed task", "error", err)
			continue
		}
		select {
		case out <- t:
		case <-ctx.Done():
			return
		}
	}
}

func (q *RedisQueue) process(ctx context.Context, h Handler, t Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task handler panicked", "kind", t.Kind(), "panic", r)
		}
	}()

	if err := h.ProcessTask(ctx, t); err != nil {
		q.logger.ErrorContext(ctx, "task failed", "kind", t.Kind(), "error", err)
	}
}
