package verification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter caps wrong-code submissions per schedule.
type AttemptLimiter interface {
	// Blocked reports whether key has used up its attempts.
	Blocked(ctx context.Context, key string) (bool, error)
	// Fail records a wrong attempt.
	Fail(ctx context.Context, key string) error
	// Reset clears the counter after a successful verification.
	Reset(ctx context.Context, key string) error
}

func attemptsKey(scheduleID string) string { return fmt.Sprintf("otp:attempts:%s", scheduleID) }

// RedisLimiter keeps counters in Redis so limits hold across instances.
type RedisLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, max: max, window: window}
}

func (l *RedisLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Get(ctx, attemptsKey(key)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= l.max, nil
}

func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	k := attemptsKey(key)
	pipe := l.rdb.TxPipeline()
	pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, l.window)
	_, err := pipe.Exec(ctx)
	return err
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, attemptsKey(key)).Err()
}

// MemoryLimiter is the single-process fallback used when no Redis address is
// configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	now     func() time.Time
	entries map[string]*attempts
}

type attempts struct {
	count   int
	expires time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{max: max, window: window, now: time.Now, entries: make(map[string]*attempts)}
}

func (l *MemoryLimiter) current(key string) *attempts {
	a, ok := l.entries[key]
	if ok && !l.now().Before(a.expires) {
		delete(l.entries, key)
		return nil
	}
	return a
}

func (l *MemoryLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.current(key)
	return a != nil && a.count >= l.max, nil
}

func (l *MemoryLimiter) Fail(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.current(key)
	if a == nil {
		a = &attempts{expires: l.now().Add(l.window)}
		l.entries[key] = a
	}
	a.count++
	return nil
}

func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}
