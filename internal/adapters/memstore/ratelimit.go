package memstore

import (
	"sync"
	"time"

	"github.com/bioapp/auth-service/internal/domain"
	"github.com/bioapp/auth-service/internal/ports"
)

const limiterShardCount = 16

type bucket struct {
	windowStart time.Time
	count       int
}

type limiterShard struct {
	mu      sync.Mutex
	buckets map[string]bucket
}

// RateLimiter implements fixed-window counting per (client key, class).
// Fixed windows trade precision at window boundaries for O(1) memory and
// per-request cost; the limiter deters abuse, it is not quota accounting.
type RateLimiter struct {
	window time.Duration
	limits map[string]int
	shards [limiterShardCount]*limiterShard
	nowFn  func() time.Time

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRateLimiter creates a limiter with per-class limits over the given
// window. A class limit <= 0 disables limiting for that class.
func NewRateLimiter(window time.Duration, limits map[string]int) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	l := &RateLimiter{
		window: window,
		limits: limits,
		nowFn:  func() time.Time { return time.Now().UTC() },
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	for i := range l.shards {
		l.shards[i] = &limiterShard{buckets: make(map[string]bucket)}
	}
	return l
}

func (l *RateLimiter) shardFor(key string) *limiterShard {
	h := uint32(2166136261)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return l.shards[h%limiterShardCount]
}

func (l *RateLimiter) Allow(key, class string) error {
	limit, ok := l.limits[class]
	if !ok || limit <= 0 {
		return nil
	}

	bucketKey := class + ":" + key
	shard := l.shardFor(bucketKey)
	now := l.nowFn()
	windowStart := now.Truncate(l.window)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	b, exists := shard.buckets[bucketKey]
	if !exists || b.windowStart.Before(windowStart) {
		b = bucket{windowStart: windowStart}
	}
	if b.count >= limit {
		// Rejected requests do not increment, so a flood cannot extend
		// its own penalty.
		shard.buckets[bucketKey] = b
		return domain.ErrRateLimited
	}
	b.count++
	shard.buckets[bucketKey] = b
	return nil
}

func (l *RateLimiter) IsLimited(key, class string) bool {
	limit, ok := l.limits[class]
	if !ok || limit <= 0 {
		return false
	}

	bucketKey := class + ":" + key
	shard := l.shardFor(bucketKey)
	windowStart := l.nowFn().Truncate(l.window)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	b, exists := shard.buckets[bucketKey]
	if !exists || b.windowStart.Before(windowStart) {
		return false
	}
	return b.count >= limit
}

// RetryAfter reports whole seconds until the key's window resets, for 429
// Retry-After headers. Returns 0 when the key is not limited.
func (l *RateLimiter) RetryAfter(key, class string) int {
	if !l.IsLimited(key, class) {
		return 0
	}
	now := l.nowFn()
	windowEnd := now.Truncate(l.window).Add(l.window)
	secs := int(windowEnd.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Start launches periodic pruning of stale buckets so one-off clients do
// not accumulate forever.
func (l *RateLimiter) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l.started = true
	go func() {
		defer close(l.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.prune()
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop cancels the prune goroutine. Safe to call when Start was never invoked.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	if l.started {
		<-l.doneCh
	}
}

func (l *RateLimiter) prune() {
	for _, shard := range l.shards {
		cutoff := l.nowFn().Add(-2 * l.window)
		shard.mu.Lock()
		for key, b := range shard.buckets {
			if b.windowStart.Before(cutoff) {
				delete(shard.buckets, key)
			}
		}
		shard.mu.Unlock()
	}
}

var _ ports.RateLimiter = (*RateLimiter)(nil)
