package ratelimit

import (
	"math"
	"sync"
	"time"
)

// bucket is the per-key token-bucket state. Tokens are a float so partial
// refills accumulate between requests.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// TokenBucketLimiter is a thread-safe, in-memory KeyLimiter. A fresh, full
// bucket is created on first sight of a key and kept for the life of the
// process; the registry never evicts, which bounds fairness but means memory
// grows with the number of distinct callers seen.
type TokenBucketLimiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]*bucket

	now func() time.Time
}

// NewTokenBucketLimiter creates a limiter with the given bucket parameters.
func NewTokenBucketLimiter(cfg Config) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// bucketFor returns the bucket for key, creating a full one on first use.
func (l *TokenBucketLimiter) bucketFor(key string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:     float64(l.cfg.BucketSize),
			lastRefill: l.now(),
		}
		l.buckets[key] = b
	}
	return b
}

// Allow refills key's bucket for the elapsed time and attempts to debit one
// token. Concurrent calls for the same key serialize on the bucket mutex so
// tokens are never double-spent.
func (l *TokenBucketLimiter) Allow(key string) bool {
	b := l.bucketFor(key)
	now := l.now()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(now, l.cfg)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Remaining projects the refill without mutating bucket state and returns
// the whole tokens currently available for key.
func (l *TokenBucketLimiter) Remaining(key string) int {
	b := l.bucketFor(key)
	now := l.now()

	b.mu.Lock()
	defer b.mu.Unlock()
	tokens := b.tokens
	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		tokens += elapsed * l.cfg.RefillRate
	}
	if limit := float64(l.cfg.BucketSize); tokens > limit {
		tokens = limit
	}
	return int(math.Floor(tokens))
}

// refillLocked credits tokens for the time elapsed since the last refill,
// capped at capacity. Caller must hold b.mu.
func (b *bucket) refillLocked(now time.Time, cfg Config) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * cfg.RefillRate
	if limit := float64(cfg.BucketSize); b.tokens > limit {
		b.tokens = limit
	}
	b.lastRefill = now
}
