// Package ratelimit implements per-key admission throttling for the module
// server. The default backend is an in-memory token bucket; a Redis-backed
// backend is available for multi-instance deployments.
package ratelimit

// KeyLimiter is the admission policy consulted by the throttle middleware.
// Implementations must be safe for concurrent use.
type KeyLimiter interface {
	// Allow reports whether the caller identified by key may proceed,
	// consuming quota when it does.
	Allow(key string) bool

	// Remaining returns the whole number of requests key could still
	// make right now without being throttled.
	Remaining(key string) int
}

// Config holds the shared token-bucket parameters.
type Config struct {
	// BucketSize is the burst capacity in tokens.
	BucketSize int `mapstructure:"bucket_size" json:"bucket_size"`
	// RefillRate is the steady-state allowance in tokens per second.
	RefillRate float64 `mapstructure:"refill_rate" json:"refill_rate"`
}

// DefaultConfig passes bursty but non-abusive traffic while holding
// sustained callers to 15 req/s.
func DefaultConfig() Config {
	return Config{
		BucketSize: 200,
		RefillRate: 15,
	}
}
