package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterRegistry hands out one token bucket per key.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiterRegistry creates a registry whose buckets refill at limit
// and hold burst tokens. Buckets unused for idle are dropped by Prune.
func NewRateLimiterRegistry(limit rate.Limit, burst int, idle time.Duration) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]*limiterEntry),
		limit:    limit,
		burst:    burst,
		idle:     idle,
		now:      time.Now,
	}
}

// Allow consumes one token from the bucket for key.
func (r *RateLimiterRegistry) Allow(key string) bool {
	return r.GetOrCreate(key).AllowN(r.now(), 1)
}

// GetOrCreate retrieves an existing rate limiter or creates a new one.
func (r *RateLimiterRegistry) GetOrCreate(key string) *rate.Limiter {
	now := r.now()

	r.mu.RLock()
	entry, exists := r.limiters[key]
	r.mu.RUnlock()

	if exists {
		r.mu.Lock()
		entry.lastSeen = now
		r.mu.Unlock()
		return entry.limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists := r.limiters[key]; exists {
		entry.lastSeen = now
		return entry.limiter
	}

	entry = &limiterEntry{
		limiter:  rate.NewLimiter(r.limit, r.burst),
		lastSeen: now,
	}
	r.limiters[key] = entry
	return entry.limiter
}

// Reset drops the bucket for key.
func (r *RateLimiterRegistry) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.limiters, key)
}

// Prune drops buckets idle for longer than the configured idle period and
// returns how many were removed.
func (r *RateLimiterRegistry) Prune() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, entry := range r.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
			n++
		}
	}
	return n
}

// Len returns the number of live buckets.
func (r *RateLimiterRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}
