// Package ratelimit is an in-memory token bucket per caller key.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter allows rpm requests per minute per key with a burst of rpm.
type Limiter struct {
	rpm          int
	capacity     float64
	refillPerSec float64

	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

// New returns a limiter; rpm <= 0 disables limiting.
func New(rpm int) *Limiter {
	return &Limiter{
		rpm:          rpm,
		capacity:     float64(rpm),
		refillPerSec: float64(rpm) / 60.0,
		now:          func() time.Time { return time.Now().UTC() },
		buckets:      make(map[string]*bucket),
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.rpm > 0
}

// Allow consumes one token for key. When denied it returns the number of
// seconds until a token is available.
func (l *Limiter) Allow(key string) (bool, int) {
	if !l.Enabled() {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.capacity - 1, lastRefill: now}
		return true, 0
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+(elapsed*l.refillPerSec))
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens -= 1
		return true, 0
	}

	deficit := 1 - b.tokens
	retrySeconds := int(math.Ceil(deficit / l.refillPerSec))
	if retrySeconds < 1 {
		retrySeconds = 1
	}
	return false, retrySeconds
}
