package ratelimit

import (
	"sync"
	"time"
)

// Buckets are keyed by caller address plus endpoint. The map is pruned once
// it grows past this, dropping buckets idle long enough to be full again.
const pruneThreshold = 4096

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a per-key token bucket guarding the operational endpoints.
type Limiter struct {
	mu sync.Mutex
	m  map[string]*bucket
}

func New() *Limiter { return &Limiter{m: make(map[string]*bucket)} }

// Allow consumes one token for key, creating a full bucket on first sight.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		if len(l.m) >= pruneThreshold {
			l.prune(now)
		}
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// prune drops buckets that have been idle long enough to refill completely.
// Callers hold the mutex.
func (l *Limiter) prune(now time.Time) {
	for key, b := range l.m {
		if b.refillRate <= 0 {
			continue
		}
		idleFull := time.Duration(b.capacity/b.refillRate*float64(time.Second)) + time.Minute
		if now.Sub(b.last) > idleFull {
			delete(l.m, key)
		}
	}
}
