package rate

import (
	"sync"
	"time"
)

type bucket struct {
	count int
	start time.Time
}

// Limiter is a per-process fixed-window counter. On a function platform each
// warm instance keeps its own windows.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]bucket
	lastGC  time.Time
	now     func() time.Time
}

func NewLimiter() *Limiter {
	return newLimiterAt(time.Now)
}

func newLimiterAt(now func() time.Time) *Limiter {
	return &Limiter{buckets: map[string]bucket{}, lastGC: now().UTC(), now: now}
}

func (l *Limiter) Allow(key string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	if now.Sub(l.lastGC) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.start) > 3*window {
				delete(l.buckets, k)
			}
		}
		l.lastGC = now
	}
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.start) >= window {
		l.buckets[key] = bucket{count: 1, start: now}
		return true
	}
	if b.count >= limit {
		return false
	}
	b.count++
	l.buckets[key] = b
	return true
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Blocked reports whether key has used up its window without counting a hit.
func (l *Limiter) Blocked(key string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok || l.now().UTC().Sub(b.start) >= window {
		return false
	}
	return b.count >= limit
}
