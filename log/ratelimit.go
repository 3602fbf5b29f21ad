package log

import (
	"sync"
	"sync/atomic"
	"time"
)

// maxBuckets bounds the bucket table. When the table is full, buckets idle
// for at least two refill intervals are swept before a new one is inserted.
const maxBuckets = 4096

// RateLimiter throttles events per call site with one token bucket each.
// A bucket starts full and is reset to full capacity once per interval; the
// configuration exposes a burst size and a refill period, not a rate.
//
// The limiter governs only the local sink it is attached to. Observable
// subscriptions and any external export paths are never gated by it.
//
// A nil *RateLimiter admits everything.
type RateLimiter struct {
	capacity uint32
	interval time.Duration

	mu      sync.RWMutex
	buckets map[uint64]*bucket
}

type bucket struct {
	mu             sync.Mutex
	tokens         uint32
	lastRefill     time.Time
	lastRefillNano atomic.Int64
}

// NewRateLimiter creates a limiter with the given burst capacity and full
// refill period. Capacity 0 is a valid degenerate configuration that admits
// nothing.
func NewRateLimiter(capacity uint32, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		capacity: capacity,
		interval: interval,
		buckets:  make(map[uint64]*bucket),
	}
}

// Admit reports whether the call site may emit at the given time and, if so,
// consumes one token. Buckets are created lazily with a full token count.
//
// Refill compares wall-clock timestamps; a backward clock jump can cause one
// spurious refill. That imprecision is accepted.
func (l *RateLimiter) Admit(callSite uint64, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.RLock()
	b := l.buckets[callSite]
	l.mu.RUnlock()
	if b == nil {
		b = l.createBucket(callSite, now)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.Sub(b.lastRefill) >= l.interval {
		b.tokens = l.capacity
		b.lastRefill = now
		b.lastRefillNano.Store(now.UnixNano())
	}
	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

func (l *RateLimiter) createBucket(callSite uint64, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, loaded := l.buckets[callSite]; loaded {
		return b
	}
	if len(l.buckets) >= maxBuckets {
		l.evictIdleLocked(now)
	}
	b := &bucket{tokens: l.capacity, lastRefill: now}
	b.lastRefillNano.Store(now.UnixNano())
	l.buckets[callSite] = b
	return b
}

// evictIdleLocked drops buckets that have not refilled for two intervals.
// An evicted call site simply re-enters with a fresh full bucket, which can
// only over-admit by one burst; that is the accepted cost of bounding the
// table.
func (l *RateLimiter) evictIdleLocked(now time.Time) {
	horizon := now.Add(-2 * l.interval).UnixNano()
	for callSite, b := range l.buckets {
		if b.lastRefillNano.Load() <= horizon {
			delete(l.buckets, callSite)
		}
	}
}

// Size returns the number of live buckets.
func (l *RateLimiter) Size() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}
