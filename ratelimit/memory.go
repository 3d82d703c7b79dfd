package ratelimit

import (
	"context"
	"sync"
	"time"
)

// reduceFactor is the share of capacity kept by Reduce.
const reduceFactor = 0.75

type bucket struct {
	capacity  int
	tokens    float64
	window    time.Duration
	updated   time.Time
	reduced   int
	lastCause string
}

func (b *bucket) rate() float64 {
	return float64(b.capacity) / float64(b.window)
}

// refill adds the tokens earned since the last update.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.updated)
	if elapsed <= 0 {
		return
	}
	b.tokens += float64(elapsed) * b.rate()
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
	b.updated = now
}

// wait returns how long until one token is available.
func (b *bucket) wait() time.Duration {
	missing := 1 - b.tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / b.rate())
}

// MemoryLimiter is an in-process token bucket limiter.
// It is safe for concurrent use.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	closed  bool
	done    chan struct{}
	nowFunc func() time.Time
}

// NewMemoryLimiter creates a limiter with no configured resources.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
		nowFunc: time.Now,
	}
}

// SetCapacity configures the rate limit for a resource. New buckets start full.
func (m *MemoryLimiter) SetCapacity(resource string, capacity int, window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if capacity <= 0 || window <= 0 {
		delete(m.buckets, resource)
		return
	}

	now := m.nowFunc()
	if b, ok := m.buckets[resource]; ok {
		b.refill(now)
		b.capacity = capacity
		b.window = window
		if b.tokens > float64(capacity) {
			b.tokens = float64(capacity)
		}
		return
	}
	m.buckets[resource] = &bucket{
		capacity: capacity,
		tokens:   float64(capacity),
		window:   window,
		updated:  now,
	}
}

// GetCapacity returns the current capacity info for a resource.
func (m *MemoryLimiter) GetCapacity(resource string) *Capacity {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[resource]
	if !ok {
		return nil
	}
	b.refill(m.nowFunc())
	return &Capacity{
		Resource:  resource,
		Available: int(b.tokens),
		Total:     b.capacity,
		Window:    b.window,
		Reduced:   b.reduced,
		LastCause: b.lastCause,
	}
}

// TryAcquire takes a token if one is available.
func (m *MemoryLimiter) TryAcquire(resource string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.take(resource)
	return ok
}

// take consumes a token or reports how long to wait. Caller holds m.mu.
func (m *MemoryLimiter) take(resource string) (time.Duration, bool) {
	if m.closed {
		return 0, false
	}
	b, ok := m.buckets[resource]
	if !ok {
		return 0, false
	}
	b.refill(m.nowFunc())
	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	return b.wait(), false
}

// Acquire blocks until a token is available for the resource.
func (m *MemoryLimiter) Acquire(ctx context.Context, resource string) error {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return ErrClosed
		}
		if _, ok := m.buckets[resource]; !ok {
			m.mu.Unlock()
			return ErrResourceUnknown
		}
		wait, ok := m.take(resource)
		m.mu.Unlock()
		if ok {
			return nil
		}

		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-m.done:
			timer.Stop()
			return ErrClosed
		case <-timer.C:
		}
	}
}

// Reduce keeps three quarters of the resource's capacity, never below one.
func (m *MemoryLimiter) Reduce(resource string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[resource]
	if !ok {
		return
	}
	b.refill(m.nowFunc())
	capacity := int(float64(b.capacity) * reduceFactor)
	if capacity < 1 {
		capacity = 1
	}
	b.capacity = capacity
	if b.tokens > float64(capacity) {
		b.tokens = float64(capacity)
	}
	b.reduced++
	b.lastCause = reason
}

// Close shuts down the limiter and wakes blocked Acquire calls.
func (m *MemoryLimiter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true
	close(m.done)
	return nil
}

var _ RateLimiter = (*MemoryLimiter)(nil)
