package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter() (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := NewMemoryLimiter()
	limiter.nowFunc = clock.Now
	return limiter, clock
}

func TestMemoryLimiter_SetCapacity(t *testing.T) {
	limiter := NewMemoryLimiter()
	defer limiter.Close()

	limiter.SetCapacity("openai", 10, time.Minute)

	cap := limiter.GetCapacity("openai")
	if cap == nil {
		t.Fatal("expected capacity, got nil")
	}
	if cap.Total != 10 {
		t.Errorf("expected capacity 10, got %d", cap.Total)
	}
	if cap.Available != 10 {
		t.Errorf("expected available 10, got %d", cap.Available)
	}
	if cap.Window != time.Minute {
		t.Errorf("expected window 1m, got %v", cap.Window)
	}
}

func TestMemoryLimiter_TryAcquire(t *testing.T) {
	limiter, _ := newTestLimiter()
	defer limiter.Close()

	limiter.SetCapacity("openai", 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.TryAcquire("openai") {
			t.Errorf("expected TryAcquire to succeed on attempt %d", i+1)
		}
	}

	if limiter.TryAcquire("openai") {
		t.Error("expected TryAcquire to fail after exhausting capacity")
	}

	if cap := limiter.GetCapacity("openai"); cap.Available != 0 {
		t.Errorf("expected available 0, got %d", cap.Available)
	}
}

func TestMemoryLimiter_Refill(t *testing.T) {
	limiter, clock := newTestLimiter()
	defer limiter.Close()

	limiter.SetCapacity("openai", 60, time.Minute)
	for limiter.TryAcquire("openai") {
	}

	clock.Advance(10 * time.Second)
	if cap := limiter.GetCapacity("openai"); cap.Available != 10 {
		t.Errorf("expected 10 tokens after 10s, got %d", cap.Available)
	}

	clock.Advance(time.Hour)
	if cap := limiter.GetCapacity("openai"); cap.Available != 60 {
		t.Errorf("expected refill to stop at capacity, got %d", cap.Available)
	}
}

func TestMemoryLimiter_Acquire(t *testing.T) {
	limiter := NewMemoryLimiter()
	defer limiter.Close()

	limiter.SetCapacity("openai", 1, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := limiter.Acquire(ctx, "openai"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	start := time.Now()
	if err := limiter.Acquire(ctx, "openai"); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("expected second acquire to wait for refill, took %v", elapsed)
	}
}

func TestMemoryLimiter_Acquire_ContextCanceled(t *testing.T) {
	limiter, _ := newTestLimiter()
	defer limiter.Close()

	limiter.SetCapacity("openai", 1, time.Hour)
	limiter.TryAcquire("openai")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Acquire(ctx, "openai"); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestMemoryLimiter_UnknownResource(t *testing.T) {
	limiter := NewMemoryLimiter()
	defer limiter.Close()

	if err := limiter.Acquire(context.Background(), "nope"); err != ErrResourceUnknown {
		t.Errorf("expected ErrResourceUnknown, got %v", err)
	}
	if limiter.TryAcquire("nope") {
		t.Error("expected TryAcquire to fail for unknown resource")
	}
	if limiter.GetCapacity("nope") != nil {
		t.Error("expected nil capacity for unknown resource")
	}
}

func TestMemoryLimiter_Reduce(t *testing.T) {
	limiter, _ := newTestLimiter()
	defer limiter.Close()

	limiter.SetCapacity("openai", 100, time.Minute)
	limiter.Reduce("openai", "429 from provider")

	cap := limiter.GetCapacity("openai")
	if cap.Total != 75 {
		t.Errorf("expected capacity 75, got %d", cap.Total)
	}
	if cap.Available != 75 {
		t.Errorf("expected available clamped to 75, got %d", cap.Available)
	}
	if cap.Reduced != 1 || cap.LastCause != "429 from provider" {
		t.Errorf("unexpected reduce bookkeeping: %+v", cap)
	}

	// Unknown resources are ignored.
	limiter.Reduce("nope", "x")
}

func TestMemoryLimiter_Reduce_MinCapacity(t *testing.T) {
	limiter, _ := newTestLimiter()
	defer limiter.Close()

	limiter.SetCapacity("openai", 1, time.Minute)
	for i := 0; i < 5; i++ {
		limiter.Reduce("openai", "429")
	}
	if cap := limiter.GetCapacity("openai"); cap.Total != 1 {
		t.Errorf("expected capacity floor of 1, got %d", cap.Total)
	}
}

func TestMemoryLimiter_SetCapacity_InvalidValues(t *testing.T) {
	limiter := NewMemoryLimiter()
	defer limiter.Close()

	limiter.SetCapacity("openai", 10, time.Minute)

	tests := []struct {
		name     string
		capacity int
		window   time.Duration
	}{
		{"zero capacity", 0, time.Minute},
		{"negative capacity", -1, time.Minute},
		{"zero window", 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter.SetCapacity("openai", 10, time.Minute)
			limiter.SetCapacity("openai", tt.capacity, tt.window)
			if limiter.GetCapacity("openai") != nil {
				t.Error("expected resource to be removed")
			}
		})
	}
}

func TestMemoryLimiter_SetCapacity_UpdateExisting(t *testing.T) {
	limiter, _ := newTestLimiter()
	defer limiter.Close()

	limiter.SetCapacity("openai", 10, time.Minute)
	limiter.SetCapacity("openai", 4, time.Second)

	cap := limiter.GetCapacity("openai")
	if cap.Total != 4 || cap.Available != 4 || cap.Window != time.Second {
		t.Errorf("unexpected capacity after update: %+v", cap)
	}
}

func TestMemoryLimiter_Close(t *testing.T) {
	limiter := NewMemoryLimiter()
	limiter.SetCapacity("openai", 1, time.Hour)
	limiter.TryAcquire("openai")

	done := make(chan error, 1)
	go func() {
		done <- limiter.Acquire(context.Background(), "openai")
	}()

	time.Sleep(10 * time.Millisecond)
	if err := limiter.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-done:
		if err != ErrClosed {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after Close")
	}

	if err := limiter.Close(); err != ErrClosed {
		t.Errorf("expected ErrClosed on second close, got %v", err)
	}
	if limiter.TryAcquire("openai") {
		t.Error("expected TryAcquire to fail after close")
	}
}

func TestMemoryLimiter_ConcurrentAccess(t *testing.T) {
	limiter, _ := newTestLimiter()
	defer limiter.Close()

	limiter.SetCapacity("openai", 50, time.Hour)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.TryAcquire("openai") {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != 50 {
		t.Errorf("expected exactly 50 acquisitions, got %d", acquired)
	}
}
