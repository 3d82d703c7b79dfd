package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrClosed          = errors.New("limiter closed")
	ErrResourceUnknown = errors.New("unknown resource")
)

// RateLimiter throttles access to named resources.
type RateLimiter interface {
	// Acquire blocks until a token is available for the resource.
	// Returns the context error if ctx ends first, ErrResourceUnknown if the
	// resource has no configured capacity.
	Acquire(ctx context.Context, resource string) error

	// TryAcquire takes a token without blocking and reports success.
	TryAcquire(resource string) bool

	// SetCapacity configures capacity tokens per window for a resource.
	// A non-positive capacity or window removes the resource.
	SetCapacity(resource string, capacity int, window time.Duration)

	// Reduce lowers a resource's capacity after the provider pushed back.
	Reduce(resource string, reason string)

	// GetCapacity returns the current state of a resource, nil if unknown.
	GetCapacity(resource string) *Capacity

	// Close releases waiters; later calls fail with ErrClosed.
	Close() error
}

// Capacity describes the rate limit state of a resource.
type Capacity struct {
	Resource  string
	Available int
	Total     int
	Window    time.Duration
	Reduced   int    // how many times Reduce has been applied
	LastCause string // reason passed to the last Reduce
}
