// Package ratelimit throttles calls to embedding providers.
//
// Provider rate limits are a caller concern: the embedding generator issues
// one call per request and never waits on its own. Batch callers such as the
// backfill share a MemoryLimiter so concurrent workers stay under the
// provider's quota:
//
//	limiter := ratelimit.NewMemoryLimiter()
//	limiter.SetCapacity("openai", 3000, time.Minute)
//
//	if err := limiter.Acquire(ctx, "openai"); err != nil {
//	    return err // context ended or limiter closed
//	}
//
// # Algorithm
//
// Token bucket with continuous refill: capacity tokens per window, one token
// per Acquire. Reduce shrinks a bucket by a quarter, which callers use after
// the provider answers 429.
package ratelimit
