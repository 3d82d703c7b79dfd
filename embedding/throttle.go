package embedding

import (
	"context"

	"github.com/vinayprograms/skillmatch/ratelimit"
)

// Throttled waits on a rate limiter before each call to the wrapped provider.
// A rate-limited response shrinks the limiter's capacity for the resource.
type Throttled struct {
	Provider
	limiter  ratelimit.RateLimiter
	resource string
}

// NewThrottled wraps p. The resource defaults to the provider name.
func NewThrottled(p Provider, limiter ratelimit.RateLimiter, resource string) *Throttled {
	if resource == "" {
		resource = p.Name()
	}
	return &Throttled{Provider: p, limiter: limiter, resource: resource}
}

// Embed acquires one token, then calls the provider.
func (t *Throttled) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Acquire(ctx, t.resource); err != nil {
		return nil, err
	}
	vecs, err := t.Provider.Embed(ctx, texts)
	if err != nil && isRateLimited(err) {
		t.limiter.Reduce(t.resource, err.Error())
	}
	return vecs, err
}
