// Package embedding turns competency names into fixed-length vectors.
//
// A Provider talks to one external embedding service. Generator wraps a
// Provider with the contract callers rely on: input is trimmed and must not be
// empty, every vector has the configured dimension, and provider failures
// surface as PROVIDER_ERROR with the cause attached. Generator never retries
// and never caches; both are caller policy.
package embedding

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/vinayprograms/skillmatch/errors"
	"github.com/vinayprograms/skillmatch/logging"
)

// Provider generates embeddings for a batch of texts.
type Provider interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the vector length the provider is configured for.
	Dimension() int

	// Model names the embedding model.
	Model() string

	// Name identifies the provider ("openai", "google", ...).
	Name() string
}

// Generator produces validated embeddings from a Provider.
type Generator struct {
	provider  Provider
	dimension int
	timeout   time.Duration
	logger    *logging.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTimeout bounds each provider call. Zero leaves the caller's context alone.
func WithTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.timeout = d
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *logging.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = l
	}
}

// NewGenerator creates a generator expecting vectors of the given dimension.
// A non-positive dimension takes the provider's own.
func NewGenerator(p Provider, dimension int, opts ...GeneratorOption) *Generator {
	if dimension <= 0 {
		dimension = p.Dimension()
	}
	g := &Generator{
		provider:  p,
		dimension: dimension,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dimension returns the vector length every generated embedding has.
func (g *Generator) Dimension() int {
	return g.dimension
}

// Model returns the provider's model name.
func (g *Generator) Model() string {
	return g.provider.Model()
}

// Provider returns the wrapped provider.
func (g *Generator) Provider() Provider {
	return g.provider
}

// Generate embeds a single text.
func (g *Generator) Generate(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// GenerateBatch embeds texts in one provider call and returns vectors in input
// order. Any invalid text fails the whole batch before the provider is called.
func (g *Generator) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.InvalidInput("no text to embed")
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = strings.TrimSpace(t)
		if inputs[i] == "" {
			return nil, errors.InvalidInput("text to embed is empty")
		}
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	vecs, err := g.provider.Embed(callCtx, inputs)
	if err != nil {
		return nil, g.classify(ctx, err)
	}
	if len(vecs) != len(inputs) {
		return nil, errors.ProviderError(g.provider.Name(), "provider returned wrong number of vectors", nil,
			errors.WithMetadata("model", g.provider.Model()))
	}
	for _, v := range vecs {
		if len(v) != g.dimension {
			return nil, errors.DimensionMismatch(g.dimension, len(v),
				errors.WithMetadata("provider", g.provider.Name()),
				errors.WithMetadata("model", g.provider.Model()))
		}
	}

	g.logger.Debug("embedded", map[string]interface{}{
		"provider": g.provider.Name(),
		"model":    g.provider.Model(),
		"texts":    len(inputs),
		"duration": time.Since(start).String(),
	})
	return vecs, nil
}

// classify maps a provider failure to a structured error. Cancellation of the
// caller's own context is reported as CANCELED, never as a provider fault.
func (g *Generator) classify(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return errors.Wrap(ctx.Err(), "embedding canceled")
	}

	opts := []errors.Option{errors.WithMetadata("model", g.provider.Model())}
	message := "embedding provider call failed"

	if stderrors.Is(err, context.DeadlineExceeded) {
		message = "embedding provider timed out"
		opts = append(opts, errors.WithMetadata("timeout", "true"))
	}
	if code := statusCode(err); code != 0 {
		opts = append(opts, errors.WithMetadata("status", itoa(code)))
	}
	switch {
	case isRateLimited(err):
		opts = append(opts,
			errors.WithCategory(errors.CategoryResource),
			errors.WithMetadata("rate_limited", "true"))
	case isUnauthorized(err):
		opts = append(opts, errors.WithRetryable(false))
	}
	return errors.ProviderError(g.provider.Name(), message, err, opts...)
}
