// Package backfill generates embeddings for competencies that do not have
// one yet, and optionally for those whose stored vector was generated from an
// older name or by another model.
//
// A provider failure for one competency is logged and counted; the run moves
// on to the next one. Any other failure stops the run: a vector of the wrong
// dimension, storage errors and cancellation.
package backfill

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/embedding"
	"github.com/vinayprograms/skillmatch/errors"
	"github.com/vinayprograms/skillmatch/logging"
)

// Store is the embedding storage a backfill reads from and writes to.
type Store interface {
	ListMissingEmbeddings(ctx context.Context) ([]*competency.Competency, error)
	ListStaleEmbeddings(ctx context.Context, model string) ([]*competency.Competency, error)
	SaveEmbedding(ctx context.Context, e *competency.Embedding) error
}

// Mirror receives a copy of every generated embedding, such as a pgvector
// table kept alongside the primary store.
type Mirror interface {
	Upsert(ctx context.Context, e *competency.Embedding) error
}

// Options configures one run.
type Options struct {
	// IncludeStale regenerates embeddings whose fingerprint or model no
	// longer matches.
	IncludeStale bool

	// Concurrency bounds parallel provider calls. Values below 1 mean 1.
	Concurrency int
}

// Failure records a competency that could not be embedded.
type Failure struct {
	CompetencyID string `json:"competency_id"`
	Name         string `json:"name"`
	Error        string `json:"error"`
}

// Report summarises a run.
type Report struct {
	Total     int           `json:"total"`
	Generated int           `json:"generated"`
	Failed    int           `json:"failed"`
	Failures  []Failure     `json:"failures,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Runner performs backfills.
type Runner struct {
	store     Store
	generator *embedding.Generator
	mirror    Mirror
	logger    *logging.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithMirror copies every saved embedding to m.
func WithMirror(m Mirror) Option {
	return func(r *Runner) {
		r.mirror = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a Runner.
func New(store Store, generator *embedding.Generator, opts ...Option) *Runner {
	r := &Runner{
		store:     store,
		generator: generator,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pending lists the competencies a run with opts would embed, missing ones
// first.
func (r *Runner) Pending(ctx context.Context, opts Options) ([]*competency.Competency, error) {
	pending, err := r.store.ListMissingEmbeddings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list missing embeddings")
	}
	if !opts.IncludeStale {
		return pending, nil
	}
	stale, err := r.store.ListStaleEmbeddings(ctx, r.generator.Model())
	if err != nil {
		return nil, errors.Wrap(err, "list stale embeddings")
	}
	return append(pending, stale...), nil
}

// Run embeds every pending competency. The report is returned even when the
// run stops early; the error is then the reason it stopped.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	report := &Report{}

	pending, err := r.Pending(ctx, opts)
	if err != nil {
		return report, err
	}
	report.Total = len(pending)
	r.logger.BackfillStart(len(pending), opts.IncludeStale)

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, c := range pending {
		c := c
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			e, err := r.embed(gctx, c)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if !errors.Is(err, errors.ErrCodeProviderError) {
					return errors.Wrap(err, "embed competency "+c.ID, errors.WithMetadata("competency", c.ID))
				}
				r.logger.EmbeddingFailed(c.ID, err)
				mu.Lock()
				report.Failed++
				report.Failures = append(report.Failures, Failure{CompetencyID: c.ID, Name: c.Name, Error: err.Error()})
				mu.Unlock()
				return nil
			}

			if err := r.store.SaveEmbedding(gctx, e); err != nil {
				return errors.Wrap(err, "save embedding", errors.WithMetadata("competency", c.ID))
			}
			if r.mirror != nil {
				if err := r.mirror.Upsert(gctx, e); err != nil {
					return errors.Wrap(err, "mirror embedding", errors.WithMetadata("competency", c.ID))
				}
			}
			mu.Lock()
			report.Generated++
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil && ctx.Err() != nil {
		err = errors.Wrap(ctx.Err(), "backfill stopped")
	}

	report.Duration = time.Since(start)
	r.logger.BackfillComplete(report.Generated, report.Failed, report.Duration)
	return report, err
}

func (r *Runner) embed(ctx context.Context, c *competency.Competency) (*competency.Embedding, error) {
	start := time.Now()
	vec, err := r.generator.Generate(ctx, c.Name)
	if err != nil {
		return nil, err
	}
	r.logger.EmbeddingGenerated(c.ID, r.generator.Model(), len(vec), time.Since(start))
	return &competency.Embedding{
		CompetencyID: c.ID,
		Vector:       vec,
		Model:        r.generator.Model(),
		Fingerprint:  c.Fingerprint(),
		CreatedAt:    time.Now().UTC(),
	}, nil
}
