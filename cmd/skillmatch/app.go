package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vinayprograms/skillmatch/config"
	"github.com/vinayprograms/skillmatch/credentials"
	"github.com/vinayprograms/skillmatch/embedding"
	"github.com/vinayprograms/skillmatch/index"
	"github.com/vinayprograms/skillmatch/logging"
	"github.com/vinayprograms/skillmatch/matcher"
	"github.com/vinayprograms/skillmatch/pgstore"
	"github.com/vinayprograms/skillmatch/ratelimit"
	"github.com/vinayprograms/skillmatch/search"
	"github.com/vinayprograms/skillmatch/store"
)

// app holds the components one command needs. Fields are opened lazily by
// the need* methods and released by close.
type app struct {
	cfg    *config.Config
	logger *logging.Logger

	store     *store.Store
	index     *index.Index
	pg        *pgstore.Store
	generator *embedding.Generator
	limiter   *ratelimit.MemoryLimiter
}

func newApp(g *globalFlags) (*app, error) {
	cfg := config.DefaultConfig()
	path := g.configPath
	if path == "" {
		if _, err := os.Stat("skillmatch.toml"); err == nil {
			path = "skillmatch.toml"
		}
	}
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	logger := logging.New()
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if g.verbose {
		level = logging.LevelDebug
	}
	logger.SetLevel(level)

	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) needStore() (*store.Store, error) {
	if a.store == nil {
		s, err := store.Open(a.cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		a.store = s
	}
	return a.store, nil
}

// needIndex opens the keyword index and fills it from the store when it is
// empty, which is always the case for a memory-only index.
func (a *app) needIndex(ctx context.Context) (*index.Index, error) {
	if a.index != nil {
		return a.index, nil
	}
	idx, err := index.Open(a.cfg.Index.Path)
	if err != nil {
		return nil, err
	}
	a.index = idx

	if n, err := idx.Count(); err != nil || n > 0 {
		return idx, err
	}
	s, err := a.needStore()
	if err != nil {
		return nil, err
	}
	comps, err := s.ListCompetencies(ctx)
	if err != nil {
		return nil, err
	}
	if len(comps) > 0 {
		if err := idx.IndexAll(comps); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// needPostgres opens the pgvector store when a DSN is configured; nil otherwise.
func (a *app) needPostgres(ctx context.Context) (*pgstore.Store, error) {
	if a.cfg.Storage.PostgresDSN == "" {
		return nil, nil
	}
	if a.pg == nil {
		pg, err := pgstore.Open(ctx, a.cfg.Storage.PostgresDSN, a.cfg.Embedding.Dimension)
		if err != nil {
			return nil, err
		}
		a.pg = pg
	}
	return a.pg, nil
}

// needGenerator builds the embedding generator, throttled when a request
// rate is configured.
func (a *app) needGenerator(ctx context.Context) (*embedding.Generator, error) {
	if a.generator != nil {
		return a.generator, nil
	}
	creds, credPath, err := credentials.Load()
	if err != nil {
		return nil, err
	}
	if credPath != "" {
		a.logger.Debug("credentials loaded", map[string]interface{}{"path": credPath})
	}

	ec := a.cfg.Embedding
	provider, err := embedding.New(ctx, ec, creds.GetAPIKey(ec.Provider))
	if err != nil {
		return nil, err
	}
	if rpm := a.cfg.Backfill.RequestsPerMinute; rpm > 0 {
		a.limiter = ratelimit.NewMemoryLimiter()
		a.limiter.SetCapacity(provider.Name(), rpm, time.Minute)
		provider = embedding.NewThrottled(provider, a.limiter, "")
	}

	a.generator = embedding.NewGenerator(provider, ec.Dimension,
		embedding.WithTimeout(ec.Timeout),
		embedding.WithLogger(a.logger.WithComponent("embedding")))
	return a.generator, nil
}

func (a *app) matchDefaults() matcher.Options {
	return matcher.Options{
		MinPercentage:       a.cfg.Matching.MinMatchPercentage,
		SimilarityThreshold: a.cfg.Matching.SimilarityThreshold,
	}
}

// searchService wires whatever is available. A missing provider only
// disables semantic search.
func (a *app) searchService(ctx context.Context, withGenerator bool) (*search.Service, error) {
	s, err := a.needStore()
	if err != nil {
		return nil, err
	}
	opts := []search.Option{
		search.WithMatchDefaults(a.matchDefaults()),
		search.WithLogger(a.logger.WithComponent("search")),
	}

	idx, err := a.needIndex(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, search.WithIndex(idx))

	pg, err := a.needPostgres(ctx)
	if err != nil {
		return nil, err
	}
	if pg != nil {
		opts = append(opts, search.WithVectorIndex(pg))
	}

	if withGenerator {
		gen, err := a.needGenerator(ctx)
		if err != nil {
			a.logger.Warn("semantic search disabled", map[string]interface{}{"error": err.Error()})
		} else {
			opts = append(opts, search.WithGenerator(gen))
		}
	}
	return search.New(s, opts...), nil
}

func (a *app) close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close index: %v\n", err)
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}
