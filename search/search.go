// Package search composes storage, embeddings, the keyword index and the
// matcher into the operations callers use: finding similar competencies,
// searching competencies by text, and matching courses or people against a
// selected competency set.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/embedding"
	"github.com/vinayprograms/skillmatch/errors"
	"github.com/vinayprograms/skillmatch/index"
	"github.com/vinayprograms/skillmatch/logging"
	"github.com/vinayprograms/skillmatch/matcher"
	"github.com/vinayprograms/skillmatch/pgstore"
	"github.com/vinayprograms/skillmatch/similarity"
)

// Store is the read side of the competency storage.
type Store interface {
	GetCompetency(ctx context.Context, id string) (*competency.Competency, error)
	ListCompetencies(ctx context.Context) ([]*competency.Competency, error)
	GetEmbedding(ctx context.Context, competencyID string) (*competency.Embedding, error)
	Vectors(ctx context.Context) (map[string][]float32, error)
	ListCandidates(ctx context.Context, kind competency.Kind) ([]competency.Candidate, error)
}

// VectorIndex answers nearest-neighbour queries without loading every vector,
// such as the pgvector store.
type VectorIndex interface {
	NearestNeighbours(ctx context.Context, query []float32, threshold float64, limit int) ([]pgstore.Neighbour, error)
}

// Mode selects how Search interprets its query.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeKeyword  Mode = "keyword"
	ModeHybrid   Mode = "hybrid" // semantic, falling back to keyword
)

// ParseMode parses a mode name; empty means hybrid.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeHybrid, nil
	case ModeSemantic, ModeKeyword, ModeHybrid:
		return m, nil
	default:
		return "", errors.InvalidInput("unknown search mode: " + s)
	}
}

// Hit is one competency found by Similar or Search.
type Hit struct {
	Competency *competency.Competency `json:"competency"`
	Score      float64                `json:"score"`
	Mode       Mode                   `json:"mode"` // how the hit was found
}

// Options tunes Similar and Search.
type Options struct {
	Mode      Mode
	Category  competency.Category // restricts hits; empty means all
	Threshold *float64            // minimum similarity for semantic hits; nil means the configured one
	Limit     int                 // zero means no limit for semantic, index default for keyword
}

// Service runs searches and matches. Generator and index are optional; the
// operations that need a missing one fail with NOT_CONFIGURED.
type Service struct {
	store     Store
	generator *embedding.Generator
	index     *index.Index
	vectors   VectorIndex
	defaults  matcher.Options
	logger    *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator enables semantic search.
func WithGenerator(g *embedding.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithIndex enables keyword search.
func WithIndex(idx *index.Index) Option {
	return func(s *Service) {
		s.index = idx
	}
}

// WithVectorIndex pushes nearest-neighbour ranking to v instead of ranking
// stored vectors in process.
func WithVectorIndex(v VectorIndex) Option {
	return func(s *Service) {
		s.vectors = v
	}
}

// WithMatchDefaults sets the options used for match fields left zero.
func WithMatchDefaults(o matcher.Options) Option {
	return func(s *Service) {
		s.defaults = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		defaults: matcher.DefaultOptions(),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Similar ranks other competencies by similarity to the stored embedding of
// id. The competency itself is never part of the result. A stale embedding is
// still used; it is reported in the log.
func (s *Service) Similar(ctx context.Context, id string, opts Options) ([]Hit, error) {
	start := time.Now()
	c, err := s.store.GetCompetency(ctx, id)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetEmbedding(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "competency has no embedding", errors.WithMetadata("competency", id))
	}
	if e.StaleFor(c) {
		s.logger.Warn("stale_embedding", map[string]interface{}{"competency": id})
	}

	limit := rankLimit(opts)
	if limit > 0 {
		limit++ // room for the competency itself
	}
	scored, err := s.rank(ctx, e.Vector, s.threshold(opts), limit)
	if err != nil {
		return nil, err
	}

	kept := scored[:0]
	for _, sc := range scored {
		if sc.ID != id {
			kept = append(kept, sc)
		}
	}
	hits, err := s.hydrate(ctx, kept, ModeSemantic, opts)
	if err != nil {
		return nil, err
	}
	s.logger.SearchExecuted("similar", len(hits), time.Since(start))
	return hits, nil
}

// Search finds competencies matching free text.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.InvalidInput("search query is empty")
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeHybrid
	}

	start := time.Now()
	var (
		hits []Hit
		err  error
	)
	switch mode {
	case ModeSemantic:
		hits, err = s.semantic(ctx, query, opts)
	case ModeKeyword:
		hits, err = s.keyword(ctx, query, opts)
	case ModeHybrid:
		hits, err = s.semantic(ctx, query, opts)
		if err != nil && fallsBack(err) && s.index != nil {
			s.logger.SearchFallback(err)
			hits, err = s.keyword(ctx, query, opts)
		} else if err == nil && len(hits) == 0 && s.index != nil {
			hits, err = s.keyword(ctx, query, opts)
		}
	default:
		return nil, errors.InvalidInput("unknown search mode: " + string(mode))
	}
	if err != nil {
		return nil, err
	}
	s.logger.SearchExecuted(string(mode), len(hits), time.Since(start))
	return hits, nil
}

// fallsBack reports errors after which keyword search is a sensible answer.
func fallsBack(err error) bool {
	switch errors.Code(err) {
	case errors.ErrCodeProviderError, errors.ErrCodeNotConfigured, errors.ErrCodeTimeout:
		return true
	}
	return false
}

func (s *Service) semantic(ctx context.Context, query string, opts Options) ([]Hit, error) {
	if s.generator == nil {
		return nil, errors.NotConfigured("semantic search needs an embedding provider")
	}
	vec, err := s.generator.Generate(ctx, query)
	if err != nil {
		return nil, err
	}
	scored, err := s.rank(ctx, vec, s.threshold(opts), rankLimit(opts))
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, scored, ModeSemantic, opts)
}

func (s *Service) keyword(ctx context.Context, query string, opts Options) ([]Hit, error) {
	if s.index == nil {
		return nil, errors.NotConfigured("keyword search needs an index")
	}
	found, err := s.index.Search(query, opts.Category, opts.Limit)
	if err != nil {
		return nil, err
	}
	scored := make([]similarity.Scored, len(found))
	for i, h := range found {
		scored[i] = similarity.Scored{ID: h.ID, Similarity: h.Score}
	}
	return s.hydrate(ctx, scored, ModeKeyword, Options{Limit: opts.Limit})
}

// rank orders stored vectors by similarity to target.
func (s *Service) rank(ctx context.Context, target []float32, threshold float64, limit int) ([]similarity.Scored, error) {
	if s.vectors != nil {
		neighbours, err := s.vectors.NearestNeighbours(ctx, target, threshold, limit)
		if err != nil {
			return nil, err
		}
		out := make([]similarity.Scored, len(neighbours))
		for i, n := range neighbours {
			out[i] = similarity.Scored{ID: n.CompetencyID, Similarity: n.Similarity}
		}
		return out, nil
	}

	comps, err := s.store.ListCompetencies(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Vectors(ctx)
	if err != nil {
		return nil, err
	}
	// Candidates in competency order so ties rank by name.
	candidates := make([]similarity.Candidate, 0, len(stored))
	for _, c := range comps {
		if v, ok := stored[c.ID]; ok {
			candidates = append(candidates, similarity.Candidate{ID: c.ID, Vector: v})
		}
	}
	scored, err := similarity.Rank(target, candidates, threshold)
	if err != nil {
		return nil, err
	}
	return similarity.TopK(scored, limit), nil
}

// hydrate attaches competencies to scored ids, applying the category filter
// and limit. Ids no longer in the store are dropped.
func (s *Service) hydrate(ctx context.Context, scored []similarity.Scored, mode Mode, opts Options) ([]Hit, error) {
	comps, err := s.store.ListCompetencies(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*competency.Competency, len(comps))
	for _, c := range comps {
		byID[c.ID] = c
	}

	hits := make([]Hit, 0, len(scored))
	for _, sc := range scored {
		c, ok := byID[sc.ID]
		if !ok {
			continue
		}
		if opts.Category != "" && c.Category != opts.Category {
			continue
		}
		hits = append(hits, Hit{Competency: c, Score: sc.Similarity, Mode: mode})
		if opts.Limit > 0 && len(hits) == opts.Limit {
			break
		}
	}
	return hits, nil
}

// rankLimit is the limit applied before hydration. A category filter runs
// after ranking, so it needs the full ranking.
func rankLimit(opts Options) int {
	if opts.Category != "" {
		return 0
	}
	return opts.Limit
}

func (s *Service) threshold(opts Options) float64 {
	if opts.Threshold != nil {
		return *opts.Threshold
	}
	return s.defaults.SimilarityThreshold
}

// MatchCandidates scores stored courses or people by exact competency
// overlap with selected. opts is taken as given since zero is a valid cutoff
// and a valid threshold; callers wanting the configured values start from
// Defaults.
func (s *Service) MatchCandidates(ctx context.Context, kind competency.Kind, selected []string, opts matcher.Options) ([]matcher.Result, error) {
	start := time.Now()
	if err := s.checkSelection(ctx, selected); err != nil {
		return nil, err
	}
	candidates, err := s.store.ListCandidates(ctx, kind)
	if err != nil {
		return nil, err
	}
	results, err := matcher.Match(selected, candidates, opts)
	if err != nil {
		return nil, err
	}
	s.logger.MatchExecuted(string(kind), len(selected), len(candidates), len(results), time.Since(start))
	return results, nil
}

// MatchCandidatesSemantic is MatchCandidates where a candidate's competency
// also covers selected competencies it is similar enough to.
func (s *Service) MatchCandidatesSemantic(ctx context.Context, kind competency.Kind, selected []string, opts matcher.Options) ([]matcher.Result, error) {
	start := time.Now()
	if err := s.checkSelection(ctx, selected); err != nil {
		return nil, err
	}
	candidates, err := s.store.ListCandidates(ctx, kind)
	if err != nil {
		return nil, err
	}
	vectors, err := s.store.Vectors(ctx)
	if err != nil {
		return nil, err
	}
	results, err := matcher.MatchSemantic(selected, candidates, vectors, opts)
	if err != nil {
		return nil, err
	}
	s.logger.MatchExecuted(string(kind), len(selected), len(candidates), len(results), time.Since(start))
	return results, nil
}

// Defaults returns the configured match options.
func (s *Service) Defaults() matcher.Options {
	return s.defaults
}

// checkSelection rejects an empty selection before any storage access and
// unknown competency ids with NOT_FOUND.
func (s *Service) checkSelection(ctx context.Context, selected []string) error {
	nonEmpty := false
	for _, id := range selected {
		if id == "" {
			continue
		}
		nonEmpty = true
		if _, err := s.store.GetCompetency(ctx, id); err != nil {
			return err
		}
	}
	if !nonEmpty {
		return errors.EmptySelection()
	}
	return nil
}
