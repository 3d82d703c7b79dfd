package search

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/embedding"
	"github.com/vinayprograms/skillmatch/errors"
	"github.com/vinayprograms/skillmatch/index"
	"github.com/vinayprograms/skillmatch/matcher"
	"github.com/vinayprograms/skillmatch/pgstore"
	"github.com/vinayprograms/skillmatch/store"
)

type fixture struct {
	store *store.Store
	index *index.Index
	mock  *embedding.MockEmbedder
	gen   *embedding.Generator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "search.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	idx, err := index.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	comps := []struct {
		c   competency.Competency
		vec []float32
	}{
		{competency.Competency{ID: "go", Name: "Go", Category: competency.CategorySkill, Description: "systems language"}, []float32{1, 0, 0}},
		{competency.Competency{ID: "golang", Name: "Golang", Category: competency.CategoryTool, Description: "the go toolchain"}, []float32{0.9, 0.1, 0}},
		{competency.Competency{ID: "rust", Name: "Rust", Category: competency.CategorySkill}, []float32{0, 1, 0}},
		{competency.Competency{ID: "cooking", Name: "Cooking", Category: competency.CategoryAbility, Description: "pasta and bread"}, []float32{-1, 0, 0}},
	}
	for _, x := range comps {
		c := x.c
		if err := s.SaveCompetency(ctx, &c); err != nil {
			t.Fatal(err)
		}
		if err := idx.Index(&c); err != nil {
			t.Fatal(err)
		}
		e := &competency.Embedding{CompetencyID: c.ID, Vector: x.vec, Model: "mock-bow", Fingerprint: c.Fingerprint()}
		if err := s.SaveEmbedding(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	candidates := []competency.Candidate{
		{ID: "c-go", Name: "Go course", Kind: competency.KindCourse, Competencies: []string{"go", "rust"}},
		{ID: "c-tool", Name: "Toolchain course", Kind: competency.KindCourse, Competencies: []string{"golang"}},
		{ID: "c-cook", Name: "Cooking course", Kind: competency.KindCourse, Competencies: []string{"cooking"}},
		{ID: "p-ada", Name: "Ada", Kind: competency.KindPerson, Competencies: []string{"go"}},
	}
	for i := range candidates {
		if err := s.SaveCandidate(ctx, &candidates[i]); err != nil {
			t.Fatal(err)
		}
	}

	mock := embedding.NewMockEmbedder(3)
	return &fixture{store: s, index: idx, mock: mock, gen: embedding.NewGenerator(mock, 3)}
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Competency.ID
	}
	return out
}

func threshold(v float64) *float64 { return &v }

func TestSimilar(t *testing.T) {
	f := newFixture(t)
	svc := New(f.store)

	hits, err := svc.Similar(context.Background(), "go", Options{})
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if got := ids(hits); len(got) != 1 || got[0] != "golang" {
		t.Fatalf("Similar() = %v, want [golang]", got)
	}
	if hits[0].Score < 0.99 || hits[0].Mode != ModeSemantic {
		t.Errorf("unexpected hit %+v", hits[0])
	}

	// A lower threshold brings in the orthogonal vector (0.5), never the
	// competency itself.
	hits, err = svc.Similar(context.Background(), "go", Options{Threshold: threshold(0.4)})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(hits); len(got) != 2 || got[0] != "golang" || got[1] != "rust" {
		t.Errorf("Similar() = %v, want [golang rust]", got)
	}

	hits, _ = svc.Similar(context.Background(), "go", Options{Threshold: threshold(0.4), Limit: 1})
	if len(hits) != 1 {
		t.Errorf("limit not applied: %v", ids(hits))
	}

	hits, _ = svc.Similar(context.Background(), "go", Options{Threshold: threshold(0.4), Category: competency.CategorySkill})
	if got := ids(hits); len(got) != 1 || got[0] != "rust" {
		t.Errorf("category filter: %v", got)
	}
}

func TestSimilar_ZeroThreshold(t *testing.T) {
	f := newFixture(t)
	svc := New(f.store)

	// Zero is a real threshold: the opposite vector scores 0 and is kept.
	hits, err := svc.Similar(context.Background(), "go", Options{Threshold: threshold(0)})
	if err != nil {
		t.Fatal(err)
	}
	got := ids(hits)
	if len(got) != 3 || got[2] != "cooking" {
		t.Fatalf("Similar() = %v, want [golang rust cooking]", got)
	}
	if hits[2].Score != 0 {
		t.Errorf("opposite vector score = %g, want 0", hits[2].Score)
	}
}

func TestSimilar_Errors(t *testing.T) {
	f := newFixture(t)
	svc := New(f.store)
	ctx := context.Background()

	if _, err := svc.Similar(ctx, "unknown", Options{}); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}

	orphan := &competency.Competency{ID: "new", Name: "New", Category: competency.CategoryValue}
	f.store.SaveCompetency(ctx, orphan)
	if _, err := svc.Similar(ctx, "new", Options{}); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for missing embedding, got %v", err)
	}
}

func TestSearch_Semantic(t *testing.T) {
	f := newFixture(t)
	f.mock.SetVector("compiled languages", []float32{1, 0.05, 0})
	svc := New(f.store, WithGenerator(f.gen), WithIndex(f.index))

	hits, err := svc.Search(context.Background(), "  compiled languages ", Options{Mode: ModeSemantic})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := ids(hits); len(got) != 2 || got[0] != "go" || got[1] != "golang" {
		t.Errorf("Search() = %v, want [go golang]", got)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("hits not sorted: %+v", hits)
		}
	}
}

func TestSearch_Keyword(t *testing.T) {
	f := newFixture(t)
	svc := New(f.store, WithIndex(f.index))

	hits, err := svc.Search(context.Background(), "pasta", Options{Mode: ModeKeyword})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(hits); len(got) != 1 || got[0] != "cooking" {
		t.Errorf("Search() = %v, want [cooking]", got)
	}
	if hits[0].Mode != ModeKeyword {
		t.Errorf("Mode = %s", hits[0].Mode)
	}
}

func TestSearch_HybridFallsBackOnProviderError(t *testing.T) {
	f := newFixture(t)
	f.mock.FailOn("pasta", stderrors.New("503 service unavailable"))
	svc := New(f.store, WithGenerator(f.gen), WithIndex(f.index))

	hits, err := svc.Search(context.Background(), "pasta", Options{})
	if err != nil {
		t.Fatalf("hybrid search should fall back, got %v", err)
	}
	if got := ids(hits); len(got) != 1 || got[0] != "cooking" || hits[0].Mode != ModeKeyword {
		t.Errorf("unexpected hits %+v", hits)
	}

	// Semantic mode surfaces the provider error.
	_, err = svc.Search(context.Background(), "pasta", Options{Mode: ModeSemantic})
	if !errors.Is(err, errors.ErrCodeProviderError) {
		t.Errorf("expected PROVIDER_ERROR, got %v", err)
	}
}

func TestSearch_HybridWithoutProvider(t *testing.T) {
	f := newFixture(t)
	svc := New(f.store, WithIndex(f.index))

	hits, err := svc.Search(context.Background(), "rust", Options{Mode: ModeHybrid})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(hits); len(got) != 1 || got[0] != "rust" {
		t.Errorf("Search() = %v", got)
	}

	if _, err := svc.Search(context.Background(), "rust", Options{Mode: ModeSemantic}); !errors.Is(err, errors.ErrCodeNotConfigured) {
		t.Errorf("expected NOT_CONFIGURED, got %v", err)
	}
}

func TestSearch_InvalidInput(t *testing.T) {
	f := newFixture(t)
	svc := New(f.store, WithIndex(f.index))

	if _, err := svc.Search(context.Background(), "   ", Options{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for empty query, got %v", err)
	}
	if _, err := svc.Search(context.Background(), "go", Options{Mode: "fuzzy"}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for mode, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeHybrid, false},
		{"Semantic", ModeSemantic, false},
		{"keyword", ModeKeyword, false},
		{"fuzzy", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

type fakeVectors struct {
	neighbours []pgstore.Neighbour
	calls      int
}

func (f *fakeVectors) NearestNeighbours(ctx context.Context, query []float32, threshold float64, limit int) ([]pgstore.Neighbour, error) {
	f.calls++
	return f.neighbours, nil
}

func TestSimilar_VectorIndex(t *testing.T) {
	f := newFixture(t)
	vi := &fakeVectors{neighbours: []pgstore.Neighbour{
		{CompetencyID: "go", Similarity: 1},
		{CompetencyID: "cooking", Similarity: 0.9},
		{CompetencyID: "gone", Similarity: 0.8},
	}}
	svc := New(f.store, WithVectorIndex(vi))

	hits, err := svc.Similar(context.Background(), "go", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if vi.calls != 1 {
		t.Errorf("vector index not used")
	}
	// Self and ids unknown to the store are dropped.
	if got := ids(hits); len(got) != 1 || got[0] != "cooking" {
		t.Errorf("Similar() = %v", got)
	}
}

func TestMatchCandidates(t *testing.T) {
	f := newFixture(t)
	svc := New(f.store)
	ctx := context.Background()

	results, err := svc.MatchCandidates(ctx, competency.KindCourse, []string{"go", "rust"}, svc.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "c-go" || !results[0].Complete {
		t.Errorf("unexpected results %+v", results)
	}

	results, _ = svc.MatchCandidates(ctx, competency.KindPerson, []string{"go", "rust"}, matcher.Options{MinPercentage: 50})
	if len(results) != 1 || results[0].ID != "p-ada" || results[0].MatchPercentage != 50 {
		t.Errorf("unexpected people results %+v", results)
	}
}

func TestMatchCandidates_Errors(t *testing.T) {
	f := newFixture(t)
	svc := New(f.store)
	ctx := context.Background()

	if _, err := svc.MatchCandidates(ctx, competency.KindCourse, nil, svc.Defaults()); !errors.Is(err, errors.ErrCodeEmptySelection) {
		t.Errorf("expected EMPTY_SELECTION, got %v", err)
	}
	if _, err := svc.MatchCandidates(ctx, competency.KindCourse, []string{"go", "nope"}, svc.Defaults()); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestMatchCandidatesSemantic(t *testing.T) {
	f := newFixture(t)
	svc := New(f.store)
	ctx := context.Background()

	// The toolchain course owns only "golang", which is close enough to "go".
	results, err := svc.MatchCandidatesSemantic(ctx, competency.KindCourse, []string{"go"}, svc.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]matcher.Result{}
	for _, r := range results {
		got[r.ID] = r
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %+v", results)
	}
	if r := got["c-tool"]; r.MatchPercentage != 100 || r.CoveredBy["go"] != "golang" {
		t.Errorf("unexpected semantic result %+v", r)
	}
	if _, ok := got["c-cook"]; ok {
		t.Error("opposite competency must not cover the selection")
	}
	// Exact ownership ranks ahead of similarity coverage at equal percentage.
	if results[0].ID != "c-go" {
		t.Errorf("expected exact match first, got %s", results[0].ID)
	}
}

func TestMatchCandidatesSemantic_ZeroThreshold(t *testing.T) {
	f := newFixture(t)
	svc := New(f.store)

	opts := svc.Defaults()
	opts.SimilarityThreshold = 0
	results, err := svc.MatchCandidatesSemantic(context.Background(), competency.KindCourse, []string{"go"}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("every course should cover the selection at threshold 0, got %+v", results)
	}
}
