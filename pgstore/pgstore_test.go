package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/errors"
)

func TestNew_RejectsDimension(t *testing.T) {
	if _, err := New(nil, 0); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestOpen_RequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), "", 3); !errors.Is(err, errors.ErrCodeNotConfigured) {
		t.Errorf("expected NOT_CONFIGURED, got %v", err)
	}
}

func TestDimensionChecksBeforeQuery(t *testing.T) {
	s := &Store{dimension: 3}
	ctx := context.Background()

	err := s.Upsert(ctx, &competency.Embedding{CompetencyID: "a", Vector: []float32{1, 2}})
	if !errors.Is(err, errors.ErrCodeDimensionMismatch) {
		t.Errorf("Upsert: expected DIMENSION_MISMATCH, got %v", err)
	}
	if _, err := s.NearestNeighbours(ctx, []float32{1}, 0.5, 5); !errors.Is(err, errors.ErrCodeDimensionMismatch) {
		t.Errorf("NearestNeighbours: expected DIMENSION_MISMATCH, got %v", err)
	}
	if _, err := s.NearestNeighbours(ctx, []float32{1, 0, 0}, 1.5, 5); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("NearestNeighbours: expected INVALID_INPUT for threshold, got %v", err)
	}
}

// openTestStore connects to the database named by SKILLMATCH_PG_DSN.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SKILLMATCH_PG_DSN")
	if dsn == "" {
		t.Skip("SKILLMATCH_PG_DSN not set")
	}
	s, err := Open(context.Background(), dsn, 3)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_UpsertAndNeighbours(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	prefix := uuid.NewString()
	same := prefix + "-same"
	near := prefix + "-near"
	opposite := prefix + "-opposite"
	t.Cleanup(func() {
		for _, id := range []string{same, near, opposite} {
			s.Delete(context.Background(), id)
		}
	})

	for id, vec := range map[string][]float32{
		same:     {1, 0, 0},
		near:     {0.9, 0.1, 0},
		opposite: {-1, 0, 0},
	} {
		e := &competency.Embedding{CompetencyID: id, Vector: vec, Model: "test", Fingerprint: id}
		if err := s.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}

	got, err := s.Get(ctx, near)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Vector) != 3 || got.Model != "test" {
		t.Errorf("unexpected embedding %+v", got)
	}

	neighbours, err := s.NearestNeighbours(ctx, []float32{1, 0, 0}, 0.75, 0)
	if err != nil {
		t.Fatal(err)
	}
	var ours []Neighbour
	for _, n := range neighbours {
		if n.CompetencyID == same || n.CompetencyID == near || n.CompetencyID == opposite {
			ours = append(ours, n)
		}
	}
	if len(ours) != 2 || ours[0].CompetencyID != same || ours[1].CompetencyID != near {
		t.Fatalf("unexpected neighbours %+v", ours)
	}
	if ours[0].Similarity < 0.999 {
		t.Errorf("self similarity = %f, want 1", ours[0].Similarity)
	}
}

func TestStore_NeighboursZeroVector(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	zero := uuid.NewString() + "-zero"
	t.Cleanup(func() { s.Delete(context.Background(), zero) })
	e := &competency.Embedding{CompetencyID: zero, Vector: []float32{0, 0, 0}, Model: "test", Fingerprint: zero}
	if err := s.Upsert(ctx, e); err != nil {
		t.Fatal(err)
	}

	find := func(threshold float64) (Neighbour, bool) {
		t.Helper()
		neighbours, err := s.NearestNeighbours(ctx, []float32{1, 0, 0}, threshold, 0)
		if err != nil {
			t.Fatal(err)
		}
		for _, n := range neighbours {
			if n.CompetencyID == zero {
				return n, true
			}
		}
		return Neighbour{}, false
	}

	if _, ok := find(0.75); ok {
		t.Error("zero vector must not pass a positive threshold")
	}
	n, ok := find(0)
	if !ok {
		t.Fatal("zero vector should be returned at threshold 0")
	}
	if n.Similarity != 0 {
		t.Errorf("zero vector similarity = %v, want 0", n.Similarity)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), uuid.NewString()); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}
