// Package similarity scores embedding vectors against each other.
//
// Scores live on a single [0, 1] scale: the raw cosine in [-1, 1] is
// remapped with (cos + 1) / 2, so 1 means identical direction and 0 means
// opposite direction. Thresholds elsewhere use the same scale.
package similarity

import (
	"math"
	"sort"

	"github.com/vinayprograms/skillmatch/errors"
)

// DefaultThreshold is the minimum similarity kept by Rank when callers have
// no better value.
const DefaultThreshold = 0.75

// Cosine returns the remapped cosine similarity of a and b.
// Vectors of unequal length fail with DIMENSION_MISMATCH. If either vector
// has zero magnitude the result is 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.DimensionMismatch(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return remap(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// remap moves a raw cosine onto [0, 1], clamping float rounding overshoot.
func remap(cos float64) float64 {
	s := (cos + 1) / 2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Candidate is one vector to score against a target.
type Candidate struct {
	ID     string
	Vector []float32
}

// Scored is a candidate id with its similarity to the target.
type Scored struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// Rank scores every candidate against target, drops those below threshold
// and returns the rest sorted by similarity, highest first. Ties keep the
// candidates' input order. Candidates without a vector are skipped; any
// dimension mismatch aborts the whole ranking.
func Rank(target []float32, candidates []Candidate, threshold float64) ([]Scored, error) {
	if threshold < 0 || threshold > 1 {
		return nil, errors.InvalidInput("similarity threshold must be within [0, 1]")
	}

	results := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) == 0 {
			continue
		}
		score, err := Cosine(target, c.Vector)
		if err != nil {
			return nil, errors.Wrap(err, "ranking candidate "+c.ID, errors.WithMetadata("candidate", c.ID))
		}
		if score < threshold {
			continue
		}
		results = append(results, Scored{ID: c.ID, Similarity: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	return results, nil
}

// TopK truncates a ranked slice to at most k entries. k <= 0 keeps everything.
func TopK(scored []Scored, k int) []Scored {
	if k <= 0 || len(scored) <= k {
		return scored
	}
	return scored[:k]
}
