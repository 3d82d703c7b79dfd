// Package matcher scores courses and people by how much of a selected
// competency set they cover.
package matcher

import (
	"math"
	"sort"

	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/errors"
	"github.com/vinayprograms/skillmatch/similarity"
)

// DefaultMinPercentage is the coverage a candidate needs to be listed.
const DefaultMinPercentage = 75

// Options configures a match.
type Options struct {
	// MinPercentage is the inclusive coverage cutoff in [0, 100].
	// Zero keeps every candidate with at least one matching competency.
	MinPercentage int

	// SimilarityThreshold is the similarity in [0, 1] at which a candidate's
	// competency counts as covering a selected one. Semantic matching only.
	SimilarityThreshold float64

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// DefaultOptions returns the options used when the caller has no policy.
func DefaultOptions() Options {
	return Options{
		MinPercentage:       DefaultMinPercentage,
		SimilarityThreshold: similarity.DefaultThreshold,
	}
}

func (o Options) validate() error {
	if o.MinPercentage < 0 || o.MinPercentage > 100 {
		return errors.InvalidInput("minimum match percentage must be within [0, 100]")
	}
	if o.SimilarityThreshold < 0 || o.SimilarityThreshold > 1 {
		return errors.InvalidInput("similarity threshold must be within [0, 1]")
	}
	if o.Limit < 0 {
		return errors.InvalidInput("limit must not be negative")
	}
	return nil
}

// Result is the derived match of one candidate. It is never persisted.
type Result struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Kind competency.Kind `json:"kind"`

	// MatchingCompetencies are the selected ids the candidate covers, in
	// selection order.
	MatchingCompetencies []string `json:"matching_competencies"`

	MatchedCount    int  `json:"matched_count"`
	SelectedCount   int  `json:"selected_count"`
	MatchPercentage int  `json:"match_percentage"`
	Complete        bool `json:"complete"`

	// Similarity is the mean similarity of the covered selections.
	// Set by semantic matching only.
	Similarity float64 `json:"similarity,omitempty"`

	// CoveredBy maps a selected id to the candidate competency that covered
	// it when that was not an exact id match. Semantic matching only.
	CoveredBy map[string]string `json:"covered_by,omitempty"`
}

// Match scores candidates by exact competency-id overlap with selected.
// Candidates below opts.MinPercentage, and candidates with no overlap at all,
// are left out. Results are ordered by match percentage, highest first, with
// ties in candidate order.
func Match(selected []string, candidates []competency.Candidate, opts Options) ([]Result, error) {
	sel, err := prepare(selected, opts)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, c := range candidates {
		owned := ownSet(c)

		var matching []string
		for _, id := range sel {
			if owned[id] {
				matching = append(matching, id)
			}
		}

		r, ok := score(c, matching, len(sel), opts.MinPercentage)
		if !ok {
			continue
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchPercentage > results[j].MatchPercentage
	})
	return limit(results, opts.Limit), nil
}

// MatchSemantic is Match with similarity-based coverage: a selected
// competency is covered when the candidate owns it, or owns a competency
// whose vector is at least opts.SimilarityThreshold similar to it. vectors
// maps competency ids to embeddings; ids without a vector can only be
// covered exactly. Ties on percentage are broken by mean similarity.
func MatchSemantic(selected []string, candidates []competency.Candidate, vectors map[string][]float32, opts Options) ([]Result, error) {
	sel, err := prepare(selected, opts)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, c := range candidates {
		owned := ownSet(c)

		var (
			matching  []string
			coveredBy map[string]string
			total     float64
		)
		for _, id := range sel {
			if owned[id] {
				matching = append(matching, id)
				total += 1
				continue
			}

			best, bestID, err := bestCover(vectors[id], c.Competencies, vectors)
			if err != nil {
				return nil, errors.Wrap(err, "semantic match for "+c.ID,
					errors.WithMetadata("candidate", c.ID), errors.WithMetadata("competency", id))
			}
			if bestID == "" || best < opts.SimilarityThreshold {
				continue
			}
			if coveredBy == nil {
				coveredBy = make(map[string]string)
			}
			coveredBy[id] = bestID
			matching = append(matching, id)
			total += best
		}

		r, ok := score(c, matching, len(sel), opts.MinPercentage)
		if !ok {
			continue
		}
		r.Similarity = total / float64(len(matching))
		r.CoveredBy = coveredBy
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].MatchPercentage != results[j].MatchPercentage {
			return results[i].MatchPercentage > results[j].MatchPercentage
		}
		return results[i].Similarity > results[j].Similarity
	})
	return limit(results, opts.Limit), nil
}

// bestCover finds the candidate competency most similar to target.
func bestCover(target []float32, owned []string, vectors map[string][]float32) (float64, string, error) {
	if len(target) == 0 {
		return 0, "", nil
	}
	var (
		best   float64
		bestID string
	)
	for _, id := range owned {
		v := vectors[id]
		if len(v) == 0 {
			continue
		}
		s, err := similarity.Cosine(target, v)
		if err != nil {
			return 0, "", err
		}
		if bestID == "" || s > best {
			best, bestID = s, id
		}
	}
	return best, bestID, nil
}

// prepare validates options and de-duplicates the selection, keeping order.
func prepare(selected []string, opts Options) ([]string, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(selected))
	sel := make([]string, 0, len(selected))
	for _, id := range selected {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		sel = append(sel, id)
	}
	if len(sel) == 0 {
		return nil, errors.EmptySelection()
	}
	return sel, nil
}

func ownSet(c competency.Candidate) map[string]bool {
	owned := make(map[string]bool, len(c.Competencies))
	for _, id := range c.Competencies {
		owned[id] = true
	}
	return owned
}

// Percentage returns round(matched / selected * 100), bounded to [0, 100].
func Percentage(matched, selected int) int {
	if selected <= 0 || matched <= 0 {
		return 0
	}
	if matched > selected {
		matched = selected
	}
	return int(math.Round(float64(matched) * 100 / float64(selected)))
}

func score(c competency.Candidate, matching []string, selected, minPercentage int) (Result, bool) {
	if len(matching) == 0 {
		return Result{}, false
	}
	pct := Percentage(len(matching), selected)
	if pct < minPercentage {
		return Result{}, false
	}
	return Result{
		ID:                   c.ID,
		Name:                 c.Name,
		Kind:                 c.Kind,
		MatchingCompetencies: matching,
		MatchedCount:         len(matching),
		SelectedCount:        selected,
		MatchPercentage:      pct,
		Complete:             len(matching) == selected,
	}, true
}

func limit(results []Result, n int) []Result {
	if n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}
