package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// MockEmbedder is a deterministic offline provider. Each word of the input is
// hashed into one signed bucket, so texts that share words get similar
// vectors. Tests can pin vectors or failures for specific texts.
type MockEmbedder struct {
	dimension int

	mu        sync.Mutex
	calls     int
	vectors   map[string][]float32
	failures  map[string]error
	lastBatch []string
}

// NewMockEmbedder creates a mock embedder.
func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{
		dimension: dimension,
		vectors:   make(map[string][]float32),
		failures:  make(map[string]error),
	}
}

// SetVector pins the vector returned for text.
func (e *MockEmbedder) SetVector(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = vec
}

// FailOn makes any batch containing text fail with err.
func (e *MockEmbedder) FailOn(text string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[text] = err
}

// Calls returns the number of Embed calls made.
func (e *MockEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// LastBatch returns the texts of the most recent Embed call.
func (e *MockEmbedder) LastBatch() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lastBatch...)
}

// Embed returns deterministic embeddings.
func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.lastBatch = append([]string(nil), texts...)

	results := make([][]float32, len(texts))
	for i, text := range texts {
		if err, ok := e.failures[text]; ok {
			return nil, err
		}
		if vec, ok := e.vectors[text]; ok {
			results[i] = append([]float32(nil), vec...)
			continue
		}
		results[i] = hashVector(text, e.dimension)
	}
	return results, nil
}

// Dimension returns the embedding dimension.
func (e *MockEmbedder) Dimension() int { return e.dimension }

// Model returns "mock-bow".
func (e *MockEmbedder) Model() string { return "mock-bow" }

// Name returns "mock".
func (e *MockEmbedder) Name() string { return "mock" }

// hashVector builds a unit-length bag-of-words vector.
func hashVector(text string, dimension int) []float32 {
	vec := make([]float32, dimension)
	if dimension == 0 {
		return vec
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(dimension)] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
