// Package index keeps a full-text index over competency names and
// descriptions. It serves keyword search on its own and as the fallback leg
// of hybrid search when no embedding provider is reachable.
package index

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/errors"
)

// DefaultLimit is used when Search is called without a limit.
const DefaultLimit = 10

// document is what gets indexed for one competency.
type document struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Hit is one keyword search result.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"` // BM25 score normalised into [0, 1]
}

// Index is a bleve-backed competency index. It is safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

// Open opens the index at path, creating it if it does not exist.
// An empty path creates a memory-only index.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	var (
		idx bleve.Index
		err error
	)
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		idx, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create bleve index: %w", err)
		}
	} else {
		idx, err = bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bleve index: %w", err)
		}
	}
	return &Index{index: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	keyword := bleve.NewKeywordFieldMapping()

	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("description", text)
	doc.AddFieldMappingsAt("category", keyword)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

// Index adds or replaces a competency.
func (i *Index) Index(c *competency.Competency) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	doc := document{
		Name:        c.Name,
		Description: c.Description,
		Category:    string(c.Category),
	}
	if err := i.index.Index(c.ID, doc); err != nil {
		return errors.Wrap(err, "index competency", errors.WithMetadata("competency", c.ID))
	}
	return nil
}

// IndexAll adds or replaces competencies in one batch.
func (i *Index) IndexAll(comps []*competency.Competency) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.index.NewBatch()
	for _, c := range comps {
		doc := document{Name: c.Name, Description: c.Description, Category: string(c.Category)}
		if err := batch.Index(c.ID, doc); err != nil {
			return errors.Wrap(err, "index competency", errors.WithMetadata("competency", c.ID))
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return errors.Wrap(err, "index batch")
	}
	return nil
}

// Delete removes a competency. Deleting an unknown id is not an error.
func (i *Index) Delete(id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.index.Delete(id); err != nil {
		return errors.Wrap(err, "delete from index", errors.WithMetadata("competency", id))
	}
	return nil
}

// Count returns the number of indexed competencies.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Search runs a keyword query over name and description. A non-empty
// category restricts hits to that category. Name matches weigh twice as much
// as description matches.
func (i *Index) Search(text string, category competency.Category, limit int) ([]Hit, error) {
	if text == "" {
		return nil, errors.InvalidInput("search query is empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	nameQuery := bleve.NewMatchQuery(text)
	nameQuery.SetField("name")
	nameQuery.SetBoost(2)

	descQuery := bleve.NewMatchQuery(text)
	descQuery.SetField("description")

	prefixQuery := bleve.NewPrefixQuery(strings.ToLower(strings.TrimSpace(text)))
	prefixQuery.SetField("name")

	var q query.Query = bleve.NewDisjunctionQuery(nameQuery, descQuery, prefixQuery)
	if category != "" {
		catQuery := bleve.NewTermQuery(string(category))
		catQuery.SetField("category")

		boolQuery := bleve.NewBooleanQuery()
		boolQuery.AddMust(q)
		boolQuery.AddMust(catQuery)
		q = boolQuery
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit

	i.mu.RLock()
	res, err := i.index.Search(req)
	i.mu.RUnlock()
	if err != nil {
		return nil, errors.Wrap(err, "keyword search")
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: normalize(h.Score, res.MaxScore)})
	}
	return hits, nil
}

// normalize scales a BM25 score against the best hit of the same search.
func normalize(score, max float64) float64 {
	if max <= 0 {
		return 0
	}
	s := score / max
	if s > 1 {
		return 1
	}
	return s
}

// Close closes the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}
