// Package catalog loads competencies, courses and people from YAML seed
// files into the store and keyword index.
//
//	competencies:
//	  - id: go
//	    name: Go programming
//	    category: skill
//	courses:
//	  - id: go-101
//	    name: Go fundamentals
//	    competencies: [go]
//	people:
//	  - name: Ada Lovelace
//	    competencies: [go]
//
// Entries without an id get a generated one. Candidates may refer to
// competencies by id or by name.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/errors"
)

// Catalog is a parsed seed document.
type Catalog struct {
	Competencies []CompetencyEntry `yaml:"competencies"`
	Courses      []CandidateEntry  `yaml:"courses"`
	People       []CandidateEntry  `yaml:"people"`
}

// CompetencyEntry describes one competency.
type CompetencyEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Description string `yaml:"description,omitempty"`
}

// CandidateEntry describes one course or person.
type CandidateEntry struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Competencies []string `yaml:"competencies"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a catalog document. Unknown fields are
// rejected.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, errors.InvalidInput("parse catalog", errors.WithCause(err))
	}
	c.assignIDs()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// assignIDs gives every entry without an id one derived from its kind and
// normalised name, so importing the same file again updates the same rows.
func (c *Catalog) assignIDs() {
	for i := range c.Competencies {
		if strings.TrimSpace(c.Competencies[i].ID) == "" {
			c.Competencies[i].ID = stableID("competency", c.Competencies[i].Name)
		}
	}
	for kind, list := range map[string][]CandidateEntry{"course": c.Courses, "person": c.People} {
		for i := range list {
			if strings.TrimSpace(list[i].ID) == "" {
				list[i].ID = stableID(kind, list[i].Name)
			}
		}
	}
}

func stableID(kind, name string) string {
	key := kind + ":" + strings.ToLower(strings.TrimSpace(name))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// Validate checks categories, duplicate ids and that every candidate refers
// to a competency defined in the catalog. All problems are reported together.
func (c *Catalog) Validate() error {
	var problems []string

	ids := make(map[string]bool, len(c.Competencies))
	names := make(map[string]string, len(c.Competencies))
	for _, e := range c.Competencies {
		if ids[e.ID] {
			problems = append(problems, "duplicate competency id "+e.ID)
		}
		ids[e.ID] = true
		if strings.TrimSpace(e.Name) == "" {
			problems = append(problems, "competency "+e.ID+" has no name")
		}
		if _, err := competency.ParseCategory(e.Category); err != nil {
			problems = append(problems, fmt.Sprintf("competency %s has unknown category %q", e.ID, e.Category))
		}
		names[normalize(e.Name)] = e.ID
	}

	check := func(kind string, entries []CandidateEntry) {
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			if seen[e.ID] {
				problems = append(problems, fmt.Sprintf("duplicate %s id %s", kind, e.ID))
			}
			seen[e.ID] = true
			if strings.TrimSpace(e.Name) == "" {
				problems = append(problems, fmt.Sprintf("%s %s has no name", kind, e.ID))
			}
			for _, ref := range e.Competencies {
				if !ids[ref] && names[normalize(ref)] == "" {
					problems = append(problems, fmt.Sprintf("%s %s refers to unknown competency %q", kind, e.ID, ref))
				}
			}
		}
	}
	check("course", c.Courses)
	check("person", c.People)

	if len(problems) > 0 {
		return errors.InvalidInput("invalid catalog: "+strings.Join(problems, "; "),
			errors.WithMetadata("problems", fmt.Sprint(len(problems))))
	}
	return nil
}

// CompetencyList converts the entries to competencies.
func (c *Catalog) CompetencyList() []*competency.Competency {
	out := make([]*competency.Competency, 0, len(c.Competencies))
	for _, e := range c.Competencies {
		cat, _ := competency.ParseCategory(e.Category)
		out = append(out, &competency.Competency{
			ID:          e.ID,
			Name:        strings.TrimSpace(e.Name),
			Category:    cat,
			Description: strings.TrimSpace(e.Description),
		})
	}
	return out
}

// Candidates converts courses and people to candidates with every competency
// reference resolved to an id.
func (c *Catalog) Candidates() []competency.Candidate {
	byName := make(map[string]string, len(c.Competencies))
	ids := make(map[string]bool, len(c.Competencies))
	for _, e := range c.Competencies {
		byName[normalize(e.Name)] = e.ID
		ids[e.ID] = true
	}
	resolve := func(refs []string) []string {
		out := make([]string, 0, len(refs))
		for _, ref := range refs {
			if ids[ref] {
				out = append(out, ref)
			} else if id, ok := byName[normalize(ref)]; ok {
				out = append(out, id)
			}
		}
		return out
	}

	out := make([]competency.Candidate, 0, len(c.Courses)+len(c.People))
	for _, e := range c.Courses {
		out = append(out, competency.Candidate{ID: e.ID, Name: e.Name, Kind: competency.KindCourse, Competencies: resolve(e.Competencies)})
	}
	for _, e := range c.People {
		out = append(out, competency.Candidate{ID: e.ID, Name: e.Name, Kind: competency.KindPerson, Competencies: resolve(e.Competencies)})
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Store is where Apply writes the catalog.
type Store interface {
	SaveCompetency(ctx context.Context, c *competency.Competency) error
	SaveCandidate(ctx context.Context, c *competency.Candidate) error
}

// Indexer receives every applied competency for keyword search.
type Indexer interface {
	IndexAll(comps []*competency.Competency) error
}

// Summary counts what Apply wrote.
type Summary struct {
	Competencies int `json:"competencies"`
	Courses      int `json:"courses"`
	People       int `json:"people"`
}

// Apply saves the catalog to store and, when idx is not nil, indexes its
// competencies. Existing entries with the same id are replaced.
func (c *Catalog) Apply(ctx context.Context, store Store, idx Indexer) (*Summary, error) {
	sum := &Summary{}
	comps := c.CompetencyList()
	for _, comp := range comps {
		if err := store.SaveCompetency(ctx, comp); err != nil {
			return sum, err
		}
		sum.Competencies++
	}
	if idx != nil {
		if err := idx.IndexAll(comps); err != nil {
			return sum, err
		}
	}

	for _, cand := range c.Candidates() {
		cand := cand
		if err := store.SaveCandidate(ctx, &cand); err != nil {
			return sum, err
		}
		if cand.Kind == competency.KindCourse {
			sum.Courses++
		} else {
			sum.People++
		}
	}
	return sum, nil
}
