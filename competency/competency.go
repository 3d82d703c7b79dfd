// Package competency defines the competency model shared by the matching,
// storage and import packages.
package competency

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/vinayprograms/skillmatch/errors"
)

// Category is the fixed classification of a competency.
type Category string

const (
	CategoryKnowledge Category = "knowledge"
	CategorySkill     Category = "skill"
	CategoryTool      Category = "tool"
	CategoryAbility   Category = "ability"
	CategoryValue     Category = "value"
	CategoryBehaviour Category = "behaviour"
	CategoryEnabler   Category = "enabler"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryKnowledge,
	CategorySkill,
	CategoryTool,
	CategoryAbility,
	CategoryValue,
	CategoryBehaviour,
	CategoryEnabler,
}

// ParseCategory parses a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", errors.InvalidInput("unknown competency category: "+s,
			errors.WithMetadata("category", s))
	}
	return c, nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Competency is a named, categorized unit used to tag people and courses.
type Competency struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Validate checks the fields every stored competency must have.
func (c *Competency) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.InvalidInput("competency id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.InvalidInput("competency name is required",
			errors.WithMetadata("competency", c.ID))
	}
	if !c.Category.Valid() {
		return errors.InvalidInput("unknown competency category: "+string(c.Category),
			errors.WithMetadata("competency", c.ID))
	}
	return nil
}

// Fingerprint identifies the text an embedding was generated from.
// A stored embedding whose fingerprint differs from the competency's current
// one was produced for an older name.
func (c *Competency) Fingerprint() string {
	return Fingerprint(c.Name)
}

// Fingerprint hashes the normalised form of an embedding input.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}

// Kind distinguishes the entities that competencies are matched against.
type Kind string

const (
	KindCourse Kind = "course"
	KindPerson Kind = "person"
)

// ParseKind parses "course"/"courses" or "person"/"people".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "course", "courses":
		return KindCourse, nil
	case "person", "people":
		return KindPerson, nil
	default:
		return "", errors.InvalidInput("unknown candidate kind: "+s)
	}
}

// Candidate is a course or person exposing its own competency set.
type Candidate struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Kind         Kind     `json:"kind"`
	Competencies []string `json:"competencies"`
}

// Has reports whether the candidate owns the competency id.
func (c *Candidate) Has(id string) bool {
	for _, own := range c.Competencies {
		if own == id {
			return true
		}
	}
	return false
}

// Embedding is the stored vector of one competency.
type Embedding struct {
	CompetencyID string    `json:"competency_id"`
	Vector       []float32 `json:"vector"`
	Model        string    `json:"model"`
	Fingerprint  string    `json:"fingerprint"` // of the name the vector was generated from
	CreatedAt    time.Time `json:"created_at"`
}

// StaleFor reports whether e was generated from a different name than c's
// current one.
func (e *Embedding) StaleFor(c *Competency) bool {
	return e.Fingerprint != c.Fingerprint()
}
