package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/errors"
)

// SaveCandidate inserts or replaces a course or person together with its
// competency links. Every linked competency must exist.
func (s *Store) SaveCandidate(ctx context.Context, c *competency.Candidate) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.InvalidInput("candidate id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.InvalidInput("candidate name is required", errors.WithMetadata("candidate", c.ID))
	}
	if c.Kind != competency.KindCourse && c.Kind != competency.KindPerson {
		return errors.InvalidInput("unknown candidate kind: "+string(c.Kind), errors.WithMetadata("candidate", c.ID))
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO candidates (kind, id, name) VALUES (?, ?, ?)
			ON CONFLICT(kind, id) DO UPDATE SET name = excluded.name`,
			string(c.Kind), c.ID, c.Name)
		if err != nil {
			return errors.Wrap(err, "save candidate", errors.WithMetadata("candidate", c.ID))
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM candidate_competencies WHERE kind = ? AND candidate_id = ?`,
			string(c.Kind), c.ID); err != nil {
			return errors.Wrap(err, "clear candidate competencies", errors.WithMetadata("candidate", c.ID))
		}

		seen := make(map[string]bool, len(c.Competencies))
		position := 0
		for _, compID := range c.Competencies {
			if seen[compID] {
				continue
			}
			seen[compID] = true

			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM competencies WHERE id = ?`, compID).Scan(&exists)
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFound("competency not found",
					errors.WithMetadata("candidate", c.ID),
					errors.WithMetadata("competency", compID))
			}
			if err != nil {
				return errors.Wrap(err, "check competency")
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO candidate_competencies (kind, candidate_id, competency_id, position)
				VALUES (?, ?, ?, ?)`,
				string(c.Kind), c.ID, compID, position); err != nil {
				return errors.Wrap(err, "link competency", errors.WithMetadata("candidate", c.ID))
			}
			position++
		}
		return nil
	})
}

// ListCandidates returns every candidate of kind with its competency ids in
// the order they were saved. Candidates are ordered by name.
func (s *Store) ListCandidates(ctx context.Context, kind competency.Kind) ([]competency.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, cc.competency_id
		FROM candidates c
		LEFT JOIN candidate_competencies cc ON cc.kind = c.kind AND cc.candidate_id = c.id
		WHERE c.kind = ?
		ORDER BY c.name, c.id, cc.position`, string(kind))
	if err != nil {
		return nil, errors.Wrap(err, "list candidates")
	}
	defer rows.Close()

	var out []competency.Candidate
	for rows.Next() {
		var (
			id, name string
			compID   sql.NullString
		)
		if err := rows.Scan(&id, &name, &compID); err != nil {
			return nil, errors.Wrap(err, "scan candidate")
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, competency.Candidate{ID: id, Name: name, Kind: kind})
		}
		if compID.Valid {
			last := &out[len(out)-1]
			last.Competencies = append(last.Competencies, compID.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list candidates")
	}
	return out, nil
}

// DeleteCandidate removes a candidate and its links.
func (s *Store) DeleteCandidate(ctx context.Context, kind competency.Kind, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM candidates WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return errors.Wrap(err, "delete candidate", errors.WithMetadata("candidate", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("candidate not found", errors.WithMetadata("candidate", id))
	}
	return nil
}
