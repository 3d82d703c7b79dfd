package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/errors"
)

// SaveEmbedding inserts or replaces the embedding of a competency.
// Every stored vector shares one dimension: a vector whose length differs
// from the other rows fails with DIMENSION_MISMATCH.
func (s *Store) SaveEmbedding(ctx context.Context, e *competency.Embedding) error {
	if len(e.Vector) == 0 {
		return errors.InvalidInput("embedding vector is empty",
			errors.WithMetadata("competency", e.CompetencyID))
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM competencies WHERE id = ?`, e.CompetencyID).Scan(&exists)
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound("competency not found", errors.WithMetadata("competency", e.CompetencyID))
		}
		if err != nil {
			return errors.Wrap(err, "check competency")
		}

		var dim int
		err = tx.QueryRowContext(ctx, `
			SELECT dimension FROM competency_embeddings
			WHERE competency_id != ? LIMIT 1`, e.CompetencyID).Scan(&dim)
		switch {
		case stderrors.Is(err, sql.ErrNoRows):
		case err != nil:
			return errors.Wrap(err, "check embedding dimension")
		case dim != len(e.Vector):
			return errors.DimensionMismatch(dim, len(e.Vector),
				errors.WithMetadata("competency", e.CompetencyID))
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO competency_embeddings (competency_id, vector, dimension, model, fingerprint, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(competency_id) DO UPDATE SET
				vector = excluded.vector,
				dimension = excluded.dimension,
				model = excluded.model,
				fingerprint = excluded.fingerprint,
				created_at = excluded.created_at`,
			e.CompetencyID, encodeVector(e.Vector), len(e.Vector), e.Model, e.Fingerprint, formatTime(e.CreatedAt))
		if err != nil {
			return errors.Wrap(err, "save embedding", errors.WithMetadata("competency", e.CompetencyID))
		}
		return nil
	})
}

// GetEmbedding returns the embedding of a competency, NOT_FOUND if it has none.
func (s *Store) GetEmbedding(ctx context.Context, competencyID string) (*competency.Embedding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT competency_id, vector, model, fingerprint, created_at
		FROM competency_embeddings WHERE competency_id = ?`, competencyID)
	e, err := scanEmbedding(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("embedding not found", errors.WithMetadata("competency", competencyID))
	}
	return e, err
}

// ListEmbeddings returns every stored embedding.
func (s *Store) ListEmbeddings(ctx context.Context) ([]*competency.Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.competency_id, e.vector, e.model, e.fingerprint, e.created_at
		FROM competency_embeddings e
		JOIN competencies c ON c.id = e.competency_id
		ORDER BY c.name, c.id`)
	if err != nil {
		return nil, errors.Wrap(err, "list embeddings")
	}
	defer rows.Close()

	var out []*competency.Embedding
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list embeddings")
	}
	return out, nil
}

// Vectors returns the stored vectors keyed by competency id.
func (s *Store) Vectors(ctx context.Context) (map[string][]float32, error) {
	embs, err := s.ListEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(embs))
	for _, e := range embs {
		out[e.CompetencyID] = e.Vector
	}
	return out, nil
}

// ListMissingEmbeddings returns competencies that have no embedding yet.
func (s *Store) ListMissingEmbeddings(ctx context.Context) ([]*competency.Competency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.category, c.description, c.created_at, c.updated_at
		FROM competencies c
		LEFT JOIN competency_embeddings e ON e.competency_id = c.id
		WHERE e.competency_id IS NULL
		ORDER BY c.name, c.id`)
	if err != nil {
		return nil, errors.Wrap(err, "list missing embeddings")
	}
	defer rows.Close()

	var out []*competency.Competency
	for rows.Next() {
		c, err := scanCompetency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list missing embeddings")
	}
	return out, nil
}

// ListStaleEmbeddings returns competencies whose embedding was generated from
// a different name, or, when model is not empty, by a different model.
func (s *Store) ListStaleEmbeddings(ctx context.Context, model string) ([]*competency.Competency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.category, c.description, c.created_at, c.updated_at,
		       e.fingerprint, e.model
		FROM competencies c
		JOIN competency_embeddings e ON e.competency_id = c.id
		ORDER BY c.name, c.id`)
	if err != nil {
		return nil, errors.Wrap(err, "list stale embeddings")
	}
	defer rows.Close()

	var out []*competency.Competency
	for rows.Next() {
		var (
			id, name, category, desc string
			created, updated         string
			fingerprint, embModel    string
		)
		if err := rows.Scan(&id, &name, &category, &desc, &created, &updated, &fingerprint, &embModel); err != nil {
			return nil, errors.Wrap(err, "scan stale embedding")
		}
		c := &competency.Competency{ID: id, Name: name, Category: competency.Category(category), Description: desc}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		if fingerprint != c.Fingerprint() || (model != "" && embModel != model) {
			out = append(out, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list stale embeddings")
	}
	return out, nil
}

// DeleteEmbeddings removes every stored embedding, for switching to a model of
// another dimension.
func (s *Store) DeleteEmbeddings(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM competency_embeddings`)
	if err != nil {
		return 0, errors.Wrap(err, "delete embeddings")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanEmbedding(sc scanner) (*competency.Embedding, error) {
	var (
		e       competency.Embedding
		blob    []byte
		created string
	)
	if err := sc.Scan(&e.CompetencyID, &blob, &e.Model, &e.Fingerprint, &created); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan embedding")
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, errors.Wrap(err, "decode embedding", errors.WithMetadata("competency", e.CompetencyID))
	}
	e.Vector = vec
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &e, nil
}
