package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/errors"
)

// SaveCompetency inserts or updates a competency. CreatedAt is kept from the
// first insert; UpdatedAt is set to now.
func (s *Store) SaveCompetency(ctx context.Context, c *competency.Competency) error {
	if err := c.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO competencies (id, name, category, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			description = excluded.description,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, string(c.Category), c.Description, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return errors.Wrap(err, "save competency", errors.WithMetadata("competency", c.ID))
	}
	return nil
}

// GetCompetency returns the competency with id, NOT_FOUND if absent.
func (s *Store) GetCompetency(ctx context.Context, id string) (*competency.Competency, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, description, created_at, updated_at
		FROM competencies WHERE id = ?`, id)
	c, err := scanCompetency(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("competency not found", errors.WithMetadata("competency", id))
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCompetencies returns all competencies ordered by name.
func (s *Store) ListCompetencies(ctx context.Context) ([]*competency.Competency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, description, created_at, updated_at
		FROM competencies ORDER BY name, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list competencies")
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
		return nil, errors.Wrap(err, "list competencies")
	}
	return out, nil
}

// DeleteCompetency removes a competency with its embedding and candidate links.
func (s *Store) DeleteCompetency(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM competencies WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete competency", errors.WithMetadata("competency", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("competency not found", errors.WithMetadata("competency", id))
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCompetency(sc scanner) (*competency.Competency, error) {
	var (
		c                competency.Competency
		category         string
		created, updated string
	)
	if err := sc.Scan(&c.ID, &c.Name, &category, &c.Description, &created, &updated); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan competency")
	}
	c.Category = competency.Category(category)

	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &c, nil
}
