// Package pgstore keeps competency embeddings in a Postgres table with a
// pgvector column, for deployments whose competency data already lives in
// Postgres. Nearest-neighbour search runs inside the database.
package pgstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/errors"
)

// TableName is the table holding one embedding row per competency.
const TableName = "competency_embeddings"

// CompetencyEmbedding is the gorm model of a stored embedding.
type CompetencyEmbedding struct {
	CompetencyID string          `gorm:"column:competency_id;primaryKey"`
	Embedding    pgvector.Vector `gorm:"column:embedding;not null"`
	Dimension    int             `gorm:"column:dimension;not null"`
	Model        string          `gorm:"column:model;not null"`
	Fingerprint  string          `gorm:"column:fingerprint;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name.
func (*CompetencyEmbedding) TableName() string {
	return TableName
}

// Neighbour is a competency found by NearestNeighbours.
type Neighbour struct {
	CompetencyID string  `json:"competency_id"`
	Similarity   float64 `json:"similarity"`
}

// Store reads and writes embeddings through gorm.
type Store struct {
	db        *gorm.DB
	dimension int
}

// Open connects to dsn and ensures the vector extension and table exist.
// The column is typed vector(dimension), so every stored vector has the
// configured length.
func Open(ctx context.Context, dsn string, dimension int) (*Store, error) {
	if dsn == "" {
		return nil, errors.NotConfigured("postgres dsn is not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s, err := New(db, dimension)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing gorm connection without touching the schema.
func New(db *gorm.DB, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, errors.InvalidInput("embedding dimension must be positive")
	}
	return &Store{db: db, dimension: dimension}, nil
}

// Migrate creates the vector extension and the embeddings table.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		competency_id TEXT PRIMARY KEY,
		embedding     vector(%d) NOT NULL,
		dimension     INTEGER NOT NULL,
		model         TEXT NOT NULL,
		fingerprint   TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, TableName, s.dimension)
	if err := db.Exec(ddl).Error; err != nil {
		return fmt.Errorf("create %s: %w", TableName, err)
	}
	return nil
}

// Dimension returns the configured vector length.
func (s *Store) Dimension() int {
	return s.dimension
}

// Upsert inserts or replaces the embedding of a competency.
func (s *Store) Upsert(ctx context.Context, e *competency.Embedding) error {
	if len(e.Vector) != s.dimension {
		return errors.DimensionMismatch(s.dimension, len(e.Vector),
			errors.WithMetadata("competency", e.CompetencyID))
	}
	row := &CompetencyEmbedding{
		CompetencyID: e.CompetencyID,
		Embedding:    pgvector.NewVector(e.Vector),
		Dimension:    len(e.Vector),
		Model:        e.Model,
		Fingerprint:  e.Fingerprint,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "competency_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "dimension", "model", "fingerprint", "updated_at"}),
		}).
		Create(row).Error
	if err != nil {
		return errors.Wrap(err, "upsert embedding", errors.WithMetadata("competency", e.CompetencyID))
	}
	return nil
}

// Get returns the embedding of a competency, NOT_FOUND if absent.
func (s *Store) Get(ctx context.Context, competencyID string) (*competency.Embedding, error) {
	var row CompetencyEmbedding
	err := s.db.WithContext(ctx).Where("competency_id = ?", competencyID).First(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("embedding not found", errors.WithMetadata("competency", competencyID))
	}
	if err != nil {
		return nil, errors.Wrap(err, "get embedding", errors.WithMetadata("competency", competencyID))
	}
	return toEmbedding(&row), nil
}

// Delete removes the embedding of a competency.
func (s *Store) Delete(ctx context.Context, competencyID string) error {
	err := s.db.WithContext(ctx).Where("competency_id = ?", competencyID).Delete(&CompetencyEmbedding{}).Error
	if err != nil {
		return errors.Wrap(err, "delete embedding", errors.WithMetadata("competency", competencyID))
	}
	return nil
}

// NearestNeighbours returns competencies whose similarity to query is at
// least threshold, best first, on the same [0, 1] scale as the similarity
// package: pgvector's cosine distance d = 1 - cos gives (2 - d) / 2. A zero
// vector on either side has a NaN distance and scores 0.
// Ties are ordered by competency id. limit <= 0 means no limit.
func (s *Store) NearestNeighbours(ctx context.Context, query []float32, threshold float64, limit int) ([]Neighbour, error) {
	if len(query) != s.dimension {
		return nil, errors.DimensionMismatch(s.dimension, len(query))
	}
	if threshold < 0 || threshold > 1 {
		return nil, errors.InvalidInput("similarity threshold must be within [0, 1]")
	}

	vec := pgvector.NewVector(query).String()
	sql := fmt.Sprintf(`SELECT competency_id, similarity FROM (
			SELECT competency_id, COALESCE(NULLIF((2 - (embedding <=> ?)) / 2, 'NaN'), 0) AS similarity
			FROM %s
		) scored
		WHERE similarity >= ?
		ORDER BY similarity DESC, competency_id`, TableName)
	args := []interface{}{vec, threshold}
	if limit > 0 {
		sql += " LIMIT ?"
		args = append(args, limit)
	}

	var out []Neighbour
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&out).Error; err != nil {
		return nil, errors.Wrap(err, "nearest neighbours")
	}
	return out, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toEmbedding(row *CompetencyEmbedding) *competency.Embedding {
	return &competency.Embedding{
		CompetencyID: row.CompetencyID,
		Vector:       row.Embedding.Slice(),
		Model:        row.Model,
		Fingerprint:  row.Fingerprint,
		CreatedAt:    row.CreatedAt,
	}
}
