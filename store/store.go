// Package store persists competencies, candidates and embeddings in SQLite.
//
// The schema is created by embedded migrations when the store is opened.
// Vectors are kept as little-endian float32 BLOBs next to the model name and
// the fingerprint of the text they were generated from, one row per
// competency.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vinayprograms/skillmatch/errors"
)

// timeLayout is the text form of stored timestamps.
const timeLayout = time.RFC3339Nano

// Store is a SQLite-backed repository. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open migrates the database at path to the current schema and opens it.
// Parent directories are created as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.InvalidInput("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	mg, err := newMigrator(path)
	if err != nil {
		return nil, err
	}
	if err := mg.up(); err != nil {
		mg.close()
		return nil, err
	}
	if err := mg.close(); err != nil {
		return nil, err
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion() (uint, error) {
	mg, err := newMigrator(s.path)
	if err != nil {
		return 0, err
	}
	defer mg.close()
	v, dirty, err := mg.version()
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, errors.Corruption("schema migration left dirty",
			errors.WithMetadata("version", strconv.FormatUint(uint64(v), 10)))
	}
	return v, nil
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = errors.Wrap(cerr, "commit transaction")
		}
	}()
	return fn(tx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, errors.Corruption("invalid stored timestamp",
			errors.WithMetadata("value", s), errors.WithCause(err))
	}
	return t, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
