// Package store provides the durable comparison log backed by SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/seizurelab/eegrank/internal/domain"
	"github.com/seizurelab/eegrank/internal/ports"
)

var _ ports.ComparisonLog = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS ratings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	snippet_id TEXT NOT NULL,
	rater      TEXT NOT NULL,
	rating     INTEGER NOT NULL,
	timestamp  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ratings_snippet ON ratings(snippet_id);
CREATE INDEX IF NOT EXISTS idx_ratings_rater ON ratings(rater);

CREATE TABLE IF NOT EXISTS comparisons (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	snippet_a TEXT NOT NULL,
	snippet_b TEXT NOT NULL,
	winner    TEXT NOT NULL,
	rater     TEXT NOT NULL,
	timestamp DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comparisons_rater ON comparisons(rater);
`

// SQLiteStore implements ports.ComparisonLog over a SQLite database.
// SQLite supports one writer at a time; the connection pool is limited
// accordingly so concurrent fire-and-forget writes queue instead of
// failing with SQLITE_BUSY.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// RecordComparison appends one resolved pairwise judgment.
func (s *SQLiteStore) RecordComparison(ctx context.Context, c domain.Comparison) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comparisons (snippet_a, snippet_b, winner, rater, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		c.SnippetA, c.SnippetB, c.Winner, c.Rater, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert comparison: %w", err)
	}
	return nil
}

// RecordRating appends one absolute rating after validating the scale.
func (s *SQLiteStore) RecordRating(ctx context.Context, r domain.Rating) error {
	if r.Rating < 1 || r.Rating > 10 {
		return domain.ErrInvalidRating
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (snippet_id, rater, rating, timestamp)
		 VALUES (?, ?, ?, ?)`,
		r.SnippetID, r.Rater, r.Rating, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

// RatedSnippetIDs returns the distinct snippet IDs the rater has rated.
func (s *SQLiteStore) RatedSnippetIDs(ctx context.Context, rater string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT snippet_id FROM ratings WHERE rater = ?`, rater)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ComparisonCount returns how many comparisons the rater has submitted.
func (s *SQLiteStore) ComparisonCount(ctx context.Context, rater string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comparisons WHERE rater = ?`, rater).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count comparisons: %w", err)
	}
	return count, nil
}
