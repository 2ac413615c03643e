// Package repository persists engine runs and their quintile results to
// the embedded result database.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vaxburden-server/internal/domain"
)

// Store implements domain.ResultStore over a SQL database.
type Store struct {
	db *sql.DB
}

// NewStore creates a result store over an open database connection. The
// schema is expected to be migrated already.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRun scans a row into a RunRecord
func scanRun(s scanner) (*domain.RunRecord, error) {
	run := &domain.RunRecord{}
	var psa int
	err := s.Scan(&run.ID, &run.Country, &run.Iterations, &run.Seed, &psa, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.PSAEnabled = psa != 0
	return run, nil
}

// scanResult scans a row into a QuintileResult
func scanResult(s scanner) (domain.QuintileResult, error) {
	var r domain.QuintileResult
	err := s.Scan(
		&r.Country, &r.Iteration, &r.Quintile,
		&r.PreCases, &r.PostCases, &r.PreDeaths, &r.PostDeaths,
		&r.PreCost, &r.PostCost, &r.PreDALYs, &r.PostDALYs,
		&r.Vaccinated,
	)
	return r, err
}

// SaveRun stores a run record and its quintile results in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *domain.RunRecord, results []domain.QuintileResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	psa := 0
	if run.PSAEnabled {
		psa = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, country, iterations, seed, psa_enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Country, run.Iterations, run.Seed, psa, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, r := range results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO quintile_results (
				run_id, iteration, quintile,
				pre_cases, post_cases, pre_deaths, post_deaths,
				pre_cost, post_cost, pre_dalys, post_dalys, vaccinated
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID, r.Iteration, int(r.Quintile),
			r.PreCases, r.PostCases, r.PreDeaths, r.PostDeaths,
			r.PreCost, r.PostCost, r.PreDALYs, r.PostDALYs, r.Vaccinated,
		)
		if err != nil {
			return fmt.Errorf("failed to insert quintile result: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run record by ID. Returns nil when not found.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, country, iterations, seed, psa_enabled, created_at
		FROM runs WHERE id = ? LIMIT 1
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return run, nil
}

// ListRuns returns run records ordered by creation time with pagination.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]*domain.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, country, iterations, seed, psa_enabled, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var result []*domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

// GetRunResults retrieves all quintile results for a run, ordered by
// iteration and quintile.
func (s *Store) GetRunResults(ctx context.Context, id string) ([]domain.QuintileResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.country, q.iteration, q.quintile,
			q.pre_cases, q.post_cases, q.pre_deaths, q.post_deaths,
			q.pre_cost, q.post_cost, q.pre_dalys, q.post_dalys, q.vaccinated
		FROM quintile_results q
		JOIN runs r ON r.id = q.run_id
		WHERE q.run_id = ?
		ORDER BY q.iteration, q.quintile
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []domain.QuintileResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Close is a no-op; the underlying connection is owned by the database
// package.
func (s *Store) Close() error {
	return nil
}
