package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DB wraps the embedded result database with additional functionality
type DB struct {
	SQL  *sql.DB
	path string
	log  *logrus.Logger
}

// NewConnection opens (and creates if necessary) the embedded SQLite
// database used for run and result persistence, and applies pending
// migrations.
func NewConnection(ctx context.Context, path string, logger *logrus.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency between the API and batch writers
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.WithField("path", path).Info("Result database opened")

	return &DB{SQL: db, path: path, log: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.SQL != nil {
		db.log.Info("Result database closed")
		return db.SQL.Close()
	}
	return nil
}

// Health checks the database connection health
func (db *DB) Health(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}
