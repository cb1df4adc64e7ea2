// Package store is the persistence layer. All SQL lives here; callers work
// with models and never see rows or column names.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "embed"

	"positioning-analyzer/internal/common/logger"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps the database handle with the query surface the service needs.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.With(map[string]interface{}{"component": "store"}),
	}
}

// DB exposes the underlying handle for health checks and auth lookups.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureSchema applies the embedded schema. Every statement is idempotent,
// so running it on every startup is safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.logger.Info("database schema ensured", nil)
	return nil
}
