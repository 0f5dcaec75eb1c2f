// Package sqlite opens the embedded SQLite backend through the pure Go
// modernc driver and classifies its constraint errors.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite" // pure go sqlite driver

	"sessionflow/pkg/domain"
)

const (
	// DefaultPath is used when no database file is configured.
	DefaultPath = "sessionflow.db"
	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"
)

// Extended result codes reported by SQLite for constraint failures.
const (
	codeConstraintForeignKey = 787
	codeConstraintPrimaryKey = 1555
	codeConstraintUnique     = 2067
)

// Open returns a database handle with foreign keys enforced. SQLite applies
// pragmas per connection, so the pool is pinned to a single connection; this
// also keeps an in-memory database alive for the life of the handle.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = DefaultPath
	}
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Classify wraps constraint failures with the matching domain sentinel.
// Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case codeConstraintPrimaryKey, codeConstraintUnique:
			return fmt.Errorf("%w: %w", domain.ErrDuplicate, err)
		case codeConstraintForeignKey:
			return fmt.Errorf("%w: %w", domain.ErrForeignKey, err)
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %w", domain.ErrDuplicate, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %w", domain.ErrForeignKey, err)
	}
	return err
}
