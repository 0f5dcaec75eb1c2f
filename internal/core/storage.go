package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sessionflow/internal/infra/persistence/mysql"
	"sessionflow/internal/infra/persistence/postgres"
	"sessionflow/internal/infra/persistence/sqlite"
	"sessionflow/internal/schema"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory sqlite (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageMySQL    StorageDriver = "mysql"    // MySQL or MariaDB server
)

// StorageConfig selects and parameterises a backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	MySQL       mysql.Config
	// Prefix is prepended to every physical table name.
	Prefix string
	// SafeMode makes Teardown and Drop refuse to run unless confirmed.
	SafeMode bool
}

// OpenPipeline opens the configured backend and binds it to the catalog.
// An empty driver defaults to sqlite.
func OpenPipeline(ctx context.Context, cfg StorageConfig, opts ...Option) (*Pipeline, error) {
	driver := StorageDriver(strings.ToLower(string(cfg.Driver)))
	if driver == "" {
		driver = StorageSQLite
	}
	var (
		db       *sql.DB
		dialect  schema.Dialect
		classify func(error) error
		err      error
	)
	switch driver {
	case StorageMemory:
		db, err = sqlite.Open(ctx, sqlite.MemoryPath)
		dialect, classify = schema.SQLite{}, sqlite.Classify
	case StorageSQLite:
		db, err = sqlite.Open(ctx, cfg.SQLitePath)
		dialect, classify = schema.SQLite{}, sqlite.Classify
	case StoragePostgres:
		db, err = postgres.Open(ctx, cfg.PostgresDSN)
		dialect, classify = schema.Postgres{}, postgres.Classify
	case StorageMySQL:
		db, err = mysql.Open(ctx, cfg.MySQL)
		dialect, classify = schema.MySQL{}, mysql.Classify
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithPrefix(cfg.Prefix), WithSafeMode(cfg.SafeMode)}, opts...)
	return NewPipeline(db, dialect, classify, opts...), nil
}
