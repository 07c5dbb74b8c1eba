// Package migrator owns the database schema of the snapshot store
package migrator

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

const migrationsTableName = "schema_migrations"

// Migration-related errors
var ErrMigrationExecution = errors.New("migration execution failed")

//go:embed migrations/*.sql
var migrations embed.FS

// Source returns the embedded schema migrations
func Source() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       "migrations",
	}
}

// MigrationSet returns the migration set recording applied migrations
func MigrationSet() *migrate.MigrationSet {
	return &migrate.MigrationSet{TableName: migrationsTableName}
}

// ApplyMigrations applies pending migrations using sql-migrate with the provided pgx pool.
// It returns how many migrations were applied.
func ApplyMigrations(pool *pgxpool.Pool) (int, error) {
	// Create sql.DB from the pgx pool for sql-migrate
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return applyMigrations(db)
}

func applyMigrations(db *sql.DB) (int, error) {
	n, err := MigrationSet().Exec(db, "postgres", Source(), migrate.Up)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrMigrationExecution, err)
	}
	return n, nil
}
