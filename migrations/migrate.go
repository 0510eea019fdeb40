// Package migrations embeds and applies the SQL schema for both sides of the
// sync engine: the server's PostgreSQL store (server/) and the client's local
// SQLite store (client/).
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed server/*.sql client/*.sql
var embedMigrations embed.FS

// Migrate applies all pending server migrations to db (PostgreSQL, pgx driver).
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("migration error setting dialect for db: %w", err)
	}

	if err := goose.Up(db, "server"); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}

// MigrateClient applies all pending client migrations to db (SQLite).
func MigrateClient(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("migration error setting dialect for local db: %w", err)
	}

	if err := goose.Up(db, "client"); err != nil {
		return fmt.Errorf("local migration error: %w", err)
	}

	return nil
}
