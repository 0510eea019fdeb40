// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/packsync-app/packsync/internal/config"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/migrations"
)

// NewConnectSQLite opens (creating if necessary) the client's local SQLite
// database and applies pending schema migrations.
//
// The connection pool is pinned to a single connection: SQLite serialises
// writers anyway, and a single connection guarantees that transactions and
// the busy timeout behave predictably.
func NewConnectSQLite(ctx context.Context, cfg config.ClientDB, log *logger.Logger) (*DB, error) {
	if err := createLocalDBFileIfNotExists(cfg.DSN); err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Str("path", cfg.DSN).Msg("error creating local database file")
		return nil, err
	}

	conn, err := sql.Open("sqlite3", cfg.DSN+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error occured during local database connection")
		return nil, fmt.Errorf("error occured during local database connection: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error connecting local database (ping)")
		return nil, err
	}

	if err = migrations.MigrateClient(conn); err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error migrating local database")
		return nil, err
	}
	log.Info().Str("func", "NewConnectSQLite").Str("path", cfg.DSN).Msg("connected to local database successfully")

	return &DB{DB: conn, logger: log}, nil
}

// createLocalDBFileIfNotExists makes sure the parent directory and the
// database file itself exist before sql.Open touches them.
func createLocalDBFileIfNotExists(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create local database dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("create local database file: %w", err)
	}

	return f.Close()
}
