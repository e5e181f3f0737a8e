// SPDX-License-Identifier: Apache-2.0

// Package sqlitedevice is the default storage.DeviceInterface
// implementation (SPEC_FULL.md §B): a SQLite-backed key/value, keychain,
// and payload table, migrated with goose and queried with squirrel —
// grounded on the teacher repo's internal/store SQLite wiring.
package sqlitedevice

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/halvard/notesync/internal/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DB wraps a *sql.DB with the logger every query in this package shares.
type DB struct {
	*sql.DB
	log *logger.Logger
}

// Connect opens a SQLite connection at dsn, creating the file if needed,
// applies pending goose migrations, and verifies reachability with a
// ping.
func Connect(ctx context.Context, dsn string, log *logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := createLocalFileIfNotExists(dsn); err != nil {
		return nil, fmt.Errorf("sqlitedevice: create db file: %w", err)
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitedevice: open connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("sqlitedevice: ping: %w", err)
	}

	db := &DB{DB: conn, log: log}
	if err := db.migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("sqlitedevice: set goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return fmt.Errorf("sqlitedevice: apply migrations: %w", err)
	}
	db.log.Debug().Msg("sqlitedevice migrations applied")
	return nil
}

func createLocalFileIfNotExists(dsn string) error {
	path := filePathFromDSN(dsn)
	if path == "" || path == ":memory:" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		return f.Close()
	}
	return nil
}

// filePathFromDSN strips SQLite DSN query parameters (e.g.
// "file:notesync.db?cache=shared") down to the bare file path.
func filePathFromDSN(dsn string) string {
	path := dsn
	if len(path) >= 5 && path[:5] == "file:" {
		path = path[5:]
	}
	for i := 0; i < len(path); i++ {
		if path[i] == '?' {
			return path[:i]
		}
	}
	return path
}
