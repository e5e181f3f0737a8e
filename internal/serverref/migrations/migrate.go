// SPDX-License-Identifier: Apache-2.0

// Package migrations applies the reference server's Postgres schema via
// goose, with the SQL files embedded into the binary (grounded on
// go-pass-keeper's migrations/migrate.go).
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var embedMigrations embed.FS

// Migrate applies all pending migrations against a pgx-backed db.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrations: db is nil")
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("migrations: set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}
