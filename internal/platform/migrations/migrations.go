// Package migrations applies the database schema at startup. Statements are
// idempotent and run in order, so a fresh database and an already-migrated one
// both converge on the same schema.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS books (
		isbn       VARCHAR(20) PRIMARY KEY,
		title      TEXT NOT NULL,
		author     TEXT NOT NULL DEFAULT '',
		publisher  TEXT NOT NULL DEFAULT '',
		thumbnail  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id                   UUID PRIMARY KEY,
		username             VARCHAR(80) NOT NULL UNIQUE,
		email                VARCHAR(120) NOT NULL UNIQUE,
		password             VARCHAR(255) NOT NULL,
		is_active            BOOLEAN NOT NULL DEFAULT TRUE,
		avatar_url           TEXT NOT NULL DEFAULT '',
		current_reading_isbn VARCHAR(20) REFERENCES books(isbn) ON DELETE SET NULL,
		about_text           TEXT NOT NULL DEFAULT '',
		favorite_genres      TEXT NOT NULL DEFAULT '[]',
		created_at           TIMESTAMPTZ NOT NULL,
		updated_at           TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id         UUID PRIMARY KEY,
		title      TEXT NOT NULL,
		date       DATE NOT NULL,
		time       TIME NOT NULL,
		category   TEXT NOT NULL DEFAULT '',
		location   TEXT NOT NULL DEFAULT '',
		lat        DOUBLE PRECISION,
		lng        DOUBLE PRECISION,
		created_by UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS event_attendees (
		user_id  UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, event_id)
	)`,
	`CREATE TABLE IF NOT EXISTS library_books (
		user_id   UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		book_isbn VARCHAR(20) NOT NULL REFERENCES books(isbn) ON DELETE CASCADE,
		added_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, book_isbn)
	)`,
	`CREATE TABLE IF NOT EXISTS user_top3 (
		user_id   UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		position  INTEGER NOT NULL CHECK (position BETWEEN 1 AND 3),
		book_isbn VARCHAR(20) REFERENCES books(isbn) ON DELETE SET NULL,
		PRIMARY KEY (user_id, position)
	)`,
}

// Apply runs every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
