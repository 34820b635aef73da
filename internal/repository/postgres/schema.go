package postgres

import (
	"context"
	"fmt"
)

// schemaStatements create the tables the repositories query. Every
// statement is idempotent so EnsureSchema can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		password_salt TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		last_login TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at)`,
	`CREATE TABLE IF NOT EXISTS saved_searches (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		filters JSONB NOT NULL,
		keywords TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		last_used TIMESTAMPTZ,
		is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (user_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS saved_searches_user_id_idx ON saved_searches (user_id)`,
}

// EnsureSchema creates any missing tables and indexes. Safe to call on
// every startup.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
