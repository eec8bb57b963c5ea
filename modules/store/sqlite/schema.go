package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations[i] moves the schema from version i to i+1. The version lives
// in PRAGMA user_version; append new steps, never edit applied ones.
var migrations = []string{
	`CREATE TABLE sessions (
		id                     TEXT    PRIMARY KEY,
		user_id                TEXT    NOT NULL,
		title                  TEXT    NOT NULL DEFAULT '',
		memory_json            TEXT    NOT NULL DEFAULT '',
		last_compacted_turn_id INTEGER NOT NULL DEFAULT 0,
		created_at             TEXT    NOT NULL,
		updated_at             TEXT    NOT NULL
	);
	CREATE INDEX idx_sessions_updated ON sessions(updated_at DESC, id DESC);
	CREATE TABLE turns (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT    NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		role       TEXT    NOT NULL CHECK (role IN ('user', 'assistant')),
		text       TEXT    NOT NULL,
		created_at TEXT    NOT NULL
	);
	CREATE INDEX idx_turns_session ON turns(session_id, id);`,

	`CREATE INDEX idx_sessions_user ON sessions(user_id, updated_at DESC, id DESC);`,
}

// schemaVersion is the version a fully migrated database reports.
var schemaVersion = len(migrations)

// migrate applies the pending steps, each in its own transaction together
// with the user_version bump.
func migrate(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("sqlite: schema version %d is newer than this build (%d)", current, schemaVersion)
	}

	for v := current; v < schemaVersion; v++ {
		if err := step(ctx, db, v); err != nil {
			return fmt.Errorf("sqlite: migrate to version %d: %w", v+1, err)
		}
	}
	return nil
}

func step(ctx context.Context, db *sql.DB, from int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migrations[from]); err != nil {
		return err
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", from+1)); err != nil {
		return err
	}
	return tx.Commit()
}
