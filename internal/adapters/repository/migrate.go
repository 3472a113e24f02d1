package repository

import (
	"context"
	"fmt"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

func (s *SQLiteStore) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		tag              TEXT NOT NULL DEFAULT '',
		host_uid         TEXT NOT NULL DEFAULT '',
		minutes          INTEGER,
		session_start_at INTEGER,
		created_at       INTEGER,
		force_ended_at   INTEGER,
		finalized_at     INTEGER
	);

	CREATE TABLE IF NOT EXISTS participants (
		session_id   TEXT NOT NULL REFERENCES sessions(id),
		uid          TEXT NOT NULL,
		display_name TEXT,
		PRIMARY KEY (session_id, uid)
	);

	CREATE TABLE IF NOT EXISTS stays (
		id         INTEGER PRIMARY KEY,
		session_id TEXT NOT NULL,
		uid        TEXT NOT NULL,
		start_at   INTEGER NOT NULL,
		end_at     INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_stays_session_uid ON stays(session_id, uid);

	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", CurrentSchemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}
