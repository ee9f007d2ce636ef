package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed persistence for settings, incidents, joins and
// lockdown snapshots.
type Store struct {
	db *sql.DB
}

// Open creates and initializes the SQLite database at dbPath
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Ping checks if the database connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates all necessary database tables
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raid_settings (
		guild_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS raid_incidents (
		id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL,
		type TEXT NOT NULL,
		severity INTEGER NOT NULL,
		details TEXT NOT NULL,
		action_taken TEXT NOT NULL,
		affected_accounts TEXT NOT NULL DEFAULT '[]',
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_raid_incidents_guild_time ON raid_incidents(guild_id, timestamp);

	CREATE TABLE IF NOT EXISTS join_records (
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		account_created_at INTEGER NOT NULL DEFAULT 0,
		joined_at INTEGER NOT NULL,
		UNIQUE(guild_id, user_id, joined_at)
	);

	CREATE INDEX IF NOT EXISTS idx_join_records_guild_time ON join_records(guild_id, joined_at);

	CREATE TABLE IF NOT EXISTS lockdown_snapshots (
		guild_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		had_overwrite INTEGER NOT NULL,
		allow_bits INTEGER NOT NULL DEFAULT 0,
		deny_bits INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (guild_id, channel_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
