// Package database opens the SQLite file that backs rendition metadata, access
// policies and the access audit log.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Config defines SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the settings used by the server.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 8,
	}
}

// Open initializes a SQLite connection pool. The pragmas go in the DSN so they
// apply to every pooled connection, foreign_keys in particular.
func Open(path string, cfg Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS resources (
		id         TEXT PRIMARY KEY,
		duration   REAL NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS renditions (
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		quality     INTEGER NOT NULL,
		filepath    TEXT NOT NULL,
		filesize    INTEGER NOT NULL,
		PRIMARY KEY (resource_id, quality)
	)`,
	`CREATE TABLE IF NOT EXISTS access_policies (
		domain      TEXT PRIMARY KEY,
		record_id   TEXT NOT NULL,
		disposition TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS access_log (
		id          TEXT PRIMARY KEY,
		domain      TEXT NOT NULL,
		record_id   TEXT,
		allowed     INTEGER NOT NULL,
		reason      TEXT NOT NULL,
		resource_id TEXT,
		created_at  DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS access_log_domain ON access_log(domain, created_at)`,
}

// Migrate creates the tables used by the service if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}
