// Package store persists normalized incidents in SQLite or Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite" // registers "sqlite"
)

// Store implements pipeline.BatchLoader on top of database/sql.
type Store struct {
	db     *sql.DB
	driver string
	clock  clockwork.Clock
	logger *slog.Logger
}

// Open connects to the database and verifies the connection.
// driver is "sqlite" or "pgx".
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	if driver == "sqlite" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// One writer at a time, or Reload hits SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify %s connection: %w", driver, err)
	}

	return &Store{db: db, driver: driver, clock: clockwork.NewRealClock(), logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// InitSchema creates the tables if they do not exist. It never runs implicitly.
func (s *Store) InitSchema(ctx context.Context) error {
	if s.db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS incidents (
		id                     TEXT PRIMARY KEY,
		incident_date          TEXT NOT NULL,
		outcome                TEXT NOT NULL,
		incident_class         TEXT NOT NULL CHECK (incident_class IN ('fatal', 'non_fatal', 'shot_fired_no_hit')),
		subject_weapon         TEXT NOT NULL,
		grand_jury_disposition TEXT,
		ag_forms_url           TEXT,
		summary_url            TEXT,
		address                TEXT NOT NULL,
		latitude               DOUBLE PRECISION NOT NULL,
		longitude              DOUBLE PRECISION NOT NULL,
		h3_cell                TEXT,
		formatted_address      TEXT,
		place_name             TEXT,
		geo_confidence         DOUBLE PRECISION NOT NULL DEFAULT 0,
		geo_source             TEXT,
		processed_at           TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS officers (
		incident_id TEXT NOT NULL REFERENCES incidents(id),
		position    INTEGER NOT NULL,
		name        TEXT NOT NULL,
		race_gender TEXT,
		PRIMARY KEY (incident_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS weapons (
		incident_id TEXT NOT NULL REFERENCES incidents(id),
		position    INTEGER NOT NULL,
		weapon      TEXT NOT NULL,
		PRIMARY KEY (incident_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS load_runs (
		run_id         TEXT PRIMARY KEY,
		loaded_at      TEXT NOT NULL,
		incident_count INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_h3_cell ON incidents(h3_cell)`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_date ON incidents(incident_date)`,
}

// rebind rewrites "?" placeholders to "$n" for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
