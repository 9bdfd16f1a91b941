// Package diagstore is a small embedded SQLite event log for operator
// diagnostics: segmentation transitions and watchlist load/save outcomes.
// It is intentionally narrow compared to a full telemetry database — one
// table, one migration. internal/tracker.DeviceTracker writes to it through
// the narrow tracker.EventRecorder interface (so tests can substitute a
// fake recorder without a database); the diagnostics HTTP surface reads it.
package diagstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite handle holding the events table.
type Store struct {
	db *sql.DB
}

// Event is one row of the events table.
type Event struct {
	ID     int64
	TSUnix int64
	Kind   string
	Detail string
}

const (
	KindSegmentAdvance = "segment_advance"
	KindWatchlistLoad  = "watchlist_load"
	KindWatchlistSave  = "watchlist_save"
)

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("diagstore: exec %q: %w", p, err)
		}
	}
	return nil
}

// Open opens (creating if absent) the diagnostics database at path and
// applies any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("diagstore: open %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InsertEvent records one diagnostics event. Failures are never fatal to
// the tracker core; callers log and continue.
func (s *Store) InsertEvent(tsUnix int64, kind, detail string) error {
	_, err := s.db.Exec(`INSERT INTO events (ts_unix, kind, detail) VALUES (?, ?, ?)`, tsUnix, kind, detail)
	if err != nil {
		return fmt.Errorf("diagstore: insert event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit most recent events, newest first.
func (s *Store) RecentEvents(limit int) ([]Event, error) {
	rows, err := s.db.Query(`SELECT event_id, ts_unix, kind, detail FROM events ORDER BY event_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("diagstore: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TSUnix, &e.Kind, &e.Detail); err != nil {
			return nil, fmt.Errorf("diagstore: scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("diagstore: iterate events: %w", err)
	}
	return events, nil
}

// DB exposes the underlying handle for the diagnostics HTTP surface's
// tailsql browser.
func (s *Store) DB() *sql.DB {
	return s.db
}
