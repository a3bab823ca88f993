// Package catalog keeps an append-only sqlite record of stacking sessions
// and the composites they produced. It is output, not state: every run
// starts fresh and only ever inserts.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nightsky-data/skystack/internal/stack"
)

type Catalog struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database and its schema.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			started_at TIMESTAMP,
			deadline TIMESTAMP,
			ended_at TIMESTAMP,
			frames_total BIGINT,
			windows BIGINT
		);
		CREATE TABLE IF NOT EXISTS composites (
			composite_id TEXT PRIMARY KEY,
			session_id TEXT,
			window_start TIMESTAMP,
			window_length_s DOUBLE,
			stack_type TEXT,
			frames BIGINT,
			filename TEXT,
			error TEXT,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: create schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// BeginSession inserts the session row at startup, before any composites.
func (c *Catalog) BeginSession(sessionID string, start, deadline time.Time) error {
	_, err := c.db.Exec(
		"INSERT INTO sessions (session_id, started_at, deadline) VALUES (?, ?, ?)",
		sessionID, start.UTC(), deadline.UTC())
	if err != nil {
		return fmt.Errorf("catalog: begin session: %w", err)
	}
	return nil
}

// EndSession fills in the session totals once the run has finished. It also
// rewrites the deadline with the one the session actually ran against, which
// is fixed from the session start inside the run loop and can differ from
// the provisional value recorded by BeginSession.
func (c *Catalog) EndSession(summary *stack.SessionSummary) error {
	_, err := c.db.Exec(
		"UPDATE sessions SET deadline = ?, ended_at = ?, frames_total = ?, windows = ? WHERE session_id = ?",
		summary.Deadline.UTC(), summary.End.UTC(), summary.FramesTotal, summary.JobsEnqueued, summary.SessionID)
	if err != nil {
		return fmt.Errorf("catalog: end session: %w", err)
	}
	return nil
}

// RecordComposite implements the persister's recorder hook: one row per
// processed job, saved or failed. Insert errors are ignored; the catalog
// must never break the save worker.
func (c *Catalog) RecordComposite(job stack.SaveJob, fname string, writeErr error) {
	var errText sql.NullString
	if writeErr != nil {
		errText = sql.NullString{String: writeErr.Error(), Valid: true}
	}
	_, _ = c.db.Exec(
		`INSERT INTO composites
			(composite_id, session_id, window_start, window_length_s, stack_type, frames, filename, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SessionID, job.WindowStart.UTC(), job.WindowLength.Seconds(),
		job.Kind, job.Frames, fname, errText)
}

// CompositeCount reports how many composites a session has recorded.
func (c *Catalog) CompositeCount(sessionID string) (int, error) {
	var n int
	err := c.db.QueryRow(
		"SELECT COUNT(*) FROM composites WHERE session_id = ?", sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("catalog: count composites: %w", err)
	}
	return n, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
