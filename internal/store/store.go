// Package store keeps a local history of benchmark runs in SQLite so
// results from repeated runs against the same device can be compared
// later.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	target_ip   TEXT NOT NULL,
	iface       TEXT NOT NULL,
	results     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Run is one stored benchmark run. Results holds the full results
// document as JSON; the indexed columns exist for listing only.
type Run struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	TargetIP   string          `json:"target_ip"`
	Interface  string          `json:"interface"`
	Results    json.RawMessage `json:"results"`
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init run store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NewRunID mints an identifier for a run about to start.
func NewRunID() string {
	return uuid.NewString()
}

// SaveRun persists a completed run. The caller is responsible for a
// unique ID (see NewRunID).
func (s *Store) SaveRun(run Run) error {
	if run.ID == "" {
		return errors.New("run ID must not be empty")
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, finished_at, target_ip, iface, results) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.TargetIP, run.Interface, string(run.Results),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(id string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, finished_at, target_ip, iface, results FROM runs WHERE id = ?`, id)
	var run Run
	var results string
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.TargetIP, &run.Interface, &results)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	run.Results = json.RawMessage(results)
	return run, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means
// no limit.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, target_ip, iface, results FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var results string
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.TargetIP, &run.Interface, &results); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Results = json.RawMessage(results)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
