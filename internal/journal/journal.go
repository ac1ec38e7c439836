// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package journal keeps a SQLite ledger of pipeline runs and their per-page
// outcomes. The ledger is write-mostly; the history command reads it back.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pdf2md/pkg/types"
)

// Journal records runs in a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path and ensures the
// schema exists.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// Page workers record concurrently; one connection serializes writes.
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := j.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return j, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			source TEXT,
			output TEXT,
			mode TEXT NOT NULL,
			model TEXT,
			pages INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			run_id TEXT NOT NULL REFERENCES runs(id),
			page INTEGER NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			figures TEXT,
			error TEXT,
			PRIMARY KEY (run_id, page)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// StartRun inserts a new run row.
func (j *Journal) StartRun(ctx context.Context, run types.Run) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, document, source, output, mode, model, pages, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Document, run.Source, run.Output, string(run.Mode), run.Model, run.Pages,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

// RecordPage stores the outcome of one page of run runID.
func (j *Journal) RecordPage(ctx context.Context, runID string, res types.PageResult) error {
	figures, err := json.Marshal(res.Figures)
	if err != nil {
		return fmt.Errorf("marshaling figures: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pages (run_id, page, status, attempts, figures, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, res.Page, string(res.Status), res.Attempts, string(figures), res.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting page %d of run %s: %w", res.Page, runID, err)
	}
	return nil
}

// FinishRun stores the final counts and completion time of run.
func (j *Journal) FinishRun(ctx context.Context, run types.Run) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET failed = ?, finished_at = ? WHERE id = ?`,
		run.Failed, formatTime(run.FinishedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// Recent returns up to n runs, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]types.Run, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, document, source, output, mode, model, pages, failed, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		var (
			r                          types.Run
			mode, started              string
			source, output, model, fin sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Document, &source, &output, &mode, &model,
			&r.Pages, &r.Failed, &started, &fin); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Source, r.Output, r.Model = source.String, output.String, model.String
		r.Mode = types.RunMode(mode)
		r.StartedAt = parseTime(started)
		if fin.Valid {
			r.FinishedAt = parseTime(fin.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Pages returns the recorded page outcomes of run runID in page order.
func (j *Journal) Pages(ctx context.Context, runID string) ([]types.PageResult, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT page, status, attempts, figures, error FROM pages WHERE run_id = ? ORDER BY page`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer rows.Close()

	var pages []types.PageResult
	for rows.Next() {
		var (
			p               types.PageResult
			status          string
			figures, errMsg sql.NullString
		)
		if err := rows.Scan(&p.Page, &status, &p.Attempts, &figures, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		p.Status = types.PageStatus(status)
		p.Error = errMsg.String
		if figures.Valid && figures.String != "" {
			if err := json.Unmarshal([]byte(figures.String), &p.Figures); err != nil {
				return nil, fmt.Errorf("decoding figures of page %d: %w", p.Page, err)
			}
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// timeLayout is fixed-width so stored timestamps sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
