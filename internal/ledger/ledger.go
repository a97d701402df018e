// Package ledger keeps a local SQLite record of migration runs and the
// outcome of every day they touched.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

// Fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Counters mirrors the totals of a finished run.
type Counters struct {
	Days           int
	Created        int
	Appended       int
	Skipped        int
	Failed         int
	ImagesUploaded int
	ImagesMissing  int
	ImageFailures  int
	InvalidDates   int
}

// Run is one invocation of the migrate command.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	DryRun     bool
	WindowFrom string
	WindowTo   string
	Counters
}

// Outcome is the result recorded for one date of a run.
type Outcome struct {
	RunID      string
	Date       string
	Action     string
	DocumentID string
	Entries    int
	Images     int
	Uploaded   int
	Missing    int
	Error      string
	RecordedAt time.Time
}

type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file and its parent directory when needed.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	l := &Ledger{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id              TEXT PRIMARY KEY,
		started_at      TEXT NOT NULL,
		finished_at     TEXT,
		dry_run         INTEGER NOT NULL DEFAULT 0,
		window_from     TEXT NOT NULL DEFAULT '',
		window_to       TEXT NOT NULL DEFAULT '',
		days            INTEGER NOT NULL DEFAULT 0,
		created         INTEGER NOT NULL DEFAULT 0,
		appended        INTEGER NOT NULL DEFAULT 0,
		skipped         INTEGER NOT NULL DEFAULT 0,
		failed          INTEGER NOT NULL DEFAULT 0,
		images_uploaded INTEGER NOT NULL DEFAULT 0,
		images_missing  INTEGER NOT NULL DEFAULT 0,
		image_failures  INTEGER NOT NULL DEFAULT 0,
		invalid_dates   INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		date        TEXT NOT NULL,
		action      TEXT NOT NULL,
		document_id TEXT NOT NULL DEFAULT '',
		entries     INTEGER NOT NULL DEFAULT 0,
		images      INTEGER NOT NULL DEFAULT 0,
		uploaded    INTEGER NOT NULL DEFAULT 0,
		missing     INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_date ON outcomes(date);
	`
	_, err := l.db.Exec(schema)
	return err
}

// StartRun inserts a new run and returns it with its generated id.
func (l *Ledger) StartRun(ctx context.Context, dryRun bool, from, to string) (Run, error) {
	run := Run{
		ID:         uuid.NewString(),
		StartedAt:  l.now(),
		DryRun:     dryRun,
		WindowFrom: from,
		WindowTo:   to,
	}
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, dry_run, window_from, window_to) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.StartedAt.Format(timeLayout), boolInt(dryRun), from, to,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordDay appends the outcome of one date to a run.
func (l *Ledger) RecordDay(ctx context.Context, o Outcome) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = l.now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, date, action, document_id, entries, images, uploaded, missing, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Date, o.Action, o.DocumentID, o.Entries, o.Images, o.Uploaded, o.Missing, o.Error,
		o.RecordedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert outcome for %s: %w", o.Date, err)
	}
	return nil
}

// FinishRun stamps the finish time and the totals onto a run.
func (l *Ledger) FinishRun(ctx context.Context, runID string, c Counters) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, days = ?, created = ?, appended = ?, skipped = ?, failed = ?,
		 images_uploaded = ?, images_missing = ?, image_failures = ?, invalid_dates = ?
		 WHERE id = ?`,
		l.now().Format(timeLayout), c.Days, c.Created, c.Appended, c.Skipped, c.Failed,
		c.ImagesUploaded, c.ImagesMissing, c.ImageFailures, c.InvalidDates, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, dry_run, window_from, window_to, days, created, appended,
	skipped, failed, images_uploaded, images_missing, image_failures, invalid_dates`

// Runs lists the most recent runs first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FindRun resolves a full run id or a unique prefix of one.
func (l *Ledger) FindRun(ctx context.Context, idOrPrefix string) (Run, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE id = ? OR id LIKE ? || '%' ORDER BY started_at DESC, rowid DESC LIMIT 2",
		idOrPrefix, idOrPrefix)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		if run.ID == idOrPrefix {
			return run, nil
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %s", ErrAmbiguousRun, idOrPrefix)
	}
}

// Outcomes returns the recorded days of a run in insertion order.
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, date, action, document_id, entries, images, uploaded, missing, error, recorded_at
		 FROM outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o        Outcome
			recorded string
		)
		if err := rows.Scan(&o.RunID, &o.Date, &o.Action, &o.DocumentID, &o.Entries, &o.Images,
			&o.Uploaded, &o.Missing, &o.Error, &recorded); err != nil {
			return nil, err
		}
		if o.RecordedAt, err = time.Parse(timeLayout, recorded); err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
		dryRun   int
	)
	err := s.Scan(&run.ID, &started, &finished, &dryRun, &run.WindowFrom, &run.WindowTo,
		&run.Days, &run.Created, &run.Appended, &run.Skipped, &run.Failed,
		&run.ImagesUploaded, &run.ImagesMissing, &run.ImageFailures, &run.InvalidDates)
	if err != nil {
		return Run{}, err
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid && finished.String != "" {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	run.DryRun = dryRun != 0
	return run, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
