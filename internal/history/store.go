// Package history keeps a sqlite record of runs and their page results.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jackzampolin/smartpdf/internal/pipeline"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run status values.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	pdf_type       TEXT NOT NULL DEFAULT '',
	page_count     INTEGER NOT NULL DEFAULT 0,
	pages_selected INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	progress       INTEGER NOT NULL DEFAULT 0,
	degraded       INTEGER NOT NULL DEFAULT 0,
	error          TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS pages (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	page       INTEGER NOT NULL,
	method     TEXT NOT NULL,
	confidence REAL NOT NULL,
	chars      INTEGER NOT NULL,
	header     TEXT NOT NULL DEFAULT '',
	footer     TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, page)
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`

// Run is one document processing attempt.
type Run struct {
	ID            string    `json:"id" yaml:"id"`
	Source        string    `json:"source" yaml:"source"`
	PDFType       string    `json:"pdf_type,omitempty" yaml:"pdf_type,omitempty"`
	PageCount     int       `json:"page_count" yaml:"page_count"`
	PagesSelected int       `json:"pages_selected" yaml:"pages_selected"`
	Status        string    `json:"status" yaml:"status"`
	Progress      int       `json:"progress" yaml:"progress"`
	Degraded      int       `json:"degraded" yaml:"degraded"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
}

// Page is the stored summary of one page record. Text is not kept.
type Page struct {
	Page       int     `json:"page" yaml:"page"`
	Method     string  `json:"method" yaml:"method"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Chars      int     `json:"chars" yaml:"chars"`
	Header     string  `json:"header,omitempty" yaml:"header,omitempty"`
	Footer     string  `json:"footer,omitempty" yaml:"footer,omitempty"`
	Error      string  `json:"error,omitempty" yaml:"error,omitempty"`
}

type options struct {
	busyTimeout int
	logger      *slog.Logger
	now         func() time.Time
}

// Option customises Open.
type Option func(*options)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(o *options) { o.busyTimeout = ms } }

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// Store persists run history in a sqlite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the history database at path. Use
// ":memory:" for a throwaway store.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: 10_000, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", o.busyTimeout),
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}

	return &Store{db: db, logger: o.logger.With("component", "history"), now: o.now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun inserts a running entry and returns its ID.
func (s *Store) StartRun(ctx context.Context, source string, pageCount, selected int, pdfType string) (string, error) {
	id := uuid.NewString()
	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, pdf_type, page_count, pages_selected, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, source, pdfType, pageCount, selected, StatusRunning, now, now)
	if err != nil {
		return "", fmt.Errorf("history: start run: %w", err)
	}
	s.logger.Debug("run recorded", "run_id", id, "source", source)
	return id, nil
}

// UpdateProgress records how many pages the run has handled.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress int) error {
	return s.update(ctx, id, `UPDATE runs SET progress = ?, updated_at = ? WHERE id = ?`,
		progress, s.now().UnixMilli(), id)
}

// RecordPage stores one page record, replacing any earlier one for the
// same page.
func (s *Store) RecordPage(ctx context.Context, id string, rec pipeline.PageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pages (run_id, page, method, confidence, chars, header, footer, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Page, string(rec.Method), rec.Confidence, len([]rune(rec.Text)), rec.Header, rec.Footer, rec.Error)
	if err != nil {
		return fmt.Errorf("history: record page %d: %w", rec.Page, err)
	}
	return nil
}

// FinishRun marks the run complete, or failed when runErr is set.
func (s *Store) FinishRun(ctx context.Context, id string, res *pipeline.Result, runErr error) error {
	status, msg, degraded := StatusComplete, "", 0
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	if res != nil {
		degraded = res.Stats.Degraded
	}
	return s.update(ctx, id, `UPDATE runs SET status = ?, error = ?, degraded = ?, updated_at = ? WHERE id = ?`,
		status, msg, degraded, s.now().UnixMilli(), id)
}

// SetClassification records the document type once it is known.
func (s *Store) SetClassification(ctx context.Context, id, pdfType string, pageCount int) error {
	return s.update(ctx, id, `UPDATE runs SET pdf_type = ?, page_count = ?, updated_at = ? WHERE id = ?`,
		pdfType, pageCount, s.now().UnixMilli(), id)
}

func (s *Store) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("history: update run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: update run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `id, source, pdf_type, page_count, pages_selected, status, progress, degraded, error, created_at, updated_at`

// List returns the most recent runs first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns a run and its page summaries in page order. id may be a
// unique prefix of the full ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, []Page, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`,
		id, id+"%", id)
	if err != nil {
		return nil, nil, fmt.Errorf("history: get run: %w", err)
	}
	var matches []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, nil, err
		}
		matches = append(matches, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("history: get run: %w", err)
	}

	switch {
	case len(matches) == 0:
		return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(matches) > 1 && matches[0].ID != id:
		return nil, nil, fmt.Errorf("history: ambiguous run id prefix %q", id)
	}
	run := matches[0]

	pages, err := s.pages(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return &run, pages, nil
}

func (s *Store) pages(ctx context.Context, id string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT page, method, confidence, chars, header, footer, error
		FROM pages WHERE run_id = ? ORDER BY page`, id)
	if err != nil {
		return nil, fmt.Errorf("history: list pages: %w", err)
	}
	defer rows.Close()

	pages := []Page{}
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.Page, &p.Method, &p.Confidence, &p.Chars, &p.Header, &p.Footer, &p.Error); err != nil {
			return nil, fmt.Errorf("history: scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var created, updated int64
	if err := sc.Scan(&r.ID, &r.Source, &r.PDFType, &r.PageCount, &r.PagesSelected,
		&r.Status, &r.Progress, &r.Degraded, &r.Error, &created, &updated); err != nil {
		return Run{}, fmt.Errorf("history: scan run: %w", err)
	}
	r.CreatedAt = time.UnixMilli(created)
	r.UpdatedAt = time.UnixMilli(updated)
	return r, nil
}
