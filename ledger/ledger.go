// Package ledger records captures and AI generations in SQLite.
//
// The ledger is an observability record only: no request outcome depends on
// a write succeeding, and a nil *Ledger accepts writes as no-ops.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/sitelens/dbopen"
	"github.com/hazyhaar/sitelens/idgen"
)

// Schema is applied on every open.
const Schema = `
CREATE TABLE IF NOT EXISTS captures (
    id          TEXT PRIMARY KEY,
    filename    TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL,
    status      TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    bytes       INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_captures_created ON captures(created_at DESC);

CREATE TABLE IF NOT EXISTS generations (
    id           TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    url          TEXT NOT NULL,
    model        TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL,
    error        TEXT NOT NULL DEFAULT '',
    prompt_chars INTEGER NOT NULL DEFAULT 0,
    output_chars INTEGER NOT NULL DEFAULT 0,
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generations_kind ON generations(kind, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at DESC);
`

// Status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Generation kinds.
const (
	KindAnalysis = "analysis"
	KindCode     = "code"
)

// Capture is one screenshot attempt.
type Capture struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename,omitempty"`
	URL        string    `json:"url"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Bytes      int64     `json:"bytes"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Generation is one call to the AI adapter.
type Generation struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	URL         string    `json:"url"`
	Model       string    `json:"model,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	PromptChars int       `json:"prompt_chars"`
	OutputChars int       `json:"output_chars"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ledger writes and reads history rows.
type Ledger struct {
	db              *sql.DB
	newCaptureID    idgen.Generator
	newGenerationID idgen.Generator
	now             func() time.Time
}

func newLedger(db *sql.DB) *Ledger {
	return &Ledger{
		db:              db,
		newCaptureID:    idgen.Prefixed("cap_", idgen.Default),
		newGenerationID: idgen.Prefixed("gen_", idgen.Default),
		now:             time.Now,
	}
}

// Open opens (or creates) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return newLedger(db), nil
}

// New wraps an open database and applies the schema.
func New(db *sql.DB) (*Ledger, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("ledger: schema: %w", err)
	}
	return newLedger(db), nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// RecordCapture inserts c, filling ID and CreatedAt when empty.
func (l *Ledger) RecordCapture(ctx context.Context, c *Capture) error {
	if l == nil {
		return nil
	}
	if c.ID == "" {
		c.ID = l.newCaptureID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = l.now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO captures (id, filename, url, status, error, bytes, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Filename, c.URL, c.Status, c.Error, c.Bytes, c.DurationMs, c.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ledger: insert capture: %w", err)
	}
	return nil
}

// RecordGeneration inserts g, filling ID and CreatedAt when empty.
func (l *Ledger) RecordGeneration(ctx context.Context, g *Generation) error {
	if l == nil {
		return nil
	}
	if g.ID == "" {
		g.ID = l.newGenerationID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = l.now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO generations (id, kind, url, model, status, error, prompt_chars, output_chars, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Kind, g.URL, g.Model, g.Status, g.Error, g.PromptChars, g.OutputChars, g.DurationMs, g.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ledger: insert generation: %w", err)
	}
	return nil
}

// Captures returns the most recent captures, newest first.
func (l *Ledger) Captures(ctx context.Context, limit int) ([]Capture, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, filename, url, status, error, bytes, duration_ms, created_at
		FROM captures ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query captures: %w", err)
	}
	defer rows.Close()

	out := []Capture{}
	for rows.Next() {
		var c Capture
		var created int64
		if err := rows.Scan(&c.ID, &c.Filename, &c.URL, &c.Status, &c.Error,
			&c.Bytes, &c.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("ledger: scan capture: %w", err)
		}
		c.CreatedAt = time.UnixMilli(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Generations returns the most recent generations, newest first. An empty
// kind matches every kind.
func (l *Ledger) Generations(ctx context.Context, limit int, kind string) ([]Generation, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, url, model, status, error, prompt_chars, output_chars, duration_ms, created_at
		FROM generations WHERE (? = '' OR kind = ?)
		ORDER BY created_at DESC, id DESC LIMIT ?`, kind, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query generations: %w", err)
	}
	defer rows.Close()

	out := []Generation{}
	for rows.Next() {
		var g Generation
		var created int64
		if err := rows.Scan(&g.ID, &g.Kind, &g.URL, &g.Model, &g.Status, &g.Error,
			&g.PromptChars, &g.OutputChars, &g.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("ledger: scan generation: %w", err)
		}
		g.CreatedAt = time.UnixMilli(created)
		out = append(out, g)
	}
	return out, rows.Err()
}
