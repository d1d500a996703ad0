package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/drip/pkg/models"
)

// Tracker stores and queries the request history.
type Tracker interface {
	// StartCycle opens a day-cycle row.
	StartCycle(ctx context.Context, c models.CycleRecord) error
	// EndCycle records how a day-cycle ended and when it resumes.
	EndCycle(ctx context.Context, id string, requests int, suspendedAt, resumeAt time.Time) error
	// Record stores one request cycle.
	Record(ctx context.Context, rec models.RequestRecord) error
	// Recent returns the newest request records, newest first.
	Recent(ctx context.Context, limit int) ([]models.RequestRecord, error)
	// Cycles returns day-cycles started since a given time, newest first.
	Cycles(ctx context.Context, since time.Time) ([]models.CycleRecord, error)
	// DailySummary aggregates requests per local day since a given time.
	DailySummary(ctx context.Context, since time.Time) ([]models.DaySummary, error)
	// Cleanup deletes history older than the cutoff.
	Cleanup(ctx context.Context, before time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createCyclesTable = `
CREATE TABLE IF NOT EXISTS cycles (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	request_limit INTEGER NOT NULL,
	requests INTEGER NOT NULL DEFAULT 0,
	suspended_at DATETIME,
	resume_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
`

const createRequestsTable = `
CREATE TABLE IF NOT EXISTS requests (
	id TEXT PRIMARY KEY,
	cycle_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	model TEXT NOT NULL,
	prompt TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at);
CREATE INDEX IF NOT EXISTS idx_requests_cycle ON requests(cycle_id);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(createCyclesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cycles table: %w", err)
	}

	if _, err := db.Exec(createRequestsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate requests table: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// NewID returns a fresh identifier for cycles and requests.
func NewID() string {
	return uuid.NewString()
}

// StartCycle inserts a cycle row. An empty ID is filled in.
func (t *SQLiteTracker) StartCycle(ctx context.Context, c models.CycleRecord) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO cycles (id, started_at, request_limit) VALUES (?, ?, ?)`,
		c.ID, c.StartedAt.UTC(), c.RequestLimit,
	)
	if err != nil {
		return fmt.Errorf("start cycle: %w", err)
	}
	return nil
}

// EndCycle marks a cycle as suspended.
func (t *SQLiteTracker) EndCycle(ctx context.Context, id string, requests int, suspendedAt, resumeAt time.Time) error {
	res, err := t.db.ExecContext(ctx,
		`UPDATE cycles SET requests = ?, suspended_at = ?, resume_at = ? WHERE id = ?`,
		requests, suspendedAt.UTC(), resumeAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("end cycle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end cycle: unknown cycle %q", id)
	}
	return nil
}

// Record stores a request record. An empty ID is filled in.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.RequestRecord) error {
	if rec.ID == "" {
		rec.ID = NewID()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO requests (id, cycle_id, seq, model, prompt, outcome, status_code, error,
			prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CycleID, rec.Seq, rec.Model, rec.Prompt, string(rec.Outcome), rec.StatusCode, rec.Error,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.LatencyMs, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record request: %w", err)
	}
	return nil
}

// Recent returns the newest request records, newest first.
func (t *SQLiteTracker) Recent(ctx context.Context, limit int) ([]models.RequestRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, cycle_id, seq, model, prompt, outcome, status_code, error,
			prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at
		 FROM requests ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var records []models.RequestRecord
	for rows.Next() {
		var r models.RequestRecord
		var outcome string
		if err := rows.Scan(&r.ID, &r.CycleID, &r.Seq, &r.Model, &r.Prompt, &outcome, &r.StatusCode, &r.Error,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.LatencyMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		r.Outcome = models.Outcome(outcome)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Cycles returns day-cycles started since a given time, newest first.
func (t *SQLiteTracker) Cycles(ctx context.Context, since time.Time) ([]models.CycleRecord, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, started_at, request_limit, requests, suspended_at, resume_at
		 FROM cycles WHERE started_at >= ? ORDER BY started_at DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []models.CycleRecord
	for rows.Next() {
		var c models.CycleRecord
		var suspended, resume sql.NullTime
		if err := rows.Scan(&c.ID, &c.StartedAt, &c.RequestLimit, &c.Requests, &suspended, &resume); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		c.SuspendedAt = suspended.Time
		c.ResumeAt = resume.Time
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// DailySummary aggregates requests per day since a given time. Days are
// bucketed in since's location so they line up with local-day cycles.
func (t *SQLiteTracker) DailySummary(ctx context.Context, since time.Time) ([]models.DaySummary, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT outcome, total_tokens, created_at FROM requests WHERE created_at >= ? ORDER BY created_at DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("daily summary: %w", err)
	}
	defer rows.Close()

	var days []models.DaySummary
	index := make(map[string]int)
	for rows.Next() {
		var outcome string
		var tokens int64
		var created time.Time
		if err := rows.Scan(&outcome, &tokens, &created); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		day := created.In(since.Location()).Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(days)
			index[day] = i
			days = append(days, models.DaySummary{Day: day})
		}
		d := &days[i]
		d.Requests++
		d.TotalTokens += tokens
		switch models.Outcome(outcome) {
		case models.OutcomeOK:
			d.Succeeded++
		case models.OutcomePromptFailed:
			d.PromptFailures++
		case models.OutcomeCompletionFailed:
			d.CompletionErrors++
		}
	}
	return days, rows.Err()
}

// Cleanup deletes requests and finished cycles older than the cutoff.
func (t *SQLiteTracker) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM requests WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("history cleanup: %w", err)
	}
	if _, err := t.db.ExecContext(ctx,
		`DELETE FROM cycles WHERE started_at < ? AND suspended_at IS NOT NULL`, before.UTC()); err != nil {
		return 0, fmt.Errorf("history cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
