package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonathan/regression-baseline/internal/types"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS baseline_snapshots (
	id                TEXT PRIMARY KEY,
	captured_at       TIMESTAMPTZ NOT NULL,
	target_url        TEXT NOT NULL,
	version           TEXT NOT NULL,
	absent_dimensions TEXT[] NOT NULL DEFAULT '{}',
	document          JSONB NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS comparison_reports (
	id                 UUID PRIMARY KEY,
	baseline_id        TEXT,
	current_id         TEXT,
	generated_at       TIMESTAMPTZ NOT NULL,
	baseline_captured_at TIMESTAMPTZ NOT NULL,
	current_captured_at  TIMESTAMPTZ NOT NULL,
	passed             BOOLEAN NOT NULL,
	total              INTEGER NOT NULL,
	passed_count       INTEGER NOT NULL,
	warnings           INTEGER NOT NULL,
	failed             INTEGER NOT NULL,
	document           JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_baseline_snapshots_captured_at ON baseline_snapshots (captured_at DESC);
CREATE INDEX IF NOT EXISTS idx_comparison_reports_generated_at ON comparison_reports (generated_at DESC);
`

const insertSnapshotSQL = `
INSERT INTO baseline_snapshots (id, captured_at, target_url, version, absent_dimensions, document)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET captured_at = $2, target_url = $3, version = $4,
    absent_dimensions = $5, document = $6, created_at = NOW()`

const insertReportSQL = `
INSERT INTO comparison_reports (id, baseline_id, current_id, generated_at, baseline_captured_at,
    current_captured_at, passed, total, passed_count, warnings, failed, document)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// PGHistory records every saved baseline and comparison report in PostgreSQL.
// The filesystem store stays authoritative; this is an audit trail.
type PGHistory struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the history database.
func Connect(ctx context.Context, databaseURL string) (*PGHistory, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PGHistory{pool: pool}, nil
}

// Close closes the connection pool
func (h *PGHistory) Close() {
	if h.pool != nil {
		h.pool.Close()
	}
}

// EnsureSchema creates the history tables if they do not exist.
func (h *PGHistory) EnsureSchema(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// RecordSnapshot stores a captured baseline. Re-recording the same ID replaces it.
func (h *PGHistory) RecordSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	doc, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	absent := snapshot.AbsentDimensions()
	if absent == nil {
		absent = []string{}
	}

	_, err = h.pool.Exec(ctx, insertSnapshotSQL,
		snapshot.ID, snapshot.Timestamp, snapshot.TargetURL, snapshot.Version, absent, doc,
	)
	if err != nil {
		return fmt.Errorf("failed to record snapshot %s: %w", snapshot.ID, err)
	}
	return nil
}

// RecordReport stores a comparison report and returns its ID.
func (h *PGHistory) RecordReport(ctx context.Context, baselineID, currentID string, report *types.Report) (uuid.UUID, error) {
	doc, err := json.Marshal(report)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	id := uuid.New()
	_, err = h.pool.Exec(ctx, insertReportSQL,
		id, baselineID, currentID, report.GeneratedAt, report.BaselineTimestamp, report.CurrentTimestamp,
		report.Passed, report.Summary.Total, report.Summary.Passed, report.Summary.Warnings, report.Summary.Failed, doc,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record report: %w", err)
	}
	return id, nil
}

// HistoryRecord is a stored baseline together with the latest comparison made against it.
type HistoryRecord struct {
	SnapshotID       string     `json:"snapshot_id"`
	CapturedAt       time.Time  `json:"captured_at"`
	TargetURL        string     `json:"target_url"`
	AbsentDimensions []string   `json:"absent_dimensions"`
	Comparisons      int        `json:"comparisons"`
	LastComparedAt   *time.Time `json:"last_compared_at,omitempty"`
	LastPassed       *bool      `json:"last_passed,omitempty"`
}

// Recent returns the latest recorded baselines, newest first.
func (h *PGHistory) Recent(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.pool.Query(ctx,
		`SELECT s.id, s.captured_at, s.target_url, s.absent_dimensions,
		        (SELECT COUNT(*) FROM comparison_reports r WHERE r.baseline_id = s.id),
		        last.generated_at, last.passed
		 FROM baseline_snapshots s
		 LEFT JOIN LATERAL (
		     SELECT generated_at, passed FROM comparison_reports r
		     WHERE r.baseline_id = s.id
		     ORDER BY generated_at DESC LIMIT 1
		 ) last ON TRUE
		 ORDER BY s.captured_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.SnapshotID, &rec.CapturedAt, &rec.TargetURL, &rec.AbsentDimensions,
			&rec.Comparisons, &rec.LastComparedAt, &rec.LastPassed); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return out, nil
}

// GetSnapshot returns a recorded snapshot document, or nil if none has that ID.
func (h *PGHistory) GetSnapshot(ctx context.Context, id string) (*types.Snapshot, error) {
	var doc []byte
	err := h.pool.QueryRow(ctx, `SELECT document FROM baseline_snapshots WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot %s: %w", id, err)
	}
	var snapshot types.Snapshot
	if err := json.Unmarshal(doc, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", id, err)
	}
	return &snapshot, nil
}
