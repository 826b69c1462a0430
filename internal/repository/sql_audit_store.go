package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"SignalPilot/internal/domain/models"
	applogger "SignalPilot/pkg/logger"
)

// Dialect carries the backend-specific DDL. Both supported backends take
// "?" placeholders and native bool/int64/float64/string args, so the
// queries are shared.
type Dialect struct {
	Name   string
	Schema []string
}

// ClickHouseDialect stores audit rows in MergeTree tables ordered for
// per-ticker history scans.
var ClickHouseDialect = Dialect{
	Name: "clickhouse",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS market_snapshots (
			ts_ms Int64,
			allowed_direction LowCardinality(String),
			confidence Float64,
			degraded Bool,
			payload String
		) ENGINE = MergeTree ORDER BY ts_ms`,
		`CREATE TABLE IF NOT EXISTS direction_events (
			ts_ms Int64,
			kind LowCardinality(String),
			severity LowCardinality(String),
			payload String
		) ENGINE = MergeTree ORDER BY ts_ms`,
		`CREATE TABLE IF NOT EXISTS decisions (
			ts_ms Int64,
			id String,
			signal_id String,
			ticker LowCardinality(String),
			approved Bool,
			reject_code LowCardinality(String),
			payload String
		) ENGINE = MergeTree ORDER BY (ticker, ts_ms)`,
		`CREATE TABLE IF NOT EXISTS executions (
			ts_ms Int64,
			signal_id String,
			decision_id String,
			successful Int64,
			failed Int64,
			payload String
		) ENGINE = MergeTree ORDER BY ts_ms`,
		`CREATE TABLE IF NOT EXISTS signal_outcomes (
			ts_ms Int64,
			ticker LowCardinality(String),
			direction LowCardinality(String),
			approved Bool,
			user_id String,
			signal_id String
		) ENGINE = MergeTree ORDER BY (ticker, ts_ms)`,
	},
}

// SQLiteDialect is the single-node equivalent.
var SQLiteDialect = Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS market_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_ms INTEGER NOT NULL,
			allowed_direction TEXT,
			confidence REAL,
			degraded INTEGER,
			payload TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS direction_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_ms INTEGER NOT NULL,
			kind TEXT,
			severity TEXT,
			payload TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			ts_ms INTEGER NOT NULL,
			id TEXT PRIMARY KEY,
			signal_id TEXT,
			ticker TEXT,
			approved INTEGER,
			reject_code TEXT,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_ticker ON decisions(ticker, ts_ms)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_ms INTEGER NOT NULL,
			signal_id TEXT,
			decision_id TEXT,
			successful INTEGER,
			failed INTEGER,
			payload TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS signal_outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_ms INTEGER NOT NULL,
			ticker TEXT NOT NULL,
			direction TEXT,
			approved INTEGER,
			user_id TEXT,
			signal_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_ticker ON signal_outcomes(ticker, ts_ms)`,
	},
}

// SQLAuditStore implements AuditStore and SignalHistoryStore over database/sql.
type SQLAuditStore struct {
	db      *sql.DB
	dialect Dialect
	l       *applogger.Logger
}

// NewSQLAuditStore wraps db. Call Init before first use.
func NewSQLAuditStore(db *sql.DB, dialect Dialect) *SQLAuditStore {
	return &SQLAuditStore{db: db, dialect: dialect, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *SQLAuditStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// Init creates the tables.
func (s *SQLAuditStore) Init(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s init schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

func (s *SQLAuditStore) SaveSnapshot(ctx context.Context, snap *models.MarketDirectionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.exec(ctx, "save_snapshot",
		`INSERT INTO market_snapshots (ts_ms, allowed_direction, confidence, degraded, payload) VALUES (?, ?, ?, ?, ?)`,
		snap.CreatedAt.UnixMilli(), string(snap.AllowedDirection), snap.Confidence, snap.Degraded, string(payload),
	)
}

func (s *SQLAuditStore) SaveDirectionEvent(ctx context.Context, e *models.DirectionChangeEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal direction event: %w", err)
	}
	return s.exec(ctx, "save_direction_event",
		`INSERT INTO direction_events (ts_ms, kind, severity, payload) VALUES (?, ?, ?, ?)`,
		e.DetectedAt.UnixMilli(), string(e.Kind), e.Severity.String(), string(payload),
	)
}

func (s *SQLAuditStore) SaveDecision(ctx context.Context, d *models.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	return s.exec(ctx, "save_decision",
		`INSERT INTO decisions (ts_ms, id, signal_id, ticker, approved, reject_code, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.DecidedAt.UnixMilli(), d.ID, d.SignalID, d.Ticker, d.ShouldExecute, d.RejectCode, string(payload),
	)
}

func (s *SQLAuditStore) SaveExecution(ctx context.Context, r *models.ExecutionReport) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	return s.exec(ctx, "save_execution",
		`INSERT INTO executions (ts_ms, signal_id, decision_id, successful, failed, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		r.FinishedAt.UnixMilli(), r.SignalID, r.DecisionID, int64(r.Summary.Successful), int64(r.Summary.Failed), string(payload),
	)
}

func (s *SQLAuditStore) RecordOutcome(ctx context.Context, o models.SignalOutcome) error {
	return s.exec(ctx, "record_outcome",
		`INSERT INTO signal_outcomes (ts_ms, ticker, direction, approved, user_id, signal_id) VALUES (?, ?, ?, ?, ?, ?)`,
		o.Timestamp.UnixMilli(), o.Ticker, string(o.Direction), o.Approved, o.UserID, o.SignalID,
	)
}

// QueryRecent returns signal-level outcomes for ticker, newest first.
func (s *SQLAuditStore) QueryRecent(ctx context.Context, ticker string, limit int) ([]models.SignalOutcome, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts_ms, ticker, direction, approved, signal_id FROM signal_outcomes
		WHERE ticker = ? AND user_id = ''
		ORDER BY ts_ms DESC LIMIT ?`, ticker, limit)
	if err != nil {
		s.l.Error("history query error", applogger.String("backend", s.dialect.Name), applogger.String("ticker", ticker), applogger.Error(err))
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]models.SignalOutcome, 0, limit)
	for rows.Next() {
		var (
			o        models.SignalOutcome
			ts       int64
			dir      string
			approved bool
		)
		if err := rows.Scan(&ts, &o.Ticker, &dir, &approved, &o.SignalID); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Timestamp = time.UnixMilli(ts).UTC()
		o.Direction = models.Direction(dir)
		o.Approved = approved
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// RecentDecisions returns the latest decisions, newest first.
func (s *SQLAuditStore) RecentDecisions(ctx context.Context, limit int) ([]models.Decision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM decisions ORDER BY ts_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Decision, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		var d models.Decision
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("decode decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close is a no-op; the pool is owned by the caller.
func (s *SQLAuditStore) Close() error { return nil }

func (s *SQLAuditStore) exec(ctx context.Context, op, q string, args ...interface{}) error {
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("audit write error", applogger.String("backend", s.dialect.Name), applogger.String("op", op), applogger.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
