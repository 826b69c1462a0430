package repository

import (
	"context"
	"time"

	"SignalPilot/internal/domain/models"

	"github.com/shopspring/decimal"
)

// UserDirectory lists users eligible for automated execution.
type UserDirectory interface {
	ListEligible(ctx context.Context) ([]models.UserProfile, error)
}

// OrderStore persists orders and enforces the status state machine.
type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	Activate(ctx context.Context, id string, entryPrice decimal.Decimal, at time.Time) (*models.Order, error)
	Close(ctx context.Context, id string, closePrice decimal.Decimal, reason models.CloseReason, pnl decimal.Decimal, at time.Time) (*models.Order, error)
	Fail(ctx context.Context, id string, at time.Time) error
}

// SignalHistoryStore records signal and per-user outcomes per asset.
type SignalHistoryStore interface {
	RecordOutcome(ctx context.Context, o models.SignalOutcome) error
	// QueryRecent returns up to limit signal-level outcomes for ticker, newest first.
	QueryRecent(ctx context.Context, ticker string, limit int) ([]models.SignalOutcome, error)
}

// NotificationSink receives fire-and-forget domain events.
type NotificationSink interface {
	Publish(ctx context.Context, kind string, payload interface{}) error
}

// AuditStore keeps an append-only trail of monitor and decision activity.
type AuditStore interface {
	SaveSnapshot(ctx context.Context, s *models.MarketDirectionSnapshot) error
	SaveDirectionEvent(ctx context.Context, e *models.DirectionChangeEvent) error
	SaveDecision(ctx context.Context, d *models.Decision) error
	SaveExecution(ctx context.Context, r *models.ExecutionReport) error
	Close() error
}

// TickerLedger guards (user, ticker) pairs against re-entry.
// Reserve must be atomic per key; a held reservation expires after reserveTTL.
type TickerLedger interface {
	Reserve(ctx context.Context, userID, ticker string, reserveTTL time.Duration) (bool, error)
	Commit(ctx context.Context, userID, ticker string, ttl time.Duration) error
	Release(ctx context.Context, userID, ticker string) error
	Lookup(ctx context.Context, userID, ticker string) (*models.TickerLock, error)
}

// Metrics records operational counters and latencies.
type Metrics interface {
	RecordTick(degraded bool, direction string, confidence float64)
	RecordDirectionChange(kind, severity string)
	RecordDecision(approved bool, source, rejectCode string)
	RecordExecution(success bool, reason string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
