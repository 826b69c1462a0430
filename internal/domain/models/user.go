package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserProfile is the execution-relevant slice of a user account.
type UserProfile struct {
	ID           string          `json:"id"`
	Tier         int             `json:"tier"`
	Leverage     int             `json:"leverage"`
	TradeAmount  decimal.Decimal `json:"trade_amount"`
	Overrides    *Multipliers    `json:"overrides,omitempty"`
	MaxPositions int             `json:"max_positions"`
}

// BalanceInfo is what the account service reports about a user's wallet.
type BalanceInfo struct {
	Available     decimal.Decimal `json:"available"`
	Bucket        string          `json:"bucket"`
	OpenPositions int             `json:"open_positions"`
}

// AccountCheck is the account validator's verdict for one user.
type AccountCheck struct {
	OK       bool        `json:"ok"`
	Reason   string      `json:"reason,omitempty"`
	Exchange string      `json:"exchange,omitempty"`
	Balance  BalanceInfo `json:"balance"`
}

// Execution result codes.
const (
	ResultAccountInvalid      = "account_invalid"
	ResultAccountCheckFailed  = "account_check_failed"
	ResultPositionLimit       = "position_limit_reached"
	ResultInsufficientBalance = "insufficient_balance"
	ResultTickerCooling       = "ticker_cooling_down"
	ResultLedgerUnavailable   = "ledger_unavailable"
	ResultProtectionInvalid   = "protection_invalid"
	ResultOrderInvalid        = "order_invalid"
	ResultOrderStoreFailed    = "order_store_failed"
	ResultTimeout             = "timeout"
	ResultPanic               = "internal_error"
)

// UserExecutionResult is the outcome of fan-out for one user.
type UserExecutionResult struct {
	UserID     string           `json:"user_id"`
	Success    bool             `json:"success"`
	OrderID    string           `json:"order_id,omitempty"`
	ReasonCode string           `json:"reason_code,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	Protection *OrderProtection `json:"protection,omitempty"`
}

type ExecutionSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// ExecutionReport aggregates a fan-out run for one approved decision.
type ExecutionReport struct {
	SignalID   string                `json:"signal_id"`
	DecisionID string                `json:"decision_id"`
	Ticker     string                `json:"ticker"`
	Results    []UserExecutionResult `json:"results"`
	Summary    ExecutionSummary      `json:"summary"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// TickerLock marks a (user, ticker) pair as cooling down until ExpiresAt.
type TickerLock struct {
	UserID    string    `json:"user_id"`
	Ticker    string    `json:"ticker"`
	ExpiresAt time.Time `json:"expires_at"`
}
