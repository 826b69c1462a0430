package models

import "time"

// Direction is the side a signal asks to open.
type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionUnknown Direction = "unknown"
)

// Opposite returns the other side; Unknown stays Unknown.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionUnknown
	}
}

// Signal is an incoming trade idea. Treat as immutable once built.
type Signal struct {
	ID            string    `json:"id"`
	Ticker        string    `json:"ticker"`
	DirectionHint Direction `json:"direction_hint"`
	IsStrong      bool      `json:"is_strong"`
	Source        string    `json:"source"`
	Message       string    `json:"message"`
	ReceivedAt    time.Time `json:"received_at"`
}

// ConditionResult is one scored factor with its explanation.
type ConditionResult struct {
	Favorable bool   `json:"favorable"`
	Detail    string `json:"detail"`
}

// ConditionEvaluation holds the four scored factors of a decision.
type ConditionEvaluation struct {
	MarketAligned         ConditionResult `json:"market_aligned"`
	MomentumFavorable     ConditionResult `json:"momentum_favorable"`
	AssetHistoryFavorable ConditionResult `json:"asset_history_favorable"`
	BreadthAligned        ConditionResult `json:"breadth_aligned"`
	FavorableCount        int             `json:"favorable_count"`
	RequiredCount         int             `json:"required_count"`
}

// Approved reports whether enough conditions were favorable.
func (c ConditionEvaluation) Approved() bool {
	return c.FavorableCount >= c.RequiredCount
}

type DecisionSource string

const (
	SourceAiReasoning DecisionSource = "ai_reasoning"
	SourceFallback    DecisionSource = "fallback"
)

// Reject codes carried by decisions and execution results.
const (
	RejectInvalidSignal     = "invalid_signal"
	RejectDirectionUnknown  = "direction_unknown"
	RejectStale             = "stale_signal"
	RejectDirectionBlocked  = "direction_blocked"
	RejectInsufficientScore = "insufficient_conditions"
	RejectAiVeto            = "ai_rejected"
)

// Decision is the outcome of evaluating one signal.
type Decision struct {
	ID            string                   `json:"id"`
	SignalID      string                   `json:"signal_id"`
	Ticker        string                   `json:"ticker"`
	Direction     Direction                `json:"direction"`
	ShouldExecute bool                     `json:"should_execute"`
	Reasoning     string                   `json:"reasoning"`
	Confidence    float64                  `json:"confidence"`
	Source        DecisionSource           `json:"source"`
	RejectCode    string                   `json:"reject_code,omitempty"`
	Conditions    *ConditionEvaluation     `json:"conditions,omitempty"`
	Snapshot      *MarketDirectionSnapshot `json:"snapshot,omitempty"`
	DecidedAt     time.Time                `json:"decided_at"`
}

// SignalOutcome is one entry of the per-asset history.
// UserID is empty for signal-level decisions.
type SignalOutcome struct {
	Ticker    string    `json:"ticker"`
	Direction Direction `json:"direction"`
	Approved  bool      `json:"approved"`
	UserID    string    `json:"user_id,omitempty"`
	SignalID  string    `json:"signal_id"`
	Timestamp time.Time `json:"timestamp"`
}
