package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderActive  OrderStatus = "active"
	OrderClosed  OrderStatus = "closed"
	OrderFailed  OrderStatus = "failed"
)

// CanTransition reports whether the order state machine allows from -> to.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderPending:
		return to == OrderActive || to == OrderFailed
	case OrderActive:
		return to == OrderClosed
	default:
		return false
	}
}

type CloseReason string

const (
	CloseTakeProfit CloseReason = "take_profit"
	CloseStopLoss   CloseReason = "stop_loss"
	CloseManual     CloseReason = "manual"
	CloseReversal   CloseReason = "direction_reversal"
)

// OrderProtection is the mandatory stop-loss / take-profit pair, in percent.
type OrderProtection struct {
	Leverage          int     `json:"leverage"`
	StopLossPercent   float64 `json:"stop_loss_percent"`
	TakeProfitPercent float64 `json:"take_profit_percent"`
}

// Multipliers scale leverage into SL/TP percentages. Zero fields are unset.
type Multipliers struct {
	StopLoss      float64 `json:"stop_loss"`
	TakeProfit    float64 `json:"take_profit"`
	MaxStopLoss   float64 `json:"max_stop_loss"`
	MaxTakeProfit float64 `json:"max_take_profit"`
}

// Order is a position opened on behalf of one user.
type Order struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	SignalID    string           `json:"signal_id"`
	Ticker      string           `json:"ticker"`
	Direction   Direction        `json:"direction"`
	Amount      decimal.Decimal  `json:"amount"`
	Leverage    int              `json:"leverage"`
	Protection  OrderProtection  `json:"protection"`
	Status      OrderStatus      `json:"status"`
	EntryPrice  decimal.Decimal  `json:"entry_price"`
	ClosePrice  *decimal.Decimal `json:"close_price,omitempty"`
	CloseReason CloseReason      `json:"close_reason,omitempty"`
	PnL         *decimal.Decimal `json:"pnl,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	ActivatedAt *time.Time       `json:"activated_at,omitempty"`
	ClosedAt    *time.Time       `json:"closed_at,omitempty"`
}

// Validate checks the fields required before an order may be persisted.
func (o *Order) Validate(minNotional decimal.Decimal) error {
	if o.UserID == "" {
		return fmt.Errorf("user id required")
	}
	if o.Ticker == "" {
		return fmt.Errorf("ticker required")
	}
	if o.Direction != DirectionLong && o.Direction != DirectionShort {
		return fmt.Errorf("direction must be long or short, got %q", o.Direction)
	}
	if o.Leverage < 1 {
		return fmt.Errorf("leverage must be positive")
	}
	if o.Protection.StopLossPercent <= 0 || o.Protection.TakeProfitPercent <= 0 {
		return fmt.Errorf("stop loss and take profit are mandatory")
	}
	if !o.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if minNotional.IsPositive() && o.Amount.Mul(decimal.NewFromInt(int64(o.Leverage))).LessThan(minNotional) {
		return fmt.Errorf("notional %s below minimum %s", o.Amount.Mul(decimal.NewFromInt(int64(o.Leverage))), minNotional)
	}
	return nil
}

// ComputePnL returns (close-entry)/entry * leverage * amount, sign flipped for shorts.
func ComputePnL(dir Direction, entry, close, amount decimal.Decimal, leverage int) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	move := close.Sub(entry).Div(entry)
	if dir == DirectionShort {
		move = move.Neg()
	}
	return move.Mul(decimal.NewFromInt(int64(leverage))).Mul(amount)
}
