package models

import "time"

// Requests for the HTTP endpoints. Defined in domain for consistency and reuse.

type SignalRequest struct {
	Ticker     string `json:"ticker" validate:"required,ticker"`
	Message    string `json:"message" validate:"required,max=4096"`
	Strong     bool   `json:"strong"`
	Source     string `json:"source" default:"http" validate:"max=64"`
	ReceivedAt string `json:"received_at"`
}

type HistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=20"`
}

type FillOrderRequest struct {
	ID         string `param:"id" validate:"required"`
	EntryPrice string `json:"entry_price" validate:"required,numeric"`
}

type CloseOrderRequest struct {
	ID         string `param:"id" validate:"required"`
	ClosePrice string `json:"close_price" validate:"required,numeric"`
	Reason     string `json:"reason" default:"manual" validate:"oneof=take_profit stop_loss manual direction_reversal"`
}

// PipelineResult is what the signal pipeline returns for one signal.
type PipelineResult struct {
	Signal    *Signal          `json:"signal"`
	Decision  *Decision        `json:"decision"`
	Execution *ExecutionReport `json:"execution,omitempty"`
	Duration  time.Duration    `json:"duration_ns"`
}
