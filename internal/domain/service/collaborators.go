package service

import (
	"context"
	"errors"

	"SignalPilot/internal/domain/models"
)

// ErrAmbiguousVerdict is returned by reasoners whose answer is neither yes nor no.
var ErrAmbiguousVerdict = errors.New("reasoner verdict is ambiguous")

// IndicatorFeed provides the two market-wide readings the direction monitor fuses.
type IndicatorFeed interface {
	// FetchSentiment returns the 0-100 sentiment index.
	FetchSentiment(ctx context.Context) (float64, error)
	// FetchBreadth returns the percent of the basket trading up.
	FetchBreadth(ctx context.Context) (float64, error)
}

// AssetOscillator returns a per-asset momentum oscillator (RSI-style, 0-100).
type AssetOscillator interface {
	Fetch(ctx context.Context, ticker string) (float64, error)
}

// ReasoningRequest is everything the reasoner needs to weigh a signal.
type ReasoningRequest struct {
	Signal     *models.Signal
	Snapshot   *models.MarketDirectionSnapshot
	Conditions *models.ConditionEvaluation
	Oscillator *float64
}

// ReasoningVerdict is a clear yes/no answer from the reasoner.
type ReasoningVerdict struct {
	Execute   bool
	Reasoning string
}

// AiReasoner gives an optional second opinion on a scored signal.
type AiReasoner interface {
	Evaluate(ctx context.Context, req ReasoningRequest) (ReasoningVerdict, error)
}

// AccountValidator checks whether a user can trade right now.
type AccountValidator interface {
	Validate(ctx context.Context, user models.UserProfile, signal *models.Signal) (models.AccountCheck, error)
}

// SignalClassifier turns a raw message into a direction hint.
type SignalClassifier interface {
	Classify(message string) models.Direction
}
