package usecase

import (
	"context"
	"testing"

	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
	"SignalPilot/pkg/metrics"
)

type fakeSubmitter struct {
	err  error
	reqs []models.SignalRequest
}

func (f *fakeSubmitter) Process(_ context.Context, req models.SignalRequest) (*models.PipelineResult, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.PipelineResult{
		Signal:   &models.Signal{ID: "sig-1", Ticker: req.Ticker},
		Decision: &models.Decision{SignalID: "sig-1", Ticker: req.Ticker},
	}, nil
}

func TestKafkaSignalsHandlerHandle(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		intakeErr  error
		wantErr    bool
		wantCalls  int
		wantSource string
	}{
		{
			name:      "malformed payload goes to dead letter",
			payload:   `{"ticker":`,
			wantErr:   true,
			wantCalls: 0,
		},
		{
			name:       "rejection is terminal",
			payload:    `{"ticker":"BTC","message":"BTC long","source":"tv"}`,
			intakeErr:  errs.Validation("direction_unknown", "no direction in message"),
			wantCalls:  1,
			wantSource: "tv",
		},
		{
			name:       "empty source defaults to kafka",
			payload:    `{"ticker":"ETH","message":"ETH short","strong":true}`,
			wantCalls:  1,
			wantSource: "kafka",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{err: tt.intakeErr}
			h := NewKafkaSignalsHandler("signals", sub, metrics.Noop{}, nil)

			err := h.Handle(context.Background(), []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handle error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(sub.reqs) != tt.wantCalls {
				t.Fatalf("expected %d intake calls, got %d", tt.wantCalls, len(sub.reqs))
			}
			if tt.wantCalls > 0 && sub.reqs[0].Source != tt.wantSource {
				t.Fatalf("source = %q, want %q", sub.reqs[0].Source, tt.wantSource)
			}
		})
	}
}

func TestKafkaSignalsHandlerTopic(t *testing.T) {
	h := NewKafkaSignalsHandler("signals.inbound", &fakeSubmitter{}, metrics.Noop{}, nil)
	if h.Topic() != "signals.inbound" {
		t.Fatalf("unexpected topic %q", h.Topic())
	}
}
