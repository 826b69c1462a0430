package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
	"SignalPilot/pkg/metrics"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []models.SignalRequest
	err  error
}

func (r *recordingSubmitter) Submit(_ context.Context, req models.SignalRequest) (*models.PipelineResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	return &models.PipelineResult{}, nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}

func TestIntakeStampsAndNormalizes(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	next := &recordingSubmitter{}
	p := NewSignalIntake(next, metrics.Noop{}, WithIntakeClock(func() time.Time { return now }))
	if _, err := p.Process(context.Background(), models.SignalRequest{Ticker: " eth ", Message: "long"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	got := next.reqs[0]
	if got.Ticker != "ETH" || got.ReceivedAt != "2025-01-01T00:00:00Z" {
		t.Fatalf("unexpected forwarded request %+v", got)
	}
}

func TestIntakeRejectsInvalid(t *testing.T) {
	p := NewSignalIntake(&recordingSubmitter{}, metrics.Noop{})
	for _, req := range []models.SignalRequest{{Message: "long"}, {Ticker: "BTC", Message: "  "}} {
		if _, err := p.Process(context.Background(), req); !errs.Is(err, errs.KindValidation) {
			t.Fatalf("%+v: expected validation error, got %v", req, err)
		}
	}
}

func TestIntakeDropsDuplicates(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	next := &recordingSubmitter{}
	p := NewSignalIntake(next, metrics.Noop{}, WithIntakeClock(func() time.Time { return now }), WithDedupWindow(10*time.Second))
	ctx := context.Background()

	p.Process(ctx, models.SignalRequest{Ticker: "BTC", Message: "BTC long"})
	if _, err := p.Process(ctx, models.SignalRequest{Ticker: "btc", Message: "btc LONG "}); errs.CodeOf(err, "") != "signal_duplicate" {
		t.Fatalf("expected duplicate, got %v", err)
	}
	now = now.Add(11 * time.Second)
	if _, err := p.Process(ctx, models.SignalRequest{Ticker: "BTC", Message: "BTC long"}); err != nil {
		t.Fatalf("duplicate window elapsed, got %v", err)
	}
	if next.count() != 2 {
		t.Fatalf("expected 2 forwarded, got %d", next.count())
	}
}

func TestIntakeThrottlesPerTicker(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	next := &recordingSubmitter{}
	p := NewSignalIntake(next, metrics.Noop{}, WithIntakeClock(func() time.Time { return now }), WithTickerRate(2, 0.1), WithDedupWindow(0))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := p.Process(ctx, models.SignalRequest{Ticker: "BTC", Message: "long"}); err != nil {
			t.Fatalf("signal %d: %v", i, err)
		}
	}
	if _, err := p.Process(ctx, models.SignalRequest{Ticker: "BTC", Message: "long"}); errs.CodeOf(err, "") != "signal_throttled" {
		t.Fatalf("expected throttled, got %v", err)
	}
	if _, err := p.Process(ctx, models.SignalRequest{Ticker: "ETH", Message: "long"}); err != nil {
		t.Fatalf("other tickers unaffected, got %v", err)
	}
}

func TestIntakeBuffersTransientFailures(t *testing.T) {
	next := &recordingSubmitter{err: errs.Transient("user_directory_unavailable", errors.New("db down"))}
	p := NewSignalIntake(next, metrics.Noop{}, WithRetryBuffer(1))
	ctx := context.Background()

	if _, err := p.Process(ctx, models.SignalRequest{Ticker: "BTC", Message: "long"}); err == nil {
		t.Fatalf("expected the downstream error to surface")
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("transient failure should be buffered, depth %d", len(p.bufCh))
	}

	next.err = errs.Validation("bad", "bad")
	p.Process(ctx, models.SignalRequest{Ticker: "ETH", Message: "short"})
	if len(p.bufCh) != 1 {
		t.Fatalf("validation failures must not be buffered")
	}
}

func TestIntakeRestartsRetryLoop(t *testing.T) {
	next := &recordingSubmitter{}
	p := NewSignalIntake(next, metrics.Noop{})
	ctx := context.Background()

	p.Start(ctx)
	p.Stop()
	p.Start(ctx)
	defer p.Stop()

	p.bufCh <- models.SignalRequest{Ticker: "BTC", Message: "long", ReceivedAt: time.Now().UTC().Format(time.RFC3339Nano)}
	deadline := time.Now().Add(2 * time.Second)
	for next.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("restarted retry loop never drained the buffer")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIntakeStopIsIdempotent(t *testing.T) {
	p := NewSignalIntake(&recordingSubmitter{}, metrics.Noop{})
	p.Stop()
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
