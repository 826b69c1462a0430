package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	"SignalPilot/internal/service/ratelimit"
	applogger "SignalPilot/pkg/logger"
	"SignalPilot/pkg/util"
)

// Submitter is the minimal pipeline interface the intake needs.
type Submitter interface {
	Submit(ctx context.Context, req models.SignalRequest) (*models.PipelineResult, error)
}

// SignalIntake sits in front of the pipeline for every transport.
// It validates, drops duplicates, throttles per ticker, and buffers signals
// whose processing failed on a transient upstream error.
type SignalIntake struct {
	next    Submitter
	metrics domrepo.Metrics
	logger  *applogger.Logger
	limiter *ratelimit.Limiter
	now     func() time.Time

	burst       float64
	refill      float64
	dedupWindow time.Duration
	retryMaxAge time.Duration

	bufCh   chan models.SignalRequest
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	recent  map[string]time.Time // dedup key -> first seen
}

type IntakeOption func(*SignalIntake)

// WithTickerRate sets the per-ticker token bucket.
func WithTickerRate(burst, refillPerSec float64) IntakeOption {
	return func(p *SignalIntake) {
		if burst > 0 && refillPerSec > 0 {
			p.burst, p.refill = burst, refillPerSec
		}
	}
}

// WithDedupWindow sets how long an identical ticker+message pair is suppressed.
func WithDedupWindow(d time.Duration) IntakeOption {
	return func(p *SignalIntake) { p.dedupWindow = d }
}

// WithRetryBuffer sets the buffer size for transiently failed signals.
func WithRetryBuffer(n int) IntakeOption {
	return func(p *SignalIntake) {
		if n > 0 {
			p.bufCh = make(chan models.SignalRequest, n)
		}
	}
}

// WithRetryMaxAge drops buffered signals older than d instead of retrying.
func WithRetryMaxAge(d time.Duration) IntakeOption {
	return func(p *SignalIntake) {
		if d > 0 {
			p.retryMaxAge = d
		}
	}
}

func WithIntakeLogger(l *applogger.Logger) IntakeOption {
	return func(p *SignalIntake) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithIntakeClock(now func() time.Time) IntakeOption {
	return func(p *SignalIntake) { p.now = now }
}

func NewSignalIntake(next Submitter, metrics domrepo.Metrics, opts ...IntakeOption) *SignalIntake {
	p := &SignalIntake{
		next:        next,
		metrics:     metrics,
		logger:      applogger.Nop(),
		now:         time.Now,
		burst:       5,
		refill:      0.5,
		dedupWindow: 30 * time.Second,
		retryMaxAge: 60 * time.Second,
		bufCh:       make(chan models.SignalRequest, 100),
		recent:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.limiter = ratelimit.New(ratelimit.WithClock(p.now))
	return p
}

// Start launches the retry loop for buffered signals. It may be called again
// after Stop.
func (p *SignalIntake) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.mu.Unlock()

	go func() {
		backoff := 100 * time.Millisecond
		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case req := <-p.bufCh:
				if p.expired(req) {
					p.metrics.RecordError("intake_retry_expired")
					p.logger.Warn("dropping buffered signal past retry age", applogger.String("ticker", req.Ticker))
					continue
				}
				if _, err := p.next.Submit(ctx, req); err != nil {
					p.metrics.RecordError("intake_retry")
					if errs.Is(err, errs.KindTransientExternal) {
						if backoff < 5*time.Second {
							backoff *= 2
						}
						time.Sleep(backoff)
						p.enqueue(req)
					}
					continue
				}
				backoff = 100 * time.Millisecond
			}
		}
	}()
}

// Stop stops the retry loop.
func (p *SignalIntake) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()
}

// Process validates, filters and forwards one signal.
func (p *SignalIntake) Process(ctx context.Context, req models.SignalRequest) (*models.PipelineResult, error) {
	start := p.now()
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if err := validateRequest(req); err != nil {
		p.metrics.RecordError("intake_validate")
		return nil, err
	}
	if req.ReceivedAt == "" {
		req.ReceivedAt = start.UTC().Format(time.RFC3339Nano)
	}
	if p.duplicate(req, start) {
		p.metrics.RecordError("intake_duplicate")
		return nil, errs.Conflict("signal_duplicate", "identical %s signal seen within %s", req.Ticker, p.dedupWindow)
	}
	if !p.limiter.Allow(req.Ticker, p.burst, p.refill) {
		p.metrics.RecordError("intake_throttle")
		return nil, errs.Conflict("signal_throttled", "too many %s signals", req.Ticker)
	}

	res, err := p.next.Submit(ctx, req)
	if err != nil {
		if errs.Is(err, errs.KindTransientExternal) {
			p.enqueue(req)
		}
		return res, err
	}
	p.metrics.RecordLatency("intake_process", time.Since(start).Seconds())
	return res, nil
}

func (p *SignalIntake) enqueue(req models.SignalRequest) {
	select {
	case p.bufCh <- req:
		p.logger.Info("signal buffered for retry", applogger.String("ticker", req.Ticker), applogger.Int("depth", len(p.bufCh)))
	default:
		p.metrics.RecordError("intake_buffer_full")
		p.logger.Warn("retry buffer full, signal dropped", applogger.String("ticker", req.Ticker))
	}
}

func (p *SignalIntake) expired(req models.SignalRequest) bool {
	t, ok := util.ParseTime(req.ReceivedAt)
	if !ok {
		return true
	}
	return p.now().Sub(t) > p.retryMaxAge
}

func (p *SignalIntake) duplicate(req models.SignalRequest, now time.Time) bool {
	if p.dedupWindow <= 0 {
		return false
	}
	key := req.Ticker + "|" + strings.ToLower(strings.TrimSpace(req.Message))
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.recent) > 256 {
		for k, seen := range p.recent {
			if now.Sub(seen) >= p.dedupWindow {
				delete(p.recent, k)
			}
		}
	}
	if seen, ok := p.recent[key]; ok && now.Sub(seen) < p.dedupWindow {
		return true
	}
	p.recent[key] = now
	return false
}

func validateRequest(req models.SignalRequest) error {
	if req.Ticker == "" {
		return errs.Validation("ticker_required", "ticker is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return errs.Validation("message_required", "message is required")
	}
	if len(req.Ticker) > 32 {
		return errs.Validation("ticker_too_long", "ticker exceeds 32 characters")
	}
	return nil
}
