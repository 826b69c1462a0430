package usecase

import (
	"context"
	"strings"
	"time"

	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	domsvc "SignalPilot/internal/domain/service"
	applogger "SignalPilot/pkg/logger"
	"SignalPilot/pkg/util"

	"github.com/google/uuid"
)

// SignalPipeline runs one inbound signal through classification, decision and
// fan-out. The snapshot captured in the decision is the one execution sees.
type SignalPipeline struct {
	classifier domsvc.SignalClassifier
	engine     *DecisionEngine
	executor   *FanoutExecutor
	metrics    domrepo.Metrics
	logger     *applogger.Logger
	now        func() time.Time
}

type PipelineOption func(*SignalPipeline)

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *SignalPipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *SignalPipeline) { p.now = now }
}

func NewSignalPipeline(classifier domsvc.SignalClassifier, engine *DecisionEngine, executor *FanoutExecutor, metrics domrepo.Metrics, opts ...PipelineOption) *SignalPipeline {
	p := &SignalPipeline{
		classifier: classifier,
		engine:     engine,
		executor:   executor,
		metrics:    metrics,
		logger:     applogger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewSignal converts a request into a Signal, inferring the direction from the message.
func (p *SignalPipeline) NewSignal(req models.SignalRequest) (*models.Signal, error) {
	ticker := NormalizeTicker(req.Ticker)
	if ticker == "" {
		return nil, errs.Validation("ticker_required", "ticker is required")
	}
	received := p.now()
	if req.ReceivedAt != "" {
		t, ok := util.ParseTime(req.ReceivedAt)
		if !ok {
			return nil, errs.Validation("received_at_invalid", "received_at must be RFC3339 or a unix timestamp: %q", req.ReceivedAt)
		}
		received = t
	}
	source := req.Source
	if source == "" {
		source = "unknown"
	}
	return &models.Signal{
		ID:            uuid.NewString(),
		Ticker:        ticker,
		DirectionHint: p.classifier.Classify(req.Message),
		IsStrong:      req.Strong,
		Source:        source,
		Message:       req.Message,
		ReceivedAt:    received,
	}, nil
}

// Submit builds a signal from req and processes it.
func (p *SignalPipeline) Submit(ctx context.Context, req models.SignalRequest) (*models.PipelineResult, error) {
	sig, err := p.NewSignal(req)
	if err != nil {
		p.metrics.RecordError("signal_invalid")
		return nil, err
	}
	return p.Process(ctx, sig)
}

// Process evaluates sig and, on approval, executes it for every eligible user.
// A rejected signal is a successful result with ShouldExecute false.
func (p *SignalPipeline) Process(ctx context.Context, sig *models.Signal) (*models.PipelineResult, error) {
	start := time.Now()
	res := &models.PipelineResult{Signal: sig}
	res.Decision = p.engine.Evaluate(ctx, sig)

	if res.Decision.ShouldExecute {
		report, err := p.executor.Execute(ctx, sig, res.Decision)
		if err != nil {
			p.logger.Error("fan-out failed",
				applogger.String("signal_id", sig.ID),
				applogger.String("ticker", sig.Ticker),
				applogger.Error(err),
			)
			res.Duration = time.Since(start)
			return res, err
		}
		res.Execution = report
	}
	res.Duration = time.Since(start)
	p.metrics.RecordLatency("pipeline", res.Duration.Seconds())
	return res, nil
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
