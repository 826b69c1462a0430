package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	domsvc "SignalPilot/internal/domain/service"
	applogger "SignalPilot/pkg/logger"

	"github.com/google/uuid"
)

// SnapshotSource serves the current market direction snapshot.
type SnapshotSource interface {
	Current(ctx context.Context) models.MarketDirectionSnapshot
}

// DecisionConfig holds decision engine tunables.
type DecisionConfig struct {
	Freshness       time.Duration
	StrongFreshness time.Duration
	HistoryLimit    int
	HistoryWindow   time.Duration
	MomentumUpper   float64
	MomentumLower   float64
	ReasonerTimeout time.Duration
}

// DefaultDecisionConfig returns the reference tunables.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		Freshness:       30 * time.Second,
		StrongFreshness: 60 * time.Second,
		HistoryLimit:    10,
		HistoryWindow:   4 * time.Hour,
		MomentumUpper:   70,
		MomentumLower:   30,
		ReasonerTimeout: 8 * time.Second,
	}
}

// DecisionEngine validates and scores signals. It keeps no per-signal state
// and may be called concurrently.
type DecisionEngine struct {
	cfg        DecisionConfig
	snapshots  SnapshotSource
	history    domrepo.SignalHistoryStore
	oscillator domsvc.AssetOscillator
	reasoner   domsvc.AiReasoner
	audit      domrepo.AuditStore
	sink       domrepo.NotificationSink
	metrics    domrepo.Metrics
	logger     *applogger.Logger
	now        func() time.Time
}

type DecisionOption func(*DecisionEngine)

func WithOscillator(o domsvc.AssetOscillator) DecisionOption {
	return func(e *DecisionEngine) { e.oscillator = o }
}

// WithReasoner enables the advisory AI step.
func WithReasoner(r domsvc.AiReasoner) DecisionOption {
	return func(e *DecisionEngine) { e.reasoner = r }
}

func WithDecisionAudit(a domrepo.AuditStore) DecisionOption {
	return func(e *DecisionEngine) { e.audit = a }
}

func WithDecisionSink(s domrepo.NotificationSink) DecisionOption {
	return func(e *DecisionEngine) { e.sink = s }
}

func WithDecisionLogger(l *applogger.Logger) DecisionOption {
	return func(e *DecisionEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithDecisionClock(now func() time.Time) DecisionOption {
	return func(e *DecisionEngine) { e.now = now }
}

func NewDecisionEngine(cfg DecisionConfig, snapshots SnapshotSource, history domrepo.SignalHistoryStore, metrics domrepo.Metrics, opts ...DecisionOption) *DecisionEngine {
	def := DefaultDecisionConfig()
	if cfg.Freshness <= 0 {
		cfg.Freshness = def.Freshness
	}
	if cfg.StrongFreshness <= 0 {
		cfg.StrongFreshness = def.StrongFreshness
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	if cfg.MomentumUpper <= 0 {
		cfg.MomentumUpper = def.MomentumUpper
	}
	if cfg.MomentumLower <= 0 {
		cfg.MomentumLower = def.MomentumLower
	}
	if cfg.ReasonerTimeout <= 0 {
		cfg.ReasonerTimeout = def.ReasonerTimeout
	}
	e := &DecisionEngine{
		cfg:       cfg,
		snapshots: snapshots,
		history:   history,
		metrics:   metrics,
		logger:    applogger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the freshness and direction gates, scores the four conditions
// and optionally consults the reasoner. It always returns a decision.
func (e *DecisionEngine) Evaluate(ctx context.Context, sig *models.Signal) *models.Decision {
	start := time.Now()
	d := e.evaluate(ctx, sig)
	e.metrics.RecordLatency("decision_evaluate", time.Since(start).Seconds())
	e.finish(ctx, d)
	return d
}

func (e *DecisionEngine) evaluate(ctx context.Context, sig *models.Signal) *models.Decision {
	now := e.now()
	d := &models.Decision{
		ID:        uuid.NewString(),
		Source:    models.SourceFallback,
		DecidedAt: now,
	}
	if sig == nil || strings.TrimSpace(sig.Ticker) == "" {
		return reject(d, models.RejectInvalidSignal, "signal has no ticker")
	}
	d.SignalID = sig.ID
	d.Ticker = sig.Ticker
	d.Direction = sig.DirectionHint
	if sig.DirectionHint != models.DirectionLong && sig.DirectionHint != models.DirectionShort {
		return reject(d, models.RejectDirectionUnknown, "could not infer a direction from the signal")
	}

	window := e.cfg.Freshness
	if sig.IsStrong {
		window = e.cfg.StrongFreshness
	}
	if age := now.Sub(sig.ReceivedAt); age > window {
		return reject(d, models.RejectStale, fmt.Sprintf("signal age %s exceeds %s window", age.Truncate(time.Millisecond), window))
	}

	snap := e.snapshots.Current(ctx)
	d.Snapshot = &snap
	d.Confidence = snap.Confidence

	if snap.AllowedDirection.Blocks(sig.DirectionHint) {
		return reject(d, models.RejectDirectionBlocked,
			fmt.Sprintf("market is %s, %s signals are blocked", snap.AllowedDirection, sig.DirectionHint))
	}

	osc := e.fetchOscillator(ctx, sig.Ticker)
	cond := e.score(ctx, sig, snap, osc, now)
	d.Conditions = &cond
	d.ShouldExecute = cond.Approved()
	d.Reasoning = summarize(&cond)
	if !d.ShouldExecute {
		d.RejectCode = models.RejectInsufficientScore
	}

	if e.reasoner != nil {
		e.consultReasoner(ctx, d, sig, osc)
	}
	return d
}

func (e *DecisionEngine) score(ctx context.Context, sig *models.Signal, snap models.MarketDirectionSnapshot, osc *float64, now time.Time) models.ConditionEvaluation {
	cond := models.ConditionEvaluation{
		MarketAligned:     EvaluateMarketAlignment(sig.DirectionHint, snap),
		MomentumFavorable: EvaluateMomentum(sig.DirectionHint, osc, e.cfg.MomentumUpper, e.cfg.MomentumLower),
		BreadthAligned:    EvaluateBreadthAlignment(sig.DirectionHint, snap),
	}
	outcomes, err := e.history.QueryRecent(ctx, sig.Ticker, e.cfg.HistoryLimit)
	if err != nil {
		e.metrics.RecordError("history_query")
		e.logger.Warn("asset history unavailable", applogger.String("ticker", sig.Ticker), applogger.Error(err))
		cond.AssetHistoryFavorable = models.ConditionResult{Favorable: true, Detail: "history unavailable, treated as neutral"}
	} else {
		cond.AssetHistoryFavorable = EvaluateAssetHistory(sig.DirectionHint, outcomes, now, e.cfg.HistoryWindow)
	}
	Tally(&cond, sig.IsStrong)
	return cond
}

func (e *DecisionEngine) fetchOscillator(ctx context.Context, ticker string) *float64 {
	if e.oscillator == nil {
		return nil
	}
	v, err := e.oscillator.Fetch(ctx, ticker)
	if err != nil {
		e.metrics.RecordError("oscillator_fetch")
		e.logger.Warn("oscillator fetch failed", applogger.String("ticker", ticker), applogger.Error(err))
		return nil
	}
	return &v
}

func (e *DecisionEngine) consultReasoner(ctx context.Context, d *models.Decision, sig *models.Signal, osc *float64) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.ReasonerTimeout)
	defer cancel()

	start := time.Now()
	verdict, err := e.reasoner.Evaluate(rctx, domsvc.ReasoningRequest{
		Signal:     sig,
		Snapshot:   d.Snapshot,
		Conditions: d.Conditions,
		Oscillator: osc,
	})
	e.metrics.RecordLatency("reasoner_evaluate", time.Since(start).Seconds())
	if err != nil {
		e.metrics.RecordError("reasoner")
		e.logger.Warn("reasoner unavailable, using deterministic result",
			applogger.String("signal_id", sig.ID),
			applogger.Error(err),
		)
		return
	}
	d.Source = models.SourceAiReasoning
	d.ShouldExecute = verdict.Execute
	d.Reasoning = strings.TrimSpace(verdict.Reasoning + " | " + d.Reasoning)
	d.RejectCode = ""
	if !verdict.Execute {
		d.RejectCode = models.RejectAiVeto
	}
}

func (e *DecisionEngine) finish(ctx context.Context, d *models.Decision) {
	e.metrics.RecordDecision(d.ShouldExecute, string(d.Source), d.RejectCode)
	fields := []applogger.Field{
		applogger.String("decision_id", d.ID),
		applogger.String("signal_id", d.SignalID),
		applogger.String("ticker", d.Ticker),
		applogger.String("direction", string(d.Direction)),
		applogger.Bool("execute", d.ShouldExecute),
		applogger.String("source", string(d.Source)),
	}
	if d.RejectCode != "" {
		fields = append(fields, applogger.String("reject_code", d.RejectCode))
	}
	e.logger.Info("signal decided", fields...)

	if d.Ticker != "" && (d.Direction == models.DirectionLong || d.Direction == models.DirectionShort) {
		err := e.history.RecordOutcome(ctx, models.SignalOutcome{
			Ticker:    d.Ticker,
			Direction: d.Direction,
			Approved:  d.ShouldExecute,
			SignalID:  d.SignalID,
			Timestamp: d.DecidedAt,
		})
		if err != nil {
			e.metrics.RecordError("history_record")
			e.logger.Warn("record signal outcome failed", applogger.Error(err))
		}
	}
	if e.audit != nil {
		if err := e.audit.SaveDecision(ctx, d); err != nil {
			e.metrics.RecordError("audit_decision")
			e.logger.Warn("save decision failed", applogger.Error(err))
		}
	}
	if e.sink != nil {
		if err := e.sink.Publish(ctx, EventDecision, d); err != nil {
			e.metrics.RecordError("notify_decision")
			e.logger.Warn("publish decision failed", applogger.Error(err))
		}
	}
}

func reject(d *models.Decision, code, detail string) *models.Decision {
	d.ShouldExecute = false
	d.RejectCode = code
	d.Reasoning = detail
	return d
}

func summarize(c *models.ConditionEvaluation) string {
	return fmt.Sprintf("%d/4 conditions favorable, %d required; market: %s; momentum: %s; history: %s; breadth: %s",
		c.FavorableCount, c.RequiredCount,
		c.MarketAligned.Detail, c.MomentumFavorable.Detail,
		c.AssetHistoryFavorable.Detail, c.BreadthAligned.Detail)
}
