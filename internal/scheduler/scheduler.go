package scheduler

import (
	"context"
	"fmt"
	"time"

	"SignalPilot/internal/domain/models"
	"SignalPilot/pkg/cache"
	applogger "SignalPilot/pkg/logger"

	"github.com/robfig/cron/v3"
)

const monitorLockKey = "scheduler:monitor_tick"

// Ticker is the market monitor's periodic entry point.
type Ticker interface {
	Tick(ctx context.Context) models.MarketDirectionSnapshot
}

// Scheduler runs the monitor on a fixed interval. Runs never overlap in
// process, and a cache lock keeps replicas sharing a cache from ticking
// the same interval twice.
type Scheduler struct {
	cron     *cron.Cron
	monitor  Ticker
	lock     cache.Service
	interval time.Duration
	log      *applogger.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(monitor Ticker, lock cache.Service, interval time.Duration, log *applogger.Logger) *Scheduler {
	if log == nil {
		log = applogger.Nop()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	cl := cronLogger{l: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		monitor:  monitor,
		lock:     lock,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterAll registers the monitor tick.
func (s *Scheduler) RegisterAll() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.RunMonitor); err != nil {
		return fmt.Errorf("register monitor task: %w", err)
	}
	return nil
}

// Start runs one tick immediately, then the cron loop.
func (s *Scheduler) Start() {
	go s.RunMonitor()
	s.cron.Start()
	s.log.Info("scheduler started", applogger.Duration("interval", s.interval))
}

// Stop waits for a running tick, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// RunMonitor performs one guarded tick.
func (s *Scheduler) RunMonitor() {
	if s.lock != nil {
		// Held for most of an interval so a peer's cron firing slightly later skips.
		ok, err := s.lock.TryLock(s.ctx, monitorLockKey, s.interval*9/10)
		if err != nil {
			s.log.Warn("monitor lock unavailable, ticking anyway", applogger.Error(err))
		} else if !ok {
			s.log.Debug("monitor tick owned by another replica")
			return
		}
	}
	snap := s.monitor.Tick(s.ctx)
	s.log.Debug("monitor tick",
		applogger.String("direction", string(snap.AllowedDirection)),
		applogger.Float64("confidence", snap.Confidence),
		applogger.Bool("degraded", snap.Degraded),
	)
}

type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, applogger.Any("kv", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, applogger.Error(err), applogger.Any("kv", keysAndValues))
}
