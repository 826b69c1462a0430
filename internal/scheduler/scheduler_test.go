package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"SignalPilot/internal/domain/models"
	"SignalPilot/pkg/cache"
)

type countingTicker struct{ n int32 }

func (c *countingTicker) Tick(context.Context) models.MarketDirectionSnapshot {
	atomic.AddInt32(&c.n, 1)
	return models.MarketDirectionSnapshot{AllowedDirection: models.AllowLongAndShort}
}

func TestRunMonitorSharedLock(t *testing.T) {
	shared := cache.NewMemoryCache()
	defer shared.Close()
	tick := &countingTicker{}

	a := New(tick, shared, time.Minute, nil)
	b := New(tick, shared, time.Minute, nil)
	a.RunMonitor()
	b.RunMonitor()
	if got := atomic.LoadInt32(&tick.n); got != 1 {
		t.Fatalf("replicas sharing a lock should tick once per interval, got %d", got)
	}
}

func TestRunMonitorWithoutLock(t *testing.T) {
	tick := &countingTicker{}
	s := New(tick, nil, time.Minute, nil)
	s.RunMonitor()
	s.RunMonitor()
	if got := atomic.LoadInt32(&tick.n); got != 2 {
		t.Fatalf("expected 2 ticks, got %d", got)
	}
}

func TestRegisterAndStop(t *testing.T) {
	s := New(&countingTicker{}, nil, time.Second, nil)
	if err := s.RegisterAll(); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
