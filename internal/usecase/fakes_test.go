package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"SignalPilot/internal/domain/models"
	domsvc "SignalPilot/internal/domain/service"

	"github.com/shopspring/decimal"
)

type fakeFeed struct {
	mu           sync.Mutex
	sentiment    float64
	breadth      float64
	sentimentErr error
	breadthErr   error
	calls        int32
}

func (f *fakeFeed) set(sentiment, breadth float64) {
	f.mu.Lock()
	f.sentiment, f.breadth = sentiment, breadth
	f.sentimentErr, f.breadthErr = nil, nil
	f.mu.Unlock()
}

func (f *fakeFeed) fail(err error) {
	f.mu.Lock()
	f.sentimentErr, f.breadthErr = err, err
	f.mu.Unlock()
}

func (f *fakeFeed) FetchSentiment(context.Context) (float64, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentiment, f.sentimentErr
}

func (f *fakeFeed) FetchBreadth(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.breadth, f.breadthErr
}

type fixedSnapshots struct{ snap models.MarketDirectionSnapshot }

func (f fixedSnapshots) Current(context.Context) models.MarketDirectionSnapshot { return f.snap }

type fakeOscillator struct {
	v   float64
	err error
}

func (f fakeOscillator) Fetch(context.Context, string) (float64, error) { return f.v, f.err }

type fakeReasoner struct {
	verdict domsvc.ReasoningVerdict
	err     error
	delay   time.Duration
}

func (f fakeReasoner) Evaluate(ctx context.Context, _ domsvc.ReasoningRequest) (domsvc.ReasoningVerdict, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domsvc.ReasoningVerdict{}, ctx.Err()
		}
	}
	return f.verdict, f.err
}

// fakeAccounts approves everyone with a healthy balance unless overridden per user.
type fakeAccounts struct {
	mu     sync.Mutex
	checks map[string]models.AccountCheck
	errs   map[string]error
	panics map[string]bool
	calls  map[string]int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		checks: map[string]models.AccountCheck{},
		errs:   map[string]error{},
		panics: map[string]bool{},
		calls:  map[string]int{},
	}
}

func (f *fakeAccounts) Validate(_ context.Context, u models.UserProfile, _ *models.Signal) (models.AccountCheck, error) {
	f.mu.Lock()
	f.calls[u.ID]++
	check, hasCheck := f.checks[u.ID]
	err := f.errs[u.ID]
	boom := f.panics[u.ID]
	f.mu.Unlock()
	if boom {
		panic("account service exploded")
	}
	if err != nil {
		return models.AccountCheck{}, err
	}
	if hasCheck {
		return check, nil
	}
	return models.AccountCheck{OK: true, Exchange: "binance", Balance: models.BalanceInfo{Available: dec("1000"), Bucket: "futures"}}, nil
}

func (f *fakeAccounts) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

var errUpstream = errors.New("upstream down")

// clock is a settable time source shared by components under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// snapshotFor builds a snapshot from raw readings.
func snapshotFor(sentiment, breadth float64) models.MarketDirectionSnapshot {
	return BuildSnapshot(sentiment, breadth, false, time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
