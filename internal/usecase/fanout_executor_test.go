package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	"SignalPilot/internal/repository"
	"SignalPilot/pkg/cache"
	"SignalPilot/pkg/metrics"
)

type failingOrders struct {
	*repository.MemoryOrderStore
	failFor string
}

func (f *failingOrders) Create(ctx context.Context, o *models.Order) error {
	if o.UserID == f.failFor {
		return errUpstream
	}
	return f.MemoryOrderStore.Create(ctx, o)
}

type executorFixture struct {
	cache    *cache.MemoryCache
	ledger   *repository.CacheTickerLedger
	orders   *repository.MemoryOrderStore
	users    *repository.MemoryUserDirectory
	accounts *fakeAccounts
	history  *repository.MemoryHistoryStore
	exec     *FanoutExecutor
}

func newExecutorFixture(t *testing.T, users ...models.UserProfile) *executorFixture {
	t.Helper()
	f := &executorFixture{
		cache:    cache.NewMemoryCache(),
		orders:   repository.NewMemoryOrderStore(),
		users:    repository.NewMemoryUserDirectory(users...),
		accounts: newFakeAccounts(),
		history:  repository.NewMemoryHistoryStore(0),
	}
	t.Cleanup(func() { f.cache.Close() })
	f.ledger = repository.NewCacheTickerLedger(f.cache)
	f.exec = f.build(f.orders)
	return f
}

func (f *executorFixture) build(orders domrepo.OrderStore) *FanoutExecutor {
	return NewFanoutExecutor(DefaultExecutorConfig(), f.users, f.accounts, f.ledger,
		NewProtectionCalculator(models.Multipliers{}), orders, f.history, metrics.Noop{})
}

func user(id string, tier int) models.UserProfile {
	return models.UserProfile{ID: id, Tier: tier, Leverage: 5, TradeAmount: dec("100")}
}

func approved(ticker string) (*models.Signal, *models.Decision) {
	sig := &models.Signal{ID: "sig-" + ticker, Ticker: ticker, DirectionHint: models.DirectionLong}
	snap := snapshotFor(50, 50)
	return sig, &models.Decision{ID: "dec-" + ticker, SignalID: sig.ID, Ticker: ticker, Direction: sig.DirectionHint, ShouldExecute: true, Snapshot: &snap}
}

func resultByUser(r *models.ExecutionReport) map[string]models.UserExecutionResult {
	out := make(map[string]models.UserExecutionResult, len(r.Results))
	for _, res := range r.Results {
		out[res.UserID] = res
	}
	return out
}

func TestExecuteOrdersByTierThenID(t *testing.T) {
	f := newExecutorFixture(t, user("b", 1), user("a", 1), user("c", 3), user("d", 2))
	sig, d := approved("BTC")
	report, err := f.exec.Execute(context.Background(), sig, d)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var ids []string
	for _, r := range report.Results {
		ids = append(ids, r.UserID)
	}
	if fmt.Sprint(ids) != "[c d a b]" {
		t.Fatalf("unexpected order %v", ids)
	}
	if report.Summary.Total != 4 || report.Summary.Successful != 4 || report.Summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
}

func TestExecuteAttachesProtectionToEveryOrder(t *testing.T) {
	f := newExecutorFixture(t, user("a", 1))
	sig, d := approved("ETH")
	report, _ := f.exec.Execute(context.Background(), sig, d)
	res := report.Results[0]
	if !res.Success || res.Protection == nil || res.Protection.StopLossPercent != 10 || res.Protection.TakeProfitPercent != 15 {
		t.Fatalf("unexpected result %+v", res)
	}
	orders := f.orders.List()
	if len(orders) != 1 {
		t.Fatalf("expected one order, got %d", len(orders))
	}
	o := orders[0]
	if o.Status != models.OrderPending || o.Protection.StopLossPercent != 10 || o.ID != res.OrderID {
		t.Fatalf("unexpected order %+v", o)
	}
}

func TestExecuteTickerLockIdempotence(t *testing.T) {
	f := newExecutorFixture(t, user("a", 1))
	ctx := context.Background()
	sig, d := approved("SOL")

	first, _ := f.exec.Execute(ctx, sig, d)
	second, _ := f.exec.Execute(ctx, sig, d)
	if !first.Results[0].Success {
		t.Fatalf("first execution should succeed: %+v", first.Results[0])
	}
	if second.Results[0].Success || second.Results[0].ReasonCode != models.ResultTickerCooling {
		t.Fatalf("second execution should be cooling down, got %+v", second.Results[0])
	}
	if n := len(f.orders.List()); n != 1 {
		t.Fatalf("expected exactly one order, got %d", n)
	}
	lock, err := f.ledger.Lookup(ctx, "a", "SOL")
	if err != nil || lock == nil {
		t.Fatalf("expected an active lock, got %v %v", lock, err)
	}

	other, otherDecision := approved("ADA")
	if r, _ := f.exec.Execute(ctx, other, otherDecision); !r.Results[0].Success {
		t.Fatalf("a different ticker must not be locked: %+v", r.Results[0])
	}
}

func TestExecuteConcurrentSignalsSamePair(t *testing.T) {
	f := newExecutorFixture(t, user("a", 1))
	sig, d := approved("XRP")
	var wg sync.WaitGroup
	reports := make([]*models.ExecutionReport, 8)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], _ = f.exec.Execute(context.Background(), sig, d)
		}(i)
	}
	wg.Wait()
	ok := 0
	for _, r := range reports {
		if r.Results[0].Success {
			ok++
		} else if r.Results[0].ReasonCode != models.ResultTickerCooling {
			t.Fatalf("unexpected failure %+v", r.Results[0])
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful order, got %d", ok)
	}
}

func TestExecuteIsolatesFailures(t *testing.T) {
	users := []models.UserProfile{user("u1", 1), user("u2", 1), user("u3", 1), user("u4", 1), user("u5", 1)}
	f := newExecutorFixture(t, users...)
	f.accounts.panics["u2"] = true
	f.accounts.errs["u4"] = errUpstream
	failing := &failingOrders{MemoryOrderStore: f.orders, failFor: "u3"}
	exec := f.build(failing)

	sig, d := approved("BTC")
	report, err := exec.Execute(context.Background(), sig, d)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := resultByUser(report)
	want := map[string]string{
		"u1": "",
		"u2": models.ResultPanic,
		"u3": models.ResultOrderStoreFailed,
		"u4": models.ResultAccountCheckFailed,
		"u5": "",
	}
	for id, code := range want {
		r := got[id]
		if (code == "") != r.Success || r.ReasonCode != code {
			t.Errorf("%s: got success=%v code=%q, want code %q", id, r.Success, r.ReasonCode, code)
		}
		if !r.Success && r.Detail == "" {
			t.Errorf("%s: failure must carry a detail", id)
		}
	}
	if report.Summary.Successful != 2 || report.Summary.Failed != 3 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
	if lock, _ := f.ledger.Lookup(context.Background(), "u3", "BTC"); lock != nil {
		t.Fatalf("reservation must be released when order creation fails")
	}
	for _, id := range []string{"u1", "u3", "u5"} {
		if f.accounts.callCount(id) != 1 {
			t.Fatalf("%s should be validated exactly once", id)
		}
	}
}

func TestExecuteResourceGuards(t *testing.T) {
	limited := user("limited", 1)
	limited.MaxPositions = 2
	poor := user("poor", 1)
	badLev := user("badlev", 1)
	badLev.Leverage = 11
	tiny := user("tiny", 1)
	tiny.TradeAmount = dec("1")
	tiny.Leverage = 1
	invalid := user("invalid", 1)

	f := newExecutorFixture(t, limited, poor, badLev, tiny, invalid)
	f.accounts.checks["limited"] = models.AccountCheck{OK: true, Balance: models.BalanceInfo{Available: dec("500"), OpenPositions: 2}}
	f.accounts.checks["poor"] = models.AccountCheck{OK: true, Balance: models.BalanceInfo{Available: dec("50")}}
	f.accounts.checks["invalid"] = models.AccountCheck{OK: false, Reason: "api key revoked"}

	sig, d := approved("BTC")
	report, _ := f.exec.Execute(context.Background(), sig, d)
	got := resultByUser(report)
	want := map[string]string{
		"limited": models.ResultPositionLimit,
		"poor":    models.ResultInsufficientBalance,
		"badlev":  models.ResultProtectionInvalid,
		"tiny":    models.ResultOrderInvalid,
		"invalid": models.ResultAccountInvalid,
	}
	for id, code := range want {
		if got[id].Success || got[id].ReasonCode != code {
			t.Errorf("%s: got %+v, want %q", id, got[id], code)
		}
	}
	if n := len(f.orders.List()); n != 0 {
		t.Fatalf("no order may be persisted, got %d", n)
	}
	for _, id := range []string{"badlev", "tiny"} {
		if lock, _ := f.ledger.Lookup(context.Background(), id, "BTC"); lock != nil {
			t.Fatalf("%s: reservation must be released", id)
		}
	}
}

func TestExecuteRecordsPerUserHistory(t *testing.T) {
	f := newExecutorFixture(t, user("a", 1), user("b", 1))
	sig, d := approved("BTC")
	f.exec.Execute(context.Background(), sig, d)

	if n := len(f.history.All("BTC")); n != 2 {
		t.Fatalf("expected two per-user outcomes, got %d", n)
	}
	recent, _ := f.history.QueryRecent(context.Background(), "BTC", 10)
	if len(recent) != 0 {
		t.Fatalf("per-user outcomes must not appear in signal-level history, got %d", len(recent))
	}
}

func TestExecuteRejectsUnapprovedDecision(t *testing.T) {
	f := newExecutorFixture(t, user("a", 1))
	sig, d := approved("BTC")
	d.ShouldExecute = false
	if _, err := f.exec.Execute(context.Background(), sig, d); err == nil {
		t.Fatalf("expected an error for an unapproved decision")
	}
}

func TestExecuteNoEligibleUsers(t *testing.T) {
	f := newExecutorFixture(t)
	sig, d := approved("BTC")
	report, err := f.exec.Execute(context.Background(), sig, d)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Summary.Total != 0 || len(report.Results) != 0 {
		t.Fatalf("expected an empty report, got %+v", report)
	}
}
