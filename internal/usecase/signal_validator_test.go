package usecase

import (
	"context"
	"testing"
	"time"

	"SignalPilot/internal/domain/models"
	domsvc "SignalPilot/internal/domain/service"
	"SignalPilot/internal/repository"
	"SignalPilot/pkg/metrics"
)

type engineFixture struct {
	clk     *clock
	history *repository.MemoryHistoryStore
	engine  *DecisionEngine
}

func newEngineFixture(snap models.MarketDirectionSnapshot, opts ...DecisionOption) *engineFixture {
	f := &engineFixture{clk: newClock(), history: repository.NewMemoryHistoryStore(0)}
	opts = append([]DecisionOption{WithDecisionClock(f.clk.Now)}, opts...)
	f.engine = NewDecisionEngine(DefaultDecisionConfig(), fixedSnapshots{snap}, f.history, metrics.Noop{}, opts...)
	return f
}

func (f *engineFixture) signal(dir models.Direction, strong bool, age time.Duration) *models.Signal {
	return &models.Signal{
		ID:            "sig-1",
		Ticker:        "BTC",
		DirectionHint: dir,
		IsStrong:      strong,
		Source:        "test",
		ReceivedAt:    f.clk.Now().Add(-age),
	}
}

func TestEvaluateFreshnessWindows(t *testing.T) {
	f := newEngineFixture(snapshotFor(50, 50))
	ctx := context.Background()

	if d := f.engine.Evaluate(ctx, f.signal(models.DirectionLong, false, 31*time.Second)); d.ShouldExecute || d.RejectCode != models.RejectStale {
		t.Fatalf("31s normal signal: expected stale rejection, got %+v", d)
	}
	if d := f.engine.Evaluate(ctx, f.signal(models.DirectionLong, false, 29*time.Second)); !d.ShouldExecute {
		t.Fatalf("29s normal signal should pass, got %s: %s", d.RejectCode, d.Reasoning)
	}
	if d := f.engine.Evaluate(ctx, f.signal(models.DirectionLong, true, 31*time.Second)); d.RejectCode == models.RejectStale {
		t.Fatalf("31s strong signal must not be stale")
	}
	if d := f.engine.Evaluate(ctx, f.signal(models.DirectionLong, true, 61*time.Second)); d.RejectCode != models.RejectStale {
		t.Fatalf("61s strong signal: expected stale rejection, got %q", d.RejectCode)
	}
}

func TestEvaluateStaleRegardlessOfScore(t *testing.T) {
	f := newEngineFixture(snapshotFor(20, 80))
	d := f.engine.Evaluate(context.Background(), f.signal(models.DirectionLong, false, 31*time.Second))
	if d.ShouldExecute || d.Conditions != nil {
		t.Fatalf("stale signal must be rejected before scoring, got %+v", d)
	}
}

func TestEvaluateDirectionalGateAppliesToStrongSignals(t *testing.T) {
	f := newEngineFixture(snapshotFor(20, 50))
	for _, strong := range []bool{false, true} {
		d := f.engine.Evaluate(context.Background(), f.signal(models.DirectionShort, strong, time.Second))
		if d.ShouldExecute || d.RejectCode != models.RejectDirectionBlocked {
			t.Fatalf("strong=%v: expected blocked, got %q", strong, d.RejectCode)
		}
		if d.Snapshot == nil || d.Snapshot.AllowedDirection != models.AllowLongOnly {
			t.Fatalf("decision must carry the snapshot it was gated on")
		}
	}
}

func TestEvaluateThresholdDependsOnStrength(t *testing.T) {
	// PreferShort market with bearish breadth: only momentum and history favor a long.
	snap := snapshotFor(50, 35)
	f := newEngineFixture(snap)
	ctx := context.Background()

	d := f.engine.Evaluate(ctx, f.signal(models.DirectionLong, false, time.Second))
	if d.Conditions == nil || d.Conditions.FavorableCount != 2 {
		t.Fatalf("expected 2 favorable conditions, got %+v", d.Conditions)
	}
	if d.ShouldExecute || d.RejectCode != models.RejectInsufficientScore || d.Conditions.RequiredCount != 3 {
		t.Fatalf("normal signal with 2/4 must be rejected, got execute=%v code=%q", d.ShouldExecute, d.RejectCode)
	}

	d = f.engine.Evaluate(ctx, f.signal(models.DirectionLong, true, time.Second))
	if !d.ShouldExecute || d.Conditions.RequiredCount != 2 {
		t.Fatalf("strong signal with 2/4 must pass, got %q: %s", d.RejectCode, d.Reasoning)
	}
	if d.Source != models.SourceFallback {
		t.Fatalf("without a reasoner the source is fallback, got %s", d.Source)
	}
}

func TestEvaluateMomentumUsesOscillator(t *testing.T) {
	snap := snapshotFor(50, 35)
	f := newEngineFixture(snap, WithOscillator(fakeOscillator{v: 82}))
	d := f.engine.Evaluate(context.Background(), f.signal(models.DirectionLong, true, time.Second))
	if d.Conditions.MomentumFavorable.Favorable {
		t.Fatalf("oscillator 82 is overbought for a long")
	}
	if d.ShouldExecute {
		t.Fatalf("1/4 should not pass even for a strong signal")
	}

	f = newEngineFixture(snap, WithOscillator(fakeOscillator{err: errUpstream}))
	d = f.engine.Evaluate(context.Background(), f.signal(models.DirectionLong, true, time.Second))
	if !d.Conditions.MomentumFavorable.Favorable {
		t.Fatalf("oscillator failure is neutral and favorable")
	}
}

func TestEvaluateHistoryOppositeApprovals(t *testing.T) {
	f := newEngineFixture(snapshotFor(50, 50))
	ctx := context.Background()
	now := f.clk.Now()
	for _, ago := range []time.Duration{time.Hour, 3 * time.Hour} {
		f.history.RecordOutcome(ctx, models.SignalOutcome{Ticker: "BTC", Direction: models.DirectionShort, Approved: true, Timestamp: now.Add(-ago)})
	}
	d := f.engine.Evaluate(ctx, f.signal(models.DirectionLong, false, time.Second))
	if d.Conditions.AssetHistoryFavorable.Favorable {
		t.Fatalf("two opposite approvals within 4h must be unfavorable: %s", d.Conditions.AssetHistoryFavorable.Detail)
	}
}

func TestAssetHistoryRules(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	at := func(ago time.Duration) time.Time { return now.Add(-ago) }
	long, short := models.DirectionLong, models.DirectionShort
	cases := []struct {
		name     string
		outcomes []models.SignalOutcome
		want     bool
	}{
		{"empty", nil, true},
		{"opposite approvals outside window", []models.SignalOutcome{
			{Direction: short, Approved: true, Timestamp: at(5 * time.Hour)},
			{Direction: short, Approved: true, Timestamp: at(6 * time.Hour)},
		}, true},
		{"one opposite approval", []models.SignalOutcome{
			{Direction: short, Approved: true, Timestamp: at(time.Hour)},
		}, true},
		{"same side mostly rejected", []models.SignalOutcome{
			{Direction: long, Approved: false, Timestamp: at(time.Hour)},
			{Direction: long, Approved: false, Timestamp: at(2 * time.Hour)},
			{Direction: long, Approved: true, Timestamp: at(3 * time.Hour)},
		}, false},
		{"same side two signals both rejected", []models.SignalOutcome{
			{Direction: long, Approved: false, Timestamp: at(time.Hour)},
			{Direction: long, Approved: false, Timestamp: at(2 * time.Hour)},
		}, true},
		{"user level entries ignored", []models.SignalOutcome{
			{Direction: short, Approved: true, UserID: "u1", Timestamp: at(time.Hour)},
			{Direction: short, Approved: true, UserID: "u2", Timestamp: at(time.Hour)},
		}, true},
	}
	for _, tc := range cases {
		got := EvaluateAssetHistory(long, tc.outcomes, now, 4*time.Hour)
		if got.Favorable != tc.want {
			t.Errorf("%s: favorable=%v, want %v (%s)", tc.name, got.Favorable, tc.want, got.Detail)
		}
		if got.Detail == "" {
			t.Errorf("%s: detail must not be empty", tc.name)
		}
	}
}

func TestBreadthAlignment(t *testing.T) {
	cases := []struct {
		breadth float64
		dir     models.Direction
		want    bool
	}{
		{65, models.DirectionLong, true},
		{65, models.DirectionShort, false},
		{35, models.DirectionShort, true},
		{35, models.DirectionLong, false},
		{50, models.DirectionShort, true},
	}
	for _, tc := range cases {
		got := EvaluateBreadthAlignment(tc.dir, snapshotFor(50, tc.breadth))
		if got.Favorable != tc.want {
			t.Errorf("breadth %.0f %s: got %v, want %v", tc.breadth, tc.dir, got.Favorable, tc.want)
		}
	}
}

func TestLowerThresholdNeverRejectsWhatStricterPasses(t *testing.T) {
	for n := 0; n <= 4; n++ {
		normal := n >= RequiredFavorable(false)
		strong := n >= RequiredFavorable(true)
		if normal && !strong {
			t.Fatalf("count %d passes the normal threshold but not the strong one", n)
		}
	}
}

func TestEvaluateUnknownDirectionRejected(t *testing.T) {
	f := newEngineFixture(snapshotFor(50, 50))
	d := f.engine.Evaluate(context.Background(), f.signal(models.DirectionUnknown, true, time.Second))
	if d.ShouldExecute || d.RejectCode != models.RejectDirectionUnknown {
		t.Fatalf("expected unknown direction rejection, got %q", d.RejectCode)
	}
	if len(f.history.All("BTC")) != 0 {
		t.Fatalf("unknown direction must not be recorded in history")
	}
}

func TestEvaluateRecordsSignalOutcome(t *testing.T) {
	f := newEngineFixture(snapshotFor(50, 50))
	d := f.engine.Evaluate(context.Background(), f.signal(models.DirectionLong, false, time.Second))
	all := f.history.All("BTC")
	if len(all) != 1 {
		t.Fatalf("expected one recorded outcome, got %d", len(all))
	}
	if all[0].UserID != "" || all[0].Approved != d.ShouldExecute || all[0].SignalID != "sig-1" {
		t.Fatalf("unexpected outcome %+v", all[0])
	}
}

func TestReasonerVerdictOverridesDeterministicResult(t *testing.T) {
	f := newEngineFixture(snapshotFor(50, 50),
		WithReasoner(fakeReasoner{verdict: domsvc.ReasoningVerdict{Execute: false, Reasoning: "funding too hot"}}))
	d := f.engine.Evaluate(context.Background(), f.signal(models.DirectionLong, false, time.Second))
	if d.ShouldExecute || d.Source != models.SourceAiReasoning || d.RejectCode != models.RejectAiVeto {
		t.Fatalf("expected AI veto, got execute=%v source=%s code=%q", d.ShouldExecute, d.Source, d.RejectCode)
	}
	if d.Conditions == nil || d.Conditions.FavorableCount != 4 {
		t.Fatalf("conditions must still be reported next to the AI verdict")
	}
}

func TestReasonerFailureFallsBack(t *testing.T) {
	cases := map[string]fakeReasoner{
		"error":     {err: errUpstream},
		"ambiguous": {err: domsvc.ErrAmbiguousVerdict},
		"timeout":   {delay: time.Second, verdict: domsvc.ReasoningVerdict{Execute: false}},
	}
	for name, r := range cases {
		cfg := DefaultDecisionConfig()
		cfg.ReasonerTimeout = 20 * time.Millisecond
		clk := newClock()
		e := NewDecisionEngine(cfg, fixedSnapshots{snapshotFor(50, 50)}, repository.NewMemoryHistoryStore(0), metrics.Noop{},
			WithReasoner(r), WithDecisionClock(clk.Now))
		sig := &models.Signal{ID: "s", Ticker: "ETH", DirectionHint: models.DirectionLong, ReceivedAt: clk.Now()}
		d := e.Evaluate(context.Background(), sig)
		if !d.ShouldExecute || d.Source != models.SourceFallback {
			t.Errorf("%s: expected deterministic approval, got execute=%v source=%s", name, d.ShouldExecute, d.Source)
		}
	}
}
