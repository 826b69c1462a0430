package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	domsvc "SignalPilot/internal/domain/service"
	applogger "SignalPilot/pkg/logger"
)

const (
	sentimentLongOnlyBelow  = 30.0
	sentimentShortOnlyAbove = 80.0
	neutralReading          = 50.0
)

// MarketMonitor fuses sentiment and breadth into a cached, bounded history of
// market direction snapshots.
type MarketMonitor struct {
	feed    domsvc.IndicatorFeed
	metrics domrepo.Metrics
	audit   domrepo.AuditStore
	sink    domrepo.NotificationSink
	logger  *applogger.Logger

	interval     time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	tickMu sync.Mutex // serializes Tick

	mu            sync.RWMutex
	history       *snapshotRing
	current       *models.MarketDirectionSnapshot
	lastEvent     *models.DirectionChangeEvent
	lastSentiment *float64
	lastBreadth   *float64
}

type MonitorOption func(*MarketMonitor)

// WithMonitorInterval sets the reference tick interval (also the cache age limit).
func WithMonitorInterval(d time.Duration) MonitorOption {
	return func(m *MarketMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithHistorySize sets the ring buffer capacity.
func WithHistorySize(n int) MonitorOption {
	return func(m *MarketMonitor) {
		if n > 0 {
			m.history = newSnapshotRing(n)
		}
	}
}

// WithFetchTimeout bounds each indicator fetch.
func WithFetchTimeout(d time.Duration) MonitorOption {
	return func(m *MarketMonitor) {
		if d > 0 {
			m.fetchTimeout = d
		}
	}
}

func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *MarketMonitor) { m.now = now }
}

func WithMonitorAudit(a domrepo.AuditStore) MonitorOption {
	return func(m *MarketMonitor) { m.audit = a }
}

func WithMonitorSink(s domrepo.NotificationSink) MonitorOption {
	return func(m *MarketMonitor) { m.sink = s }
}

func WithMonitorLogger(l *applogger.Logger) MonitorOption {
	return func(m *MarketMonitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMarketMonitor creates a monitor with a 5 minute interval and 20 snapshot history.
func NewMarketMonitor(feed domsvc.IndicatorFeed, metrics domrepo.Metrics, opts ...MonitorOption) *MarketMonitor {
	m := &MarketMonitor{
		feed:         feed,
		metrics:      metrics,
		logger:       applogger.Nop(),
		interval:     5 * time.Minute,
		fetchTimeout: 10 * time.Second,
		now:          time.Now,
		history:      newSnapshotRing(20),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interval returns the reference tick interval.
func (m *MarketMonitor) Interval() time.Duration { return m.interval }

// Tick fetches indicators, computes a new snapshot, appends it to history and
// emits a change event when it differs materially from the previous one.
// Feed failures degrade the snapshot; Tick itself never fails.
func (m *MarketMonitor) Tick(ctx context.Context) models.MarketDirectionSnapshot {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	return m.tick(ctx)
}

// tick must be called with tickMu held.
func (m *MarketMonitor) tick(ctx context.Context) models.MarketDirectionSnapshot {
	start := time.Now()
	sentiment, breadth, degraded := m.fetch(ctx)
	snap := BuildSnapshot(sentiment, breadth, degraded, m.now())

	m.mu.Lock()
	prev := m.current
	m.history.push(snap)
	m.current = &snap
	ev := DiffSnapshots(prev, snap)
	if ev.HasChange {
		m.lastEvent = &ev
	}
	m.mu.Unlock()

	m.metrics.RecordTick(snap.Degraded, string(snap.AllowedDirection), snap.Confidence)
	m.metrics.RecordLatency("monitor_tick", time.Since(start).Seconds())
	m.logger.Debug("market direction evaluated",
		applogger.Float64("sentiment", snap.SentimentValue),
		applogger.Float64("breadth", snap.BreadthPercentUp),
		applogger.String("direction", string(snap.AllowedDirection)),
		applogger.Float64("confidence", snap.Confidence),
		applogger.Bool("degraded", snap.Degraded),
	)

	m.persist(ctx, &snap, ev)
	return snap
}

// Current returns the cached snapshot if it is younger than one interval,
// otherwise it runs a synchronous Tick. Concurrent callers that find the
// cache stale share a single refresh.
func (m *MarketMonitor) Current(ctx context.Context) models.MarketDirectionSnapshot {
	if cur, ok := m.fresh(); ok {
		return cur
	}
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	if cur, ok := m.fresh(); ok {
		return cur
	}
	return m.tick(ctx)
}

func (m *MarketMonitor) fresh() (models.MarketDirectionSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current != nil && m.now().Sub(m.current.CreatedAt) < m.interval {
		return *m.current, true
	}
	return models.MarketDirectionSnapshot{}, false
}

// History returns up to limit snapshots, oldest first. limit <= 0 returns all.
func (m *MarketMonitor) History(limit int) []models.MarketDirectionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.last(limit)
}

// LastEvent returns the most recent change event, if any.
func (m *MarketMonitor) LastEvent() (models.DirectionChangeEvent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastEvent == nil {
		return models.DirectionChangeEvent{}, false
	}
	return *m.lastEvent, true
}

func (m *MarketMonitor) fetch(ctx context.Context) (float64, float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	type reading struct {
		name string
		val  float64
		err  error
	}
	ch := make(chan reading, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		v, err := m.feed.FetchSentiment(ctx)
		ch <- reading{"sentiment", v, err}
	}()
	go func() {
		defer wg.Done()
		v, err := m.feed.FetchBreadth(ctx)
		ch <- reading{"breadth", v, err}
	}()
	wg.Wait()
	close(ch)

	m.mu.Lock()
	defer m.mu.Unlock()

	sentiment, breadth := neutralReading, neutralReading
	if m.lastSentiment != nil {
		sentiment = *m.lastSentiment
	}
	if m.lastBreadth != nil {
		breadth = *m.lastBreadth
	}
	degraded := false
	for r := range ch {
		if r.err == nil {
			r.err = checkPercent(r.val)
		}
		if r.err != nil {
			degraded = true
			m.metrics.RecordError("feed_" + r.name)
			m.logger.Warn("indicator fetch failed, using last known value",
				applogger.String("indicator", r.name),
				applogger.Error(r.err),
			)
			continue
		}
		v := r.val
		switch r.name {
		case "sentiment":
			sentiment = v
			m.lastSentiment = &v
		case "breadth":
			breadth = v
			m.lastBreadth = &v
		}
	}
	return sentiment, breadth, degraded
}

func (m *MarketMonitor) persist(ctx context.Context, snap *models.MarketDirectionSnapshot, ev models.DirectionChangeEvent) {
	if m.audit != nil {
		if err := m.audit.SaveSnapshot(ctx, snap); err != nil {
			m.metrics.RecordError("audit_snapshot")
			m.logger.Warn("save snapshot failed", applogger.Error(err))
		}
	}
	if !ev.HasChange {
		return
	}
	m.metrics.RecordDirectionChange(string(ev.Kind), ev.Severity.String())
	m.logger.Info("market direction changed",
		applogger.String("kind", string(ev.Kind)),
		applogger.String("severity", ev.Severity.String()),
		applogger.String("from", string(ev.PreviousDirection)),
		applogger.String("to", string(ev.CurrentDirection)),
		applogger.Bool("recommend_close", ev.RecommendClose),
	)
	if m.audit != nil {
		if err := m.audit.SaveDirectionEvent(ctx, &ev); err != nil {
			m.metrics.RecordError("audit_direction_event")
			m.logger.Warn("save direction event failed", applogger.Error(err))
		}
	}
	if m.sink != nil {
		if err := m.sink.Publish(ctx, EventDirectionChange, ev); err != nil {
			m.metrics.RecordError("notify_direction_event")
			m.logger.Warn("publish direction event failed", applogger.Error(err))
		}
	}
}

func checkPercent(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return fmt.Errorf("reading %v outside 0-100", v)
	}
	return nil
}

// SentimentDirection maps a sentiment value to the direction it allows on its own.
func SentimentDirection(v float64) models.AllowedDirection {
	switch {
	case v < sentimentLongOnlyBelow:
		return models.AllowLongOnly
	case v > sentimentShortOnlyAbove:
		return models.AllowShortOnly
	default:
		return models.AllowLongAndShort
	}
}

// ClassifyBreadth discretises the percent of the basket trading up.
func ClassifyBreadth(p float64) models.BreadthConfirmation {
	switch {
	case p > 70:
		return models.BreadthStrongBullish
	case p > 60:
		return models.BreadthBullish
	case p < 30:
		return models.BreadthStrongBearish
	case p < 40:
		return models.BreadthBearish
	default:
		return models.BreadthNeutral
	}
}

// CombineDirection refines the sentiment verdict with breadth.
func CombineDirection(sent models.AllowedDirection, breadth models.BreadthConfirmation) models.AllowedDirection {
	switch sent {
	case models.AllowLongOnly:
		if breadth.IsBearish() {
			return models.AllowConflict
		}
	case models.AllowShortOnly:
		if breadth.IsBullish() {
			return models.AllowConflict
		}
	case models.AllowLongAndShort:
		if breadth.IsBullish() {
			return models.AllowPreferLong
		}
		if breadth.IsBearish() {
			return models.AllowPreferShort
		}
	}
	return sent
}

// ComputeConfidence derives confidence from the two readings, capped at 1.0.
func ComputeConfidence(sentiment float64, breadth models.BreadthConfirmation) float64 {
	c := 0.5
	sent := SentimentDirection(sentiment)
	if sent.IsExclusive() {
		c += 0.2
	}
	switch {
	case breadth.IsStrong():
		c += 0.2
	case breadth != models.BreadthNeutral:
		c += 0.1
	}
	if side := sent.Side(); side != models.DirectionUnknown {
		if (side == models.DirectionLong && breadth.IsBullish()) ||
			(side == models.DirectionShort && breadth.IsBearish()) {
			c += 0.2
		}
	}
	c = math.Round(c*100) / 100
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// BuildSnapshot is the pure part of Tick.
func BuildSnapshot(sentiment, breadth float64, degraded bool, at time.Time) models.MarketDirectionSnapshot {
	conf := ClassifyBreadth(breadth)
	return models.MarketDirectionSnapshot{
		SentimentValue:      sentiment,
		SentimentClass:      models.ClassifySentiment(sentiment),
		BreadthPercentUp:    breadth,
		BreadthConfirmation: conf,
		BreadthTrend:        conf.Trend(),
		AllowedDirection:    CombineDirection(SentimentDirection(sentiment), conf),
		Confidence:          ComputeConfidence(sentiment, conf),
		Degraded:            degraded,
		CreatedAt:           at,
	}
}

type snapshotRing struct {
	buf   []models.MarketDirectionSnapshot
	start int
	size  int
}

func newSnapshotRing(capacity int) *snapshotRing {
	return &snapshotRing{buf: make([]models.MarketDirectionSnapshot, capacity)}
}

func (r *snapshotRing) push(s models.MarketDirectionSnapshot) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = s
		r.size++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

func (r *snapshotRing) last(n int) []models.MarketDirectionSnapshot {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]models.MarketDirectionSnapshot, 0, n)
	for i := r.size - n; i < r.size; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}
