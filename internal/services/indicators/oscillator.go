package indicators

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"SignalPilot/pkg/cache"

	"github.com/markcheno/go-talib"
)

// RSIOscillator computes the relative strength index from futures klines.
type RSIOscillator struct {
	market   MarketData
	period   int
	interval string
	quote    string
}

// NewRSIOscillator builds an oscillator over interval candles. Bare tickers
// (e.g. "BTC") are suffixed with quote.
func NewRSIOscillator(market MarketData, period int, interval, quote string) *RSIOscillator {
	if period <= 1 {
		period = 14
	}
	if interval == "" {
		interval = "1h"
	}
	if quote == "" {
		quote = "USDT"
	}
	return &RSIOscillator{market: market, period: period, interval: interval, quote: quote}
}

func (o *RSIOscillator) Fetch(ctx context.Context, ticker string) (float64, error) {
	symbol := o.Symbol(ticker)
	// Wilder smoothing needs well over period+1 closes to settle.
	closes, err := o.market.Closes(ctx, symbol, o.interval, o.period*4+1)
	if err != nil {
		return 0, err
	}
	if len(closes) <= o.period {
		return 0, fmt.Errorf("rsi %s: need more than %d closes, got %d", symbol, o.period, len(closes))
	}
	rsi := talib.Rsi(closes, o.period)
	last := rsi[len(rsi)-1]
	if math.IsNaN(last) || last < 0 || last > 100 {
		return 0, fmt.Errorf("rsi %s: invalid value %v", symbol, last)
	}
	return last, nil
}

// Symbol maps a ticker to the exchange symbol.
func (o *RSIOscillator) Symbol(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if strings.HasSuffix(t, o.quote) {
		return t
	}
	return t + o.quote
}

// Oscillator is the decorated interface.
type Oscillator interface {
	Fetch(ctx context.Context, ticker string) (float64, error)
}

// CachedOscillator memoizes readings per ticker for ttl.
type CachedOscillator struct {
	next  Oscillator
	cache cache.Service
	ttl   time.Duration
}

func NewCachedOscillator(next Oscillator, c cache.Service, ttl time.Duration) *CachedOscillator {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedOscillator{next: next, cache: c, ttl: ttl}
}

func (c *CachedOscillator) Fetch(ctx context.Context, ticker string) (float64, error) {
	key := cache.GenerateKeyWithParams("oscillator", ticker)
	var v float64
	if err := c.cache.Get(ctx, key, &v); err == nil {
		return v, nil
	}
	v, err := c.next.Fetch(ctx, ticker)
	if err != nil {
		return 0, err
	}
	_ = c.cache.Set(ctx, key, v, c.ttl)
	return v, nil
}
