package indicators

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SignalPilot/pkg/cache"
)

type fakeMarket struct {
	changes map[string]float64
	closes  []float64
	err     error
	calls   int
}

func (f *fakeMarket) PriceChanges(context.Context) (map[string]float64, error) {
	f.calls++
	return f.changes, f.err
}

func (f *fakeMarket) Closes(_ context.Context, _, _ string, _ int) ([]float64, error) {
	f.calls++
	return f.closes, f.err
}

func TestSentimentClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Fear and Greed Index","data":[{"value":"27","value_classification":"Fear","timestamp":"1710417600"}]}`))
	}))
	defer srv.Close()

	v, err := NewSentimentClient(srv.URL, time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if v != 27 {
		t.Fatalf("expected 27, got %v", v)
	}
}

func TestSentimentClientRejectsBadPayload(t *testing.T) {
	cases := map[string]string{
		"empty":  `{"data":[]}`,
		"nonnum": `{"data":[{"value":"abc"}]}`,
		"range":  `{"data":[{"value":"140"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()
			if _, err := NewSentimentClient(srv.URL, time.Second).Fetch(context.Background()); err == nil {
				t.Fatalf("expected error for %s", body)
			}
		})
	}
}

func TestBreadthCalculator(t *testing.T) {
	m := &fakeMarket{changes: map[string]float64{
		"BTCUSDT": 1.2, "ETHUSDT": -0.4, "SOLUSDT": 3.1, "XRPUSDT": 0,
	}}
	b := NewBreadthCalculator(m, []string{"btcusdt", "ETHUSDT", "SOLUSDT", "XRPUSDT", "MISSINGUSDT"}, 0)
	v, err := b.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if v != 50 {
		t.Fatalf("expected 50%% up (2 of 4 listed), got %v", v)
	}
}

func TestBreadthCalculatorFallbackBasket(t *testing.T) {
	m := &fakeMarket{changes: map[string]float64{
		"AAAUSDT": 1, "BBBUSDT": 1, "CCCUSDT": -1, "DDDBTC": 5,
	}}
	v, err := NewBreadthCalculator(m, nil, 2).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if v != 100 {
		t.Fatalf("expected first two USDT pairs both up, got %v", v)
	}
}

func TestBreadthCalculatorErrors(t *testing.T) {
	if _, err := NewBreadthCalculator(&fakeMarket{err: errors.New("down")}, DefaultBasket, 0).Fetch(context.Background()); err == nil {
		t.Fatalf("expected upstream error")
	}
	if _, err := NewBreadthCalculator(&fakeMarket{changes: map[string]float64{}}, DefaultBasket, 0).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error when no basket symbol is listed")
	}
}

func series(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestRSIOscillator(t *testing.T) {
	up := NewRSIOscillator(&fakeMarket{closes: series(60, 100, 1)}, 14, "1h", "USDT")
	v, err := up.Fetch(context.Background(), "btc")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if v <= 70 {
		t.Fatalf("steady rise should be overbought, got %v", v)
	}

	down := NewRSIOscillator(&fakeMarket{closes: series(60, 200, -1)}, 14, "1h", "USDT")
	v, err = down.Fetch(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if v >= 30 {
		t.Fatalf("steady fall should be oversold, got %v", v)
	}

	short := NewRSIOscillator(&fakeMarket{closes: series(5, 1, 1)}, 14, "1h", "USDT")
	if _, err := short.Fetch(context.Background(), "BTC"); err == nil {
		t.Fatalf("expected error for too few closes")
	}
}

func TestRSISymbol(t *testing.T) {
	o := NewRSIOscillator(nil, 0, "", "")
	if got := o.Symbol(" btc "); got != "BTCUSDT" {
		t.Fatalf("got %s", got)
	}
	if got := o.Symbol("ETHUSDT"); got != "ETHUSDT" {
		t.Fatalf("got %s", got)
	}
}

func TestCachedOscillator(t *testing.T) {
	m := &fakeMarket{closes: series(60, 100, 1)}
	mem := cache.NewMemoryCache()
	defer mem.Close()
	c := NewCachedOscillator(NewRSIOscillator(m, 14, "1h", "USDT"), mem, time.Minute)

	first, err := c.Fetch(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	second, err := c.Fetch(context.Background(), "btc")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if first != second || m.calls != 1 {
		t.Fatalf("second read should hit the cache: calls=%d", m.calls)
	}
}

func TestFeedDelegates(t *testing.T) {
	f := NewFeed(stub(40), stub(65))
	s, _ := f.FetchSentiment(context.Background())
	b, _ := f.FetchBreadth(context.Background())
	if s != 40 || b != 65 {
		t.Fatalf("got %v %v", s, b)
	}
}

type stub float64

func (s stub) Fetch(context.Context) (float64, error) { return float64(s), nil }
