package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func TestMemoryCacheExpiresWithClock(t *testing.T) {
	clk := &stepClock{t: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(WithMemoryClock(clk.now))
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "cooldown:u1:BTC", "1", 2*time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clk.t = clk.t.Add(90 * time.Minute)
	ttl, err := mc.TTL(ctx, "cooldown:u1:BTC")
	if err != nil || ttl != 30*time.Minute {
		t.Fatalf("TTL = %v, %v; want 30m", ttl, err)
	}
	clk.t = clk.t.Add(31 * time.Minute)
	var v string
	if err := mc.Get(ctx, "cooldown:u1:BTC", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryCacheEvictsLeastRecentlyRead(t *testing.T) {
	clk := &stepClock{t: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(clk.now))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", 1, time.Hour)
	clk.t = clk.t.Add(time.Second)
	_ = mc.Set(ctx, "b", 2, time.Hour)
	clk.t = clk.t.Add(time.Second)
	var n int
	_ = mc.Get(ctx, "a", &n)
	clk.t = clk.t.Add(time.Second)
	_ = mc.Set(ctx, "c", 3, time.Hour)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if ok, _ := mc.Exists(ctx, k); !ok {
			t.Fatalf("%s should remain", k)
		}
	}
}

func TestMemoryCacheSetNXHoldsLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if ok, _ := mc.TryLock(ctx, "lock:sig-1", time.Minute); !ok {
		t.Fatalf("first TryLock should win")
	}
	if ok, _ := mc.TryLock(ctx, "lock:sig-1", time.Minute); ok {
		t.Fatalf("second TryLock should lose")
	}
	_ = mc.Unlock(ctx, "lock:sig-1")
	if ok, _ := mc.TryLock(ctx, "lock:sig-1", time.Minute); !ok {
		t.Fatalf("TryLock after Unlock should win")
	}
}
