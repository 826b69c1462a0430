package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	"SignalPilot/pkg/cache"
)

const tickerLockPrefix = "ticker_lock"

// CacheTickerLedger keeps cool-down locks in a cache.Service. With Redis the
// reservation is a single SET NX, so it is atomic per key across replicas.
type CacheTickerLedger struct {
	c   cache.Service
	now func() time.Time
}

// NewCacheTickerLedger creates a ledger over c.
func NewCacheTickerLedger(c cache.Service) *CacheTickerLedger {
	return &CacheTickerLedger{c: c, now: time.Now}
}

func (l *CacheTickerLedger) key(userID, ticker string) string {
	return cache.GenerateKeyWithParams(tickerLockPrefix, userID, ticker)
}

func (l *CacheTickerLedger) Reserve(ctx context.Context, userID, ticker string, reserveTTL time.Duration) (bool, error) {
	lock := models.TickerLock{UserID: userID, Ticker: ticker, ExpiresAt: l.now().Add(reserveTTL)}
	ok, err := l.c.SetNX(ctx, l.key(userID, ticker), lock, reserveTTL)
	if err != nil {
		return false, fmt.Errorf("reserve ticker lock: %w", err)
	}
	return ok, nil
}

func (l *CacheTickerLedger) Commit(ctx context.Context, userID, ticker string, ttl time.Duration) error {
	lock := models.TickerLock{UserID: userID, Ticker: ticker, ExpiresAt: l.now().Add(ttl)}
	if err := l.c.Set(ctx, l.key(userID, ticker), lock, ttl); err != nil {
		return fmt.Errorf("commit ticker lock: %w", err)
	}
	return nil
}

func (l *CacheTickerLedger) Release(ctx context.Context, userID, ticker string) error {
	if err := l.c.Delete(ctx, l.key(userID, ticker)); err != nil {
		return fmt.Errorf("release ticker lock: %w", err)
	}
	return nil
}

// Lookup returns the active lock or nil when the pair is free.
func (l *CacheTickerLedger) Lookup(ctx context.Context, userID, ticker string) (*models.TickerLock, error) {
	var lock models.TickerLock
	if err := l.c.Get(ctx, l.key(userID, ticker), &lock); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup ticker lock: %w", err)
	}
	return &lock, nil
}

var _ domrepo.TickerLedger = (*CacheTickerLedger)(nil)
