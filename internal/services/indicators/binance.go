package indicators

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"
)

// MarketData is the slice of the futures API the feeds need.
type MarketData interface {
	// PriceChanges returns the 24h price change percent keyed by symbol.
	PriceChanges(ctx context.Context) (map[string]float64, error)
	// Closes returns close prices, oldest first.
	Closes(ctx context.Context, symbol, interval string, limit int) ([]float64, error)
}

// BinanceMarket reads public futures market data.
type BinanceMarket struct {
	futures *futures.Client
}

func NewBinanceMarket(apiKey, apiSecret string, testnet bool) *BinanceMarket {
	futures.UseTestnet = testnet
	return &BinanceMarket{futures: futures.NewClient(apiKey, apiSecret)}
}

func (b *BinanceMarket) PriceChanges(ctx context.Context) (map[string]float64, error) {
	stats, err := b.futures.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("list price change stats: %w", err)
	}
	out := make(map[string]float64, len(stats))
	for _, s := range stats {
		pct, err := strconv.ParseFloat(s.PriceChangePercent, 64)
		if err != nil {
			continue
		}
		out[s.Symbol] = pct
	}
	return out, nil
}

func (b *BinanceMarket) Closes(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	klines, err := b.futures.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}
	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		c, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("kline close %q: %w", k.Close, err)
		}
		closes = append(closes, c)
	}
	return closes, nil
}
