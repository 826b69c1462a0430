package indicators

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DefaultBasket is the liquid USDT-margined set breadth is measured over.
var DefaultBasket = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
	"DOGEUSDT", "ADAUSDT", "AVAXUSDT", "LINKUSDT", "DOTUSDT",
	"TRXUSDT", "LTCUSDT", "BCHUSDT", "NEARUSDT", "ATOMUSDT",
	"UNIUSDT", "APTUSDT", "ARBUSDT", "OPUSDT", "FILUSDT",
}

// BreadthCalculator computes the percent of a basket trading up over 24h.
type BreadthCalculator struct {
	market MarketData
	basket []string
	// topN bounds the fallback basket (first N USDT pairs by symbol) when basket is empty.
	topN int
}

func NewBreadthCalculator(market MarketData, basket []string, topN int) *BreadthCalculator {
	b := make([]string, 0, len(basket))
	for _, s := range basket {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			b = append(b, s)
		}
	}
	if topN <= 0 {
		topN = 50
	}
	return &BreadthCalculator{market: market, basket: b, topN: topN}
}

// Fetch returns the percent of basket members with a positive 24h change.
// Symbols missing from the exchange response are ignored.
func (c *BreadthCalculator) Fetch(ctx context.Context) (float64, error) {
	changes, err := c.market.PriceChanges(ctx)
	if err != nil {
		return 0, err
	}
	symbols := c.basket
	if len(symbols) == 0 {
		symbols = usdtSymbols(changes, c.topN)
	}
	total, up := 0, 0
	for _, s := range symbols {
		pct, ok := changes[s]
		if !ok {
			continue
		}
		total++
		if pct > 0 {
			up++
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("breadth: no basket symbols in market data")
	}
	return float64(up) / float64(total) * 100, nil
}

func usdtSymbols(changes map[string]float64, n int) []string {
	out := make([]string, 0, len(changes))
	for s := range changes {
		if strings.HasSuffix(s, "USDT") {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}
