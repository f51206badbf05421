package prompt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hyperalpha/arena/internal/model"
)

type fakeMarket struct {
	infos map[string]model.SymbolInfo
}

func (f fakeMarket) SymbolInfo(coin string) (model.SymbolInfo, bool) {
	info, ok := f.infos[coin]
	return info, ok
}

type fakeKlines struct {
	data map[string][]model.Kline
}

func (f fakeKlines) Klines(_ context.Context, coin, interval string, count int) ([]model.Kline, error) {
	klines := f.data[coin+"|"+interval]
	if len(klines) > count {
		klines = klines[len(klines)-count:]
	}
	return klines, nil
}

func makeKlines(n int, start float64) []model.Kline {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Kline, n)
	for i := range out {
		px := decimal.NewFromFloat(start + float64(i))
		out[i] = model.Kline{
			Symbol:    "BTC",
			Interval:  "15m",
			OpenTime:  base.Add(time.Duration(i) * 15 * time.Minute),
			CloseTime: base.Add(time.Duration(i+1) * 15 * time.Minute),
			Open:      px,
			High:      px.Mul(decimal.NewFromFloat(1.01)),
			Low:       px.Mul(decimal.NewFromFloat(0.99)),
			Close:     px,
			Volume:    decimal.NewFromInt(10),
		}
	}
	return out
}

func TestRenderStaticVars(t *testing.T) {
	r := NewRenderer(nil, nil, nil)

	out := r.Render(context.Background(), "Equity: ${total_equity}, Max: {max_leverage}x", map[string]string{
		"total_equity": "10500.25",
		"max_leverage": "10",
	})

	if out != "Equity: $10500.25, Max: 10x" {
		t.Errorf("Render() = %q", out)
	}
}

func TestRenderOutputFormatInjected(t *testing.T) {
	r := NewRenderer(nil, nil, nil)

	out := r.Render(context.Background(), "Schema:\n{output_format}", nil)

	if !strings.Contains(out, `"decisions"`) {
		t.Errorf("output missing decisions schema: %q", out)
	}
}

func TestRenderUnresolvedBlanked(t *testing.T) {
	r := NewRenderer(nil, nil, nil)

	out := r.Render(context.Background(), "News:\n{news_section}\nEnd", nil)

	if strings.Contains(out, "{news_section}") {
		t.Errorf("unresolved placeholder survived: %q", out)
	}
	if !strings.Contains(out, "News:\n\nEnd") {
		t.Errorf("placeholder not blanked cleanly: %q", out)
	}
}

func TestRenderMarketData(t *testing.T) {
	market := fakeMarket{infos: map[string]model.SymbolInfo{
		"BTC": {
			Symbol:       "BTC",
			Name:         "BTC/USDC:USDC",
			MaxLeverage:  40,
			MarkPrice:    decimal.NewFromFloat(97123.5),
			OraclePrice:  decimal.NewFromFloat(97120),
			Funding:      decimal.NewFromFloat(0.0000125),
			OpenInterest: decimal.NewFromFloat(12345.6),
			DayVolume:    decimal.NewFromFloat(987654321),
		},
	}}
	r := NewRenderer(market, nil, nil)

	out := r.Render(context.Background(), "{BTC_market_data}", nil)

	for _, want := range []string{"BTC Market Data:", "Mark Price: $97123.5", "Max Leverage: 40x"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderMarketDataUnknownSymbol(t *testing.T) {
	r := NewRenderer(fakeMarket{}, nil, nil)

	out := r.Render(context.Background(), "before {DOGE_market_data} after", nil)

	if out != "before  after" {
		t.Errorf("Render() = %q, want blanked variable", out)
	}
}

func TestRenderKlinesWithCount(t *testing.T) {
	klines := fakeKlines{data: map[string][]model.Kline{
		"BTC|15m": makeKlines(50, 97000),
	}}
	r := NewRenderer(nil, klines, nil)

	out := r.Render(context.Background(), "{BTC_klines_15m}(5)", nil)

	if !strings.Contains(out, "BTC K-lines (15m, last 5 candles, oldest first):") {
		t.Errorf("missing kline header:\n%s", out)
	}
	if got := strings.Count(out, "O:"); got != 5 {
		t.Errorf("candle lines = %d, want 5", got)
	}
	// Newest candle (close 97049) must be present, oldest (97000) trimmed.
	if !strings.Contains(out, "C:97049") {
		t.Errorf("missing newest candle:\n%s", out)
	}
	if strings.Contains(out, "C:97000 ") {
		t.Errorf("oldest candle not trimmed:\n%s", out)
	}
}

func TestRenderIndicators(t *testing.T) {
	klines := fakeKlines{data: map[string][]model.Kline{
		"BTC|15m": makeKlines(120, 97000),
	}}
	r := NewRenderer(nil, klines, nil)

	// Monotonically rising closes pin RSI at 100.
	out := r.Render(context.Background(), "{BTC_RSI14_15m}", nil)
	if out != "BTC RSI14 (15m): 100.00" {
		t.Errorf("RSI14 = %q", out)
	}

	out = r.Render(context.Background(), "{BTC_MA_15m}", nil)
	for _, want := range []string{"BTC MA (15m):", "MA5=", "MA10=", "MA20="} {
		if !strings.Contains(out, want) {
			t.Errorf("MA output missing %q: %s", want, out)
		}
	}

	out = r.Render(context.Background(), "{BTC_MACD_15m}", nil)
	for _, want := range []string{"MACD=", "Signal=", "Histogram="} {
		if !strings.Contains(out, want) {
			t.Errorf("MACD output missing %q: %s", want, out)
		}
	}

	out = r.Render(context.Background(), "{BTC_BOLL_15m}", nil)
	for _, want := range []string{"Upper=", "Middle=", "Lower="} {
		if !strings.Contains(out, want) {
			t.Errorf("BOLL output missing %q: %s", want, out)
		}
	}

	// Combined set in one line.
	out = r.Render(context.Background(), "{BTC_INDICATORS_15m}", nil)
	for _, want := range []string{"BTC INDICATORS (15m):", "Last=", "MA20=", "EMA26=", "RSI14=", "MACD=", "BOLL=", "STOCH=", "ATR14=", "VWAP="} {
		if !strings.Contains(out, want) {
			t.Errorf("INDICATORS output missing %q: %s", want, out)
		}
	}
}

func TestRenderIndicatorNoData(t *testing.T) {
	r := NewRenderer(nil, fakeKlines{}, nil)

	out := r.Render(context.Background(), "x{ETH_ATR14_1h}y", nil)
	if out != "xy" {
		t.Errorf("Render() = %q, want blanked variable", out)
	}
}

func TestBuiltinsRenderCleanly(t *testing.T) {
	r := NewRenderer(fakeMarket{}, fakeKlines{}, nil)
	vars := map[string]string{
		"trading_environment": "Hyperliquid testnet",
		"max_leverage":        "10",
	}

	for _, tpl := range Builtins() {
		out := r.Render(context.Background(), tpl.Body, vars)
		if strings.Contains(out, "{max_leverage}") {
			t.Errorf("template %s: static var not substituted", tpl.Name)
		}
		if dynamicVar.MatchString(out) {
			t.Errorf("template %s: dynamic var survived render", tpl.Name)
		}
	}
}
