package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hyperalpha/arena/internal/hyperliquid"
)

const metaAndCtxsPayload = `[
	{
		"universe": [
			{"name": "BTC", "szDecimals": 5, "maxLeverage": 40},
			{"name": "ETH", "szDecimals": 4, "maxLeverage": 25}
		]
	},
	[
		{"markPx": "97123.5", "oraclePx": "97120.0", "prevDayPx": "96000.0", "funding": "0.0000125", "openInterest": "12345.6", "dayNtlVlm": "987654321.0"},
		{"markPx": "3456.7", "oraclePx": "3455.9", "prevDayPx": "0", "funding": "0.0000100", "openInterest": "54321.0", "dayNtlVlm": "123456789.0"}
	]
]`

func newCatalogServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
}

func TestFormatSymbolName(t *testing.T) {
	if got := FormatSymbolName("BTC"); got != "BTC/USDC:USDC" {
		t.Errorf("FormatSymbolName(BTC) = %q, want %q", got, "BTC/USDC:USDC")
	}
}

func TestCatalogRefresh(t *testing.T) {
	server := newCatalogServer(t, metaAndCtxsPayload)
	defer server.Close()

	client := hyperliquid.NewClient(server.URL)
	catalog := NewCatalog(client, time.Hour, nil)

	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	if catalog.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", catalog.Count())
	}

	btc, ok := catalog.Get("BTC")
	if !ok {
		t.Fatal("Get(BTC) not found")
	}
	if btc.Name != "BTC/USDC:USDC" {
		t.Errorf("btc.Name = %q, want BTC/USDC:USDC", btc.Name)
	}
	if btc.MaxLeverage != 40 {
		t.Errorf("btc.MaxLeverage = %d, want 40", btc.MaxLeverage)
	}
	if btc.SzDecimals != 5 {
		t.Errorf("btc.SzDecimals = %d, want 5", btc.SzDecimals)
	}
	if !btc.MarkPrice.Equal(decimal.NewFromFloat(97123.5)) {
		t.Errorf("btc.MarkPrice = %v, want 97123.5", btc.MarkPrice)
	}
	if !btc.OraclePrice.Equal(decimal.NewFromFloat(97120.0)) {
		t.Errorf("btc.OraclePrice = %v, want 97120.0", btc.OraclePrice)
	}
	if !btc.PrevDayPrice.Equal(decimal.NewFromFloat(96000.0)) {
		t.Errorf("btc.PrevDayPrice = %v, want 96000.0", btc.PrevDayPrice)
	}
	// (97123.5 - 96000) / 96000 * 100
	if !btc.Change24h.Equal(decimal.NewFromFloat(1.1703125)) {
		t.Errorf("btc.Change24h = %v, want 1.1703125", btc.Change24h)
	}

	eth, ok := catalog.Get("ETH")
	if !ok {
		t.Fatal("Get(ETH) not found")
	}
	if !eth.DayVolume.Equal(decimal.NewFromFloat(123456789.0)) {
		t.Errorf("eth.DayVolume = %v, want 123456789.0", eth.DayVolume)
	}
	// A zero previous-day price yields no derived change.
	if !eth.Change24h.IsZero() {
		t.Errorf("eth.Change24h = %v, want 0", eth.Change24h)
	}

	if got := len(catalog.All()); got != 2 {
		t.Errorf("len(All()) = %d, want 2", got)
	}

	if _, ok := catalog.Get("DOGE"); ok {
		t.Error("Get(DOGE) found, want missing")
	}
}

func TestCatalogRefreshShortContexts(t *testing.T) {
	payload := `[
		{"universe": [{"name": "BTC", "szDecimals": 5, "maxLeverage": 40}, {"name": "ETH", "szDecimals": 4, "maxLeverage": 25}]},
		[{"markPx": "97123.5", "oraclePx": "97120.0", "funding": "0", "openInterest": "0", "dayNtlVlm": "0"}]
	]`
	server := newCatalogServer(t, payload)
	defer server.Close()

	client := hyperliquid.NewClient(server.URL)
	catalog := NewCatalog(client, time.Hour, nil)

	if err := catalog.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil, want context count mismatch")
	}
}
