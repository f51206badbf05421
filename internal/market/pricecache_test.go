package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hyperalpha/arena/internal/hyperliquid"
)

func TestPriceCacheWSHit(t *testing.T) {
	var httpCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&httpCalls, 1)
		w.Write([]byte(`{"BTC":"96000"}`))
	}))
	defer server.Close()

	pc := NewPriceCache(hyperliquid.NewClient(server.URL), 2*time.Second, nil)
	pc.UpdateFromMids(map[string]string{"BTC": "97000.5", "ETH": "3456"})

	px, source, err := pc.GetPrice(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("GetPrice() error: %v", err)
	}
	if source != SourceWS {
		t.Errorf("source = %q, want ws", source)
	}
	if !px.Equal(decimal.NewFromFloat(97000.5)) {
		t.Errorf("price = %v, want 97000.5", px)
	}
	if atomic.LoadInt32(&httpCalls) != 0 {
		t.Errorf("httpCalls = %d, want 0", httpCalls)
	}

	stats := pc.Stats()
	if stats.WSUpdates != 1 || stats.CacheHits != 1 || stats.HTTPFallbacks != 0 {
		t.Errorf("stats = %+v, want 1 update / 1 hit / 0 fallbacks", stats)
	}
	if stats.Symbols != 2 {
		t.Errorf("stats.Symbols = %d, want 2", stats.Symbols)
	}
}

func TestPriceCacheHTTPFallback(t *testing.T) {
	var httpCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&httpCalls, 1)
		w.Write([]byte(`{"BTC":"96000","SOL":"210.5"}`))
	}))
	defer server.Close()

	// Tiny TTL so any cached value is immediately stale.
	pc := NewPriceCache(hyperliquid.NewClient(server.URL), time.Nanosecond, nil)

	px, source, err := pc.GetPrice(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("GetPrice() error: %v", err)
	}
	if source != SourceHTTP {
		t.Errorf("source = %q, want http", source)
	}
	if !px.Equal(decimal.NewFromFloat(210.5)) {
		t.Errorf("price = %v, want 210.5", px)
	}
	if atomic.LoadInt32(&httpCalls) != 1 {
		t.Errorf("httpCalls = %d, want 1", httpCalls)
	}
	if pc.Stats().HTTPFallbacks != 1 {
		t.Errorf("HTTPFallbacks = %d, want 1", pc.Stats().HTTPFallbacks)
	}
}

func TestPriceCacheUnknownCoin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"BTC":"96000"}`))
	}))
	defer server.Close()

	pc := NewPriceCache(hyperliquid.NewClient(server.URL), 2*time.Second, nil)

	if _, _, err := pc.GetPrice(context.Background(), "NOPE"); err == nil {
		t.Fatal("expected error for unknown coin")
	}
}

func TestPriceCacheStaleBeatsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	pc := NewPriceCache(hyperliquid.NewClient(server.URL, hyperliquid.WithRetries(0, time.Millisecond)), time.Nanosecond, nil)
	pc.UpdateFromMids(map[string]string{"BTC": "97000"})

	// Fallback fails, but the stale cached price is still returned.
	px, _, err := pc.GetPrice(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("GetPrice() error: %v", err)
	}
	if !px.Equal(decimal.NewFromInt(97000)) {
		t.Errorf("price = %v, want stale 97000", px)
	}
}

func TestPriceCacheSkipsBadMids(t *testing.T) {
	pc := NewPriceCache(nil, 2*time.Second, nil)
	pc.UpdateFromMids(map[string]string{"BTC": "97000", "BAD": "not-a-number"})

	if pc.Stats().Symbols != 1 {
		t.Errorf("Symbols = %d, want 1 (bad entry skipped)", pc.Stats().Symbols)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct{ in, want string }{
		{"BTC", "BTC"},
		{"btc", "BTC"},
		{"BTC/USDC:USDC", "BTC"},
		{"ETH/USDC", "ETH"},
		{"SOL/USD", "SOL"},
	}
	for _, tc := range cases {
		if got := NormalizeSymbol(tc.in); got != tc.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPriceCacheNormalizesPairSpelling(t *testing.T) {
	pc := NewPriceCache(nil, 2*time.Second, nil)
	pc.UpdateFromMids(map[string]string{"BTC": "50000"})

	px, source, err := pc.GetPrice(context.Background(), "BTC/USDC:USDC")
	if err != nil {
		t.Fatalf("GetPrice() error: %v", err)
	}
	if source != SourceWS {
		t.Errorf("source = %q, want ws", source)
	}
	if !px.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("price = %v, want 50000", px)
	}
}
