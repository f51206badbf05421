package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.hyperliquid.xyz")

		if c.baseURL != "https://api.hyperliquid.xyz" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.hyperliquid.xyz")
		}
		if c.httpClient.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 10*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with options", func(t *testing.T) {
		c := NewClient("https://api.hyperliquid-testnet.xyz",
			WithTimeout(5*time.Second),
			WithRetries(5, 2*time.Second),
		)
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 5*time.Second)
		}
		if c.maxRetries != 5 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 5)
		}
		if c.retryBackoff != 2*time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 2*time.Second)
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &APIError{StatusCode: 422, Message: "Unprocessable Entity"}
		expected := "hyperliquid api error 422: Unprocessable Entity"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tests := []struct {
			code     int
			expected bool
		}{
			{500, true},
			{502, true},
			{503, true},
			{429, true},
			{400, false},
			{404, false},
			{422, false},
		}

		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.expected {
				t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
			}
		}
	})
}

func decodeInfoRequest(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		t.Fatalf("decoding request body: %v", err)
	}
	return payload
}

// TestGetAllMids tests the allMids info request.
func TestGetAllMids(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/info")
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		payload := decodeInfoRequest(t, r)
		if payload["type"] != "allMids" {
			t.Errorf("type = %v, want allMids", payload["type"])
		}
		json.NewEncoder(w).Encode(map[string]string{
			"BTC": "97123.5",
			"ETH": "3456.7",
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	mids, err := c.GetAllMids(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mids["BTC"] != "97123.5" {
		t.Errorf(`mids["BTC"] = %q, want "97123.5"`, mids["BTC"])
	}
	if len(mids) != 2 {
		t.Errorf("len(mids) = %d, want 2", len(mids))
	}
}

// TestGetMetaAndAssetCtxs tests decoding of the two-element response.
func TestGetMetaAndAssetCtxs(t *testing.T) {
	t.Run("successful fetch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload := decodeInfoRequest(t, r)
			if payload["type"] != "metaAndAssetCtxs" {
				t.Errorf("type = %v, want metaAndAssetCtxs", payload["type"])
			}
			w.Write([]byte(`[
				{"universe":[
					{"name":"BTC","szDecimals":5,"maxLeverage":40},
					{"name":"ETH","szDecimals":4,"maxLeverage":25}
				]},
				[
					{"funding":"0.0000125","openInterest":"12345.6","markPx":"97000","oraclePx":"96990","midPx":"97005","dayNtlVlm":"1000000","prevDayPx":"95000","premium":"0.0001","impactPxs":["96999","97001"]},
					{"funding":"0.0000100","openInterest":"54321.0","markPx":"3450","oraclePx":"3449","midPx":"3450.5","dayNtlVlm":"500000","prevDayPx":"3400","premium":"0.0002","impactPxs":["3449","3451"]}
				]
			]`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		meta, ctxs, err := c.GetMetaAndAssetCtxs(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(meta.Universe) != 2 {
			t.Fatalf("len(Universe) = %d, want 2", len(meta.Universe))
		}
		if meta.Universe[0].Name != "BTC" || meta.Universe[0].MaxLeverage != 40 {
			t.Errorf("Universe[0] = %+v, want BTC with 40x", meta.Universe[0])
		}
		if len(ctxs) != 2 {
			t.Fatalf("len(ctxs) = %d, want 2", len(ctxs))
		}
		if ctxs[0].MarkPx != "97000" {
			t.Errorf("ctxs[0].MarkPx = %q, want 97000", ctxs[0].MarkPx)
		}
		if ctxs[1].OraclePx != "3449" {
			t.Errorf("ctxs[1].OraclePx = %q, want 3449", ctxs[1].OraclePx)
		}
	})

	t.Run("malformed element count", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"universe":[]}]`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, _, err := c.GetMetaAndAssetCtxs(context.Background())
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "expected 2 elements") {
			t.Errorf("error = %v, want element count complaint", err)
		}
	})
}

// TestGetCandleSnapshot tests the candleSnapshot request shape.
func TestGetCandleSnapshot(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := decodeInfoRequest(t, r)
		if payload["type"] != "candleSnapshot" {
			t.Errorf("type = %v, want candleSnapshot", payload["type"])
		}
		req := payload["req"].(map[string]any)
		if req["coin"] != "BTC" {
			t.Errorf("coin = %v, want BTC", req["coin"])
		}
		if req["interval"] != "1m" {
			t.Errorf("interval = %v, want 1m", req["interval"])
		}
		if int64(req["startTime"].(float64)) != start.UnixMilli() {
			t.Errorf("startTime = %v, want %d", req["startTime"], start.UnixMilli())
		}
		w.Write([]byte(`[
			{"t":1754006400000,"T":1754006459999,"s":"BTC","i":"1m","o":"97000","c":"97100","h":"97150","l":"96950","v":"12.5","n":42}
		]`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	candles, err := c.GetCandleSnapshot(context.Background(), "BTC", "1m", start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("len(candles) = %d, want 1", len(candles))
	}
	if candles[0].Close != "97100" || candles[0].Trades != 42 {
		t.Errorf("candle = %+v, want close 97100 with 42 trades", candles[0])
	}
}

// TestGetClearinghouseState tests account state decoding.
func TestGetClearinghouseState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := decodeInfoRequest(t, r)
		if payload["type"] != "clearinghouseState" {
			t.Errorf("type = %v, want clearinghouseState", payload["type"])
		}
		if payload["user"] != "0xabc" {
			t.Errorf("user = %v, want 0xabc", payload["user"])
		}
		w.Write([]byte(`{
			"marginSummary":{"accountValue":"10000.5","totalNtlPos":"5000","totalRawUsd":"10000.5","totalMarginUsed":"500"},
			"crossMarginSummary":{"accountValue":"10000.5","totalNtlPos":"5000","totalRawUsd":"10000.5","totalMarginUsed":"500"},
			"withdrawable":"9500.5",
			"assetPositions":[
				{"type":"oneWay","position":{"coin":"BTC","szi":"0.05","entryPx":"95000","positionValue":"4850","unrealizedPnl":"100","returnOnEquity":"0.2","liquidationPx":"80000","marginUsed":"485","maxLeverage":40,"leverage":{"type":"cross","value":10}}}
			],
			"time":1754006400000
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	state, err := c.GetClearinghouseState(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.MarginSummary.AccountValue != "10000.5" {
		t.Errorf("AccountValue = %q, want 10000.5", state.MarginSummary.AccountValue)
	}
	if len(state.AssetPositions) != 1 {
		t.Fatalf("len(AssetPositions) = %d, want 1", len(state.AssetPositions))
	}
	pos := state.AssetPositions[0].Position
	if pos.Coin != "BTC" || pos.Szi != "0.05" || pos.Leverage.Value != 10 {
		t.Errorf("position = %+v, want BTC 0.05 at 10x", pos)
	}
}

// TestInfoRetries tests the retry behavior on server errors.
func TestInfoRetries(t *testing.T) {
	t.Run("retries on 5xx and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&attempts, 1)
			if n < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"BTC":"97000"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		mids, err := c.GetAllMids(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mids["BTC"] != "97000" {
			t.Errorf(`mids["BTC"] = %q, want 97000`, mids["BTC"])
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("does not retry on 4xx", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		_, err := c.GetAllMids(context.Background())
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(2, 10*time.Millisecond))
		_, err := c.GetAllMids(context.Background())
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error should contain 'max retries exceeded', got %v", err)
		}
	})
}
