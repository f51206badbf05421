package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperalpha/arena/internal/hyperliquid"
	"github.com/hyperalpha/arena/internal/market"
	"github.com/hyperalpha/arena/internal/strategy"
)

type fakeStatus struct {
	statuses []strategy.AccountStatus
}

func (f *fakeStatus) Status() []strategy.AccountStatus { return f.statuses }

// newTestHandler wires only the DB-free collaborators; DB-backed routes
// are covered by integration runs against a live stack.
func newTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()

	client := hyperliquid.NewClient("http://127.0.0.1:1")
	prices := market.NewPriceCache(client, 2*time.Second, nil)
	catalog := market.NewCatalog(client, time.Hour, nil)

	h := &Handler{
		Auth:     NewAuthService(nil, "test-secret"),
		Catalog:  catalog,
		Prices:   prices,
		HL:       client,
		Strategy: &fakeStatus{},
		Hub:      NewHub(nil),
	}
	return h, h.Router(nil)
}

func TestHealthz(t *testing.T) {
	_, router := newTestHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCacheStats(t *testing.T) {
	h, router := newTestHandler(t)
	h.Prices.UpdateFromMids(map[string]string{"BTC": "65000"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/market/cache-stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats market.CacheStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.WSUpdates)
	assert.Equal(t, 1, stats.Symbols)
}

func TestGetTickerFromCache(t *testing.T) {
	h, router := newTestHandler(t)
	h.Prices.UpdateFromMids(map[string]string{"ETH": "3100.5"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/hyperliquid/ticker/ETH", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticker))
	assert.Equal(t, "ETH", ticker.Symbol)
	assert.Equal(t, "3100.5", ticker.Price)
	assert.Equal(t, "ws", ticker.Source)
}

func TestGetTickerUnknownSymbol(t *testing.T) {
	_, router := newTestHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/hyperliquid/ticker/NOPE", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSymbolsEmptyCatalog(t *testing.T) {
	_, router := newTestHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/hyperliquid/symbols", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestStrategyStatus(t *testing.T) {
	h, router := newTestHandler(t)
	h.Strategy = &fakeStatus{statuses: []strategy.AccountStatus{
		{AutoTradingEnabled: true, Running: false, TradingSymbols: []string{"BTC"}},
	}}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/strategy/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []strategy.AccountStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].AutoTradingEnabled)
}

func TestMutationsRequireAuth(t *testing.T) {
	_, router := newTestHandler(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/api/config/sampling"},
		{http.MethodPost, "/api/prompts"},
		{http.MethodPut, "/api/hyperliquid/watchlist"},
		{http.MethodPost, "/api/accounts"},
	}
	for _, p := range paths {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(p.method, p.path, strings.NewReader("{}")))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestInvalidAccountID(t *testing.T) {
	_, router := newTestHandler(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/not-a-uuid/strategy", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
