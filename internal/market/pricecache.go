package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hyperalpha/arena/internal/hyperliquid"
)

// fallbackWarnEvery controls how often repeated HTTP fallbacks are
// logged at warn level instead of debug.
const fallbackWarnEvery = 10

// PriceSource identifies where a returned price came from.
type PriceSource string

const (
	SourceWS   PriceSource = "ws"
	SourceHTTP PriceSource = "http"
)

// CacheStats is a snapshot of price cache counters.
type CacheStats struct {
	WSUpdates     int64     `json:"ws_updates"`
	CacheHits     int64     `json:"cache_hits"`
	HTTPFallbacks int64     `json:"http_fallbacks"`
	LastWSUpdate  time.Time `json:"last_ws_update"`
	Symbols       int       `json:"symbols"`
}

// NormalizeSymbol maps dashboard spellings like "BTC/USDC:USDC" to the
// bare coin name the exchange feeds key on.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, pair := range []string{"/USDC", ":USDC", "/USD"} {
		s = strings.ReplaceAll(s, pair, "")
	}
	return s
}

type cachedPrice struct {
	price     decimal.Decimal
	updatedAt time.Time
}

// PriceCache serves last prices from the WebSocket allMids feed and
// falls back to the REST endpoint when the cached value is stale.
type PriceCache struct {
	client *hyperliquid.Client
	logger *slog.Logger
	ttl    time.Duration

	mu           sync.RWMutex
	prices       map[string]cachedPrice
	lastWSUpdate time.Time

	wsUpdates     atomic.Int64
	cacheHits     atomic.Int64
	httpFallbacks atomic.Int64
}

// NewPriceCache creates a price cache. ttl bounds how old a WS-fed
// price may be before the REST fallback is used.
func NewPriceCache(client *hyperliquid.Client, ttl time.Duration, logger *slog.Logger) *PriceCache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &PriceCache{
		client: client,
		logger: logger,
		ttl:    ttl,
		prices: make(map[string]cachedPrice),
	}
}

// UpdateFromMids ingests an allMids payload from the WebSocket feed.
// Unparseable entries are skipped.
func (pc *PriceCache) UpdateFromMids(mids map[string]string) {
	now := time.Now()

	pc.mu.Lock()
	for coin, raw := range mids {
		px, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		pc.prices[coin] = cachedPrice{price: px, updatedAt: now}
	}
	pc.lastWSUpdate = now
	pc.mu.Unlock()

	pc.wsUpdates.Add(1)
}

// GetPrice returns the current price for a coin, preferring the cached
// WebSocket value and falling back to a REST allMids call when stale.
func (pc *PriceCache) GetPrice(ctx context.Context, coin string) (decimal.Decimal, PriceSource, error) {
	coin = NormalizeSymbol(coin)

	pc.mu.RLock()
	cached, ok := pc.prices[coin]
	pc.mu.RUnlock()

	if ok && time.Since(cached.updatedAt) <= pc.ttl {
		pc.cacheHits.Add(1)
		return cached.price, SourceWS, nil
	}

	fallbacks := pc.httpFallbacks.Add(1)
	if fallbacks%fallbackWarnEvery == 0 {
		pc.logger.Warn("price cache falling back to HTTP repeatedly",
			"fallbacks", fallbacks,
			"coin", coin,
		)
	} else {
		pc.logger.Debug("price cache stale, using HTTP fallback", "coin", coin)
	}

	mids, err := pc.client.GetAllMids(ctx)
	if err != nil {
		// A stale cached price beats no price at all.
		if ok {
			return cached.price, SourceWS, nil
		}
		return decimal.Decimal{}, "", fmt.Errorf("price fallback for %s: %w", coin, err)
	}

	now := time.Now()
	pc.mu.Lock()
	for c, raw := range mids {
		if px, perr := decimal.NewFromString(raw); perr == nil {
			pc.prices[c] = cachedPrice{price: px, updatedAt: now}
		}
	}
	fresh, ok := pc.prices[coin]
	pc.mu.Unlock()

	if !ok {
		return decimal.Decimal{}, "", fmt.Errorf("no price for coin %q", coin)
	}
	return fresh.price, SourceHTTP, nil
}

// Stats returns a snapshot of cache counters.
func (pc *PriceCache) Stats() CacheStats {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return CacheStats{
		WSUpdates:     pc.wsUpdates.Load(),
		CacheHits:     pc.cacheHits.Load(),
		HTTPFallbacks: pc.httpFallbacks.Load(),
		LastWSUpdate:  pc.lastWSUpdate,
		Symbols:       len(pc.prices),
	}
}
