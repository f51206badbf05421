package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hyperalpha/arena/internal/hyperliquid"
	"github.com/hyperalpha/arena/internal/model"
)

// FormatSymbolName renders a base asset as its CCXT-style perpetual
// name, e.g. "BTC" -> "BTC/USDC:USDC".
func FormatSymbolName(coin string) string {
	return fmt.Sprintf("%s/USDC:USDC", coin)
}

// Catalog caches the tradeable perpetuals universe and refreshes it on
// an interval.
type Catalog struct {
	client  *hyperliquid.Client
	logger  *slog.Logger
	refresh time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	symbols map[string]model.SymbolInfo
}

// NewCatalog creates a symbol catalog refreshing every refresh period.
func NewCatalog(client *hyperliquid.Client, refresh time.Duration, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	if refresh <= 0 {
		refresh = time.Hour
	}
	return &Catalog{
		client:  client,
		logger:  logger,
		refresh: refresh,
		symbols: make(map[string]model.SymbolInfo),
	}
}

// Start loads the universe once and begins the refresh loop.
func (c *Catalog) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.Refresh(c.ctx); err != nil {
		return fmt.Errorf("initial symbol refresh: %w", err)
	}

	c.wg.Add(1)
	go c.refreshLoop()

	c.logger.Info("symbol catalog started", "symbols", c.Count(), "refresh", c.refresh)
	return nil
}

// Stop halts the refresh loop.
func (c *Catalog) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("catalog shutdown timeout")
	}
	return nil
}

func (c *Catalog) refreshLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(c.ctx); err != nil {
				c.logger.Error("symbol refresh failed", "error", err)
			}
		}
	}
}

// Refresh fetches exchange metadata and rebuilds the symbol table.
func (c *Catalog) Refresh(ctx context.Context) error {
	meta, ctxs, err := c.client.GetMetaAndAssetCtxs(ctx)
	if err != nil {
		return err
	}
	if len(ctxs) < len(meta.Universe) {
		return fmt.Errorf("asset context count %d < universe size %d", len(ctxs), len(meta.Universe))
	}

	now := time.Now().UTC()
	symbols := make(map[string]model.SymbolInfo, len(meta.Universe))
	for i, asset := range meta.Universe {
		actx := ctxs[i]
		mark := parseDecimal(actx.MarkPx)
		prev := parseDecimal(actx.PrevDayPx)
		symbols[asset.Name] = model.SymbolInfo{
			Symbol:       asset.Name,
			Name:         FormatSymbolName(asset.Name),
			MaxLeverage:  asset.MaxLeverage,
			SzDecimals:   asset.SzDecimals,
			MarkPrice:    mark,
			OraclePrice:  parseDecimal(actx.OraclePx),
			PrevDayPrice: prev,
			Change24h:    changePercent(mark, prev),
			Funding:      parseDecimal(actx.Funding),
			OpenInterest: parseDecimal(actx.OpenInterest),
			DayVolume:    parseDecimal(actx.DayNtlVlm),
			UpdatedAt:    now,
		}
	}

	c.mu.Lock()
	c.symbols = symbols
	c.mu.Unlock()

	c.logger.Debug("symbol catalog refreshed", "symbols", len(symbols))
	return nil
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// changePercent derives the 24h move from the mark price against the
// previous-day price.
func changePercent(mark, prev decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		return decimal.Decimal{}
	}
	return mark.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
}

// Get returns the symbol info for one coin.
func (c *Catalog) Get(coin string) (model.SymbolInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.symbols[coin]
	return info, ok
}

// SymbolInfo is an alias for Get satisfying the prompt renderer's
// market source.
func (c *Catalog) SymbolInfo(coin string) (model.SymbolInfo, bool) {
	return c.Get(coin)
}

// All returns every known symbol.
func (c *Catalog) All() []model.SymbolInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.SymbolInfo, 0, len(c.symbols))
	for _, s := range c.symbols {
		out = append(out, s)
	}
	return out
}

// Count returns the number of known symbols.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.symbols)
}
