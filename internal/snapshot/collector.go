package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hyperalpha/arena/internal/hyperliquid"
	"github.com/hyperalpha/arena/internal/model"
)

// Broadcaster pushes curve updates to dashboard clients.
type Broadcaster interface {
	Broadcast(event string, data any)
}

// StateSource fetches account margin state. Implemented by
// hyperliquid.Client.
type StateSource interface {
	GetClearinghouseState(ctx context.Context, user string) (*hyperliquid.ClearinghouseState, error)
}

// AccountSource lists the accounts to snapshot.
type AccountSource interface {
	ListActive(ctx context.Context) ([]model.Account, error)
}

// Sink stores snapshot rows. Implemented by store.SnapshotStore.
type Sink interface {
	Insert(ctx context.Context, snap model.AccountSnapshot) error
	Latest(ctx context.Context) ([]model.AccountSnapshot, error)
}

// Config controls the collector cadences.
type Config struct {
	// Interval is how often snapshots are taken.
	Interval time.Duration
	// Concurrency bounds parallel clearinghouse fetches.
	Concurrency int
	// BroadcastInterval is how often curve points are pushed to the hub.
	BroadcastInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.BroadcastInterval <= 0 {
		c.BroadcastInterval = time.Minute
	}
	return c
}

// Collector periodically snapshots every active account's equity.
type Collector struct {
	cfg       Config
	accounts  AccountSource
	states    StateSource
	snapshots Sink
	hub       Broadcaster
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector creates a snapshot collector.
func NewCollector(cfg Config, accounts AccountSource, states StateSource, snapshots Sink, hub Broadcaster, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		cfg:       cfg.withDefaults(),
		accounts:  accounts,
		states:    states,
		snapshots: snapshots,
		hub:       hub,
		logger:    logger,
	}
}

// Start begins the snapshot and broadcast loops.
func (c *Collector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(2)
	go c.collectLoop()
	go c.broadcastLoop()

	c.logger.Info("snapshot collector started",
		"interval", c.cfg.Interval, "concurrency", c.cfg.Concurrency)
	return nil
}

// Stop halts both loops.
func (c *Collector) Stop(ctx context.Context) error {
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
		c.logger.Warn("snapshot collector shutdown timeout")
	}
	return nil
}

func (c *Collector) collectLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce(c.ctx)
		}
	}
}

func (c *Collector) broadcastLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.broadcastLatest(c.ctx)
		}
	}
}

// CollectOnce snapshots every active account with bounded concurrency.
func (c *Collector) CollectOnce(ctx context.Context) {
	accounts, err := c.accounts.ListActive(ctx)
	if err != nil {
		c.logger.Error("list accounts for snapshot failed", "error", err)
		return
	}
	if len(accounts) == 0 {
		return
	}

	takenAt := time.Now().UTC().Truncate(time.Second)
	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, account := range accounts {
		wg.Add(1)
		sem <- struct{}{}
		go func(account model.Account) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := c.snapshotAccount(ctx, account, takenAt); err != nil {
				c.logger.Warn("account snapshot failed",
					"account", account.Name, "error", err)
			}
		}(account)
	}
	wg.Wait()
}

func (c *Collector) snapshotAccount(ctx context.Context, account model.Account, takenAt time.Time) error {
	state, err := c.states.GetClearinghouseState(ctx, account.WalletAddress)
	if err != nil {
		return err
	}

	pnl := decimal.Zero
	for _, ap := range state.AssetPositions {
		if d, err := decimal.NewFromString(ap.Position.UnrealizedPnl); err == nil {
			pnl = pnl.Add(d)
		}
	}

	snap := model.AccountSnapshot{
		AccountID:    account.ID,
		Equity:       parseDec(state.MarginSummary.AccountValue),
		Balance:      parseDec(state.Withdrawable),
		MarginUsed:   parseDec(state.MarginSummary.TotalMarginUsed),
		PositionsPnl: pnl,
		TakenAt:      takenAt,
	}
	return c.snapshots.Insert(ctx, snap)
}

func (c *Collector) broadcastLatest(ctx context.Context) {
	if c.hub == nil {
		return
	}
	latest, err := c.snapshots.Latest(ctx)
	if err != nil {
		c.logger.Warn("load latest snapshots failed", "error", err)
		return
	}
	if len(latest) > 0 {
		c.hub.Broadcast("asset_curve_update", latest)
	}
}

func parseDec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}
