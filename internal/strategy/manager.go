package strategy

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hyperalpha/arena/internal/model"
	"github.com/hyperalpha/arena/internal/store"
)

// Trigger tags recorded with each pipeline run.
const (
	TriggerInterval    = "interval"
	TriggerPriceChange = "price_change"
)

// Runner executes the decision pipeline for one account. Implemented by
// the agent package.
type Runner interface {
	Run(ctx context.Context, cfg model.StrategyConfig, trigger string) error
}

// ChangeSource answers price-change queries over the sampling window.
// Implemented by market.Sampler.
type ChangeSource interface {
	ChangeSince(symbol string, since time.Time) (decimal.Decimal, error)
}

// ConfigSource loads strategy configs and persists trigger times.
// Implemented by store.StrategyStore.
type ConfigSource interface {
	ListActive(ctx context.Context) ([]model.StrategyConfig, error)
	TouchTrigger(ctx context.Context, accountID uuid.UUID, at time.Time) error
}

// AccountStatus is one row of the manager's status snapshot.
type AccountStatus struct {
	AccountID          uuid.UUID  `json:"account_id"`
	AutoTradingEnabled bool       `json:"auto_trading_enabled"`
	Running            bool       `json:"running"`
	LastTriggerAt      *time.Time `json:"last_trigger_at,omitempty"`
	NextTriggerAt      time.Time  `json:"next_trigger_at"`
	TradingSymbols     []string   `json:"trading_symbols"`
}

// ManagerConfig controls the manager's poll cadences.
type ManagerConfig struct {
	// CheckInterval is how often triggers are evaluated.
	CheckInterval time.Duration

	// RefreshInterval is how often configs are reloaded from the
	// database.
	RefreshInterval time.Duration
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 10 * time.Second
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Minute
	}
	return c
}

type accountState struct {
	cfg     model.StrategyConfig
	running bool
}

// Manager evaluates per-account triggers and launches pipeline runs.
type Manager struct {
	cfg     ManagerConfig
	configs ConfigSource
	changes ChangeSource
	runner  Runner
	events  *store.EventLogger
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	states map[uuid.UUID]*accountState

	now func() time.Time
}

// NewManager creates a trigger manager.
func NewManager(cfg ManagerConfig, configs ConfigSource, changes ChangeSource, runner Runner, events *store.EventLogger, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg.withDefaults(),
		configs: configs,
		changes: changes,
		runner:  runner,
		events:  events,
		logger:  logger,
		states:  make(map[uuid.UUID]*accountState),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start loads configs and begins the evaluation loop.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.Refresh(m.ctx); err != nil {
		return err
	}

	m.wg.Add(1)
	go m.loop()

	m.logger.Info("strategy manager started",
		"accounts", len(m.states),
		"check_interval", m.cfg.CheckInterval,
	)
	return nil
}

// Stop halts trigger evaluation. In-flight pipeline runs are awaited
// up to the context deadline.
func (m *Manager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("strategy manager stopped")
	case <-ctx.Done():
		m.logger.Warn("strategy manager stop timed out")
	}
	return nil
}

// Refresh reloads strategy configs, preserving running flags.
func (m *Manager) Refresh(ctx context.Context) error {
	configs, err := m.configs.ListActive(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(configs))
	for _, cfg := range configs {
		seen[cfg.AccountID] = struct{}{}
		if st, ok := m.states[cfg.AccountID]; ok {
			st.cfg = cfg
		} else {
			m.states[cfg.AccountID] = &accountState{cfg: cfg}
		}
	}
	for id := range m.states {
		if _, ok := seen[id]; !ok {
			delete(m.states, id)
		}
	}
	return nil
}

// Status returns a snapshot of every tracked account.
func (m *Manager) Status() []AccountStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AccountStatus, 0, len(m.states))
	for _, st := range m.states {
		status := AccountStatus{
			AccountID:          st.cfg.AccountID,
			AutoTradingEnabled: st.cfg.AutoTradingEnabled,
			Running:            st.running,
			LastTriggerAt:      st.cfg.LastTriggerAt,
			TradingSymbols:     st.cfg.TradingSymbols,
		}
		interval := time.Duration(st.cfg.TriggerIntervalSec) * time.Second
		if st.cfg.LastTriggerAt != nil {
			status.NextTriggerAt = st.cfg.LastTriggerAt.Add(interval)
		} else {
			status.NextTriggerAt = m.now()
		}
		out = append(out, status)
	}
	return out
}

func (m *Manager) loop() {
	defer m.wg.Done()

	check := time.NewTicker(m.cfg.CheckInterval)
	defer check.Stop()
	refresh := time.NewTicker(m.cfg.RefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-refresh.C:
			if err := m.Refresh(m.ctx); err != nil {
				m.logger.Error("strategy config refresh failed", "error", err)
			}
		case <-check.C:
			m.checkAll()
		}
	}
}

func (m *Manager) checkAll() {
	m.mu.Lock()
	for _, st := range m.states {
		if st.running {
			continue
		}
		if trigger := m.evaluate(st.cfg); trigger != "" {
			st.running = true
			m.firePending(st, trigger)
		}
	}
	m.mu.Unlock()
}

// firePending launches a pipeline run. Caller holds the lock and has
// already set the running flag.
func (m *Manager) firePending(st *accountState, trigger string) {
	cfg := st.cfg
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			st.running = false
			m.mu.Unlock()
		}()
		m.runOnce(st, cfg, trigger)
	}()
}

func (m *Manager) runOnce(st *accountState, cfg model.StrategyConfig, trigger string) {
	now := m.now()

	// Persist the trigger time before the model call so a crash cannot
	// re-fire the same interval.
	if err := m.configs.TouchTrigger(m.ctx, cfg.AccountID, now); err != nil {
		m.logger.Error("persist trigger time failed", "account", cfg.AccountID, "error", err)
		return
	}
	m.mu.Lock()
	st.cfg.LastTriggerAt = &now
	m.mu.Unlock()

	if !cfg.AutoTradingEnabled {
		m.logger.Debug("trigger fired but auto trading disabled", "account", cfg.AccountID)
		return
	}

	m.events.Info("strategy trigger (%s) for account %s", trigger, cfg.AccountID)
	m.logger.Info("running decision pipeline",
		"account", cfg.AccountID,
		"trigger", trigger,
	)

	if err := m.runner.Run(m.ctx, cfg, trigger); err != nil && !errors.Is(err, context.Canceled) {
		m.events.Error("decision pipeline failed", err)
		m.logger.Error("decision pipeline failed", "account", cfg.AccountID, "error", err)
	}
}

// evaluate returns the trigger tag when a run is due, or "".
func (m *Manager) evaluate(cfg model.StrategyConfig) string {
	now := m.now()

	if cfg.LastTriggerAt == nil {
		return TriggerInterval
	}

	interval := time.Duration(cfg.TriggerIntervalSec) * time.Second
	if interval > 0 && now.Sub(*cfg.LastTriggerAt) >= interval {
		return TriggerInterval
	}

	if cfg.PriceChangeThreshold.IsPositive() && m.changes != nil {
		for _, sym := range cfg.TradingSymbols {
			change, err := m.changes.ChangeSince(sym, *cfg.LastTriggerAt)
			if err != nil {
				continue
			}
			if change.Abs().GreaterThanOrEqual(cfg.PriceChangeThreshold) {
				return TriggerPriceChange
			}
		}
	}
	return ""
}
