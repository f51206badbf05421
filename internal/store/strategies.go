package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperalpha/arena/internal/model"
)

// StrategyStore persists per-account strategy configuration.
type StrategyStore struct {
	db *pgxpool.Pool
}

// NewStrategyStore creates a strategy config repository.
func NewStrategyStore(db *pgxpool.Pool) *StrategyStore {
	return &StrategyStore{db: db}
}

const strategyColumns = `account_id, auto_trading_enabled, trigger_interval_seconds,
	price_change_threshold, max_leverage, max_position_portion, trading_symbols,
	strategy_prompt, last_trigger_at, updated_at`

func scanStrategy(row pgx.Row) (model.StrategyConfig, error) {
	var c model.StrategyConfig
	err := row.Scan(&c.AccountID, &c.AutoTradingEnabled, &c.TriggerIntervalSec,
		&c.PriceChangeThreshold, &c.MaxLeverage, &c.MaxPositionPortion, &c.TradingSymbols,
		&c.StrategyPrompt, &c.LastTriggerAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

// Get fetches one account's strategy config.
func (s *StrategyStore) Get(ctx context.Context, accountID uuid.UUID) (model.StrategyConfig, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+strategyColumns+` FROM strategy_configs WHERE account_id = $1`, accountID)
	return scanStrategy(row)
}

// ListActive returns strategy configs joined with active accounts.
func (s *StrategyStore) ListActive(ctx context.Context) ([]model.StrategyConfig, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sc.account_id, sc.auto_trading_enabled, sc.trigger_interval_seconds,
			sc.price_change_threshold, sc.max_leverage, sc.max_position_portion,
			sc.trading_symbols, sc.strategy_prompt, sc.last_trigger_at, sc.updated_at
		FROM strategy_configs sc
		JOIN accounts a ON a.id = sc.account_id
		WHERE a.is_active
		ORDER BY a.name`)
	if err != nil {
		return nil, fmt.Errorf("list strategy configs: %w", err)
	}
	defer rows.Close()

	var out []model.StrategyConfig
	for rows.Next() {
		c, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces an account's strategy config.
func (s *StrategyStore) Upsert(ctx context.Context, c model.StrategyConfig) (model.StrategyConfig, error) {
	c.UpdatedAt = time.Now().UTC()

	_, err := s.db.Exec(ctx, `
		INSERT INTO strategy_configs (account_id, auto_trading_enabled, trigger_interval_seconds,
			price_change_threshold, max_leverage, max_position_portion, trading_symbols,
			strategy_prompt, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (account_id) DO UPDATE SET
			auto_trading_enabled = EXCLUDED.auto_trading_enabled,
			trigger_interval_seconds = EXCLUDED.trigger_interval_seconds,
			price_change_threshold = EXCLUDED.price_change_threshold,
			max_leverage = EXCLUDED.max_leverage,
			max_position_portion = EXCLUDED.max_position_portion,
			trading_symbols = EXCLUDED.trading_symbols,
			strategy_prompt = EXCLUDED.strategy_prompt,
			updated_at = EXCLUDED.updated_at
	`, c.AccountID, c.AutoTradingEnabled, c.TriggerIntervalSec,
		c.PriceChangeThreshold, c.MaxLeverage, c.MaxPositionPortion, c.TradingSymbols,
		c.StrategyPrompt, c.UpdatedAt)
	if err != nil {
		return model.StrategyConfig{}, fmt.Errorf("upsert strategy config: %w", err)
	}
	return c, nil
}

// TouchTrigger records a trigger firing. Persisted before the model
// call so a crash mid-cycle cannot re-fire the same interval.
func (s *StrategyStore) TouchTrigger(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE strategy_configs SET last_trigger_at = $2 WHERE account_id = $1`,
		accountID, at.UTC())
	if err != nil {
		return fmt.Errorf("touch trigger: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
