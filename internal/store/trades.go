package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperalpha/arena/internal/model"
)

// TradeStore persists executed and attempted orders.
type TradeStore struct {
	db *pgxpool.Pool
}

// NewTradeStore creates a trade repository.
func NewTradeStore(db *pgxpool.Pool) *TradeStore {
	return &TradeStore{db: db}
}

const tradeColumns = `id, account_id, symbol, side, size, price, leverage,
	reduce_only, order_id, status, error, executed_at`

func scanTrade(row pgx.Row) (model.Trade, error) {
	var t model.Trade
	err := row.Scan(&t.ID, &t.AccountID, &t.Symbol, &t.Side, &t.Size, &t.Price, &t.Leverage,
		&t.ReduceOnly, &t.OrderID, &t.Status, &t.Error, &t.ExecutedAt)
	return t, err
}

// Insert records one trade attempt.
func (s *TradeStore) Insert(ctx context.Context, t model.Trade) (model.Trade, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO trades (id, account_id, symbol, side, size, price, leverage,
			reduce_only, order_id, status, error, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, t.AccountID, t.Symbol, t.Side, t.Size, t.Price, t.Leverage,
		t.ReduceOnly, t.OrderID, t.Status, t.Error, t.ExecutedAt)
	if err != nil {
		return model.Trade{}, fmt.Errorf("insert trade: %w", err)
	}
	return t, nil
}

// RecentByAccount returns an account's latest trades, newest first.
func (s *TradeStore) RecentByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE account_id = $1 ORDER BY executed_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// Feed returns the latest trades across every account, newest first.
func (s *TradeStore) Feed(ctx context.Context, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+tradeColumns+` FROM trades ORDER BY executed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trade feed: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

func collectTrades(rows pgx.Rows) ([]model.Trade, error) {
	var out []model.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
