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

// PositionStore mirrors live exchange positions into the database so
// the dashboard can read them without hitting the exchange.
type PositionStore struct {
	db *pgxpool.Pool
}

// NewPositionStore creates a position repository.
func NewPositionStore(db *pgxpool.Pool) *PositionStore {
	return &PositionStore{db: db}
}

const positionColumns = `account_id, symbol, side, size, entry_price, mark_price,
	leverage, unrealized_pnl, margin_used, liquidation_price, updated_at`

func scanPosition(row pgx.Row) (model.Position, error) {
	var p model.Position
	err := row.Scan(&p.AccountID, &p.Symbol, &p.Side, &p.Size, &p.EntryPrice, &p.MarkPrice,
		&p.Leverage, &p.UnrealizedPnl, &p.MarginUsed, &p.LiquidationPx, &p.UpdatedAt)
	return p, err
}

// Upsert inserts or replaces a position keyed by account and symbol.
func (s *PositionStore) Upsert(ctx context.Context, p model.Position) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO positions (account_id, symbol, side, size, entry_price, mark_price,
			leverage, unrealized_pnl, margin_used, liquidation_price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_id, symbol) DO UPDATE SET
			side = EXCLUDED.side,
			size = EXCLUDED.size,
			entry_price = EXCLUDED.entry_price,
			mark_price = EXCLUDED.mark_price,
			leverage = EXCLUDED.leverage,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			margin_used = EXCLUDED.margin_used,
			liquidation_price = EXCLUDED.liquidation_price,
			updated_at = EXCLUDED.updated_at
	`, p.AccountID, p.Symbol, p.Side, p.Size, p.EntryPrice, p.MarkPrice,
		p.Leverage, p.UnrealizedPnl, p.MarginUsed, p.LiquidationPx, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// Sync replaces an account's positions with the given set. Symbols no
// longer present on the exchange are removed.
func (s *PositionStore) Sync(ctx context.Context, accountID uuid.UUID, positions []model.Position) error {
	keep := make([]string, 0, len(positions))
	for _, p := range positions {
		p.AccountID = accountID
		if err := s.Upsert(ctx, p); err != nil {
			return err
		}
		keep = append(keep, p.Symbol)
	}

	_, err := s.db.Exec(ctx, `
		DELETE FROM positions WHERE account_id = $1 AND symbol <> ALL($2)`,
		accountID, keep)
	if err != nil {
		return fmt.Errorf("prune positions: %w", err)
	}
	return nil
}

// Open returns current positions. accountID filters when non-nil.
func (s *PositionStore) Open(ctx context.Context, accountID *uuid.UUID) ([]model.Position, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if accountID != nil {
		rows, err = s.db.Query(ctx, `
			SELECT `+positionColumns+` FROM positions
			WHERE account_id = $1 ORDER BY symbol`, *accountID)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+positionColumns+` FROM positions ORDER BY account_id, symbol`)
	}
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
