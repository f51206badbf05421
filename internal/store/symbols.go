package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SymbolStore persists the watchlist of symbols being sampled and
// traded.
type SymbolStore struct {
	db *pgxpool.Pool
}

// NewSymbolStore creates a watchlist repository.
func NewSymbolStore(db *pgxpool.Pool) *SymbolStore {
	return &SymbolStore{db: db}
}

// Selected returns the watchlist in insertion order.
func (s *SymbolStore) Selected(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT symbol FROM selected_symbols ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// Replace swaps the whole watchlist atomically.
func (s *SymbolStore) Replace(ctx context.Context, symbols []string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin watchlist update: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM selected_symbols`); err != nil {
		return fmt.Errorf("clear watchlist: %w", err)
	}

	batch := &pgx.Batch{}
	for _, sym := range symbols {
		batch.Queue(`INSERT INTO selected_symbols (symbol) VALUES ($1) ON CONFLICT DO NOTHING`, sym)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert watchlist: %w", err)
	}

	return tx.Commit(ctx)
}
