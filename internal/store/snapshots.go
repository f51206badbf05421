package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperalpha/arena/internal/model"
)

// SnapshotStore persists account equity snapshots in the snapshots
// database.
type SnapshotStore struct {
	db *pgxpool.Pool
}

// NewSnapshotStore creates a snapshot repository.
func NewSnapshotStore(db *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Insert records one equity snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap model.AccountSnapshot) error {
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO account_snapshots (account_id, equity, balance, margin_used, positions_pnl, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, taken_at) DO NOTHING
	`, snap.AccountID, snap.Equity, snap.Balance, snap.MarginUsed, snap.PositionsPnl, snap.TakenAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Curve returns an account's snapshots since the cutoff, oldest first.
func (s *SnapshotStore) Curve(ctx context.Context, accountID uuid.UUID, since time.Time) ([]model.AccountSnapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT account_id, equity, balance, margin_used, positions_pnl, taken_at
		FROM account_snapshots
		WHERE account_id = $1 AND taken_at >= $2
		ORDER BY taken_at`, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.AccountSnapshot
	for rows.Next() {
		var snap model.AccountSnapshot
		if err := rows.Scan(&snap.AccountID, &snap.Equity, &snap.Balance,
			&snap.MarginUsed, &snap.PositionsPnl, &snap.TakenAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Latest returns the newest snapshot per account, for the asset-curve
// broadcast.
func (s *SnapshotStore) Latest(ctx context.Context) ([]model.AccountSnapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (account_id) account_id, equity, balance, margin_used, positions_pnl, taken_at
		FROM account_snapshots
		ORDER BY account_id, taken_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.AccountSnapshot
	for rows.Next() {
		var snap model.AccountSnapshot
		if err := rows.Scan(&snap.AccountID, &snap.Equity, &snap.Balance,
			&snap.MarginUsed, &snap.PositionsPnl, &snap.TakenAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
