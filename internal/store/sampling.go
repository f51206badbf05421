package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperalpha/arena/internal/model"
)

// SamplingStore persists the single global sampling configuration row.
type SamplingStore struct {
	db   *pgxpool.Pool
	seed model.SamplingConfig
}

// NewSamplingStore creates a sampling config repository. seed is
// written on first read when no row exists yet; zero fields fall back
// to 18s/200.
func NewSamplingStore(db *pgxpool.Pool, seed model.SamplingConfig) *SamplingStore {
	if seed.IntervalSeconds <= 0 {
		seed.IntervalSeconds = 18
	}
	if seed.WindowSize <= 0 {
		seed.WindowSize = 200
	}
	return &SamplingStore{db: db, seed: seed}
}

// Get returns the sampling config, seeding defaults on first read.
func (s *SamplingStore) Get(ctx context.Context) (model.SamplingConfig, error) {
	var c model.SamplingConfig
	err := s.db.QueryRow(ctx, `
		SELECT interval_seconds, window_size, updated_at FROM sampling_config WHERE id = 1`,
	).Scan(&c.IntervalSeconds, &c.WindowSize, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.Update(ctx, s.seed)
	}
	if err != nil {
		return c, fmt.Errorf("get sampling config: %w", err)
	}
	return c, nil
}

// Update replaces the sampling config.
func (s *SamplingStore) Update(ctx context.Context, c model.SamplingConfig) (model.SamplingConfig, error) {
	c.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO sampling_config (id, interval_seconds, window_size, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			interval_seconds = EXCLUDED.interval_seconds,
			window_size = EXCLUDED.window_size,
			updated_at = EXCLUDED.updated_at
	`, c.IntervalSeconds, c.WindowSize, c.UpdatedAt)
	if err != nil {
		return model.SamplingConfig{}, fmt.Errorf("update sampling config: %w", err)
	}
	return c, nil
}
