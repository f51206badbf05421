package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperalpha/arena/internal/config"
)

// Pools holds database connections for an arena server.
type Pools struct {
	// Arena holds accounts, strategy config, prompts, trades, positions,
	// model chat, system logs, symbols, and klines.
	Arena *pgxpool.Pool

	// Snapshots holds account equity snapshots (time-series data).
	Snapshots *pgxpool.Pool
}

// NewPools creates connection pools for both databases.
func NewPools(ctx context.Context, cfg config.DatabaseConfig) (*Pools, error) {
	arena, err := Connect(ctx, cfg.Arena)
	if err != nil {
		return nil, fmt.Errorf("connect arena: %w", err)
	}

	snaps, err := Connect(ctx, cfg.Snapshots)
	if err != nil {
		arena.Close()
		return nil, fmt.Errorf("connect snapshots: %w", err)
	}

	return &Pools{
		Arena:     arena,
		Snapshots: snaps,
	}, nil
}

// Connect creates a single connection pool.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Close closes both connection pools.
func (p *Pools) Close() {
	if p.Arena != nil {
		p.Arena.Close()
	}
	if p.Snapshots != nil {
		p.Snapshots.Close()
	}
}

// Ping verifies both connections are healthy.
func (p *Pools) Ping(ctx context.Context) error {
	if err := p.Arena.Ping(ctx); err != nil {
		return fmt.Errorf("ping arena: %w", err)
	}
	if err := p.Snapshots.Ping(ctx); err != nil {
		return fmt.Errorf("ping snapshots: %w", err)
	}
	return nil
}
