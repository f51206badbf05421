package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *ServerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.HTTP.JWTSecret == "" {
		return errors.New("http.jwt_secret is required")
	}

	if c.Hyperliquid.Environment != "mainnet" && c.Hyperliquid.Environment != "testnet" {
		return fmt.Errorf("hyperliquid.environment must be mainnet or testnet, got %q", c.Hyperliquid.Environment)
	}

	if err := c.Database.Arena.validate("database.arena"); err != nil {
		return err
	}
	if err := c.Database.Snapshots.validate("database.snapshots"); err != nil {
		return err
	}

	if c.Market.SamplingWindow < 2 {
		return errors.New("market.sampling_window must be >= 2")
	}

	if c.Snapshot.Concurrency < 1 {
		return errors.New("snapshot.concurrency must be >= 1")
	}

	if c.News.Enabled && c.News.SourceURL == "" {
		return errors.New("news.source_url is required when news is enabled")
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}
	if c.Writers.BufferSize < 1 {
		return errors.New("writers.buffer_size must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
