package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHTTPAddr = ":8802"

	DefaultMainnetRestURL = "https://api.hyperliquid.xyz"
	DefaultTestnetRestURL = "https://api.hyperliquid-testnet.xyz"
	DefaultMainnetWSURL   = "wss://api.hyperliquid.xyz/ws"
	DefaultTestnetWSURL   = "wss://api.hyperliquid-testnet.xyz/ws"

	DefaultAPITimeout           = 10 * time.Second
	DefaultMaxRetries           = 3
	DefaultReconnectBaseDelay   = 5 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultHeartbeatInterval    = 30 * time.Second

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultPriceCacheTTL         = 2 * time.Second
	DefaultSymbolRefreshInterval = 1 * time.Hour
	DefaultSamplingInterval      = 18 * time.Second
	DefaultSamplingWindow        = 200

	DefaultStrategyRefreshInterval = 60 * time.Second

	DefaultModelTimeout = 60 * time.Second

	DefaultSnapshotInterval  = 30 * time.Second
	DefaultSnapshotConc      = 4
	DefaultBroadcastInterval = 60 * time.Second

	DefaultNewsInterval = 10 * time.Minute
	DefaultNewsMaxItems = 5

	DefaultBatchSize     = 500
	DefaultFlushInterval = 1 * time.Second
	DefaultBufferSize    = 5000
)

func (c *ServerConfig) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}

	// Hyperliquid defaults
	if c.Hyperliquid.Environment == "" {
		c.Hyperliquid.Environment = "mainnet"
	}
	if c.Hyperliquid.RestURL == "" {
		if c.Hyperliquid.Environment == "testnet" {
			c.Hyperliquid.RestURL = DefaultTestnetRestURL
		} else {
			c.Hyperliquid.RestURL = DefaultMainnetRestURL
		}
	}
	if c.Hyperliquid.WSURL == "" {
		if c.Hyperliquid.Environment == "testnet" {
			c.Hyperliquid.WSURL = DefaultTestnetWSURL
		} else {
			c.Hyperliquid.WSURL = DefaultMainnetWSURL
		}
	}
	if c.Hyperliquid.Timeout == 0 {
		c.Hyperliquid.Timeout = DefaultAPITimeout
	}
	if c.Hyperliquid.MaxRetries == 0 {
		c.Hyperliquid.MaxRetries = DefaultMaxRetries
	}
	if c.Hyperliquid.ReconnectBaseDelay == 0 {
		c.Hyperliquid.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Hyperliquid.MaxReconnectAttempts == 0 {
		c.Hyperliquid.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Hyperliquid.HeartbeatInterval == 0 {
		c.Hyperliquid.HeartbeatInterval = DefaultHeartbeatInterval
	}

	// Database defaults
	applyDBDefaults(&c.Database.Arena)
	applyDBDefaults(&c.Database.Snapshots)

	// Market defaults
	if c.Market.PriceCacheTTL == 0 {
		c.Market.PriceCacheTTL = DefaultPriceCacheTTL
	}
	if c.Market.SymbolRefreshInterval == 0 {
		c.Market.SymbolRefreshInterval = DefaultSymbolRefreshInterval
	}
	if c.Market.SamplingInterval == 0 {
		c.Market.SamplingInterval = DefaultSamplingInterval
	}
	if c.Market.SamplingWindow == 0 {
		c.Market.SamplingWindow = DefaultSamplingWindow
	}

	// Strategy defaults
	if c.Strategy.RefreshInterval == 0 {
		c.Strategy.RefreshInterval = DefaultStrategyRefreshInterval
	}

	// Model defaults
	if c.Model.Timeout == 0 {
		c.Model.Timeout = DefaultModelTimeout
	}

	// Snapshot defaults
	if c.Snapshot.Interval == 0 {
		c.Snapshot.Interval = DefaultSnapshotInterval
	}
	if c.Snapshot.Concurrency == 0 {
		c.Snapshot.Concurrency = DefaultSnapshotConc
	}
	if c.Snapshot.BroadcastInterval == 0 {
		c.Snapshot.BroadcastInterval = DefaultBroadcastInterval
	}

	// News defaults
	if c.News.Interval == 0 {
		c.News.Interval = DefaultNewsInterval
	}
	if c.News.MaxItems == 0 {
		c.News.MaxItems = DefaultNewsMaxItems
	}

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
