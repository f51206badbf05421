package config

import "time"

// ServerConfig is the root configuration for an arena-server instance.
type ServerConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	HTTP        HTTPConfig        `yaml:"http"`
	Hyperliquid HyperliquidConfig `yaml:"hyperliquid"`
	Database    DatabaseConfig    `yaml:"database"`
	Market      MarketConfig      `yaml:"market"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Model       ModelConfig       `yaml:"model"`
	Snapshot    SnapshotConfig    `yaml:"snapshot"`
	News        NewsConfig        `yaml:"news"`
	Writers     WritersConfig     `yaml:"writers"`
	Keys        KeysConfig        `yaml:"keys"`
}

// InstanceConfig identifies this server.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HyperliquidConfig holds exchange API settings.
type HyperliquidConfig struct {
	Environment string        `yaml:"environment"` // "mainnet" or "testnet"
	RestURL     string        `yaml:"rest_url"`    // override; derived from environment when empty
	WSURL       string        `yaml:"ws_url"`      // override; derived from environment when empty
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`

	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
}

// DatabaseConfig holds both PostgreSQL databases.
// Arena holds relational data (accounts, trades, prompts, logs, klines).
// Snapshots holds the account equity time series.
type DatabaseConfig struct {
	Arena     DBConfig `yaml:"arena"`
	Snapshots DBConfig `yaml:"snapshots"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MarketConfig holds price cache and symbol catalog settings.
type MarketConfig struct {
	PriceCacheTTL         time.Duration `yaml:"price_cache_ttl"`
	SymbolRefreshInterval time.Duration `yaml:"symbol_refresh_interval"`
	SamplingInterval      time.Duration `yaml:"sampling_interval"` // fallback when no row in global config
	SamplingWindow        int           `yaml:"sampling_window"`   // samples retained per symbol
}

// StrategyConfig holds strategy manager settings.
type StrategyConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// ModelConfig holds the chat-completion endpoint used for trading decisions.
type ModelConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
}

// SnapshotConfig holds the account snapshot service settings.
type SnapshotConfig struct {
	Interval          time.Duration `yaml:"interval"`
	Concurrency       int           `yaml:"concurrency"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// NewsConfig holds the headline collector settings.
type NewsConfig struct {
	Enabled   bool          `yaml:"enabled"`
	SourceURL string        `yaml:"source_url"`
	Selector  string        `yaml:"selector"`
	Interval  time.Duration `yaml:"interval"`
	Headless  bool          `yaml:"headless"`
	MaxItems  int           `yaml:"max_items"`
}

// WritersConfig holds batch writer settings (klines, system logs).
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// KeysConfig holds private key encryption settings.
type KeysConfig struct {
	EncryptionKeyFile string `yaml:"encryption_key_file"`
}
