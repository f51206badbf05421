package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-arena
http:
  addr: ":9000"
  jwt_secret: testsecret
hyperliquid:
  environment: testnet
database:
  arena:
    host: localhost
    port: 5432
    name: alpha_arena
    user: alpha_user
    password: alpha_pass
  snapshots:
    host: localhost
    port: 5432
    name: alpha_snapshots
    user: alpha_user
    password: alpha_pass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-arena" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-arena")
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, ":9000")
	}
	if cfg.Hyperliquid.Environment != "testnet" {
		t.Errorf("Hyperliquid.Environment = %q, want %q", cfg.Hyperliquid.Environment, "testnet")
	}
	if cfg.Database.Arena.Name != "alpha_arena" {
		t.Errorf("Database.Arena.Name = %q, want %q", cfg.Database.Arena.Name, "alpha_arena")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-arena
database:
  arena:
    host: localhost
    name: alpha_arena
    user: alpha_user
    password: ${TEST_DB_PASSWORD}
  snapshots:
    host: localhost
    name: alpha_snapshots
    user: alpha_user
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Arena.Password != "secret123" {
		t.Errorf("Database.Arena.Password = %q, want %q", cfg.Database.Arena.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-arena
database:
  arena:
    host: localhost
    name: alpha_arena
    user: alpha_user
    password: alpha_pass
  snapshots:
    host: localhost
    name: alpha_snapshots
    user: alpha_user
    password: alpha_pass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Hyperliquid.Environment != "mainnet" {
		t.Errorf("Hyperliquid.Environment = %q, want default %q", cfg.Hyperliquid.Environment, "mainnet")
	}
	if cfg.Hyperliquid.RestURL != DefaultMainnetRestURL {
		t.Errorf("Hyperliquid.RestURL = %q, want default %q", cfg.Hyperliquid.RestURL, DefaultMainnetRestURL)
	}
	if cfg.Hyperliquid.WSURL != DefaultMainnetWSURL {
		t.Errorf("Hyperliquid.WSURL = %q, want default %q", cfg.Hyperliquid.WSURL, DefaultMainnetWSURL)
	}
	if cfg.Market.PriceCacheTTL != DefaultPriceCacheTTL {
		t.Errorf("Market.PriceCacheTTL = %v, want default %v", cfg.Market.PriceCacheTTL, DefaultPriceCacheTTL)
	}
	if cfg.Market.SamplingInterval != DefaultSamplingInterval {
		t.Errorf("Market.SamplingInterval = %v, want default %v", cfg.Market.SamplingInterval, DefaultSamplingInterval)
	}
	if cfg.Database.Arena.Port != DefaultDBPort {
		t.Errorf("Database.Arena.Port = %d, want default %d", cfg.Database.Arena.Port, DefaultDBPort)
	}
	if cfg.Snapshot.Interval != DefaultSnapshotInterval {
		t.Errorf("Snapshot.Interval = %v, want default %v", cfg.Snapshot.Interval, DefaultSnapshotInterval)
	}
}

func TestTestnetURLDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-arena
hyperliquid:
  environment: testnet
database:
  arena:
    host: localhost
    name: alpha_arena
    user: alpha_user
    password: alpha_pass
  snapshots:
    host: localhost
    name: alpha_snapshots
    user: alpha_user
    password: alpha_pass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Hyperliquid.RestURL != DefaultTestnetRestURL {
		t.Errorf("Hyperliquid.RestURL = %q, want %q", cfg.Hyperliquid.RestURL, DefaultTestnetRestURL)
	}
	if cfg.Hyperliquid.WSURL != DefaultTestnetWSURL {
		t.Errorf("Hyperliquid.WSURL = %q, want %q", cfg.Hyperliquid.WSURL, DefaultTestnetWSURL)
	}
}

func TestValidate(t *testing.T) {
	validDB := DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 10, MinConns: 2}

	valid := ServerConfig{
		Instance:    InstanceConfig{ID: "test"},
		HTTP:        HTTPConfig{JWTSecret: "secret"},
		Hyperliquid: HyperliquidConfig{Environment: "mainnet"},
		Database:    DatabaseConfig{Arena: validDB, Snapshots: validDB},
		Market:      MarketConfig{SamplingWindow: 200},
		Snapshot:    SnapshotConfig{Concurrency: 4},
		Writers:     WritersConfig{BatchSize: 500, FlushInterval: time.Second, BufferSize: 5000},
	}

	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *ServerConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *ServerConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *ServerConfig) { c.HTTP.JWTSecret = "" },
			wantErr: "http.jwt_secret is required",
		},
		{
			name:    "bad environment",
			mutate:  func(c *ServerConfig) { c.Hyperliquid.Environment = "devnet" },
			wantErr: `hyperliquid.environment must be mainnet or testnet, got "devnet"`,
		},
		{
			name:    "missing arena host",
			mutate:  func(c *ServerConfig) { c.Database.Arena.Host = "" },
			wantErr: "database.arena.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *ServerConfig) {
				c.Database.Snapshots.MinConns = 20
			},
			wantErr: "database.snapshots.min_conns (20) cannot exceed max_conns (10)",
		},
		{
			name:    "news enabled without source",
			mutate:  func(c *ServerConfig) { c.News.Enabled = true },
			wantErr: "news.source_url is required when news is enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
