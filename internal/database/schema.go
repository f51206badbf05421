package database

import (
	"context"
	"fmt"
)

// arenaSchema creates the main database tables. Statements are
// idempotent so Migrate can run on every start.
const arenaSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS accounts (
	id                UUID PRIMARY KEY,
	name              TEXT NOT NULL UNIQUE,
	wallet_address    TEXT NOT NULL,
	private_key_enc   TEXT NOT NULL,
	model_name        TEXT NOT NULL DEFAULT '',
	model_base_url    TEXT NOT NULL DEFAULT '',
	model_api_key_enc TEXT NOT NULL DEFAULT '',
	environment       TEXT NOT NULL DEFAULT 'testnet',
	is_active         BOOLEAN NOT NULL DEFAULT true,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS strategy_configs (
	account_id               UUID PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
	auto_trading_enabled     BOOLEAN NOT NULL DEFAULT false,
	trigger_interval_seconds INT NOT NULL DEFAULT 3600,
	price_change_threshold   NUMERIC NOT NULL DEFAULT 0,
	max_leverage             INT NOT NULL DEFAULT 3,
	max_position_portion     NUMERIC NOT NULL DEFAULT 0.2,
	trading_symbols          TEXT[] NOT NULL DEFAULT '{}',
	strategy_prompt          TEXT NOT NULL DEFAULT '',
	last_trigger_at          TIMESTAMPTZ,
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sampling_config (
	id               INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	interval_seconds INT NOT NULL DEFAULT 18,
	window_size      INT NOT NULL DEFAULT 200,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prompt_templates (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL,
	is_builtin  BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prompt_bindings (
	account_id  UUID PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
	template_id UUID NOT NULL REFERENCES prompt_templates(id) ON DELETE CASCADE,
	bound_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trades (
	id          UUID PRIMARY KEY,
	account_id  UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	size        NUMERIC NOT NULL,
	price       NUMERIC NOT NULL,
	leverage    INT NOT NULL DEFAULT 1,
	reduce_only BOOLEAN NOT NULL DEFAULT false,
	order_id    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	executed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_trades_account_time ON trades (account_id, executed_at DESC);
CREATE INDEX IF NOT EXISTS idx_trades_time ON trades (executed_at DESC);

CREATE TABLE IF NOT EXISTS positions (
	account_id        UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	symbol            TEXT NOT NULL,
	side              TEXT NOT NULL,
	size              NUMERIC NOT NULL,
	entry_price       NUMERIC NOT NULL DEFAULT 0,
	mark_price        NUMERIC NOT NULL DEFAULT 0,
	leverage          INT NOT NULL DEFAULT 1,
	unrealized_pnl    NUMERIC NOT NULL DEFAULT 0,
	margin_used       NUMERIC NOT NULL DEFAULT 0,
	liquidation_price NUMERIC NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (account_id, symbol)
);

CREATE TABLE IF NOT EXISTS model_chat_messages (
	id          UUID PRIMARY KEY,
	account_id  UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	reasoning   TEXT NOT NULL DEFAULT '',
	decisions   TEXT NOT NULL DEFAULT '',
	trigger_tag TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_model_chat_account_time ON model_chat_messages (account_id, created_at DESC);

CREATE TABLE IF NOT EXISTS system_logs (
	id         BIGSERIAL PRIMARY KEY,
	level      TEXT NOT NULL,
	source     TEXT NOT NULL,
	message    TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_system_logs_time ON system_logs (created_at DESC);

CREATE TABLE IF NOT EXISTS selected_symbols (
	symbol   TEXT PRIMARY KEY,
	added_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS klines (
	symbol     TEXT NOT NULL,
	interval   TEXT NOT NULL,
	open_time  TIMESTAMPTZ NOT NULL,
	close_time TIMESTAMPTZ NOT NULL,
	open       NUMERIC NOT NULL,
	high       NUMERIC NOT NULL,
	low        NUMERIC NOT NULL,
	close      NUMERIC NOT NULL,
	volume     NUMERIC NOT NULL,
	trades     INT NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, interval, open_time)
);
`

// snapshotsSchema creates the snapshots database tables.
const snapshotsSchema = `
CREATE TABLE IF NOT EXISTS account_snapshots (
	account_id    UUID NOT NULL,
	equity        NUMERIC NOT NULL,
	balance       NUMERIC NOT NULL,
	margin_used   NUMERIC NOT NULL,
	positions_pnl NUMERIC NOT NULL,
	taken_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (account_id, taken_at)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_time ON account_snapshots (taken_at DESC);
`

// Migrate applies the schema to both databases.
func (p *Pools) Migrate(ctx context.Context) error {
	if _, err := p.Arena.Exec(ctx, arenaSchema); err != nil {
		return fmt.Errorf("migrate arena schema: %w", err)
	}
	if _, err := p.Snapshots.Exec(ctx, snapshotsSchema); err != nil {
		return fmt.Errorf("migrate snapshots schema: %w", err)
	}
	return nil
}
