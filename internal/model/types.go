// Package model defines the domain types shared across the arena services.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Account & Strategy Types
// -----------------------------------------------------------------------------

// Account represents a trading account bound to a Hyperliquid wallet and a
// model endpoint. PrivateKeyEnc holds the AES-GCM encrypted secp256k1 key.
type Account struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	WalletAddress string    `json:"wallet_address"`
	PrivateKeyEnc string    `json:"-"` // never serialized
	ModelName     string    `json:"model_name"`
	ModelBaseURL  string    `json:"model_base_url"`
	ModelAPIKeyEnc string   `json:"-"`
	Environment   string    `json:"environment"` // "mainnet" or "testnet"
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StrategyConfig holds the per-account trigger and risk parameters.
type StrategyConfig struct {
	AccountID             uuid.UUID       `json:"account_id"`
	AutoTradingEnabled    bool            `json:"auto_trading_enabled"`
	TriggerIntervalSec    int             `json:"trigger_interval_seconds"`
	PriceChangeThreshold  decimal.Decimal `json:"price_change_threshold"` // percent, e.g. 2.5
	MaxLeverage           int             `json:"max_leverage"`
	MaxPositionPortion    decimal.Decimal `json:"max_position_portion"` // of equity, 0..1
	TradingSymbols        []string        `json:"trading_symbols"`
	StrategyPrompt        string          `json:"strategy_prompt"`
	LastTriggerAt         *time.Time      `json:"last_trigger_at,omitempty"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// SamplingConfig is the single global row controlling market sampling cadence.
type SamplingConfig struct {
	IntervalSeconds int       `json:"interval_seconds"`
	WindowSize      int       `json:"window_size"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// Prompt Types
// -----------------------------------------------------------------------------

// PromptTemplate is a named, versioned prompt body with {placeholder} slots.
type PromptTemplate struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Body        string    `json:"body"`
	IsBuiltin   bool      `json:"is_builtin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PromptBinding assigns a template to an account. At most one binding per
// account; rebinding replaces the previous row.
type PromptBinding struct {
	AccountID  uuid.UUID `json:"account_id"`
	TemplateID uuid.UUID `json:"template_id"`
	BoundAt    time.Time `json:"bound_at"`
}

// -----------------------------------------------------------------------------
// Trading Types
// -----------------------------------------------------------------------------

// Trade represents one executed (or attempted) order placement by an agent.
type Trade struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"` // "buy" or "sell"
	Size        decimal.Decimal `json:"size"`
	Price       decimal.Decimal `json:"price"`
	Leverage    int             `json:"leverage"`
	ReduceOnly  bool            `json:"reduce_only"`
	OrderID     string          `json:"order_id"`
	Status      string          `json:"status"` // "filled", "resting", "rejected", "error"
	Error       string          `json:"error,omitempty"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

// Position is a live perpetual position as reported by the exchange.
type Position struct {
	AccountID      uuid.UUID       `json:"account_id"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"` // "long" or "short"
	Size           decimal.Decimal `json:"size"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	MarkPrice      decimal.Decimal `json:"mark_price"`
	Leverage       int             `json:"leverage"`
	UnrealizedPnl  decimal.Decimal `json:"unrealized_pnl"`
	MarginUsed     decimal.Decimal `json:"margin_used"`
	LiquidationPx  decimal.Decimal `json:"liquidation_price"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ModelChatMessage records one exchange with the decision model: the rendered
// prompt, the raw completion, and the parsed decision summary.
type ModelChatMessage struct {
	ID         uuid.UUID `json:"id"`
	AccountID  uuid.UUID `json:"account_id"`
	Role       string    `json:"role"` // "user" or "assistant"
	Content    string    `json:"content"`
	Reasoning  string    `json:"reasoning,omitempty"`
	Decisions  string    `json:"decisions,omitempty"` // JSON-encoded decision list
	TriggerTag string    `json:"trigger_tag"`         // "interval" or "price_change"
	CreatedAt  time.Time `json:"created_at"`
}

// -----------------------------------------------------------------------------
// Market Data Types
// -----------------------------------------------------------------------------

// SymbolInfo describes one tradeable perpetual from the exchange universe.
type SymbolInfo struct {
	Symbol       string          `json:"symbol"` // base asset, e.g. "BTC"
	Name         string          `json:"name"`   // CCXT-style, e.g. "BTC/USDC:USDC"
	MaxLeverage  int             `json:"max_leverage"`
	SzDecimals   int             `json:"sz_decimals"`
	MarkPrice    decimal.Decimal `json:"mark_price"`
	OraclePrice  decimal.Decimal `json:"oracle_price"`
	PrevDayPrice decimal.Decimal `json:"prev_day_price"`
	Change24h    decimal.Decimal `json:"change_24h"` // percent
	Funding      decimal.Decimal `json:"funding"`
	OpenInterest decimal.Decimal `json:"open_interest"`
	DayVolume    decimal.Decimal `json:"day_volume"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TickerData is a lightweight last-price view for a symbol.
type TickerData struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Source    string          `json:"source"` // "ws" or "http"
	Timestamp time.Time       `json:"timestamp"`
}

// Kline is one OHLCV candle.
type Kline struct {
	Symbol    string          `json:"symbol"`
	Interval  string          `json:"interval"` // e.g. "1m", "1h"
	OpenTime  time.Time       `json:"open_time"`
	CloseTime time.Time       `json:"close_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Trades    int             `json:"trades"`
}

// -----------------------------------------------------------------------------
// Snapshot & Operational Types
// -----------------------------------------------------------------------------

// AccountSnapshot is one point on an account's equity curve.
type AccountSnapshot struct {
	AccountID    uuid.UUID       `json:"account_id"`
	Equity       decimal.Decimal `json:"equity"`
	Balance      decimal.Decimal `json:"balance"`
	MarginUsed   decimal.Decimal `json:"margin_used"`
	PositionsPnl decimal.Decimal `json:"positions_pnl"`
	TakenAt      time.Time       `json:"taken_at"`
}

// SystemLog is one structured operational log row surfaced via the API.
type SystemLog struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"` // "debug", "info", "warn", "error"
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewsItem is one scraped headline fed into prompt context.
type NewsItem struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}
