// Package store provides the Postgres persistence layer: pgx-backed
// repositories for accounts, strategy and sampling configuration,
// prompts, trades, positions, model chat, symbols and snapshots, plus
// batching writers for the high-volume kline and system-log streams.
package store
