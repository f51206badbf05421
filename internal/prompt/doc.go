// Package prompt builds the text prompts sent to trading models.
//
// Templates are plain text with {placeholder} variables. Static
// placeholders (account state, market prices, news) are filled from a
// variable map; dynamic per-symbol variables such as {BTC_market_data},
// {BTC_klines_15m}(200) and {BTC_RSI14_15m} are resolved against live
// market data, candle history and computed indicators. Variables that
// cannot be resolved render as empty sections rather than failing the
// whole prompt.
package prompt
