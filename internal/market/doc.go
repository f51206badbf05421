// Package market maintains the live market-data plane: a WebSocket-fed
// price cache with HTTP fallback, the tradeable symbol catalog, and the
// rolling sample windows used for price-change triggers.
package market
