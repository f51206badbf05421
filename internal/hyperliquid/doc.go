// Package hyperliquid provides REST and WebSocket access to the
// Hyperliquid exchange: the public /info endpoint, the signed /exchange
// endpoint for order placement, and a managed WebSocket connection with
// automatic resubscription on reconnect.
package hyperliquid
