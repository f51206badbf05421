// Package server exposes the dashboard API: a chi REST surface over the
// stores and live market components, JWT-authenticated mutations, and a
// websocket hub that pushes trade, position and model-chat events.
package server
