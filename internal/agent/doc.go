// Package agent runs the decision pipeline: build the prompt for an
// account, call its model, parse the returned trade decisions, validate
// them against the account's risk limits, and execute the surviving
// orders on the exchange.
package agent
