// Package strategy decides when each trading agent runs. A manager
// polls per-account strategy configuration and fires the decision
// pipeline when the trigger interval elapses or the sampled price moves
// past the configured threshold. A running flag per account prevents
// overlapping pipeline runs.
package strategy
