// Package snapshot records the equity time series. A collector polls
// each active account's clearinghouse state on a fixed cadence and
// writes equity, balance and margin rows to the snapshots database; a
// slower loop pushes the latest curve points to dashboard clients.
package snapshot
