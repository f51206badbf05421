// Package database manages PostgreSQL connection pools for the arena
// database (relational data) and the snapshots database (equity time series).
package database
