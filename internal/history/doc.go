// Package history provides durable storage for the append-only sync
// record log. Uses SQLite with WAL mode for concurrent read access.
//
// The Adaptive Frequency Manager exclusively owns this log: every
// orchestrator pass appends one record, statistics are derived by
// windowing the log, and retention is bounded by pruning to a configurable
// cap.
package history
