// Package store is the SQLite run ledger.
//
// The ledger is an audit trail: every batch run gets a row in runs and
// every evaluated input row gets a row in attempts. Resumption never reads
// it; the results table stays the source of truth.
//
// # Ordering
//
// Attempts are ordered by seq, the engine's logical clock, and never by
// timestamps. Runs are ordered by id, which is a UUIDv7 and therefore
// sorts by start time.
//
// # Idempotency
//
// Writes use ON CONFLICT DO NOTHING keyed on (run_id, seq), so replaying
// the same attempt is harmless.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Attempts must belong to a recorded run
package store
