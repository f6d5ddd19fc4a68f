// Package store provides SQLite-backed durable storage for selector builds
// and initialization runs.
//
// The store is an append-only log with:
//   - Builds: one record per successful selector build, with its structure
//     fingerprint and exposed connectors
//   - Build branches and edges: the wiring of each build by structural
//     identity (branch, direction, port)
//   - Init events: one row per initialization step of a run
//
// Store implements selector.Recorder.
//
// # Ordering
//
// All ordering uses the seq INTEGER stamped by the selector's logical clock,
// never timestamps. Queries order by seq ASC with a stable tiebreak so a
// recorded trace prints identically every time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
