// Package store provides SQLite-backed storage for scope traces and tree
// snapshots.
//
// The store is append-only:
//   - scope_events: one row per subshell transition (enter, journal,
//     restore, exit, fork), keyed by run and logical seq
//   - snapshots: canonical tree snapshots keyed by content hash
//   - run_snapshots: labels pointing a run at its snapshots
//
// Ordering always uses the seq column (a logical clock), never timestamps,
// so a replayed scenario produces identical rows. Queries order by
// seq ASC, id ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Snapshot hashes come from internal/snapshot and are checked again on
// read.
package store
