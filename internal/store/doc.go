// Package store provides the SQLite audit journal for mutating runs.
//
// The journal is append-mostly:
//   - runs: one row per delete/add/import run, written at start and
//     settled with the final report counters
//   - outcomes: one row per attempted task, keyed by (run_id, seq)
//
// A run whose status is still "running" was killed before it settled;
// its outcomes table holds exactly what was attempted.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
