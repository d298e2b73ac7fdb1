// Package journal provides SQLite-backed durable storage for injection runs.
//
// The journal is an append-only record of:
//   - Injections: one row per inject call, with its outcome
//   - Deliveries: one row per event delivered to a window
//   - Waits: one row per idle or timed wait
//
// # Critical Patterns
//
// CP-6: Atomic Injection Rows
//   - An injection and its deliveries commit in one transaction
//   - A reader never sees deliveries without their injection
//
// CP-7: Logical Order
//   - All ordering uses seq INTEGER, never wall-clock timestamps
//   - elapsed_ms is informational and never an ordering key
//
// CP-8: Idempotent Appends
//   - ON CONFLICT DO NOTHING on token and seq keys
//   - Re-recording a run cannot duplicate rows
//
// # Database Configuration
//
//   - WAL mode: the trace command reads while a run writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: deliveries cannot outlive their injection
package journal
