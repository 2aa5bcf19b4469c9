// Package store provides a SQLite-backed run log for chord executions.
//
// Each top-level view, task or flow execution is one row in the runs table:
// run id, logical seq, the executed target, the IR document hash, the
// status and the result as canonical JSON with its hash.
//
// # Ordering
//
// All ordering uses the seq column (the runtime's logical clock), never
// timestamps. Every query that returns several runs orders by
// seq ASC, id ASC COLLATE BINARY, so reads are deterministic.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Results are stored through ir.MarshalCanonical and verified with
// ir.ResultHash, so a stored run can be checked for corruption.
package store
