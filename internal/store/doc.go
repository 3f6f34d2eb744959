// Package store provides SQLite-backed durable storage for appsim.
//
// The store holds:
//   - App definitions: canonical JSON with a content hash
//   - State checkpoints: GetStateSnapshot blobs with the journal position
//     and observation clock they were taken at
//   - Execution log: one append-only record per stateful call
//   - Pending observations: queued Notify output not yet drained
//
// # Ordering
//
// All ordering uses seq INTEGER columns (journal position or observation
// clock), never timestamps, and queries break ties with id ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Stored JSON is RFC 8785 canonical (ir.MarshalCanonical), so equal values
// are stored as identical text.
package store
