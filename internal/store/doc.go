// Package store provides SQLite-backed durable storage for SDDE endpoints.
//
// A store holds named endpoints. Each endpoint has:
//   - Snapshot: the field collection, its digest, the digest algorithm and
//     the rename history at a checkpoint
//   - Patch log: every patch pushed or received after that checkpoint
//
// Loading the snapshot with engine.FromSnapshot and re-applying the logged
// patches in seq order reproduces the endpoint state exactly.
//
// # Ordering
//
//   - Patch order uses the seq INTEGER assigned by the session clock, never
//     timestamps
//   - UNIQUE(snapshot, seq) rejects a second patch for the same position
//   - All patch reads use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Patches and snapshot rows cascade with their snapshot
package store
